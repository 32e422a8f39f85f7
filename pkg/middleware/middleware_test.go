package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"knowledge-ledger/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

func newEngine(h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Channel(), Error())
	r.GET("/x", h)
	return r
}

func TestErrorRendersBaseError(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(errutil.Conflict("Transaction already processed", errors.New("secret db detail")))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusConflict, w.Code)
	require.NotContains(t, w.Body.String(), "secret db detail")

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "CONFLICT", body["error"]["code"])
	require.Equal(t, "Transaction already processed", body["error"]["message"])
}

func TestErrorHidesUnknownErrors(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection refused"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "pq:")
}

func TestRequestIDAndChannel(t *testing.T) {
	var gotChannel, gotID string
	r := newEngine(func(c *gin.Context) {
		gotChannel = GetChannel(c.Request.Context())
		gotID = GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(APIKeyHeader, "partner_abc")
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "partner", gotChannel)
	require.Equal(t, "req-1", gotID)
	require.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, "api", gotChannel)
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestChannelInterceptor(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "pos_123"))

	var got string
	_, err := ChannelInterceptor()(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req interface{}) (interface{}, error) {
		got = GetChannel(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, "pos", got)
	require.False(t, FromChannel(context.Background(), "pos"))
}

func TestChannelOf(t *testing.T) {
	require.Equal(t, "lms", channelOf("lms_moodle"))
	require.Equal(t, "online", channelOf("web_portal"))
	require.Equal(t, DefaultChannel, channelOf(""))
	require.Equal(t, DefaultChannel, channelOf("LMS_upper"))
}
