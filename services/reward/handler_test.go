package reward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"knowledge-ledger/pkg/middleware"
	"knowledge-ledger/services/audit"
	"knowledge-ledger/services/settlement"

	"github.com/gin-gonic/gin"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const exampleBody = `{
	"transactionId": "tx1",
	"userId": "u1",
	"economyId": "ZAR",
	"amount": 100,
	"knowledgeType": "course_completion",
	"knowledgeId": "c1",
	"signature": "sig"
}`

func newRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newFixture(t)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Channel(), middleware.Error())
	NewHandler(f.svc).Register(r)
	return r, f
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandlerProcessRewardThenDuplicate(t *testing.T) {
	r, f := newRouter(t)

	w := do(r, http.MethodPost, "/reward", exampleBody)
	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, true, res["success"])
	require.Equal(t, "tx1", res["transactionId"])
	require.Equal(t, "100", res["newBalance"])

	w = do(r, http.MethodPost, "/v1/rewards", exampleBody)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "CONFLICT", decodeError(t, w).Error.Code)

	require.Len(t, f.sink.all(), 2)
}

func TestHandlerValidationError(t *testing.T) {
	r, f := newRouter(t)

	body := bytes.Replace([]byte(exampleBody), []byte("course_completion"), []byte("invalid_type"), 1)
	w := do(r, http.MethodPost, "/reward", string(body))
	require.Equal(t, http.StatusBadRequest, w.Code)

	e := decodeError(t, w)
	require.Equal(t, "VALIDATION_FAILED", e.Error.Code)
	require.Equal(t, "Invalid knowledge type", e.Error.Message)
	f.requireEmptyLedger(t)
}

func TestHandlerMalformedBodyIsAudited(t *testing.T) {
	r, f := newRouter(t)

	w := do(r, http.MethodPost, "/reward", `{"transactionId":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid request body", decodeError(t, w).Error.Message)

	entries := f.sink.all()
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].AuditReportID, "unknown-")
}

func TestHandlerUndecodableFieldKeepsTransactionID(t *testing.T) {
	r, f := newRouter(t)
	before := promtest.ToFloat64(outcomes.WithLabelValues(audit.ActionValidationFailed))

	body := strings.Replace(exampleBody, `"amount": 100`, `"amount": "abc"`, 1)
	require.NotEqual(t, exampleBody, body)

	w := do(r, http.MethodPost, "/reward", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid request body", decodeError(t, w).Error.Message)

	entries := f.sink.all()
	require.Len(t, entries, 1)
	require.Equal(t, "tx1", entries[0].AuditReportID)
	require.Equal(t, audit.ActionValidationFailed, entries[0].Action)
	require.Equal(t, before+1, promtest.ToFloat64(outcomes.WithLabelValues(audit.ActionValidationFailed)))
	f.requireEmptyLedger(t)
}

func TestHandlerSupply(t *testing.T) {
	r, _ := newRouter(t)

	w := do(r, http.MethodGet, "/v1/supply", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"data":[]}`, w.Body.String())

	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/reward", exampleBody).Code)

	w = do(r, http.MethodGet, "/v1/supply?currency=ZAR", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Data []struct {
			CurrencyCode string `json:"currencyCode"`
			Total        string `json:"total"`
			Holders      int64  `json:"holders"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Data, 1)
	require.Equal(t, "ZAR", res.Data[0].CurrencyCode)
	require.Equal(t, "100", res.Data[0].Total)
	require.EqualValues(t, 1, res.Data[0].Holders)
}

func brokenTransfer(context.Context, settlement.Transfer) (*settlement.Receipt, error) {
	return nil, fmt.Errorf("%w: node unreachable", settlement.ErrSettlementFailed)
}

func TestHandlerProcessingErrorHidesCause(t *testing.T) {
	r, f := newRouter(t)
	f.svc.settler = &settlerMock{transferFn: brokenTransfer}

	w := do(r, http.MethodPost, "/reward", exampleBody)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "Transaction processing failed", decodeError(t, w).Error.Message)
	require.NotContains(t, w.Body.String(), "node unreachable")
}

func TestHandlerReads(t *testing.T) {
	r, _ := newRouter(t)

	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/reward", exampleBody).Code)

	w := do(r, http.MethodGet, "/v1/users/u1/balances", "")
	require.Equal(t, http.StatusOK, w.Code)
	var balances struct {
		UserID   string           `json:"userId"`
		Balances []map[string]any `json:"balances"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balances))
	require.Equal(t, "u1", balances.UserID)
	require.Len(t, balances.Balances, 1)

	w = do(r, http.MethodGet, "/v1/users/nobody/balances", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"balances":[]`)

	w = do(r, http.MethodGet, "/v1/users/u1/rewards?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data     []map[string]any `json:"data"`
		PageInfo map[string]any   `json:"pageInfo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	require.Equal(t, false, page.PageInfo["has_more"])

	w = do(r, http.MethodGet, "/v1/users/u1/rewards?limit=500", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/v1/rewards/tx1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/v1/rewards/missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "NOT_FOUND", decodeError(t, w).Error.Code)
}
