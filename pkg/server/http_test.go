package server

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"knowledge-ledger/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestHttpServerServesEngine(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	cfg := &config.Config{AppName: "knowledge-ledger"}
	cfg.Server.Addr = "0"

	srv, err := NewHttpServer(Params{Config: cfg, Engine: engine})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + srv.Addr().String() + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "pong", string(body))
}

func TestHttpServerRequiresCertWhenTLSEnabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Addr = "0"
	cfg.TLS.Enable = true
	cfg.TLS.CertPath = filepath.Join(t.TempDir(), "missing.crt")
	cfg.TLS.KeyPath = filepath.Join(t.TempDir(), "missing.key")

	_, err := NewHttpServer(Params{Config: cfg, Engine: gin.New()})
	require.Error(t, err)
}
