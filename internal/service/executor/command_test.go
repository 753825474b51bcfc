package executor

import (
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/logger"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/metrics"
)

// TestApplyLogLevel lets the override win and rejects unknown levels.
//
//nolint:paralleltest // Mutates the global log level.
func TestApplyLogLevel(t *testing.T) {
	previous := logger.Level()
	defer logger.SetLevel(previous)

	require.NoError(t, applyLogLevel("warn", ""))
	require.Equal(t, zapcore.WarnLevel, logger.Level())

	require.NoError(t, applyLogLevel("warn", "debug"))
	require.Equal(t, zapcore.DebugLevel, logger.Level())

	require.ErrorIs(t, applyLogLevel("", "chatty"), ErrUnknownLogLevel)
}

// TestRun_InvalidConfig fails before listening.
func TestRun_InvalidConfig(t *testing.T) {
	t.Parallel()

	err := Run(t.Context(), &Options{ConfigPath: t.TempDir() + "/missing.yaml"})
	require.Error(t, err)
}

// TestServeMetrics exposes the registry and a liveness endpoint.
func TestServeMetrics(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	address := lis.Addr().String()
	require.NoError(t, lis.Close())

	registry := metrics.New()
	registry.AlarmFiltered("pager")

	stop := serveMetrics(t.Context(), address, registry)
	defer stop()

	get := func(path string) (int, string) {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://"+address+path, nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return 0, ""
		}

		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		return resp.StatusCode, string(body)
	}

	require.Eventually(t, func() bool {
		code, _ := get("/healthz")

		return code == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	code, body := get("/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `shellexec_alarms_filtered_total{pid="pager"} 1`)
}
