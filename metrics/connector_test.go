package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestConnectorCounters(t *testing.T) {
	before := testutil.ToFloat64(connectorRequests.WithLabelValues("evm", "connect", "embedded"))
	RequestReceived("evm", "connect", "embedded")
	require.Equal(t, before+1, testutil.ToFloat64(connectorRequests.WithLabelValues("evm", "connect", "embedded")))

	ApprovalPending("ton")
	ApprovalPending("ton")
	ApprovalSettled("ton")
	require.Equal(t, float64(1), testutil.ToFloat64(connectorPendingApprovals.WithLabelValues("ton")))
}

func TestHandlerExposesConnectorMetrics(t *testing.T) {
	RequestRejected("solana", "not_connected")

	rec := httptest.NewRecorder()
	Handler(metrics.NewRegistry()).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "connector_rejections_total")
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, "OK", rec.Body.String())
}
