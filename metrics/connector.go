package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

var (
	connectorRequests = prom.NewCounterVec(prom.CounterOpts{
		Name: "connector_requests_total",
		Help: "dApp requests received, split by family, method and transport.",
	}, []string{"family", "method", "transport"})
	connectorRejections = prom.NewCounterVec(prom.CounterOpts{
		Name: "connector_rejections_total",
		Help: "Requests rejected without user approval, split by reason.",
	}, []string{"family", "reason"})
	connectorPendingApprovals = prom.NewGaugeVec(prom.GaugeOpts{
		Name: "connector_pending_approvals",
		Help: "Requests waiting for a user decision.",
	}, []string{"family"})
)

func init() {
	prom.MustRegister(connectorRequests)
	prom.MustRegister(connectorRejections)
	prom.MustRegister(connectorPendingApprovals)
}

func RequestReceived(family, method, transport string) {
	connectorRequests.WithLabelValues(family, method, transport).Inc()
}

func RequestRejected(family, reason string) {
	connectorRejections.WithLabelValues(family, reason).Inc()
}

func ApprovalPending(family string) {
	connectorPendingApprovals.WithLabelValues(family).Inc()
}

func ApprovalSettled(family string) {
	connectorPendingApprovals.WithLabelValues(family).Dec()
}
