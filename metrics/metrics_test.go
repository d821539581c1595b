package metrics

import (
	"testing"

	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveFindings(t *testing.T) {
	FindingsTotal.Reset()
	ObserveFindings([]monitor.Finding{
		{Kind: monitor.KindQuotaPressure, Severity: monitor.SeverityWarning},
		{Kind: monitor.KindQuotaPressure, Severity: monitor.SeverityWarning},
		{Kind: monitor.KindSecurityRisk, Severity: monitor.SeverityCritical},
	})
	assert.Equal(t, 2.0, testutil.ToFloat64(FindingsTotal.WithLabelValues(string(monitor.KindQuotaPressure), "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(FindingsTotal.WithLabelValues(string(monitor.KindSecurityRisk), "critical")))
}

func TestObserveDispatch(t *testing.T) {
	NotificationsTotal.Reset()
	ObserveDispatch(monitor.DispatchSummary{Deliveries: []monitor.Delivery{
		{Outcome: monitor.OutcomeSent},
		{Outcome: monitor.OutcomeSuppressed},
		{Outcome: monitor.OutcomeSent},
	}})
	assert.Equal(t, 2.0, testutil.ToFloat64(NotificationsTotal.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(NotificationsTotal.WithLabelValues("suppressed")))
}

func TestRegisterTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}
