package http

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func initTestMetrics(t *testing.T) {
	t.Helper()
	if _, err := RegisterMetrics(MetricsConfig{Registry: prometheus.NewRegistry()}); err != nil {
		t.Fatalf("RegisterMetrics: %v", err)
	}
}

func TestRecordCodeConsumed(t *testing.T) {
	initTestMetrics(t)

	okBefore := testutil.ToFloat64(codesConsumedTotal.WithLabelValues("ok"))
	missBefore := testutil.ToFloat64(codesConsumedTotal.WithLabelValues("miss"))

	RecordCodeConsumed("ok")
	RecordCodeConsumed("ok")
	RecordCodeConsumed("miss")

	if got := testutil.ToFloat64(codesConsumedTotal.WithLabelValues("ok")); got != okBefore+2 {
		t.Errorf("ok count = %v, want %v", got, okBefore+2)
	}
	if got := testutil.ToFloat64(codesConsumedTotal.WithLabelValues("miss")); got != missBefore+1 {
		t.Errorf("miss count = %v, want %v", got, missBefore+1)
	}
}

func TestRecordTokenIssued(t *testing.T) {
	initTestMetrics(t)

	before := testutil.ToFloat64(tokensIssuedTotal.WithLabelValues("authorization_code", "ok"))
	RecordTokenIssued("authorization_code", "ok")
	if got := testutil.ToFloat64(tokensIssuedTotal.WithLabelValues("authorization_code", "ok")); got != before+1 {
		t.Errorf("count = %v, want %v", got, before+1)
	}
}
