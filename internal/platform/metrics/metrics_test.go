package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordFlush(t *testing.T) {
	okBefore := testutil.ToFloat64(ProgressFlushTotal.WithLabelValues(OutcomeSuccess))
	failBefore := testutil.ToFloat64(ProgressFlushTotal.WithLabelValues(OutcomeFailure))

	RecordFlush(10*time.Millisecond, nil)
	RecordFlush(10*time.Millisecond, errors.New("store down"))

	if got := testutil.ToFloat64(ProgressFlushTotal.WithLabelValues(OutcomeSuccess)); got != okBefore+1 {
		t.Fatalf("expected success counter %v, got %v", okBefore+1, got)
	}
	if got := testutil.ToFloat64(ProgressFlushTotal.WithLabelValues(OutcomeFailure)); got != failBefore+1 {
		t.Fatalf("expected failure counter %v, got %v", failBefore+1, got)
	}
}

func TestRecordLoad(t *testing.T) {
	before := testutil.ToFloat64(ProgressLoadTotal.WithLabelValues(OutcomeFailure))
	RecordLoad(errors.New("unreachable"))
	if got := testutil.ToFloat64(ProgressLoadTotal.WithLabelValues(OutcomeFailure)); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}

func TestRecordStoryEvent(t *testing.T) {
	before := testutil.ToFloat64(StoryEventsHandledTotal.WithLabelValues(OutcomeSuccess))
	RecordStoryEvent(nil)
	if got := testutil.ToFloat64(StoryEventsHandledTotal.WithLabelValues(OutcomeSuccess)); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}

func TestRecordAnalyticsBatch(t *testing.T) {
	storedBefore := testutil.ToFloat64(AnalyticsEventsStoredTotal)
	failBefore := testutil.ToFloat64(AnalyticsBatchTotal.WithLabelValues(OutcomeFailure))

	RecordAnalyticsBatch(3, nil)
	RecordAnalyticsBatch(5, errors.New("db down"))

	if got := testutil.ToFloat64(AnalyticsEventsStoredTotal); got != storedBefore+3 {
		t.Fatalf("expected %v stored, got %v", storedBefore+3, got)
	}
	if got := testutil.ToFloat64(AnalyticsBatchTotal.WithLabelValues(OutcomeFailure)); got != failBefore+1 {
		t.Fatalf("expected %v failures, got %v", failBefore+1, got)
	}
}
