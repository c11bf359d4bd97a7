package metrics_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	rdata "github.com/goliatone/go-rendererdata"
	"github.com/goliatone/go-rendererdata/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderObservesOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := metrics.New(metrics.WithRegistry(reg), metrics.WithNamespace("test"))

	recorder.ObserveOperation("add", 5*time.Millisecond, nil)
	recorder.ObserveOperation("add", 5*time.Millisecond, fmt.Errorf("wrapped: %w", rdata.ErrDuplicateType))
	recorder.ObserveOperation("move", time.Millisecond, rdata.ErrInvalidIndex)
	recorder.SetFeatureCount("Renderer2D", 3)

	if got := testutil.CollectAndCount(reg, "test_operations_total"); got != 3 {
		t.Fatalf("expected 3 operation series, got %d", got)
	}
	if got := testutil.CollectAndCount(reg, "test_operation_errors_total"); got != 2 {
		t.Fatalf("expected 2 error series, got %d", got)
	}
	if got := testutil.CollectAndCount(reg, "test_operation_duration_seconds"); got != 2 {
		t.Fatalf("expected 2 duration series, got %d", got)
	}
	if got := testutil.CollectAndCount(reg, "test_features"); got != 1 {
		t.Fatalf("expected 1 feature gauge, got %d", got)
	}
}

func TestErrorType(t *testing.T) {
	cases := map[string]error{
		"invalid_index":  rdata.ErrInvalidIndex,
		"persistence":    fmt.Errorf("%w: flush: disk full", rdata.ErrPersistence),
		"misaligned":     &rdata.OperationError{Op: "add", Index: -1, Err: rdata.ErrMisaligned},
		"other":          errors.New("boom"),
		"duplicate_type": rdata.ErrDuplicateType,
	}
	for want, err := range cases {
		if got := metrics.ErrorType(err); got != want {
			t.Fatalf("ErrorType(%v) = %q, want %q", err, got, want)
		}
	}
}
