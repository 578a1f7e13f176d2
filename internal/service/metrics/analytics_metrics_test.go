package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"RiskPulse/internal/domain/errs"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "invalid", Outcome(&errs.ValidationError{Symbol: "ZZZZ", Reason: "not found"}))
	assert.Equal(t, "invalid", Outcome(errs.E(errs.KindValidation, "op", "symbol required", nil)))
	assert.Equal(t, "unavailable", Outcome(fmt.Errorf("wrap: %w", errs.E(errs.KindUnavailable, "op", "", nil))))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestObserveAnalysis(t *testing.T) {
	before := testutil.ToFloat64(AnalysisOutcomes.WithLabelValues(EntryKafka, "ok"))
	ObserveAnalysis(EntryKafka, time.Now(), nil)
	assert.Equal(t, before+1, testutil.ToFloat64(AnalysisOutcomes.WithLabelValues(EntryKafka, "ok")))
}
