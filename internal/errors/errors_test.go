package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageIncludesKindFieldAndReason(t *testing.T) {
	err := Validation("weights", "must sum to 1")
	assert.Equal(t, "VALIDATION_ERROR: weights: must sum to 1", err.Error())
}

func TestErrorMessageOmitsEmptyField(t *testing.T) {
	err := SystemLimit("run exceeded 10m")
	assert.Equal(t, "SYSTEM_LIMIT_EXCEEDED: run exceeded 10m", err.Error())
}

func TestExternalKeepsCauseOutOfMessage(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused by 10.0.0.1")
	err := External("isochrone", cause)
	assert.NotContains(t, err.Error(), "10.0.0.1")
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestKindOfUnwrapsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("stage 3: %w", Degradation("isochrone unavailable"))
	assert.Equal(t, KindDegradation, KindOf(wrapped))
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(stderrors.New("plain")))
}

func TestGuardrailCarriesField(t *testing.T) {
	err := Guardrail("minSpacingKm", "below absolute bound, clamped to 0.5")
	assert.Equal(t, KindGuardrail, err.Kind)
	assert.Equal(t, "minSpacingKm", err.Field)
}

func TestIsFatalClassifiesKinds(t *testing.T) {
	assert.True(t, IsFatal(Validation("targetK", "must be >= 1")))
	assert.True(t, IsFatal(SystemLimit("memory")))
	assert.True(t, IsFatal(ConfigInvalid("bad TOKEN_BUDGET")))
	assert.False(t, IsFatal(Degradation("template fallback")))
	assert.False(t, IsFatal(Guardrail("weights.gap", "clamped")))
	assert.False(t, IsFatal(stderrors.New("plain")))
}
