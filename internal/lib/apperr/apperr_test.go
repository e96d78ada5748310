package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("ledger.Transfer: %w", Wrap(InsufficientFunds, "insufficient funds", cause))

	assert.Equal(t, InsufficientFunds, KindOf(err))
	assert.True(t, Is(err, InsufficientFunds))
	assert.False(t, Is(err, NotFound))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "insufficient funds", MessageOf(err))
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, TransientStoreFailure, KindOf(err))
	assert.Equal(t, "internal error", MessageOf(err))
}
