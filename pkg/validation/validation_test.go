package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsCollectsFields(t *testing.T) {
	var v Errors
	v.Required("code", "  ")
	v.NonNegative("setup_fee", -1)
	v.Positive("amount", 0)
	v.OneOf("cycle", "weekly", "monthly", "annual")

	err := v.Err()
	require.Error(t, err)

	var verr *Errors
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 4)
	assert.True(t, verr.Has("cycle"))
	assert.Contains(t, err.Error(), "code: is required")
}

func TestErrorsEmptyIsNil(t *testing.T) {
	var v Errors
	v.Required("code", "BASIC")
	v.Positive("amount", 10)
	assert.NoError(t, v.Err())
}
