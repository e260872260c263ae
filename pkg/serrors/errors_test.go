package serrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseError_IsMatchesByCode(t *testing.T) {
	base := NewError("CRM_EMPTY_FILE", "file has no data rows", "")
	specific := base.WithMessage("leads.csv has no data rows")
	wrapped := fmt.Errorf("begin import: %w", specific)

	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, "leads.csv has no data rows", specific.Error())
	assert.Equal(t, "CRM_EMPTY_FILE", CodeOf(wrapped))
	assert.False(t, errors.Is(wrapped, NewError("OTHER", "x", "")))
	assert.Empty(t, CodeOf(errors.New("plain")))
}

func TestProcessValidatorErrors(t *testing.T) {
	type dto struct {
		IDs  []string `validate:"required,min=1"`
		Kind string   `validate:"required"`
	}
	v := validator.New()
	err := v.Struct(&dto{IDs: []string{}})
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	out := ProcessValidatorErrors(verrs, func(field string) string {
		if field == "Kind" {
			return "kind"
		}
		return ""
	})
	assert.Equal(t, "kind is required", out["Kind"])
	assert.Contains(t, out["IDs"], "at least 1")
}
