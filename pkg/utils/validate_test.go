package utils

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_UsesJSONNamesAndNotBlank(t *testing.T) {
	type input struct {
		Language *string `json:"preferredLanguage" validate:"omitnil,notblank,max=5"`
	}
	blank, ok := "   ", "de"

	assert.NoError(t, Validator.Struct(input{}))
	assert.NoError(t, Validator.Struct(input{Language: &ok}))

	err := Validator.Struct(input{Language: &blank})
	var fields validator.ValidationErrors
	require.True(t, errors.As(err, &fields))
	require.Len(t, fields, 1)
	assert.Equal(t, "preferredLanguage", fields[0].Field())
	assert.Equal(t, "notblank", fields[0].Tag())
}
