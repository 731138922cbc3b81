package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stageInput struct {
	Name  string `json:"name" validate:"required"`
	Color string `json:"color" validate:"omitempty,stagecolor"`
	Role  string `json:"role" validate:"omitempty,role"`
}

func TestCustomRules(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(stageInput{Name: "Lead", Color: "#3b82f6", Role: "admin"}))
	assert.NoError(t, v.Struct(stageInput{Name: "Lead"}))

	err := v.Struct(stageInput{Color: "blue", Role: "owner"})
	require.Error(t, err)

	fields := Fields(err)
	require.Len(t, fields, 3)
	assert.Equal(t, FieldError{Field: "name", Message: "is required"}, fields[0])
	assert.Equal(t, "color", fields[1].Field)
	assert.Equal(t, "role", fields[2].Field)
	assert.Equal(t, "name is required; color must be a hex color like #3b82f6; role must be admin or user", Summary(fields))
}

func TestFieldsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, Fields(errors.New("unexpected EOF")))
}
