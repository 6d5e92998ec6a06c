// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/studio/internal/platform/apperr"
	"github.com/taibuivan/studio/internal/platform/validate"
)

/*
TestValidator_Required tests the mandatory field validation logic.
*/
func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		hasError bool
	}{
		{"valid_string", "login", "editor", false},
		{"empty_string", "login", "", true},
		{"whitespace_only", "login", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Required(tt.field, tt.value)

			if tt.hasError {
				assert.True(t, v.HasErrors())
				err := v.Err()
				require.NotNil(t, err)

				ae := apperr.As(err)
				require.NotNil(t, ae)
				assert.Equal(t, "VALIDATION_ERROR", ae.Code)
				assert.Equal(t, tt.field, ae.Details[0].Field)
			} else {
				assert.False(t, v.HasErrors())
				assert.Nil(t, v.Err())
			}
		})
	}
}

/*
TestValidator_Chain verifies that failures accumulate across rules in order.
*/
func TestValidator_Chain(t *testing.T) {
	v := &validate.Validator{}
	v.Required("login", "").
		MaxLen("password", strings.Repeat("x", 73), 72).
		MaxLen("display_name", "short", 72).
		OneOf("status", "archived", "draft", "published").
		PositiveID("id", 0, true)

	ae := apperr.As(v.Err())
	require.NotNil(t, ae)
	require.Len(t, ae.Details, 4)

	fields := make([]string, 0, len(ae.Details))
	for _, detail := range ae.Details {
		fields = append(fields, detail.Field)
	}
	assert.Equal(t, []string{"login", "password", "status", "id"}, fields)
	assert.Equal(t, "Maximum 72 characters", ae.Details[1].Message)
	assert.Equal(t, "Must be one of: draft, published", ae.Details[2].Message)
}

/*
TestValidator_PositiveID covers unparsed, zero and valid identifiers.
*/
func TestValidator_PositiveID(t *testing.T) {
	assert.True(t, (&validate.Validator{}).PositiveID("id", 12, false).HasErrors())
	assert.True(t, (&validate.Validator{}).PositiveID("id", -1, true).HasErrors())
	assert.False(t, (&validate.Validator{}).PositiveID("id", 12, true).HasErrors())
}
