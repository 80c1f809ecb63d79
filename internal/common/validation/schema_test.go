// internal/common/validation/schema_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func petSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"petName", "species"},
		"properties": map[string]interface{}{
			"petName": map[string]interface{}{"type": "string", "minLength": 1},
			"species": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"dog", "cat"},
			},
			"weightLbs": map[string]interface{}{"type": "number"},
		},
	}
}

func TestValidateFormData_Valid(t *testing.T) {
	result, err := ValidateFormData(petSchema(), map[string]interface{}{
		"petName":   "Rex",
		"species":   "dog",
		"weightLbs": 42.5,
	})

	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateFormData_MissingRequiredField(t *testing.T) {
	result, err := ValidateFormData(petSchema(), map[string]interface{}{
		"petName": "Rex",
	})

	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "species")
}

func TestValidateFormData_WrongType(t *testing.T) {
	result, err := ValidateFormData(petSchema(), map[string]interface{}{
		"petName":   "Rex",
		"species":   "dog",
		"weightLbs": "heavy",
	})

	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "weightLbs", result.Errors[0].Field)
}

func TestValidateFormData_EnumViolation(t *testing.T) {
	result, err := ValidateFormData(petSchema(), map[string]interface{}{
		"petName": "Polly",
		"species": "parrot",
	})

	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestValidateFormData_EmptySchemaAcceptsAnything(t *testing.T) {
	result, err := ValidateFormData(nil, map[string]interface{}{
		"anything": "goes",
	})

	require.NoError(t, err)
	assert.True(t, result.Valid)
}
