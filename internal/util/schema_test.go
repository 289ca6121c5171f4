package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mathArgs struct {
	A         float64 `json:"a" description:"first operand"`
	B         float64 `json:"b" description:"second operand"`
	Operation string  `json:"operation" enum:"sum,subtract,multiply,divide"`
	Note      string  `json:"note,omitempty"`
	Limit     *int    `json:"limit"`
	Count     int     `json:"count" default:"5"`
	Strict    bool    `json:"strict" default:"yes"`
	Hidden    string  `json:"-"`
	private   string
}

func TestCreateSchema(t *testing.T) {
	s := CreateSchema(mathArgs{})
	assert.Equal(t, "object", s["type"])

	props := s["properties"].(map[string]any)
	require.Contains(t, props, "a")
	assert.Equal(t, "number", props["a"].(map[string]any)["type"])
	assert.Equal(t, "first operand", props["a"].(map[string]any)["description"])
	assert.Equal(t, []any{"sum", "subtract", "multiply", "divide"}, props["operation"].(map[string]any)["enum"])
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, int64(5), props["count"].(map[string]any)["default"])
	assert.NotContains(t, props["strict"].(map[string]any), "default")
	assert.NotContains(t, props, "Hidden")
	assert.NotContains(t, props, "private")

	assert.ElementsMatch(t, []string{"a", "b", "operation", "strict"}, s["required"])
}

func TestCreateSchema_NonStruct(t *testing.T) {
	s := CreateSchema(42)
	assert.Equal(t, "object", s["type"])
	assert.Empty(t, s["properties"])
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(&mathArgs{})

	require.NoError(t, ValidateParameters(map[string]any{"a": 1.0, "b": 2.0, "operation": "sum", "strict": true, "extra": true}, schema))

	err := ValidateParameters(map[string]any{"a": 1.0, "operation": "sum", "strict": true}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "b", verr.Field)

	err = ValidateParameters(map[string]any{"a": "one", "b": 2.0, "operation": "sum", "strict": true}, schema)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "a", verr.Field)
	assert.Equal(t, "one", verr.Value)

	err = ValidateParameters(map[string]any{"a": 1.0, "b": 2.0, "operation": "modulo", "strict": true}, schema)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "operation", verr.Field)
	assert.Contains(t, verr.Error(), "operation")
}

func TestValidateParameters_EmptySchema(t *testing.T) {
	assert.NoError(t, ValidateParameters(map[string]any{"x": 1}, nil))
}
