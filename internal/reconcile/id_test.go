package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    string
		numeric bool
	}{
		{"nil", nil, "", false},
		{"string", "abc", "abc", false},
		{"int", 42, "42", true},
		{"integral float", float64(5), "5", true},
		{"fractional float", 5.5, "5.5", true},
		{"json number", json.Number("17"), "17", true},
		{"json number with fraction", json.Number("17.0"), "17", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewID(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.String())
			assert.Equal(t, tt.numeric, id.numeric)
		})
	}

	_, err := NewID(true)
	assert.Error(t, err)
}

func TestID_Equal(t *testing.T) {
	assert.True(t, IntID(5).Equal(StringID("5")))
	assert.False(t, IntID(5).Equal(IntID(6)))
	assert.True(t, ID{}.Equal(StringID("")))
}

func TestID_JSON(t *testing.T) {
	b, err := json.Marshal([]ID{IntID(1), StringID("a-1"), {}})
	require.NoError(t, err)
	assert.Equal(t, `[1,"a-1",null]`, string(b))

	var ids []ID
	require.NoError(t, json.Unmarshal([]byte(`[3, "x", null, 4.0]`), &ids))
	assert.Equal(t, []ID{IntID(3), StringID("x"), {}, IntID(4)}, ids)

	var bad ID
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}
