package postgrest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Record
	}{
		{"flat", `{"id":1,"name":"Deal"}`, Record{"id": json.Number("1"), "name": "Deal"}},
		{"wrapped", `{"data":{"id":1,"name":"Deal"}}`, Record{"id": json.Number("1"), "name": "Deal"}},
		{"data column kept", `{"id":1,"data":{"x":1}}`, Record{"id": json.Number("1"), "data": map[string]any{"x": json.Number("1")}}},
		{"scalar data kept", `{"data":"text"}`, Record{"data": "text"}},
		{"null", `null`, nil},
		{"empty", ``, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRecord(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRecord_Invalid(t *testing.T) {
	_, err := DecodeRecord(json.RawMessage(`[1,2]`))
	assert.ErrorContains(t, err, "decode record")
}

func TestDecodeRecords(t *testing.T) {
	recs, err := DecodeRecords(json.RawMessage(`[{"id":1},{"id":2}]`))
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = DecodeRecords(json.RawMessage(`{"id":3}`))
	require.NoError(t, err)
	assert.Equal(t, []Record{{"id": json.Number("3")}}, recs)

	recs, err = DecodeRecords(nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestNormalizeArrayFields(t *testing.T) {
	obj := map[string]any{"type": "work", "number": "555"}
	rec := Record{
		"email": nil,
		"phone": obj,
		"tags":  "legacy",
		"name":  "x",
	}

	got := NormalizeArrayFields(rec, []string{"email", "phone", "tags", "missing"})

	assert.Equal(t, []any{}, got["email"])
	assert.Equal(t, []any{obj}, got["phone"])
	assert.Equal(t, []any{}, got["tags"])
	assert.Equal(t, "x", got["name"])
	assert.NotContains(t, got, "missing")

	already := Record{"tags": []any{"a"}}
	assert.Equal(t, []any{"a"}, NormalizeArrayFields(already, []string{"tags"})["tags"])
	assert.Nil(t, NormalizeArrayFields(nil, []string{"tags"}))
}
