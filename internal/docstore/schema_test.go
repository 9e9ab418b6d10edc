// ABOUTME: Tests for schema validation, generated fields and defaults
// ABOUTME: Also covers JSON number normalization in the codec

package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Validate(t *testing.T) {
	s := NewSchema(map[string]Field{
		"id":    {Type: TypeString, Required: true},
		"n":     {Type: TypeNumber},
		"ok":    {Type: TypeBool},
		"tags":  {Type: TypeStringList},
		"extra": {Type: TypeAny},
	})

	tests := []struct {
		name    string
		item    Item
		wantErr string
	}{
		{"minimal", Item{"id": "x"}, ""},
		{"all fields", Item{"id": "x", "n": int64(1), "ok": true, "tags": []any{"a"}, "extra": nil}, ""},
		{"float number", Item{"id": "x", "n": 1.5}, ""},
		{"missing required", Item{}, "validating t.id: is required"},
		{"bad bool", Item{"id": "x", "ok": "yes"}, "validating t.ok: must be a boolean"},
		{"bad list element", Item{"id": "x", "tags": []any{"a", int64(1)}}, "validating t.tags: must be a list of strings"},
		{"unknown", Item{"id": "x", "zzz": 1}, "validating t.zzz: is not allowed"},
		{"null string", Item{"id": nil}, "validating t.id: must not be null"},
		{"empty string", Item{"id": ""}, "validating t.id: must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate("t", tt.item)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestSchema_AllowUnknown(t *testing.T) {
	closed := NewSchema(map[string]Field{"id": {Type: TypeString}})
	open := closed.AllowUnknown()

	assert.Error(t, closed.Validate("t", Item{"other": "x"}))
	assert.NoError(t, open.Validate("t", Item{"other": "x"}))
	assert.False(t, closed.Open())
	assert.True(t, open.Open())
}

func TestSchema_KeysDoesNotModifyOriginal(t *testing.T) {
	base := NewSchema(map[string]Field{"id": {Type: TypeString}})
	extended := base.Keys(map[string]Field{"age": {Type: TypeNumber}})

	_, ok := base.Field("age")
	assert.False(t, ok)
	_, ok = extended.Field("age")
	assert.True(t, ok)
	_, ok = extended.Field("id")
	assert.True(t, ok)
}

func TestSchema_GenerateAndDefaults(t *testing.T) {
	s := NewSchema(map[string]Field{
		"id":   IDField(),
		"tags": {Type: TypeStringList, Default: func() any { return []any{} }},
	})

	item := Item{}
	s.generate(item)
	s.applyDefaults(item)
	assert.NotEmpty(t, item["id"])
	assert.Equal(t, []any{}, item["tags"])

	// Present values are left alone.
	item = Item{"id": "keep", "tags": []any{"a"}}
	s.generate(item)
	s.applyDefaults(item)
	assert.Equal(t, Item{"id": "keep", "tags": []any{"a"}}, item)
}

func TestDecodeItem_NormalizesNumbers(t *testing.T) {
	item, err := decodeItem([]byte(`{"i": 42, "f": 1.5, "big": 1700000000, "nested": {"n": 7}, "list": [1, "a"]}`))
	require.NoError(t, err)

	assert.Equal(t, int64(42), item["i"])
	assert.Equal(t, 1.5, item["f"])
	assert.Equal(t, int64(1700000000), item["big"])
	assert.Equal(t, map[string]any{"n": int64(7)}, item["nested"])
	assert.Equal(t, []any{int64(1), "a"}, item["list"])
}

func TestItem_Accessors(t *testing.T) {
	item := Item{"s": "x", "i": int64(3), "f": 2.0, "b": true}

	s, ok := item.String("s")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	i, ok := item.Int64("i")
	assert.True(t, ok)
	assert.Equal(t, int64(3), i)

	i, ok = item.Int64("f")
	assert.True(t, ok)
	assert.Equal(t, int64(2), i)

	_, ok = item.Int64("s")
	assert.False(t, ok)

	b, ok := item.Bool("b")
	assert.True(t, ok)
	assert.True(t, b)

	assert.Nil(t, Item(nil).Clone())
}

func TestTable_Validate(t *testing.T) {
	schema := NewSchema(map[string]Field{})

	assert.Error(t, (&Table{HashKey: "id", Schema: schema}).Validate())
	assert.Error(t, (&Table{Name: "t", Schema: schema}).Validate())
	assert.Error(t, (&Table{Name: "t", HashKey: "id"}).Validate())
	assert.Error(t, (&Table{Name: "t", HashKey: "id", Schema: schema, Indexes: []Index{{Name: "x"}}}).Validate())
	assert.NoError(t, (&Table{Name: "t", HashKey: "id", Schema: schema}).Validate())
}
