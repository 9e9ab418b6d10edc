// ABOUTME: JSON encoding, number normalization and key extraction shared by all backends
// ABOUTME: prepare turns a caller item into a validated record ready to be written

package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// record is a validated document plus the keys derived from it.
type record struct {
	item      Item
	body      []byte
	hashKey   string
	rangeKey  string
	indexes   map[string]string // index name -> indexed value
	expiresAt int64
	expires   bool
}

// primaryKey joins hash and range keys into a single sortable string.
func primaryKey(hashKey, rangeKey string) string {
	return hashKey + "\x00" + rangeKey
}

func (r *record) primaryKey() string {
	return primaryKey(r.hashKey, r.rangeKey)
}

// prepare validates item against the table and returns the record to store.
// The caller's item is never modified.
func prepare(t *Table, item Item, create bool) (*record, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	draft := item.Clone()
	if draft == nil {
		draft = Item{}
	}
	if create {
		t.Schema.generate(draft)
	}
	t.Schema.applyDefaults(draft)

	body, err := json.Marshal(draft)
	if err != nil {
		return nil, &ValidationError{Table: t.Name, Reason: fmt.Sprintf("encoding document: %v", err)}
	}
	normalized, err := decodeItem(body)
	if err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}

	if err := t.Schema.Validate(t.Name, normalized); err != nil {
		return nil, err
	}
	return describe(t, normalized, body)
}

// describe derives keys, index values and expiry from a normalized item.
func describe(t *Table, item Item, body []byte) (*record, error) {
	rec := &record{item: item, body: body, indexes: make(map[string]string)}

	hashKey, err := keyValue(t, t.HashKey, item)
	if err != nil {
		return nil, err
	}
	rec.hashKey = hashKey

	if t.RangeKey != "" {
		rangeKey, err := keyValue(t, t.RangeKey, item)
		if err != nil {
			return nil, err
		}
		rec.rangeKey = rangeKey
	}

	for _, idx := range t.Indexes {
		// Documents without the attribute are simply absent from the index.
		if v, ok := item.String(idx.HashKey); ok && v != "" {
			rec.indexes[idx.Name] = v
		}
	}

	if t.TTLAttribute != "" {
		if v, ok := item.Int64(t.TTLAttribute); ok {
			rec.expiresAt = v
			rec.expires = true
		}
	}
	return rec, nil
}

func keyValue(t *Table, attr string, item Item) (string, error) {
	raw, ok := item[attr]
	if !ok {
		return "", &ValidationError{Table: t.Name, Field: attr, Reason: "key is required"}
	}
	v, ok := raw.(string)
	if !ok {
		return "", &ValidationError{Table: t.Name, Field: attr, Reason: "key must be a string"}
	}
	if v == "" {
		return "", &ValidationError{Table: t.Name, Field: attr, Reason: "key must not be empty"}
	}
	return v, nil
}

// readItem decodes a stored body and applies read-time defaults.
func readItem(t *Table, body []byte) (Item, error) {
	item, err := decodeItem(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s document: %w", t.Name, err)
	}
	t.Schema.applyDefaults(item)
	return item, nil
}

// readRecord decodes a stored body into a record, used to find the index
// and TTL entries of a version about to be replaced or purged.
func readRecord(t *Table, body []byte) (*record, error) {
	item, err := decodeItem(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s document: %w", t.Name, err)
	}
	return describe(t, item, body)
}

func decodeItem(body []byte) (Item, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	for k, v := range raw {
		raw[k] = normalizeValue(v)
	}
	return Item(raw), nil
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeValue(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeValue(e)
		}
		return x
	}
	return v
}
