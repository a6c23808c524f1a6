package siteconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Shape records which wire representation a field arrived in.
type Shape int

const (
	ShapeAbsent Shape = iota
	ShapeList
	ShapeWrapped
	ShapeSparseObject
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeWrapped:
		return "wrapped"
	case ShapeSparseObject:
		return "sparse-object"
	}
	return "absent"
}

var errUnexpectedShape = errors.New("unexpected shape")

// MenuField is foodMenu/dailyMenu/wineMenu as stored: either the legacy
// bare list of sections or the wrapper object with metadata.
type MenuField struct {
	Shape   Shape
	Legacy  []json.RawMessage
	Wrapped map[string]json.RawMessage
}

func (f *MenuField) UnmarshalJSON(b []byte) error {
	*f = MenuField{}
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return nil
	case b[0] == '[':
		f.Shape = ShapeList
		return json.Unmarshal(b, &f.Legacy)
	case b[0] == '{':
		f.Shape = ShapeWrapped
		return json.Unmarshal(b, &f.Wrapped)
	}
	return fmt.Errorf("menu: %w", errUnexpectedShape)
}

// Canonical returns the wrapper form. A legacy list becomes the sections of
// a wrapper whose metadata is left for the merge to fill.
func (f MenuField) Canonical() (map[string]interface{}, error) {
	switch f.Shape {
	case ShapeList:
		sections := make([]interface{}, 0, len(f.Legacy))
		for _, raw := range f.Legacy {
			v, err := decodeGeneric(raw)
			if err != nil {
				return nil, err
			}
			if v != nil {
				sections = append(sections, v)
			}
		}
		return map[string]interface{}{"sections": sections}, nil
	case ShapeWrapped:
		out := make(map[string]interface{}, len(f.Wrapped))
		for k, raw := range f.Wrapped {
			v, err := decodeGeneric(raw)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}
	return nil, nil
}

// ExtraMenusField is extraMenus as stored: a list, or the object keyed by
// index strings that the store produces for sparse arrays.
type ExtraMenusField struct {
	Shape   Shape
	Entries []json.RawMessage
}

func (f *ExtraMenusField) UnmarshalJSON(b []byte) error {
	*f = ExtraMenusField{}
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return nil
	case b[0] == '[':
		var list []json.RawMessage
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		f.Shape = ShapeList
		f.Entries = dropNulls(list)
		return nil
	case b[0] == '{':
		entries, err := orderedSparse(b)
		if err != nil {
			return err
		}
		f.Shape = ShapeSparseObject
		f.Entries = entries
		return nil
	}
	return fmt.Errorf("extraMenus: %w", errUnexpectedShape)
}

type sparseEntry struct {
	key   string
	index uint64
	num   bool
	pos   int
	value json.RawMessage
}

// orderedSparse reads an object keeping document order, then orders index
// keys ascending ahead of any other keys.
func orderedSparse(b []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var entries []sparseEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("extraMenus: %w", errUnexpectedShape)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		idx, num := arrayIndex(key)
		entries = append(entries, sparseEntry{key: key, index: idx, num: num, pos: len(entries), value: v})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.num != b.num {
			return a.num
		}
		if a.num {
			return a.index < b.index
		}
		return a.pos < b.pos
	})
	out := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.value)
	}
	return dropNulls(out), nil
}

// arrayIndex reports whether key is a canonical array index ("0", "12", not "01").
func arrayIndex(key string) (uint64, bool) {
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || strconv.FormatUint(n, 10) != key {
		return 0, false
	}
	return n, true
}

func dropNulls(in []json.RawMessage) []json.RawMessage {
	out := in[:0]
	for _, raw := range in {
		if t := bytes.TrimSpace(raw); len(t) == 0 || bytes.Equal(t, []byte("null")) {
			continue
		}
		out = append(out, raw)
	}
	return out
}

func decodeGeneric(raw json.RawMessage) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func toGeneric(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeGeneric(b)
}
