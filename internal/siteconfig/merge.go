package siteconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/lacuina/content-service/pkg/logger"
	"github.com/lacuina/content-service/pkg/metrics"
)

var (
	ErrUnknownSection = errors.New("unknown config section")
	ErrInvalidSection = errors.New("invalid config section")
	ErrMalformed      = errors.New("malformed config document")
)

// section binds a top-level key to the type its value must decode into.
type section struct {
	key   string
	check func(v interface{}) error
}

func field[T any](key string) section {
	return section{
		key: key,
		check: func(v interface{}) error {
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			var out T
			return json.Unmarshal(b, &out)
		},
	}
}

var sections = []section{
	field[Brand]("brand"),
	field[Hero]("hero"),
	field[ReservationForm]("reservationForm"),
	field[Menu]("foodMenu"),
	field[Menu]("dailyMenu"),
	field[Menu]("wineMenu"),
	field[[]ExtraMenu]("extraMenus"),
	field[Contact]("contact"),
	field[Admin]("admin"),
}

// SectionKeys lists the top-level keys of the document in declaration order.
func SectionKeys() []string {
	keys := make([]string, len(sections))
	for i, s := range sections {
		keys[i] = s.key
	}
	return keys
}

func lookup(key string) (section, bool) {
	for _, s := range sections {
		if s.key == key {
			return s, true
		}
	}
	return section{}, false
}

// Snapshot is a decoded emission: every present section in canonical
// generic form, shape ambiguities already resolved.
type Snapshot struct {
	sections map[string]interface{}
	shapes   map[string]Shape
	ignored  []string
	// extra holds keys Document does not model; they are carried through.
	extra map[string]interface{}
}

// Has reports whether the emission carried the section.
func (s *Snapshot) Has(key string) bool {
	_, ok := s.sections[key]
	return ok
}

// Shape reports the wire shape a menu or extraMenus section arrived in.
func (s *Snapshot) Shape(key string) Shape { return s.shapes[key] }

// Ignored lists top-level keys that are not part of the typed document.
func (s *Snapshot) Ignored() []string { return s.ignored }

// Decode parses a raw websiteConfig emission. Unknown top-level keys are
// kept aside untyped, null sections count as absent.
func Decode(raw json.RawMessage) (*Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return decodeSections(top, false)
}

// DecodePatch parses an admin patch. Unknown keys are rejected.
func DecodePatch(p Patch) (*Snapshot, error) {
	return decodeSections(p, true)
}

func decodeSections(top map[string]json.RawMessage, strict bool) (*Snapshot, error) {
	snap := &Snapshot{sections: map[string]interface{}{}, shapes: map[string]Shape{}, extra: map[string]interface{}{}}
	for key, raw := range top {
		if _, ok := lookup(key); !ok {
			if strict {
				return nil, fmt.Errorf("%w: %q", ErrUnknownSection, key)
			}
			snap.ignored = append(snap.ignored, key)
			if v, err := decodeGeneric(raw); err == nil && v != nil {
				snap.extra[key] = v
			}
			continue
		}
		v, shape, err := decodeSection(key, raw)
		if err != nil {
			if strict {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSection, key, err)
			}
			// the merge keeps the prior value for anything it cannot decode
			logger.Warnf("siteconfig: section %s undecodable: %v", key, err)
			metrics.ConfigSectionFallbacks.WithLabelValues(key).Inc()
			continue
		}
		if v == nil {
			continue
		}
		snap.sections[key] = v
		if shape != ShapeAbsent {
			snap.shapes[key] = shape
		}
	}
	sort.Strings(snap.ignored)
	return snap, nil
}

func decodeSection(key string, raw json.RawMessage) (interface{}, Shape, error) {
	switch key {
	case "foodMenu", "dailyMenu", "wineMenu":
		var f MenuField
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, ShapeAbsent, err
		}
		v, err := f.Canonical()
		if err != nil || v == nil {
			return nil, f.Shape, err
		}
		return v, f.Shape, nil
	case "extraMenus":
		var f ExtraMenusField
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, ShapeAbsent, err
		}
		if f.Shape == ShapeAbsent {
			return nil, ShapeAbsent, nil
		}
		tmpl, err := toGeneric(defaultExtraMenu())
		if err != nil {
			return nil, f.Shape, err
		}
		list := make([]interface{}, 0, len(f.Entries))
		for _, entry := range f.Entries {
			v, err := decodeGeneric(entry)
			if err != nil {
				return nil, f.Shape, err
			}
			list = append(list, mergeValue(tmpl, v))
		}
		return list, f.Shape, nil
	}
	v, err := decodeGeneric(raw)
	return v, ShapeAbsent, err
}

// mergeValue overlays remote on prior. Objects merge key by key, null keeps
// the prior value, everything else (lists included) replaces.
func mergeValue(prior, remote interface{}) interface{} {
	if remote == nil {
		return prior
	}
	rm, rok := remote.(map[string]interface{})
	pm, pok := prior.(map[string]interface{})
	if !rok {
		return remote
	}
	out := make(map[string]interface{}, len(pm)+len(rm))
	if pok {
		for k, v := range pm {
			out[k] = v
		}
	}
	for k, v := range rm {
		if m := mergeValue(pm[k], v); m != nil {
			out[k] = m
		}
	}
	return out
}

// Merge overlays a snapshot on prior. Sections absent from the snapshot are
// kept as they are; a section whose merged value does not fit its type keeps
// its prior value and is reported back. A legacy bare-list menu is wrapped
// over the default menu, not the prior one.
func Merge(prior Tree, snap *Snapshot) (Tree, []string) {
	out := prior.Clone()
	if snap == nil {
		return out, nil
	}
	var defaults Tree
	var fallbacks []string
	for _, sec := range sections {
		remote, ok := snap.sections[sec.key]
		if !ok {
			continue
		}
		base := out[sec.key]
		if snap.shapes[sec.key] == ShapeList {
			if defaults == nil {
				defaults = DefaultTree()
			}
			base = defaults[sec.key]
		}
		merged := mergeValue(base, remote)
		if err := sec.check(merged); err != nil {
			fallbacks = append(fallbacks, sec.key)
			continue
		}
		out[sec.key] = merged
	}
	for key, remote := range snap.extra {
		if m := mergeValue(out[key], remote); m != nil {
			out[key] = m
		}
	}
	return out, fallbacks
}

// ApplyPatch rebuilds every patched section over its default and leaves the
// rest of current, untyped keys included, untouched.
func ApplyPatch(current Tree, snap *Snapshot) (Tree, []string) {
	out := current.Clone()
	defaults := DefaultTree()
	for _, sec := range sections {
		remote, ok := snap.sections[sec.key]
		if !ok {
			continue
		}
		merged := mergeValue(defaults[sec.key], remote)
		if err := sec.check(merged); err != nil {
			return current.Clone(), []string{sec.key}
		}
		out[sec.key] = merged
	}
	return out, nil
}

// Ingest runs the whole pipeline (decode, migrate, merge) for raw over base.
func Ingest(base Tree, raw json.RawMessage) (Tree, error) {
	snap, err := Decode(raw)
	if err != nil {
		return base.Clone(), err
	}
	MigrateFormType(snap)
	t, fallbacks := Merge(base, snap)
	for _, key := range fallbacks {
		logger.Warnf("siteconfig: section %s kept prior value", key)
		metrics.ConfigSectionFallbacks.WithLabelValues(key).Inc()
	}
	return t, nil
}
