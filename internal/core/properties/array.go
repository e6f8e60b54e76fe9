package properties

import (
	"fmt"
	"sort"
)

// Array is an ordered property list. Entries flagged Multiple may repeat.
type Array []Property

// Get returns the first property called name.
func (a Array) Get(name string) (Property, bool) {
	for _, p := range a {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// All returns every property called name, in order.
func (a Array) All(name string) []Property {
	var out []Property
	for _, p := range a {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

func (a Array) Names() []string {
	seen := make(map[string]struct{}, len(a))
	out := make([]string, 0, len(a))
	for _, p := range a {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p.Name)
	}
	return out
}

// Put replaces the first entry with the same name or appends p.
func (a Array) Put(p Property) Array {
	for i := range a {
		if a[i].Name == p.Name {
			a[i] = p
			return a
		}
	}
	return append(a, p)
}

// Handler consumes one recognised property.
type Handler func(Property) error

// Handlers maps property names onto their consumers.
type Handlers map[string]Handler

// Apply dispatches every property in arr to its handler. Names without a
// handler are skipped so newer data files keep loading on older builds.
func Apply(arr Array, handlers Handlers) error {
	seen := make(map[string]bool, len(arr))
	for _, p := range arr {
		h, ok := handlers[p.Name]
		if !ok {
			continue
		}
		if seen[p.Name] && !p.Flags.Has(Multiple) {
			return fmt.Errorf("%s: %w", p.Name, ErrNotMultiple)
		}
		seen[p.Name] = true
		if err := h(p); err != nil {
			return fmt.Errorf("property %s: %w", p.Name, err)
		}
	}
	return nil
}

// FromMap converts a decoded YAML mapping into an Array. Keys are visited in
// sorted order so the result is deterministic. A list of lists or a list of
// maps under one key becomes repeated Multiple entries.
func FromMap(m map[string]any) (Array, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Array, 0, len(m))
	for _, k := range keys {
		ps, err := fromValue(k, m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, ps...)
	}
	return out, nil
}

func fromValue(name string, v any) ([]Property, error) {
	switch val := v.(type) {
	case bool:
		return []Property{Bool(name, val)}, nil
	case int:
		return []Property{Int(name, val)}, nil
	case int64:
		return []Property{Int(name, int(val))}, nil
	case float64:
		return []Property{Float(name, val)}, nil
	case string:
		return []Property{String(name, val)}, nil
	case []any:
		return fromList(name, val)
	case map[string]any:
		return nil, fmt.Errorf("property %s: nested maps are only allowed inside lists", name)
	default:
		return nil, fmt.Errorf("property %s: unsupported value %T", name, v)
	}
}

func fromList(name string, list []any) ([]Property, error) {
	if len(list) == 0 {
		return nil, nil
	}
	if isNumeric(list) {
		return []Property{numericList(name, list)}, nil
	}

	out := make([]Property, 0, len(list))
	for i, item := range list {
		switch it := item.(type) {
		case []any:
			if !isNumeric(it) {
				return nil, fmt.Errorf("property %s[%d]: expected numbers", name, i)
			}
			out = append(out, numericList(name, it).AsMultiple())
		case map[string]any:
			values := make([]any, 0, len(it))
			keys := make([]string, 0, len(it))
			for k := range it {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				values = append(values, it[k])
			}
			out = append(out, Property{Name: name, Kind: KindNone, Flags: Valid | Multiple, Values: values})
		default:
			ps, err := fromValue(name, it)
			if err != nil {
				return nil, err
			}
			for _, p := range ps {
				out = append(out, p.AsMultiple())
			}
		}
	}
	return out, nil
}

func numericList(name string, list []any) Property {
	values := make([]any, len(list))
	for i, v := range list {
		f, _ := toFloat(name, v)
		values[i] = f
	}
	kind := KindFloat
	switch len(values) {
	case 3:
		kind = KindVector3
	case 4:
		kind = KindQuaternion
	}
	return Property{Name: name, Kind: kind, Flags: Valid, Values: values}
}

func isNumeric(list []any) bool {
	for _, v := range list {
		switch v.(type) {
		case int, int64, float64:
		default:
			return false
		}
	}
	return true
}
