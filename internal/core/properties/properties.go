// Package properties implements the dynamically typed named-value bag used to
// configure systems, scenes and objects uniformly.
package properties

import (
	"errors"
	"fmt"

	"github.com/zeusync/smoke/internal/core/geom"
)

var (
	ErrKindMismatch = errors.New("property kind mismatch")
	ErrNotMultiple  = errors.New("property repeated without Multiple flag")
	ErrNoValue      = errors.New("property has no value")
)

// Kind tags the value type carried by a Property.
type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindVector3
	KindQuaternion
	KindColor
	KindString
	KindEnum
)

var kindNames = [...]string{"None", "Bool", "Int", "Float", "Vector3", "Quaternion", "Color", "String", "Enum"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

type Flags uint8

const (
	Valid Flags = 1 << iota
	Multiple
)

func (f Flags) Has(o Flags) bool { return f&o == o }

// Property is one named, typed entry. Compound kinds keep their components in
// Values (three floats for a Vector3, four for a Quaternion or Color).
type Property struct {
	Name   string
	Kind   Kind
	Flags  Flags
	Values []any
}

func Bool(name string, v bool) Property {
	return Property{Name: name, Kind: KindBool, Flags: Valid, Values: []any{v}}
}

func Int(name string, v int) Property {
	return Property{Name: name, Kind: KindInt, Flags: Valid, Values: []any{v}}
}

func Float(name string, v float64) Property {
	return Property{Name: name, Kind: KindFloat, Flags: Valid, Values: []any{v}}
}

func String(name, v string) Property {
	return Property{Name: name, Kind: KindString, Flags: Valid, Values: []any{v}}
}

// Enum stores the selected option name.
func Enum(name, v string) Property {
	return Property{Name: name, Kind: KindEnum, Flags: Valid, Values: []any{v}}
}

func Vec3(name string, v geom.Vector3) Property {
	return Property{Name: name, Kind: KindVector3, Flags: Valid, Values: []any{v.X, v.Y, v.Z}}
}

func Quat(name string, q geom.Quaternion) Property {
	return Property{Name: name, Kind: KindQuaternion, Flags: Valid, Values: []any{q.X, q.Y, q.Z, q.W}}
}

func Color(name string, r, g, b, a float64) Property {
	return Property{Name: name, Kind: KindColor, Flags: Valid, Values: []any{r, g, b, a}}
}

// Floats builds an untyped float list, used for Multiple entries such as
// spray nozzles.
func Floats(name string, vs ...float64) Property {
	values := make([]any, len(vs))
	for i, v := range vs {
		values[i] = v
	}
	return Property{Name: name, Kind: KindFloat, Flags: Valid, Values: values}
}

// AsMultiple marks p as allowed to repeat inside one Array.
func (p Property) AsMultiple() Property {
	p.Flags |= Multiple
	return p
}

func (p Property) IsValid() bool { return p.Flags.Has(Valid) }

func (p Property) AsBool() (bool, error) {
	if err := p.expect(KindBool, 1); err != nil {
		return false, err
	}
	v, ok := p.Values[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s: %w", p.Name, ErrKindMismatch)
	}
	return v, nil
}

func (p Property) AsInt() (int, error) {
	if err := p.expect(KindInt, 1); err != nil {
		return 0, err
	}
	return toInt(p.Name, p.Values[0])
}

func (p Property) AsFloat() (float64, error) {
	if p.Kind == KindInt {
		v, err := p.AsInt()
		return float64(v), err
	}
	if err := p.expect(KindFloat, 1); err != nil {
		return 0, err
	}
	return toFloat(p.Name, p.Values[0])
}

// FloatAt returns the i-th component of any numeric property.
func (p Property) FloatAt(i int) (float64, error) {
	if i < 0 || i >= len(p.Values) {
		return 0, fmt.Errorf("%s[%d]: %w", p.Name, i, ErrNoValue)
	}
	return toFloat(p.Name, p.Values[i])
}

func (p Property) AsString() (string, error) {
	if p.Kind != KindString && p.Kind != KindEnum {
		return "", fmt.Errorf("%s is %s, want String: %w", p.Name, p.Kind, ErrKindMismatch)
	}
	if len(p.Values) == 0 {
		return "", fmt.Errorf("%s: %w", p.Name, ErrNoValue)
	}
	v, ok := p.Values[0].(string)
	if !ok {
		return "", fmt.Errorf("%s: %w", p.Name, ErrKindMismatch)
	}
	return v, nil
}

func (p Property) AsVector3() (geom.Vector3, error) {
	if err := p.expect(KindVector3, 3); err != nil {
		return geom.Vector3{}, err
	}
	f, err := p.floats(3)
	if err != nil {
		return geom.Vector3{}, err
	}
	return geom.Vector3{X: f[0], Y: f[1], Z: f[2]}, nil
}

func (p Property) AsQuaternion() (geom.Quaternion, error) {
	if err := p.expect(KindQuaternion, 4); err != nil {
		return geom.Quaternion{}, err
	}
	f, err := p.floats(4)
	if err != nil {
		return geom.Quaternion{}, err
	}
	return geom.Quaternion{X: f[0], Y: f[1], Z: f[2], W: f[3]}, nil
}

func (p Property) expect(k Kind, n int) error {
	if p.Kind != k {
		return fmt.Errorf("%s is %s, want %s: %w", p.Name, p.Kind, k, ErrKindMismatch)
	}
	if len(p.Values) < n {
		return fmt.Errorf("%s: %w", p.Name, ErrNoValue)
	}
	return nil
}

func (p Property) floats(n int) ([]float64, error) {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, err := toFloat(p.Name, p.Values[i])
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// Equal compares name, kind and values; flags other than Multiple are ignored.
func Equal(a, b Property) bool {
	if a.Name != b.Name || a.Kind != b.Kind || len(a.Values) != len(b.Values) {
		return false
	}
	if a.Flags.Has(Multiple) != b.Flags.Has(Multiple) {
		return false
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			fa, errA := toFloat(a.Name, a.Values[i])
			fb, errB := toFloat(b.Name, b.Values[i])
			if errA != nil || errB != nil || fa != fb {
				return false
			}
		}
	}
	return true
}

func toFloat(name string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%s: %T is not numeric: %w", name, v, ErrKindMismatch)
	}
}

func toInt(name string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s: %T is not an integer: %w", name, v, ErrKindMismatch)
	}
}
