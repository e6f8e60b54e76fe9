// Package changes defines the bitmask taxonomy carried by change
// notifications. One Mask can describe several simultaneous kinds of change,
// e.g. Position|Orientation after a single movement step.
package changes

import (
	"fmt"
	"math/bits"
	"strings"
)

// Mask is a set of change kinds.
type Mask uint32

// None is the reserved shutdown sentinel: an observer receiving it must drop
// every reference it holds to the subject.
const None Mask = 0

const (
	CreateObject Mask = 1 << iota
	DeleteObject
	ExtendObject

	Position
	Orientation
	Scale

	Camera
	Appearance

	Velocity
	Collision

	SoundState

	Firehose

	Behavior
	Movement

	Contact
	Sound
	Fire

	Stream
)

// CustomFirst..CustomLast is reserved for user-defined systems.
const (
	CustomFirst Mask = 1 << 24
	CustomLast  Mask = 1 << 31
)

// Groups.
const (
	Generic  = CreateObject | DeleteObject | ExtendObject
	Geometry = Position | Orientation | Scale
	Graphics = Camera | Appearance
	Physics  = Velocity | Collision
	AI       = Behavior | Movement
	POI      = Contact | Sound | Fire
	Custom   = ^Mask(0) &^ (CustomFirst - 1)
	All      = ^Mask(0)
)

var names = map[Mask]string{
	CreateObject: "CreateObject",
	DeleteObject: "DeleteObject",
	ExtendObject: "ExtendObject",
	Position:     "Position",
	Orientation:  "Orientation",
	Scale:        "Scale",
	Camera:       "Camera",
	Appearance:   "Appearance",
	Velocity:     "Velocity",
	Collision:    "Collision",
	SoundState:   "SoundState",
	Firehose:     "Firehose",
	Behavior:     "Behavior",
	Movement:     "Movement",
	Contact:      "Contact",
	Sound:        "Sound",
	Fire:         "Fire",
	Stream:       "Stream",
}

var groups = map[string]Mask{
	"Generic":  Generic,
	"Geometry": Geometry,
	"Graphics": Graphics,
	"Physics":  Physics,
	"AI":       AI,
	"POI":      POI,
	"All":      All,
}

// CustomBit returns the n-th custom change bit (0..7).
func CustomBit(n int) Mask {
	if n < 0 || n > 7 {
		panic(fmt.Sprintf("changes: custom bit %d out of range", n))
	}
	return CustomFirst << n
}

func (m Mask) Has(o Mask) bool       { return o != 0 && m&o == o }
func (m Mask) Any(o Mask) bool       { return m&o != 0 }
func (m Mask) Intersect(o Mask) Mask { return m & o }
func (m Mask) Union(o Mask) Mask     { return m | o }
func (m Mask) Without(o Mask) Mask   { return m &^ o }
func (m Mask) IsShutdown() bool      { return m == None }
func (m Mask) Count() int            { return bits.OnesCount32(uint32(m)) }

// Bits splits the mask into its single-bit components, lowest first.
func (m Mask) Bits() []Mask {
	out := make([]Mask, 0, m.Count())
	for v := uint32(m); v != 0; v &= v - 1 {
		out = append(out, Mask(1)<<bits.TrailingZeros32(v))
	}
	return out
}

func (m Mask) String() string {
	if m == None {
		return "None"
	}
	parts := make([]string, 0, m.Count())
	for _, b := range m.Bits() {
		if n, ok := names[b]; ok {
			parts = append(parts, n)
			continue
		}
		if b >= CustomFirst {
			parts = append(parts, fmt.Sprintf("Custom%d", bits.TrailingZeros32(uint32(b/CustomFirst))))
			continue
		}
		parts = append(parts, fmt.Sprintf("0x%x", uint32(b)))
	}
	return strings.Join(parts, "|")
}

// Parse reads the String form back, also accepting group names such as
// "Geometry" and "All".
func Parse(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" {
		return None, nil
	}
	var m Mask
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if g, ok := groups[part]; ok {
			m |= g
			continue
		}
		if b, ok := lookup(part); ok {
			m |= b
			continue
		}
		var n int
		if _, err := fmt.Sscanf(part, "Custom%d", &n); err == nil && n >= 0 && n <= 7 {
			m |= CustomBit(n)
			continue
		}
		return None, fmt.Errorf("unknown change kind %q", part)
	}
	return m, nil
}

func lookup(name string) (Mask, bool) {
	for b, n := range names {
		if n == name {
			return b, true
		}
	}
	return None, false
}

// UnmarshalText lets YAML and flag decoders accept change lists.
func (m *Mask) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m Mask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
