package system

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownType        = errors.New("unknown object type")
	ErrDuplicateName      = errors.New("duplicate name")
	ErrNotInitialized     = errors.New("subsystem not initialized")
	ErrObjectNotFound     = errors.New("object not found")
	ErrSceneNotFound      = errors.New("scene not found")
	ErrForeignObject      = errors.New("object belongs to another scene")
	ErrCapabilityMismatch = errors.New("implementation does not satisfy capability")
	ErrInvalidName        = errors.New("invalid name")
)

// PathSeparator joins system, scene and object names into subject keys.
const PathSeparator = "/"

// CheckName rejects scene and object names that would make two subject keys
// collide: empty names and names containing PathSeparator.
func CheckName(name string) error {
	if name == "" || strings.Contains(name, PathSeparator) {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// Type identifies a subsystem kind. Values at or above TypeCustom are free
// for user-defined systems.
type Type uint32

const (
	TypeNull Type = iota
	TypeGeometry
	TypeGraphics
	TypePhysics
	TypeAudio
	TypeInput
	TypeAI
	TypeScripting
	TypeExplosion
	TypeWater
)

const TypeCustom Type = 0x1000

var typeNames = map[Type]string{
	TypeNull:      "Null",
	TypeGeometry:  "Geometry",
	TypeGraphics:  "Graphics",
	TypePhysics:   "Physics",
	TypeAudio:     "Audio",
	TypeInput:     "Input",
	TypeAI:        "AI",
	TypeScripting: "Scripting",
	TypeExplosion: "Explosion",
	TypeWater:     "Water",
}

// CustomType returns the n-th user-defined system type.
func CustomType(n uint32) Type { return TypeCustom + Type(n) }

func (t Type) IsCustom() bool { return t >= TypeCustom }

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	if t.IsCustom() {
		return fmt.Sprintf("Custom%d", uint32(t-TypeCustom))
	}
	return fmt.Sprintf("Type(%d)", uint32(t))
}

// Affinity is a task's threading declaration. A task that is not thread safe,
// or that is primary-only, always runs on the same pinned primary thread.
type Affinity struct {
	ThreadSafe  bool
	PrimaryOnly bool
}

// Pinned reports whether the task must run on the primary thread.
func (a Affinity) Pinned() bool { return !a.ThreadSafe || a.PrimaryOnly }

var (
	// Pooled tasks may run concurrently with other pooled tasks.
	Pooled = Affinity{ThreadSafe: true}
	// Primary tasks run on the pinned primary thread.
	Primary = Affinity{ThreadSafe: false, PrimaryOnly: true}
)
