package system

import (
	"fmt"

	"github.com/zeusync/smoke/internal/core/geom"
)

// Capability names one optional facet of an object.
type Capability uint8

const (
	CapGeometry Capability = iota
	CapPhysics
	CapBehavior
	CapInput
	CapGUI
	CapAudio
	CapGraphics
	CapScript
	numCapabilities
)

var capabilityNames = [numCapabilities]string{
	"Geometry", "Physics", "Behavior", "Input", "GUI", "Audio", "Graphics", "Script",
}

func (c Capability) String() string {
	if c < numCapabilities {
		return capabilityNames[c]
	}
	return fmt.Sprintf("Capability(%d)", uint8(c))
}

// GeometryObject exposes spatial state. Other systems read it, never write it.
type GeometryObject interface {
	Position() geom.Vector3
	Orientation() geom.Quaternion
	Scale() geom.Vector3
}

type PhysicsObject interface {
	Velocity() geom.Vector3
	Mass() float64
	Radius() float64
}

type BehaviorObject interface {
	Behavior() string
}

// InputEvent is one device event forwarded by an input object.
type InputEvent struct {
	Action  string
	Pressed bool
	Value   float64
}

type InputObject interface {
	Events() []InputEvent
}

type GUIObject interface {
	Label() string
	Visible() bool
}

type AudioObject interface {
	Gain() float64
	Playing() bool
}

type GraphicsObject interface {
	Mesh() string
}

type ScriptObject interface {
	Source() string
}

// Capabilities is an object's table of optional capability implementations.
// It is filled during construction and read-only afterwards.
type Capabilities struct {
	impls [numCapabilities]any
}

// Set installs impl for kind after checking it satisfies the matching
// interface.
func (c *Capabilities) Set(kind Capability, impl any) error {
	if kind >= numCapabilities {
		return fmt.Errorf("%s: %w", kind, ErrCapabilityMismatch)
	}
	var ok bool
	switch kind {
	case CapGeometry:
		_, ok = impl.(GeometryObject)
	case CapPhysics:
		_, ok = impl.(PhysicsObject)
	case CapBehavior:
		_, ok = impl.(BehaviorObject)
	case CapInput:
		_, ok = impl.(InputObject)
	case CapGUI:
		_, ok = impl.(GUIObject)
	case CapAudio:
		_, ok = impl.(AudioObject)
	case CapGraphics:
		_, ok = impl.(GraphicsObject)
	case CapScript:
		_, ok = impl.(ScriptObject)
	}
	if !ok {
		return fmt.Errorf("%T as %s: %w", impl, kind, ErrCapabilityMismatch)
	}
	c.impls[kind] = impl
	return nil
}

// MustSet is Set for constructors whose implementations are static.
func (c *Capabilities) MustSet(kind Capability, impl any) {
	if err := c.Set(kind, impl); err != nil {
		panic(err)
	}
}

func (c *Capabilities) Get(kind Capability) (any, bool) {
	if c == nil || kind >= numCapabilities || c.impls[kind] == nil {
		return nil, false
	}
	return c.impls[kind], true
}

func (c *Capabilities) Has(kind Capability) bool {
	_, ok := c.Get(kind)
	return ok
}

// Kinds lists the installed capabilities in declaration order.
func (c *Capabilities) Kinds() []Capability {
	var out []Capability
	for k := Capability(0); k < numCapabilities; k++ {
		if c.impls[k] != nil {
			out = append(out, k)
		}
	}
	return out
}

// CapabilityHolder is implemented by every Object.
type CapabilityHolder interface {
	Capabilities() *Capabilities
}

// HasCapability reports whether subject, of any concrete type, exposes kind.
func HasCapability(subject any, kind Capability) bool {
	h, ok := subject.(CapabilityHolder)
	return ok && h.Capabilities().Has(kind)
}

// Query returns subject's implementation of kind as T.
func Query[T any](subject any, kind Capability) (T, bool) {
	var zero T
	h, ok := subject.(CapabilityHolder)
	if !ok {
		return zero, false
	}
	impl, ok := h.Capabilities().Get(kind)
	if !ok {
		return zero, false
	}
	typed, ok := impl.(T)
	return typed, ok
}

func AsGeometry(subject any) (GeometryObject, bool) {
	return Query[GeometryObject](subject, CapGeometry)
}

func AsPhysics(subject any) (PhysicsObject, bool) {
	return Query[PhysicsObject](subject, CapPhysics)
}

func AsBehavior(subject any) (BehaviorObject, bool) {
	return Query[BehaviorObject](subject, CapBehavior)
}

func AsInput(subject any) (InputObject, bool) {
	return Query[InputObject](subject, CapInput)
}

func AsAudio(subject any) (AudioObject, bool) {
	return Query[AudioObject](subject, CapAudio)
}
