package physics

import (
	"sync"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/system"
)

// Body is a rigid sphere. It follows the position of any geometry subject it
// is linked to, which is how other systems teleport it.
type Body struct {
	*system.BaseObject

	mu       sync.RWMutex
	position geom.Vector3
	velocity geom.Vector3
	mass     float64
	radius   float64
	static   bool
}

var (
	_ system.GeometryObject = (*Body)(nil)
	_ system.PhysicsObject  = (*Body)(nil)
)

func newBody(base *system.BaseObject) (system.Object, error) {
	b := &Body{BaseObject: base, mass: 1, radius: 0.5}
	base.SetChanges(
		changes.Position|changes.Velocity|changes.Collision,
		changes.Position|changes.Velocity,
	)
	base.Capabilities().MustSet(system.CapGeometry, b)
	base.Capabilities().MustSet(system.CapPhysics, b)
	return b, nil
}

func (b *Body) handlers() properties.Handlers {
	return properties.Handlers{
		"Position": properties.BindVector3(&b.position),
		"Velocity": properties.BindVector3(&b.velocity),
		"Mass":     properties.BindFloat(&b.mass),
		"Radius":   properties.BindFloat(&b.radius),
		"Static":   properties.BindBool(&b.static),
	}
}

func (b *Body) Initialize(props properties.Array) error {
	if err := b.BaseObject.Initialize(props); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return properties.Apply(props, b.handlers())
}

func (b *Body) SetProperties(props properties.Array) error {
	if err := b.BaseObject.SetProperties(props); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return properties.Apply(props, b.handlers())
}

func (b *Body) Properties() properties.Array {
	out := b.BaseObject.Properties()
	b.mu.RLock()
	defer b.mu.RUnlock()
	out = out.Put(properties.Vec3("Position", b.position))
	out = out.Put(properties.Vec3("Velocity", b.velocity))
	return out
}

func (b *Body) Position() geom.Vector3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.position
}

func (b *Body) Orientation() geom.Quaternion { return geom.Identity }

func (b *Body) Scale() geom.Vector3 {
	r := b.Radius()
	return geom.Vector3{X: r, Y: r, Z: r}
}

func (b *Body) Velocity() geom.Vector3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.velocity
}

func (b *Body) Mass() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mass
}

func (b *Body) Radius() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.radius
}

func (b *Body) Static() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.static
}

func (b *Body) SetVelocity(v geom.Vector3) {
	b.mu.Lock()
	b.velocity = v
	b.mu.Unlock()
}

// ChangeOccurred copies the position (and velocity, when the subject is a
// physics object) of whatever the body is linked to.
func (b *Body) ChangeOccurred(subject observer.Subject, changed changes.Mask) error {
	if changed.IsShutdown() {
		return nil
	}
	if changed.Has(changes.Position) {
		if g, ok := system.AsGeometry(subject); ok {
			pos := g.Position()
			b.mu.Lock()
			b.position = pos
			b.mu.Unlock()
		}
	}
	if changed.Has(changes.Velocity) {
		if p, ok := system.AsPhysics(subject); ok {
			b.SetVelocity(p.Velocity())
		}
	}
	return nil
}

// integrate advances the body by dt seconds and reports whether it moved.
func (b *Body) integrate(dt float64, gravity geom.Vector3) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.static {
		return false
	}
	b.velocity = b.velocity.Add(gravity.Scale(dt))
	if b.velocity.IsZero() {
		return false
	}
	b.position = b.position.Add(b.velocity.Scale(dt))
	return true
}

func (b *Body) shape() shape {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return shape{name: b.Name(), pos: b.position, radius: b.radius}
}
