package graphics

import (
	"sync"
	"time"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/system"
)

// Camera moves along Path (a velocity) and posts Position|Camera when it
// does.
type Camera struct {
	*system.BaseObject

	mu          sync.RWMutex
	position    geom.Vector3
	orientation geom.Quaternion
	path        geom.Vector3
	fov         float64
}

func newCamera(base *system.BaseObject) (system.Object, error) {
	c := &Camera{BaseObject: base, orientation: geom.Identity, fov: 60}
	base.SetChanges(changes.Position|changes.Orientation|changes.Camera, changes.None)
	base.Capabilities().MustSet(system.CapGeometry, c)
	return c, nil
}

func (c *Camera) handlers() properties.Handlers {
	return properties.Handlers{
		"Position":    properties.BindVector3(&c.position),
		"Orientation": properties.BindQuaternion(&c.orientation),
		"Path":        properties.BindVector3(&c.path),
		"FOV":         properties.BindFloat(&c.fov),
	}
}

func (c *Camera) Initialize(props properties.Array) error {
	if err := c.BaseObject.Initialize(props); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return properties.Apply(props, c.handlers())
}

func (c *Camera) SetProperties(props properties.Array) error {
	if err := c.BaseObject.SetProperties(props); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return properties.Apply(props, c.handlers())
}

func (c *Camera) Properties() properties.Array {
	out := c.BaseObject.Properties()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return out.Put(properties.Vec3("Position", c.position))
}

func (c *Camera) Position() geom.Vector3 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

func (c *Camera) Orientation() geom.Quaternion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orientation
}

func (c *Camera) Scale() geom.Vector3 { return geom.Vector3{X: 1, Y: 1, Z: 1} }

func (c *Camera) advance(dt time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path.IsZero() {
		return false
	}
	c.position = c.position.Add(c.path.Scale(dt.Seconds()))
	return true
}

func (c *Camera) view() CameraView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CameraView{Name: c.Name(), Position: c.position, Orientation: c.orientation, FOV: c.fov}
}

// Mesh is a drawable. Linked to a geometry subject it mirrors that
// subject's position and orientation.
type Mesh struct {
	*system.BaseObject

	mu          sync.RWMutex
	mesh        string
	position    geom.Vector3
	orientation geom.Quaternion
	scale       geom.Vector3
}

func newMesh(base *system.BaseObject) (system.Object, error) {
	m := &Mesh{BaseObject: base, orientation: geom.Identity, scale: geom.Vector3{X: 1, Y: 1, Z: 1}}
	base.SetChanges(changes.Appearance, changes.Position|changes.Orientation|changes.Scale)
	base.Capabilities().MustSet(system.CapGeometry, m)
	base.Capabilities().MustSet(system.CapGraphics, m)
	return m, nil
}

func (m *Mesh) handlers() properties.Handlers {
	return properties.Handlers{
		"Mesh":        properties.BindString(&m.mesh),
		"Position":    properties.BindVector3(&m.position),
		"Orientation": properties.BindQuaternion(&m.orientation),
		"Scale":       properties.BindVector3(&m.scale),
	}
}

func (m *Mesh) Initialize(props properties.Array) error {
	if err := m.BaseObject.Initialize(props); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return properties.Apply(props, m.handlers())
}

func (m *Mesh) SetProperties(props properties.Array) error {
	if err := m.BaseObject.SetProperties(props); err != nil {
		return err
	}
	m.mu.Lock()
	err := properties.Apply(props, m.handlers())
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.PostChanges(changes.Appearance)
}

func (m *Mesh) Mesh() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mesh
}

func (m *Mesh) Position() geom.Vector3 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position
}

func (m *Mesh) Orientation() geom.Quaternion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orientation
}

func (m *Mesh) Scale() geom.Vector3 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scale
}

func (m *Mesh) ChangeOccurred(subject observer.Subject, changed changes.Mask) error {
	if changed.IsShutdown() {
		return nil
	}
	g, ok := system.AsGeometry(subject)
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if changed.Has(changes.Position) {
		m.position = g.Position()
	}
	if changed.Has(changes.Orientation) {
		m.orientation = g.Orientation()
	}
	if changed.Has(changes.Scale) {
		m.scale = g.Scale()
	}
	return nil
}

func (m *Mesh) view() MeshView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MeshView{
		Name:        m.Name(),
		Mesh:        m.mesh,
		Position:    m.position,
		Orientation: m.orientation,
		Scale:       m.scale,
	}
}

const changesMoved = changes.Position | changes.Camera
