package physics

import (
	"errors"
	"math"
	"runtime"
	"time"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/poi"
	"github.com/zeusync/smoke/internal/core/system"
	"github.com/zeusync/smoke/pkg/concurrent"
)

// integrateBatch is the number of bodies integrated per goroutine.
const integrateBatch = 256

type task struct {
	system.BaseTask
	scene *Scene
}

func newTask(sc *Scene) *task {
	return &task{BaseTask: system.NewBaseTask(sc, system.Pooled), scene: sc}
}

// Update steps the simulation: integrate, detect contacts, publish, then
// service collision queries against the fresh positions.
func (t *task) Update(dt time.Duration) error {
	sc := t.scene
	seconds := dt.Seconds()
	bodies := sc.bodies()

	sc.mu.RLock()
	gravity := sc.gravity
	backend := sc.backend
	sc.mu.RUnlock()

	moved := make([]bool, len(bodies))
	index := make(map[*Body]int, len(bodies))
	for i, b := range bodies {
		index[b] = i
	}
	concurrent.Batch(bodies, integrateBatch, func(chunk []*Body) {
		for _, b := range chunk {
			moved[index[b]] = b.integrate(seconds, gravity)
		}
	})

	shapes := concurrent.ParallelMap(bodies, runtime.GOMAXPROCS(0), (*Body).shape)
	backend.Rebuild(shapes)

	var errs []error
	var contacts []*poi.Contact
	for _, pair := range backend.Pairs() {
		a, b := bodies[pair[0]], bodies[pair[1]]
		c := resolve(a, b)
		contacts = append(contacts, c)
		if err := sc.POI().Add(c); err != nil {
			errs = append(errs, err)
		}
		moved[pair[0]], moved[pair[1]] = true, true
	}

	sc.mu.Lock()
	sc.contacts = contacts
	sc.mu.Unlock()

	for i, b := range bodies {
		if !moved[i] {
			continue
		}
		mask := changes.Position | changes.Velocity
		if b.inContact(contacts) {
			mask |= changes.Collision
		}
		if err := b.PostChanges(mask); err != nil {
			errs = append(errs, err)
		}
	}
	if len(contacts) > 0 {
		if err := sc.PostChanges(changes.Contact); err != nil {
			errs = append(errs, err)
		}
	}

	sc.svc.ProcessRequests(backend, sc.Context().Frame())
	return errors.Join(errs...)
}

// resolve separates two overlapping spheres and exchanges the velocity
// components along the contact normal, weighted by mass.
func resolve(a, b *Body) *poi.Contact {
	a.mu.Lock()
	b.mu.Lock()
	defer a.mu.Unlock()
	defer b.mu.Unlock()

	normal := b.position.Sub(a.position).Normalize()
	if normal.IsZero() {
		normal.Y = 1
	}
	depth := a.radius + b.radius - a.position.Distance(b.position)
	relative := a.velocity.Sub(b.velocity).Dot(normal)

	switch {
	case a.static && b.static:
	case a.static:
		b.position = b.position.Add(normal.Scale(depth))
	case b.static:
		a.position = a.position.Sub(normal.Scale(depth))
	default:
		half := normal.Scale(depth / 2)
		a.position = a.position.Sub(half)
		b.position = b.position.Add(half)
	}

	if relative > 0 {
		invA, invB := inverseMass(a), inverseMass(b)
		if sum := invA + invB; sum > 0 {
			impulse := 2 * relative / sum
			a.velocity = a.velocity.Sub(normal.Scale(impulse * invA))
			b.velocity = b.velocity.Add(normal.Scale(impulse * invB))
		}
	}

	return &poi.Contact{
		At:         a.position.Add(normal.Scale(a.radius)),
		Normal:     normal,
		Impact:     math.Max(relative, 0),
		Velocities: [2]geom.Vector3{a.velocity, b.velocity},
		Bodies:     [2]string{a.Name(), b.Name()},
	}
}

func inverseMass(b *Body) float64 {
	if b.static || b.mass <= 0 {
		return 0
	}
	return 1 / b.mass
}

func (b *Body) inContact(contacts []*poi.Contact) bool {
	for _, c := range contacts {
		if c.Bodies[0] == b.Name() || c.Bodies[1] == b.Name() {
			return true
		}
	}
	return false
}
