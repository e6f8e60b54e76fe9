package ai

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/service/collision"
	"github.com/zeusync/smoke/internal/core/system"
)

const (
	StateIdle = iota
	StateWander
	StateFlee
)

var stateNames = [...]string{"Idle", "Wander", "Flee"}

// arrived is how close to its target a chicken must get to stop wandering.
const arrived = 0.1

// Chicken idles, wanders to random points around its home after checking the
// path with a collision line test, and runs from fires.
type Chicken struct {
	*system.BaseObject

	mu           sync.RWMutex
	position     geom.Vector3
	heading      float64
	home         geom.Vector3
	target       geom.Vector3
	speed        float64
	wanderRadius float64
	fleeDistance float64
	idleSeconds  float64

	pending collision.Handle
	clear   bool
	rng     *rand.Rand
}

var (
	_ system.GeometryObject = (*Chicken)(nil)
	_ system.BehaviorObject = (*Chicken)(nil)
)

func newChicken(base *system.BaseObject) (system.Object, error) {
	seed := xxhash.Sum64String(base.Scene().SubjectKey() + "/" + base.Name())
	c := &Chicken{
		BaseObject:   base,
		speed:        1.5,
		wanderRadius: 5,
		fleeDistance: 4,
		idleSeconds:  2,
		rng:          rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
	base.SetChanges(changes.Position|changes.Orientation|changes.Behavior, changes.None)
	base.Capabilities().MustSet(system.CapGeometry, c)
	base.Capabilities().MustSet(system.CapBehavior, c)
	return c, nil
}

func (c *Chicken) handlers() properties.Handlers {
	return properties.Handlers{
		"Position":     properties.BindVector3(&c.position),
		"Speed":        properties.BindFloat(&c.speed),
		"WanderRadius": properties.BindFloat(&c.wanderRadius),
		"FleeDistance": properties.BindFloat(&c.fleeDistance),
		"IdleSeconds":  properties.BindFloat(&c.idleSeconds),
	}
}

func (c *Chicken) Initialize(props properties.Array) error {
	if err := c.BaseObject.Initialize(props); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := properties.Apply(props, c.handlers()); err != nil {
		return err
	}
	c.home = c.position
	return nil
}

func (c *Chicken) Properties() properties.Array {
	out := c.BaseObject.Properties()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return out.Put(properties.Vec3("Position", c.position))
}

func (c *Chicken) Position() geom.Vector3 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

func (c *Chicken) Orientation() geom.Quaternion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return geom.Yaw(c.heading)
}

func (c *Chicken) Scale() geom.Vector3 { return geom.Vector3{X: 1, Y: 1, Z: 1} }

// Behavior names the current state.
func (c *Chicken) Behavior() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return stateNames[c.State().Current]
}

// think advances the state machine by dt and returns what changed. It runs
// only on the scene's task.
func (c *Chicken) think(dt time.Duration, fires []geom.AABB, svc *collision.Service) changes.Mask {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.State()
	st.Advance(dt)
	seconds := dt.Seconds()

	var mask changes.Mask
	if fire, ok := c.nearestFire(fires); ok {
		if st.Transition(StateFlee) {
			mask |= changes.Behavior
			c.forgetQuery(svc)
		}
		away := c.position.Sub(fire.Center())
		away.Y = 0
		if away.IsZero() {
			away.X = 1
		}
		return mask | c.step(away.Normalize(), 2*c.speed*seconds)
	}

	switch st.Current {
	case StateFlee:
		st.Transition(StateIdle)
		mask |= changes.Behavior
	case StateIdle:
		if st.Elapsed.Seconds() >= c.idleSeconds {
			st.Transition(StateWander)
			c.pickTarget()
			mask |= changes.Behavior
		}
	case StateWander:
		if !c.clear && svc != nil {
			if !c.checkPath(svc) {
				return mask
			}
		}
		to := c.target.Sub(c.position)
		dist := to.Len()
		if dist <= arrived {
			st.Transition(StateIdle)
			return mask | changes.Behavior
		}
		mask |= c.step(to.Normalize(), math.Min(c.speed*seconds, dist))
	}
	return mask
}

// checkPath drives the asynchronous line test towards the current target and
// reports whether the path is known to be clear.
func (c *Chicken) checkPath(svc *collision.Service) bool {
	if c.pending == 0 {
		c.pending = svc.LineTest(c.position, c.target, collision.Request{
			Shape:  collision.ShapeLine,
			Ignore: []string{c.Name()},
		})
		return false
	}
	res, err := svc.Finalize(c.pending)
	switch {
	case errors.Is(err, collision.ErrNotReady):
		return false
	case err != nil:
		c.pending = 0
		return false
	}
	c.pending = 0
	if len(res.Hits) > 0 {
		c.pickTarget()
		return false
	}
	c.clear = true
	return true
}

// forgetQuery collects an outstanding result so the service can retire it.
func (c *Chicken) forgetQuery(svc *collision.Service) {
	if c.pending != 0 && svc != nil {
		_, _ = svc.Finalize(c.pending)
	}
	c.pending = 0
	c.clear = false
}

func (c *Chicken) pickTarget() {
	angle := c.rng.Float64() * 2 * math.Pi
	radius := c.rng.Float64() * c.wanderRadius
	c.target = c.home.Add(geom.Vector3{X: math.Cos(angle) * radius, Z: math.Sin(angle) * radius})
	c.clear = false
	c.pending = 0
}

func (c *Chicken) step(dir geom.Vector3, distance float64) changes.Mask {
	if distance <= 0 || dir.IsZero() {
		return changes.None
	}
	c.position = c.position.Add(dir.Scale(distance))
	c.heading = math.Atan2(dir.X, dir.Z)
	return changes.Position | changes.Orientation
}

func (c *Chicken) nearestFire(fires []geom.AABB) (geom.AABB, bool) {
	best := math.Inf(1)
	var nearest geom.AABB
	for _, f := range fires {
		if d := f.Center().Distance(c.position); d < best {
			best = d
			nearest = f
		}
	}
	return nearest, best <= c.fleeDistance
}
