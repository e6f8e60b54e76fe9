package system

import (
	"sync"

	"github.com/zeusync/smoke/internal/core/arena"
	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/properties"
)

// ObjectFactory builds a concrete object around the base the scene prepared.
// Factories declare change masks and install capabilities on base.
type ObjectFactory func(base *BaseObject) (Object, error)

// BaseObject carries the plumbing every concrete object embeds: identity,
// property storage, the capability table and change posting.
type BaseObject struct {
	ctx    *Context
	self   Object
	scene  Scene
	name   string
	typ    string
	handle arena.Handle
	log    log.Log

	potential changes.Mask
	desired   changes.Mask

	caps  Capabilities
	state State

	mu          sync.RWMutex
	props       properties.Array
	initialized bool
}

func newBaseObject(ctx *Context, scene Scene, name, typ string, logger log.Log) *BaseObject {
	return &BaseObject{
		ctx:   ctx,
		scene: scene,
		name:  name,
		typ:   typ,
		log:   logger.With(log.String("object", name)),
	}
}

func (o *BaseObject) bind(self Object, h arena.Handle) {
	o.self = self
	o.handle = h
}

// SetChanges declares what this object may post and what it wants to hear.
func (o *BaseObject) SetChanges(potential, desired changes.Mask) {
	o.potential = potential
	o.desired = desired
}

func (o *BaseObject) Name() string                   { return o.name }
func (o *BaseObject) Type() string                   { return o.typ }
func (o *BaseObject) Handle() arena.Handle           { return o.handle }
func (o *BaseObject) Scene() Scene                   { return o.scene }
func (o *BaseObject) Context() *Context              { return o.ctx }
func (o *BaseObject) Log() log.Log                   { return o.log }
func (o *BaseObject) Capabilities() *Capabilities    { return &o.caps }
func (o *BaseObject) State() *State                  { return &o.state }
func (o *BaseObject) PotentialChanges() changes.Mask { return o.potential }
func (o *BaseObject) DesiredChanges() changes.Mask   { return o.desired }

// Self returns the concrete object wrapping this base.
func (o *BaseObject) Self() Object { return o.self }

func (o *BaseObject) SubjectKey() string {
	return o.scene.SubjectKey() + PathSeparator + o.name
}

// ChangeOccurred ignores everything; observers override it.
func (o *BaseObject) ChangeOccurred(observer.Subject, changes.Mask) error {
	return nil
}

func (o *BaseObject) Initialize(props properties.Array) error {
	o.mu.Lock()
	o.props = append(properties.Array(nil), props...)
	o.initialized = true
	o.mu.Unlock()
	return nil
}

func (o *BaseObject) Initialized() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.initialized
}

// Properties returns the stored configuration. Objects with live state
// override it and Put their current values on top.
func (o *BaseObject) Properties() properties.Array {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append(properties.Array(nil), o.props...)
}

func (o *BaseObject) SetProperties(props properties.Array) error {
	o.mu.Lock()
	for _, p := range props {
		if p.Flags.Has(properties.Multiple) {
			o.props = append(o.props, p)
			continue
		}
		o.props = o.props.Put(p)
	}
	o.mu.Unlock()
	return nil
}

// PostChanges fans changed out to this object's observers.
func (o *BaseObject) PostChanges(changed changes.Mask) error {
	var subject observer.Subject = o
	if o.self != nil {
		subject = o.self
	}
	return o.ctx.Changes.PostChanges(subject, changed)
}
