package audio

import (
	"sync"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/system"
)

// Emitter plays its clip for sounds heard within Range.
type Emitter struct {
	*system.BaseObject

	mu       sync.RWMutex
	position geom.Vector3
	clip     string
	gain     float64
	hearing  float64
	playing  bool
}

var _ system.AudioObject = (*Emitter)(nil)

func newEmitter(base *system.BaseObject) (system.Object, error) {
	e := &Emitter{BaseObject: base, gain: 1, hearing: 10}
	base.SetChanges(changes.SoundState, changes.None)
	base.Capabilities().MustSet(system.CapAudio, e)
	base.Capabilities().MustSet(system.CapGeometry, e)
	return e, nil
}

func (e *Emitter) handlers() properties.Handlers {
	return properties.Handlers{
		"Position": properties.BindVector3(&e.position),
		"Clip":     properties.BindString(&e.clip),
		"Gain":     properties.BindFloat(&e.gain),
		"Range":    properties.BindFloat(&e.hearing),
	}
}

func (e *Emitter) Initialize(props properties.Array) error {
	if err := e.BaseObject.Initialize(props); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return properties.Apply(props, e.handlers())
}

func (e *Emitter) SetProperties(props properties.Array) error {
	if err := e.BaseObject.SetProperties(props); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return properties.Apply(props, e.handlers())
}

func (e *Emitter) Gain() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gain
}

func (e *Emitter) Playing() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.playing
}

func (e *Emitter) Position() geom.Vector3 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.position
}

func (e *Emitter) Orientation() geom.Quaternion { return geom.Identity }
func (e *Emitter) Scale() geom.Vector3          { return geom.Vector3{X: 1, Y: 1, Z: 1} }

// hears reports the distance to at when it is within range.
func (e *Emitter) hears(at geom.Vector3) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d := e.position.Distance(at)
	return d, d <= e.hearing
}

// setPlaying reports whether the state flipped.
func (e *Emitter) setPlaying(on bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing == on {
		return false
	}
	e.playing = on
	return true
}

func (e *Emitter) cue(s soundCue) Cue {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Cue{Emitter: e.Name(), Clip: e.clip, At: s.at, Gain: s.gain * e.gain}
}

type soundCue struct {
	at   geom.Vector3
	gain float64
}
