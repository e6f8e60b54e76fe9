// Package audio turns physics contacts into sounds. Scenes observe physics
// scenes for changes.Contact, record a Sound POI per contact and play each
// sound once through the nearest emitter in range.
package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/poi"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/system"
	"github.com/zeusync/smoke/internal/engine"
	"github.com/zeusync/smoke/pkg/sequence"
)

const Name = "audio"

// impactScale maps contact impact speed onto gain.
const impactScale = 10.0

type System struct {
	*system.BaseSystem
	mixer Mixer
}

func New(ctx *system.Context, m Mixer) *System {
	if m == nil {
		m = &RecordingMixer{}
	}
	return &System{BaseSystem: system.NewBaseSystem(ctx, system.TypeAudio, Name), mixer: m}
}

func (s *System) Mixer() Mixer { return s.mixer }

func (s *System) CreateScene(name string) (system.Scene, error) {
	if err := s.CheckInitialized(); err != nil {
		return nil, err
	}
	sc := &Scene{mixer: s.mixer, played: make(map[*poi.Sound]bool)}
	sc.BaseScene = system.NewBaseScene(s.Context(), s, sc, name, map[string]system.ObjectFactory{
		"Emitter": newEmitter,
	})
	sc.SetChanges(changes.Sound, changes.Contact)
	sc.SetTask(&task{BaseTask: system.NewBaseTask(sc, system.Pooled, system.TypePhysics), scene: sc})
	if err := s.AddScene(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func Module() engine.Module { return NewModule(nil) }

func NewModule(m Mixer) engine.Module {
	return engine.Module{
		Name: Name,
		Type: system.TypeAudio,
		Create: func(ctx *system.Context) (system.System, error) {
			return New(ctx, m), nil
		},
	}
}

type Scene struct {
	*system.BaseScene
	mixer Mixer

	mu      sync.Mutex
	played  map[*poi.Sound]bool
	voices  int
	dropped int
}

// Initialize reads Voices, the most sounds started per frame; 0 means no
// limit. Louder sounds win.
func (s *Scene) Initialize(props properties.Array) error {
	if err := s.BaseScene.Initialize(props); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := properties.Apply(props, properties.Handlers{"Voices": properties.BindInt(&s.voices)}); err != nil {
		return err
	}
	if s.voices < 0 {
		return fmt.Errorf("scene %s: Voices must not be negative", s.SubjectKey())
	}
	return nil
}

// Dropped counts sounds skipped because the voice limit was reached.
func (s *Scene) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// ChangeOccurred records a Sound POI for every contact of the posting scene.
func (s *Scene) ChangeOccurred(subject observer.Subject, changed changes.Mask) error {
	if !changed.Has(changes.Contact) {
		return nil
	}
	provider, ok := subject.(observer.ChangeDataProvider)
	if !ok {
		return nil
	}
	data, ok := provider.ChangeData(changes.Contact)
	if !ok {
		return nil
	}
	contacts, ok := data.([]*poi.Contact)
	if !ok {
		return nil
	}
	for _, c := range contacts {
		sound := &poi.Sound{
			At:     c.At,
			Gain:   math.Min(1, c.Impact/impactScale),
			Source: subject.SubjectKey(),
		}
		if err := s.POI().Add(sound); err != nil {
			return err
		}
	}
	return nil
}

type task struct {
	system.BaseTask
	scene *Scene
}

func (t *task) Update(time.Duration) error {
	sc := t.scene
	var emitters []*Emitter
	for _, o := range sc.Objects() {
		if e, ok := o.(*Emitter); ok {
			emitters = append(emitters, e)
		}
	}

	live := make(map[*poi.Sound]bool)
	fresh := sequence.NewPriorityQueue(func(a, b *poi.Sound) bool { return a.Gain > b.Gain })
	sc.mu.Lock()
	for _, p := range sc.POI().OfKind(poi.KindSound) {
		snd := p.(*poi.Sound)
		live[snd] = true
		if !sc.played[snd] {
			sc.played[snd] = true
			fresh.Enqueue(snd)
		}
	}
	voices := sc.voices
	sc.mu.Unlock()

	active := make(map[*Emitter]bool)
	started := 0
	var errs []error
	for _, snd := range fresh.Drain() {
		if voices > 0 && started == voices {
			sc.mu.Lock()
			sc.dropped++
			sc.mu.Unlock()
			continue
		}
		e := nearest(emitters, snd)
		if e == nil {
			continue
		}
		active[e] = true
		started++
		if err := sc.mixer.Play(e.cue(soundCue{at: snd.At, gain: snd.Gain})); err != nil {
			errs = append(errs, err)
		}
	}

	sc.mu.Lock()
	for snd := range sc.played {
		if !live[snd] {
			delete(sc.played, snd)
		}
	}
	sc.mu.Unlock()

	for _, e := range emitters {
		if e.setPlaying(active[e]) {
			if err := e.PostChanges(changes.SoundState); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(active) > 0 {
		if err := sc.PostChanges(changes.Sound); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func nearest(emitters []*Emitter, snd *poi.Sound) *Emitter {
	var best *Emitter
	bestDist := math.Inf(1)
	for _, e := range emitters {
		if d, ok := e.hears(snd.At); ok && d < bestDist {
			best, bestDist = e, d
		}
	}
	return best
}
