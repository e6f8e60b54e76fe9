package audio

import (
	"sync"

	"github.com/zeusync/smoke/internal/core/geom"
)

// Cue is one sound handed to the mixer.
type Cue struct {
	Emitter string
	Clip    string
	At      geom.Vector3
	Gain    float64
}

// Mixer is the external audio backend.
type Mixer interface {
	Play(Cue) error
}

// RecordingMixer remembers every cue instead of playing it.
type RecordingMixer struct {
	mu   sync.Mutex
	cues []Cue
}

func (m *RecordingMixer) Play(c Cue) error {
	m.mu.Lock()
	m.cues = append(m.cues, c)
	m.mu.Unlock()
	return nil
}

func (m *RecordingMixer) Cues() []Cue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Cue(nil), m.cues...)
}
