package graphics

import (
	"sync"

	"github.com/zeusync/smoke/internal/core/geom"
)

// View is what a renderer draws for one scene in one frame.
type View struct {
	Scene  string
	Camera CameraView
	Meshes []MeshView
}

type CameraView struct {
	Name        string
	Position    geom.Vector3
	Orientation geom.Quaternion
	FOV         float64
}

type MeshView struct {
	Name        string
	Mesh        string
	Position    geom.Vector3
	Orientation geom.Quaternion
	Scale       geom.Vector3
}

// Renderer is the external drawing backend. Draw is always called from the
// primary thread.
type Renderer interface {
	Draw(View) error
}

// RecordingRenderer keeps the last view per scene instead of drawing.
type RecordingRenderer struct {
	mu     sync.Mutex
	frames int
	last   map[string]View
}

func NewRecordingRenderer() *RecordingRenderer {
	return &RecordingRenderer{last: make(map[string]View)}
}

func (r *RecordingRenderer) Draw(v View) error {
	r.mu.Lock()
	r.frames++
	r.last[v.Scene] = v
	r.mu.Unlock()
	return nil
}

func (r *RecordingRenderer) Last(scene string) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.last[scene]
	return v, ok
}

func (r *RecordingRenderer) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
