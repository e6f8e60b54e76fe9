// Package graphics is the rendering leaf system. Drawing itself is delegated
// to a Renderer; the system only keeps the scene's view current.
package graphics

import (
	"errors"
	"time"

	"github.com/zeusync/smoke/internal/core/system"
	"github.com/zeusync/smoke/internal/engine"
)

const Name = "graphics"

type System struct {
	*system.BaseSystem
	renderer Renderer
}

func New(ctx *system.Context, r Renderer) *System {
	if r == nil {
		r = NewRecordingRenderer()
	}
	return &System{BaseSystem: system.NewBaseSystem(ctx, system.TypeGraphics, Name), renderer: r}
}

func (s *System) Renderer() Renderer { return s.renderer }

func (s *System) CreateScene(name string) (system.Scene, error) {
	if err := s.CheckInitialized(); err != nil {
		return nil, err
	}
	sc := &Scene{renderer: s.renderer}
	sc.BaseScene = system.NewBaseScene(s.Context(), s, sc, name, map[string]system.ObjectFactory{
		"Camera": newCamera,
		"Mesh":   newMesh,
	})
	// Meshes copy geometry from bodies, chickens and scripts when those post,
	// so their tasks have to finish before the view is drawn.
	deps := []system.Type{system.TypePhysics, system.TypeAI, system.TypeScripting}
	sc.SetTask(&task{BaseTask: system.NewBaseTask(sc, system.Primary, deps...), scene: sc})
	if err := s.AddScene(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// Module returns the graphics module with a recording renderer.
func Module() engine.Module { return NewModule(nil) }

// NewModule returns the graphics module drawing through r.
func NewModule(r Renderer) engine.Module {
	return engine.Module{
		Name: Name,
		Type: system.TypeGraphics,
		Create: func(ctx *system.Context) (system.System, error) {
			return New(ctx, r), nil
		},
	}
}

type Scene struct {
	*system.BaseScene
	renderer Renderer
}

// Camera returns the first camera of the scene.
func (s *Scene) Camera() (*Camera, bool) {
	for _, o := range s.Objects() {
		if c, ok := o.(*Camera); ok {
			return c, true
		}
	}
	return nil, false
}

type task struct {
	system.BaseTask
	scene *Scene
}

// Update moves cameras, then hands the scene view to the renderer.
func (t *task) Update(dt time.Duration) error {
	view := View{Scene: t.scene.SubjectKey()}
	var errs []error
	cameraSeen := false
	for _, o := range t.scene.Objects() {
		switch obj := o.(type) {
		case *Camera:
			if obj.advance(dt) {
				if err := obj.PostChanges(changesMoved); err != nil {
					errs = append(errs, err)
				}
			}
			if !cameraSeen {
				view.Camera = obj.view()
				cameraSeen = true
			}
		case *Mesh:
			view.Meshes = append(view.Meshes, obj.view())
		}
	}
	if err := t.scene.renderer.Draw(view); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
