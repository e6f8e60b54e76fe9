// Package scripting hosts Lua-driven objects. Each Script owns one gopher-lua
// state; the scene task calls the chunk's update(dt) every frame on the
// primary thread and forwards observed changes to on_change.
package scripting

import (
	"errors"
	"time"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/system"
	"github.com/zeusync/smoke/internal/engine"
)

const Name = "scripting"

var ErrScript = errors.New("script error")

type System struct {
	*system.BaseSystem
}

func New(ctx *system.Context) *System {
	return &System{BaseSystem: system.NewBaseSystem(ctx, system.TypeScripting, Name)}
}

func (s *System) CreateScene(name string) (system.Scene, error) {
	if err := s.CheckInitialized(); err != nil {
		return nil, err
	}
	sc := &Scene{}
	sc.BaseScene = system.NewBaseScene(s.Context(), s, sc, name, map[string]system.ObjectFactory{
		"Script": newScript,
	})
	sc.SetTask(&task{BaseTask: system.NewBaseTask(sc, system.Primary), scene: sc})
	if err := s.AddScene(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func Module() engine.Module {
	return engine.Module{
		Name: Name,
		Type: system.TypeScripting,
		Create: func(ctx *system.Context) (system.System, error) {
			return New(ctx), nil
		},
	}
}

type Scene struct {
	*system.BaseScene
}

type task struct {
	system.BaseTask
	scene *Scene
}

// Update runs every script; a failing script does not stop the others.
func (t *task) Update(dt time.Duration) error {
	var errs []error
	for _, o := range t.scene.Objects() {
		s, ok := o.(*Script)
		if !ok {
			continue
		}
		moved, err := s.run(dt)
		if err != nil {
			errs = append(errs, err)
		}
		if moved {
			if err := s.PostChanges(changes.Position); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
