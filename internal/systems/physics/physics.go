// Package physics is the rigid body leaf system. Each scene integrates its
// bodies, reports sphere contacts as POIs and services the scene's collision
// query queue.
package physics

import (
	"errors"

	"github.com/zeusync/smoke/internal/core/system"
	"github.com/zeusync/smoke/internal/engine"
)

var ErrUnknownBackend = errors.New("unknown collision backend")

const Name = "physics"

type System struct {
	*system.BaseSystem
}

func New(ctx *system.Context) *System {
	return &System{BaseSystem: system.NewBaseSystem(ctx, system.TypePhysics, Name)}
}

func (s *System) CreateScene(name string) (system.Scene, error) {
	if err := s.CheckInitialized(); err != nil {
		return nil, err
	}
	sc, err := newScene(s, name)
	if err != nil {
		return nil, err
	}
	if err := s.AddScene(sc); err != nil {
		sc.unregister()
		return nil, err
	}
	return sc, nil
}

func Module() engine.Module {
	return engine.Module{
		Name: Name,
		Type: system.TypePhysics,
		Create: func(ctx *system.Context) (system.System, error) {
			return New(ctx), nil
		},
	}
}
