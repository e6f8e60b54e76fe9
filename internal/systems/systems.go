// Package systems lists the leaf system modules an engine can load.
package systems

import (
	"github.com/zeusync/smoke/internal/engine"
	"github.com/zeusync/smoke/internal/systems/ai"
	"github.com/zeusync/smoke/internal/systems/audio"
	"github.com/zeusync/smoke/internal/systems/explosion"
	"github.com/zeusync/smoke/internal/systems/graphics"
	"github.com/zeusync/smoke/internal/systems/input"
	"github.com/zeusync/smoke/internal/systems/physics"
	"github.com/zeusync/smoke/internal/systems/scripting"
	"github.com/zeusync/smoke/internal/systems/water"
)

// Host carries the external collaborators of the leaf systems. Nil members
// fall back to the recording or queue implementations.
type Host struct {
	Renderer graphics.Renderer
	Mixer    audio.Mixer
	Device   input.Device
}

// Table returns every built-in module with default collaborators.
func Table() engine.Table { return TableFor(Host{}) }

func TableFor(h Host) engine.Table {
	return engine.Table{
		physics.Module(),
		graphics.NewModule(h.Renderer),
		ai.Module(),
		audio.NewModule(h.Mixer),
		input.NewModule(h.Device),
		explosion.Module(),
		water.Module(),
		scripting.Module(),
	}
}
