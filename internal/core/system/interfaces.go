package system

import (
	"time"

	"github.com/zeusync/smoke/internal/core/arena"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/poi"
	"github.com/zeusync/smoke/internal/core/properties"
)

// Configurable is the property contract shared by every tier.
type Configurable interface {
	Initialize(props properties.Array) error
	Properties() properties.Array
	SetProperties(props properties.Array) error
}

// System is one subsystem instance (graphics, physics, audio, ...). It owns
// zero or more scenes.
type System interface {
	Configurable

	Type() Type
	Name() string

	CreateScene(name string) (Scene, error)
	// DestroyScene destroys every object of scene before releasing the scene
	// and its task.
	DestroyScene(scene Scene) error
	Scenes() []Scene
}

// Scene is one system's view of a world. It owns its objects, exactly one
// task and a POI list. Scenes are subjects (e.g. for POI changes) and may
// observe other scenes or objects.
type Scene interface {
	Configurable
	observer.Subject
	observer.Observer

	System() System
	Name() string

	// ObjectTypes lists the type names CreateObject accepts.
	ObjectTypes() []string
	CreateObject(name, typ string) (Object, error)
	DestroyObject(obj Object) error
	Object(name string) (Object, bool)
	Objects() []Object

	Task() Task
	POI() *poi.List

	// EndFrame runs at the frame boundary: deferred destructions are
	// flushed and POIs are aged.
	EndFrame() error
	// Destroy releases every object, then the task. Called by DestroyScene.
	Destroy() error
}

// Object is the unit of behavior. Beyond lifecycle and properties it exposes
// a capability table; observers query capabilities instead of concrete types.
type Object interface {
	Configurable
	observer.Subject
	observer.Observer

	Name() string
	Type() string
	Handle() arena.Handle
	Scene() Scene

	Capabilities() *Capabilities
	State() *State
}

// Task is a scene's per-frame entry point.
type Task interface {
	Scene() Scene
	Name() string
	Update(dt time.Duration) error
	Affinity() Affinity
	// Dependencies lists the system types whose tasks must complete each
	// phase before this one runs.
	Dependencies() []Type
}

// PreUpdater is implemented by tasks that need a phase before Update.
type PreUpdater interface {
	PreUpdate(dt time.Duration) error
}

// PostUpdater is implemented by tasks that need a phase after Update.
type PostUpdater interface {
	PostUpdate(dt time.Duration) error
}

// Destroyer is an optional object hook run before the object's edges are
// shut down.
type Destroyer interface {
	OnDestroy() error
}
