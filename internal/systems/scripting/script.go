package scripting

import (
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/geom"
	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/system"
)

const (
	fnUpdate   = "update"
	fnOnChange = "on_change"
)

// Script runs a Lua chunk given inline (Source) or from disk (File).
//
// Globals visible to the chunk:
//
//	post_position(x, y, z)  move the object; Position is posted after update
//	position()              returns x, y, z
//	log(msg)                writes an info line to the object's logger
//	API_VERSION             1
type Script struct {
	*system.BaseObject

	mu       sync.Mutex
	vm       *lua.LState
	source   string
	file     string
	position geom.Vector3
	moved    bool
}

func newScript(base *system.BaseObject) (system.Object, error) {
	s := &Script{BaseObject: base}
	base.SetChanges(changes.Position, changes.Position|changes.Behavior|changes.Fire)
	base.Capabilities().MustSet(system.CapGeometry, s)
	base.Capabilities().MustSet(system.CapScript, s)
	return s, nil
}

func (s *Script) Initialize(props properties.Array) error {
	if err := s.BaseObject.Initialize(props); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := properties.Apply(props, properties.Handlers{
		"Source":   properties.BindString(&s.source),
		"File":     properties.BindString(&s.file),
		"Position": properties.BindVector3(&s.position),
	})
	if err != nil {
		return err
	}
	if s.source == "" && s.file == "" {
		return fmt.Errorf("%s: %w: Source or File required", s.Name(), ErrScript)
	}
	return s.load()
}

// load builds a fresh state and runs the chunk once. Callers hold s.mu.
func (s *Script) load() error {
	if s.vm != nil {
		s.vm.Close()
	}
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("post_position", vm.NewFunction(s.luaPostPosition))
	vm.SetGlobal("position", vm.NewFunction(s.luaPosition))
	vm.SetGlobal("log", vm.NewFunction(s.luaLog))

	var err error
	if s.file != "" {
		err = vm.DoFile(s.file)
	} else {
		err = vm.DoString(s.source)
	}
	if err != nil {
		vm.Close()
		return fmt.Errorf("%s: %w: %w", s.Name(), ErrScript, err)
	}
	s.vm = vm
	s.Log().Debug("script loaded", log.String("file", s.file))
	return nil
}

func (s *Script) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Script) Position() geom.Vector3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *Script) Orientation() geom.Quaternion { return geom.Identity }
func (s *Script) Scale() geom.Vector3          { return geom.Vector3{X: 1, Y: 1, Z: 1} }

func (s *Script) Properties() properties.Array {
	out := s.BaseObject.Properties()
	s.mu.Lock()
	defer s.mu.Unlock()
	return out.Put(properties.Vec3("Position", s.position))
}

// ChangeOccurred forwards the change to on_change(subject, changes) when the
// chunk defines it.
func (s *Script) ChangeOccurred(subject observer.Subject, changed changes.Mask) error {
	if changed.IsShutdown() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vm == nil {
		return nil
	}
	return s.call(fnOnChange, lua.LString(subject.SubjectKey()), lua.LString(changed.String()))
}

// run calls update(dt) and reports whether the script moved the object.
func (s *Script) run(dt time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vm == nil {
		return false, nil
	}
	err := s.call(fnUpdate, lua.LNumber(dt.Seconds()))
	moved := s.moved
	s.moved = false
	return moved, err
}

// call invokes a global function if it exists. Callers hold s.mu.
func (s *Script) call(name string, args ...lua.LValue) error {
	fn := s.vm.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil
	}
	if err := s.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...); err != nil {
		return fmt.Errorf("%s.%s: %w: %w", s.Name(), name, ErrScript, err)
	}
	return nil
}

func (s *Script) OnDestroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vm != nil {
		s.vm.Close()
		s.vm = nil
	}
	return nil
}

// The lua callbacks run inside call, so s.mu is already held.

func (s *Script) luaPostPosition(L *lua.LState) int {
	s.position = geom.Vector3{
		X: float64(L.CheckNumber(1)),
		Y: float64(L.CheckNumber(2)),
		Z: float64(L.CheckNumber(3)),
	}
	s.moved = true
	return 0
}

func (s *Script) luaPosition(L *lua.LState) int {
	L.Push(lua.LNumber(s.position.X))
	L.Push(lua.LNumber(s.position.Y))
	L.Push(lua.LNumber(s.position.Z))
	return 3
}

func (s *Script) luaLog(L *lua.LState) int {
	s.Log().Info(L.CheckString(1))
	return 0
}
