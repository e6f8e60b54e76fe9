package engine

import (
	"errors"
	"fmt"

	"github.com/zeusync/smoke/internal/core/system"
)

var (
	ErrUnknownModule   = errors.New("unknown module")
	ErrDuplicateModule = errors.New("module loaded twice")
)

// Module is the entry contract of one system implementation. Init runs once
// before Create, Destroy after every scene of the system is gone. Both are
// optional.
type Module struct {
	Name    string
	Type    system.Type
	Init    func(ctx *system.Context) error
	Create  func(ctx *system.Context) (system.System, error)
	Destroy func(sys system.System) error
}

// Table is the explicit list of modules an engine may load.
type Table []Module

func (t Table) Lookup(name string) (Module, bool) {
	for _, m := range t {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}

// Names lists module names in table order.
func (t Table) Names() []string {
	out := make([]string, 0, len(t))
	for _, m := range t {
		out = append(out, m.Name)
	}
	return out
}

// Validate checks that names are unique and every module can be created.
func (t Table) Validate() error {
	seen := make(map[string]bool, len(t))
	for _, m := range t {
		if m.Create == nil {
			return fmt.Errorf("module %q: missing Create", m.Name)
		}
		if seen[m.Name] {
			return fmt.Errorf("module %q: %w", m.Name, ErrDuplicateModule)
		}
		seen[m.Name] = true
	}
	return nil
}
