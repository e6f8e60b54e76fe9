package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/smoke/internal/core/changes"
	"github.com/zeusync/smoke/internal/core/observer"
	"github.com/zeusync/smoke/internal/core/system"
)

var (
	ErrBadPath        = errors.New("bad link path")
	ErrUnknownSubject = errors.New("link endpoint not found")
)

// World describes what an engine loads: environment properties, systems with
// their scenes and objects, and the observer links between them.
type World struct {
	Environment map[string]any `yaml:"environment"`
	Systems     []SystemDef    `yaml:"systems"`
	Links       []LinkDef      `yaml:"links"`
}

type SystemDef struct {
	Module     string         `yaml:"module"`
	Properties map[string]any `yaml:"properties"`
	Scenes     []SceneDef     `yaml:"scenes"`
}

type SceneDef struct {
	Name       string         `yaml:"name"`
	Properties map[string]any `yaml:"properties"`
	Objects    []ObjectDef    `yaml:"objects"`
}

type ObjectDef struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Properties map[string]any `yaml:"properties"`
}

// LinkDef attaches Observer to Subject. Paths are "system/scene" or
// "system/scene/object". An empty Changes uses the observer's desired mask.
type LinkDef struct {
	Subject  string       `yaml:"subject"`
	Observer string       `yaml:"observer"`
	Changes  changes.Mask `yaml:"changes"`
}

func DecodeWorld(r io.Reader) (*World, error) {
	var w World
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&w); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode world: %w", err)
	}
	return &w, nil
}

func LoadWorld(path string) (*World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open world: %w", err)
	}
	defer f.Close()
	return DecodeWorld(f)
}

// Validate checks the world against table without creating anything.
func (w *World) Validate(table Table) error {
	var errs []error
	modules := make(map[string]bool)
	scenes := make(map[string]bool)
	for _, sd := range w.Systems {
		if _, ok := table.Lookup(sd.Module); !ok {
			errs = append(errs, fmt.Errorf("system %q: %w", sd.Module, ErrUnknownModule))
		}
		if modules[sd.Module] {
			errs = append(errs, fmt.Errorf("system %q: %w", sd.Module, ErrDuplicateModule))
		}
		modules[sd.Module] = true
		for _, sc := range sd.Scenes {
			key := sd.Module + "/" + sc.Name
			if err := system.CheckName(sc.Name); err != nil {
				errs = append(errs, fmt.Errorf("system %s: scene %w", sd.Module, err))
			}
			if scenes[key] {
				errs = append(errs, fmt.Errorf("scene %s: %w", key, system.ErrDuplicateName))
			}
			scenes[key] = true
			names := make(map[string]bool)
			for _, od := range sc.Objects {
				if err := system.CheckName(od.Name); err != nil {
					errs = append(errs, fmt.Errorf("scene %s: object %w", key, err))
				}
				if names[od.Name] {
					errs = append(errs, fmt.Errorf("object %s/%s: %w", key, od.Name, system.ErrDuplicateName))
				}
				names[od.Name] = true
			}
		}
	}
	for _, l := range w.Links {
		for _, p := range []string{l.Subject, l.Observer} {
			if _, _, _, err := splitPath(p); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func splitPath(p string) (sys, scene, object string, err error) {
	parts := strings.Split(p, "/")
	for _, part := range parts {
		if part == "" {
			return "", "", "", fmt.Errorf("%q: %w", p, ErrBadPath)
		}
	}
	switch len(parts) {
	case 2:
		return parts[0], parts[1], "", nil
	case 3:
		return parts[0], parts[1], parts[2], nil
	default:
		return "", "", "", fmt.Errorf("%q: %w", p, ErrBadPath)
	}
}

// Endpoint is anything a link can connect: scenes and objects are both
// subjects and observers.
type Endpoint interface {
	observer.Subject
	observer.Observer
}
