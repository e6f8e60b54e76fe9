// Package service is the narrow cross-system facility for request/response
// style queries that do not fit push-based change notification.
package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDuplicateService = errors.New("service already registered")
	ErrUnknownService   = errors.New("service not registered")
	ErrServiceType      = errors.New("service has unexpected type")
)

// Service is anything a system publishes for other systems to query.
type Service interface {
	Name() string
}

// Registry holds the services published by the running systems.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
}

func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

func (r *Registry) Register(svc Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := svc.Name()
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("%s: %w", name, ErrDuplicateService)
	}
	r.services[name] = svc
	return nil
}

// Unregister removes name; unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.services, name)
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	return svc, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Each visits every service in name order.
func (r *Registry) Each(fn func(Service)) {
	for _, name := range r.Names() {
		if svc, ok := r.Get(name); ok {
			fn(svc)
		}
	}
}

// Lookup retrieves a service and casts it to T.
func Lookup[T any](r *Registry, name string) (T, error) {
	var zero T
	svc, ok := r.Get(name)
	if !ok {
		return zero, fmt.Errorf("%s: %w", name, ErrUnknownService)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("%s is %T: %w", name, svc, ErrServiceType)
	}
	return typed, nil
}
