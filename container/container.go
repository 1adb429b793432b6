// Copyright 2025 The NextRush Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package container provides a small named-service registry for application
// bootstrap. Services are registered with a factory and optional named
// dependencies; resolution memoizes instances and detects cycles.
//
// Constructor injection remains the primary wiring style; the container
// serves plugins and late-bound services.
//
//	c := container.New()
//	c.Register("db", func(container.Deps) (any, error) {
//	    return openDB(), nil
//	})
//	c.Register("users", func(deps container.Deps) (any, error) {
//	    return newUserService(deps["db"].(*DB)), nil
//	}, "db")
//	svc := c.MustResolve("users")
package container

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotRegistered is returned by Resolve for unknown service names.
var ErrNotRegistered = errors.New("service not registered")

// Deps holds a factory's resolved dependencies, keyed by registration name.
// Dependencies that failed to resolve as unregistered are absent; the
// factory decides whether that is fatal.
type Deps map[string]any

// Factory constructs a service instance from its resolved dependencies.
type Factory func(deps Deps) (any, error)

type registration struct {
	factory Factory
	deps    []string
}

// Container is a concurrency-safe named-service registry. Instances are
// singletons: each factory runs at most once.
type Container struct {
	mu        sync.Mutex
	factories map[string]*registration
	instances map[string]any
	resolving map[string]bool // Cycle detection for the current resolution path
}

// New creates an empty container.
func New() *Container {
	return &Container{
		factories: make(map[string]*registration),
		instances: make(map[string]any),
		resolving: make(map[string]bool),
	}
}

// Register binds a factory under a name with optional named dependencies.
// Dependencies are resolved before the factory runs and handed to it as a
// Deps map. Re-registering a name replaces the factory but not an
// already-built instance.
func (c *Container) Register(name string, factory Factory, deps ...string) error {
	if name == "" {
		return errors.New("service name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("service %q: factory must not be nil", name)
	}

	c.mu.Lock()
	c.factories[name] = &registration{factory: factory, deps: deps}
	c.mu.Unlock()

	return nil
}

// Resolve returns the service instance, building it (and its dependencies)
// on first use. An unregistered dependency does not abort the build: the
// factory still runs without it and may construct a degraded instance or
// return its own error.
func (c *Container) Resolve(name string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.resolveLocked(name)
}

func (c *Container) resolveLocked(name string) (any, error) {
	if instance, ok := c.instances[name]; ok {
		return instance, nil
	}

	reg, ok := c.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}

	if c.resolving[name] {
		return nil, fmt.Errorf("circular dependency detected at service %q", name)
	}
	c.resolving[name] = true
	defer delete(c.resolving, name)

	deps := make(Deps, len(reg.deps))
	for _, dep := range reg.deps {
		instance, err := c.resolveLocked(dep)
		if err != nil {
			if errors.Is(err, ErrNotRegistered) {
				// Missing optional dependency; the factory decides.
				continue
			}

			return nil, fmt.Errorf("service %q: %w", name, err)
		}
		deps[dep] = instance
	}

	instance, err := reg.factory(deps)
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", name, err)
	}
	c.instances[name] = instance

	return instance, nil
}

// MustResolve is like Resolve but panics on failure. Intended for bootstrap
// code where a missing service is fatal.
func (c *Container) MustResolve(name string) any {
	instance, err := c.Resolve(name)
	if err != nil {
		panic(err)
	}

	return instance
}

// Has reports whether a service name is registered or already built.
func (c *Container) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.instances[name]; ok {
		return true
	}
	_, ok := c.factories[name]

	return ok
}

// Set stores a pre-built instance, bypassing any factory.
func (c *Container) Set(name string, instance any) {
	c.mu.Lock()
	c.instances[name] = instance
	c.mu.Unlock()
}
