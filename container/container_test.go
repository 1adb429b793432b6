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

package container

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithDependencies(t *testing.T) {
	t.Parallel()

	c := New()
	require.NoError(t, c.Register("config", func(Deps) (any, error) {
		return map[string]string{"dsn": "memory://"}, nil
	}))
	require.NoError(t, c.Register("db", func(deps Deps) (any, error) {
		cfg := deps["config"].(map[string]string)

		return "db(" + cfg["dsn"] + ")", nil
	}, "config"))

	v, err := c.Resolve("db")
	require.NoError(t, err)
	assert.Equal(t, "db(memory://)", v)
}

func TestResolveMemoizes(t *testing.T) {
	t.Parallel()

	calls := 0
	c := New()
	require.NoError(t, c.Register("svc", func(Deps) (any, error) {
		calls++

		return calls, nil
	}))

	first := c.MustResolve("svc")
	second := c.MustResolve("svc")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestResolveUnregistered(t *testing.T) {
	t.Parallel()

	c := New()
	_, err := c.Resolve("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestResolveMissingDepIsOptional(t *testing.T) {
	t.Parallel()

	c := New()
	require.NoError(t, c.Register("svc", func(deps Deps) (any, error) {
		_, hasCache := deps["cache"]

		return hasCache, nil
	}, "cache"))

	v, err := c.Resolve("svc")
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestResolveCycle(t *testing.T) {
	t.Parallel()

	c := New()
	require.NoError(t, c.Register("a", func(Deps) (any, error) { return "a", nil }, "b"))
	require.NoError(t, c.Register("b", func(Deps) (any, error) { return "b", nil }, "a"))

	_, err := c.Resolve("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")
}

func TestFactoryErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("connect refused")
	c := New()
	require.NoError(t, c.Register("db", func(Deps) (any, error) { return nil, boom }))

	_, err := c.Resolve("db")
	assert.ErrorIs(t, err, boom)
}

func TestMustResolvePanics(t *testing.T) {
	t.Parallel()

	c := New()
	assert.Panics(t, func() { c.MustResolve("ghost") })
}

func TestSetAndHas(t *testing.T) {
	t.Parallel()

	c := New()
	assert.False(t, c.Has("logger"))
	c.Set("logger", "instance")
	assert.True(t, c.Has("logger"))
	assert.Equal(t, "instance", c.MustResolve("logger"))
}

func TestConcurrentResolve(t *testing.T) {
	t.Parallel()

	calls := 0
	c := New()
	require.NoError(t, c.Register("shared", func(Deps) (any, error) {
		calls++

		return "shared", nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "shared", c.MustResolve("shared"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
}
