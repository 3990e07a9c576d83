// Copyright 2024 The skylark Authors
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

package hook

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sort"
	"sync"
)

// Priority defines hook execution priority. Higher values run first.
type Priority int32

const (
	// LowestPriority defines lowest hook execution priority.
	LowestPriority = Priority(math.MinInt32)

	// DefaultPriority defines default hook execution priority.
	DefaultPriority = Priority(0)

	// HighestPriority defines highest hook execution priority.
	HighestPriority = Priority(math.MaxInt32)
)

// ErrStopped error is returned by a handler to halt hook execution.
var ErrStopped = errors.New("hook: execution stopped")

// ExecutionContext carries the event payload handlers are invoked with.
type ExecutionContext struct {
	// Info contains the event specific info struct.
	Info interface{}

	// Sender is the entity the event originated from.
	Sender interface{}
}

// Handler defines a generic hook handler function.
type Handler func(ctx context.Context, execCtx *ExecutionContext) error

type binding struct {
	hnd Handler
	p   Priority
}

// Hooks represents a set of event hook bindings.
type Hooks struct {
	mu       sync.RWMutex
	bindings map[string][]binding
}

// NewHooks returns a new initialized Hooks instance.
func NewHooks() *Hooks {
	return &Hooks{
		bindings: make(map[string][]binding),
	}
}

// AddHook registers hnd under hook providing an execution priority value.
// priority may be any number (including negative). Handlers registered at the
// same priority run in registration order.
func (h *Hooks) AddHook(hook string, hnd Handler, priority Priority) {
	h.mu.Lock()
	defer h.mu.Unlock()

	bs := append(h.bindings[hook], binding{hnd: hnd, p: priority})
	sort.SliceStable(bs, func(i, j int) bool { return bs[i].p > bs[j].p })

	h.bindings[hook] = bs
}

// RemoveHook removes a hook registered handler.
func (h *Hooks) RemoveHook(hook string, hnd Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	bs := h.bindings[hook]
	for i, b := range bs {
		if reflect.ValueOf(b.hnd).Pointer() != reflect.ValueOf(hnd).Pointer() {
			continue
		}
		h.bindings[hook] = append(bs[:i], bs[i+1:]...)
		return
	}
}

// Run invokes all hook handlers in priority order. A handler returning
// ErrStopped halts the chain, reported through the halted return value; any
// other error aborts it.
func (h *Hooks) Run(ctx context.Context, hook string, execCtx *ExecutionContext) (halted bool, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, b := range h.bindings[hook] {
		switch err := b.hnd(ctx, execCtx); {
		case err == nil:
			break
		case errors.Is(err, ErrStopped):
			return true, nil
		default:
			return false, err
		}
	}
	return false, nil
}
