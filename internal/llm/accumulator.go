package llm

import (
	"fmt"
	"strings"
)

const tempKeyPrefix = "tmpcall-"

// ToolCallAccumulator merges the partial tool-call fragments a provider
// streams across many chunks into complete, ordered requests. Providers
// may split a call's name and arguments across chunks and may not assign
// an id until some later fragment, so fragments are routed by stream
// index until a stable id arrives.
//
// One accumulator serves one streaming round; create a fresh one per
// provider request.
type ToolCallAccumulator struct {
	entries map[string]*pendingCall
	order   []string
	byIndex map[int]string
	nextTmp int
}

type pendingCall struct {
	id   string
	typ  string
	name string
	args strings.Builder
}

func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{
		entries: make(map[string]*pendingCall),
		byIndex: make(map[int]string),
	}
}

// Add folds one fragment into the accumulator. A fragment with an id
// becomes (or confirms) the key for its index; an entry accumulated
// under a synthesized key is migrated to the real id when one arrives,
// keeping its name and arguments. Fragments without an id go to
// whatever key is active for their index, synthesizing a temporary key
// when none exists yet. Argument text is always appended.
func (a *ToolCallAccumulator) Add(d ToolCallDelta) {
	key, active := a.byIndex[d.Index]

	if d.ID != "" {
		if _, exists := a.entries[d.ID]; exists {
			// Same id surfacing again, possibly at another index.
			// Last write wins for the index routing.
			a.byIndex[d.Index] = d.ID
			key = d.ID
		} else if active && strings.HasPrefix(key, tempKeyPrefix) {
			entry := a.entries[key]
			delete(a.entries, key)
			a.entries[d.ID] = entry
			for i, k := range a.order {
				if k == key {
					a.order[i] = d.ID
				}
			}
			a.byIndex[d.Index] = d.ID
			key = d.ID
		} else {
			a.entries[d.ID] = &pendingCall{}
			a.order = append(a.order, d.ID)
			a.byIndex[d.Index] = d.ID
			key = d.ID
		}
	} else if !active {
		key = fmt.Sprintf("%s%d", tempKeyPrefix, a.nextTmp)
		a.nextTmp++
		a.entries[key] = &pendingCall{}
		a.order = append(a.order, key)
		a.byIndex[d.Index] = key
	}

	entry := a.entries[key]
	if d.ID != "" {
		entry.id = d.ID
	}
	if d.Type != "" {
		entry.typ = d.Type
	}
	if d.Function.Name != "" {
		entry.name = d.Function.Name
	}
	if d.Function.Arguments != "" {
		entry.args.WriteString(d.Function.Arguments)
	}
}

// Calls returns the finalized requests in accumulation order. Entries
// that never received a function name are dropped; arguments default to
// "{}", the id falls back to the internal key, and the type to
// "function". Calling Calls repeatedly without new input yields the
// same list.
func (a *ToolCallAccumulator) Calls() []ToolCallRequest {
	var calls []ToolCallRequest
	for _, key := range a.order {
		entry := a.entries[key]
		if entry == nil || entry.name == "" {
			continue
		}
		id := entry.id
		if id == "" {
			id = key
		}
		typ := entry.typ
		if typ == "" {
			typ = "function"
		}
		args := entry.args.String()
		if args == "" {
			args = "{}"
		}
		calls = append(calls, ToolCallRequest{
			ID:   id,
			Type: typ,
			Function: FunctionCall{
				Name:      entry.name,
				Arguments: args,
			},
		})
	}
	return calls
}
