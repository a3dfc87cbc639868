// Package dialogue implements the multi-step conversation engine. A flow is
// an ordered list of named steps; the engine owns one transient State per
// user and advances it one inbound event at a time. A flow always resolves
// to completion or cancellation: completion and cancellation both remove the
// state, and cancellation runs the flow's cleanup with best-effort
// semantics, so no partial fields or downloaded attachments can leak into a
// later flow.
//
// The engine is deliberately timeout-free: a flow may sit at the same step
// indefinitely waiting for the next human message.
package dialogue

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/finishworks/crewbot/internal/chat"
)

var (
	// ErrFlowActive is returned by StartFlow while the user already has an
	// active flow. Policy: a new entry point never merges into or replaces
	// running state; the user must finish or cancel first.
	ErrFlowActive = errors.New("another flow is already active")

	// ErrNoFlow is returned by Advance when the user has no active flow.
	ErrNoFlow = errors.New("no active flow")

	// ErrUnknownFlow is returned by StartFlow for an unregistered flow name.
	ErrUnknownFlow = errors.New("unknown flow")
)

// Reply is one outbound message produced by a step.
type Reply struct {
	Text string
	Menu chat.Menu
}

// Result is what a step handler returns: zero or more replies plus the
// transition to apply.
type Result struct {
	kind    transition
	replies []Reply
}

type transition int

const (
	transitionReject transition = iota
	transitionNext
	transitionDone
)

// Reject keeps the state unchanged and re-prompts the same step.
func Reject(replies ...Reply) Result { return Result{kind: transitionReject, replies: replies} }

// Next stores nothing by itself (handlers stash fields on the State) and
// moves to the following step.
func Next(replies ...Reply) Result { return Result{kind: transitionNext, replies: replies} }

// Done marks the flow complete; the engine destroys the state afterwards.
func Done(replies ...Reply) Result { return Result{kind: transitionDone, replies: replies} }

// Handler consumes one inbound event for a step. On error the state is left
// unchanged so the user can retry; the caller reports a generic failure.
type Handler func(ctx context.Context, st *State, in chat.Inbound) (Result, error)

// Step is one point in a flow awaiting exactly one validated input.
type Step struct {
	ID     string
	Handle Handler
}

// Flow is a named, linear sequence of steps. Cleanup, when set, runs on
// cancellation to discard partial side effects (e.g. a downloaded file).
type Flow struct {
	Name    string
	Steps   []Step
	Cleanup func(ctx context.Context, st *State)
}

// State is the transient per-user dialogue record: which flow and step are
// active plus the fields collected so far. It lives only in process memory
// and only inside the engine's keyed store.
type State struct {
	Flow   string
	Step   int
	fields map[string]any
}

// Set stores a collected field value under name.
func (s *State) Set(name string, v any) {
	if s.fields == nil {
		s.fields = make(map[string]any)
	}
	s.fields[name] = v
}

// Get returns a collected field value.
func (s *State) Get(name string) (any, bool) {
	v, ok := s.fields[name]
	return v, ok
}

// GetString returns a collected string field, or "" when absent.
func (s *State) GetString(name string) string {
	if v, ok := s.fields[name].(string); ok {
		return v
	}
	return ""
}

// GetFloat returns a collected float field, or 0 when absent.
func (s *State) GetFloat(name string) float64 {
	if v, ok := s.fields[name].(float64); ok {
		return v
	}
	return 0
}

// Engine drives registered flows and owns the per-user state store. All
// state mutation is serialized under one mutex; events arrive at human
// speed and handlers are quick, so coarse locking is sufficient and keeps
// per-user advancement strictly ordered.
type Engine struct {
	mu     sync.Mutex
	flows  map[string]*Flow
	active map[int64]*State
}

// NewEngine returns an empty engine; register flows before use.
func NewEngine() *Engine {
	return &Engine{
		flows:  make(map[string]*Flow),
		active: make(map[int64]*State),
	}
}

// Register adds a flow definition. Registering twice replaces the earlier
// definition; running states keep their flow name and pick up the new steps.
func (e *Engine) Register(f *Flow) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flows[f.Name] = f
}

// Active reports whether the user currently has a flow in progress.
func (e *Engine) Active(userID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[userID]
	return ok
}

// StartFlow creates a state for the user at the flow's first step. It fails
// with ErrFlowActive when a flow is already running for this user, and with
// ErrUnknownFlow for an unregistered name. The entry prompt is the caller's
// to send; the engine only tracks state.
func (e *Engine) StartFlow(userID int64, flowName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.active[userID]; ok {
		return ErrFlowActive
	}
	if _, ok := e.flows[flowName]; !ok {
		return ErrUnknownFlow
	}
	e.active[userID] = &State{Flow: flowName}
	return nil
}

// Advance routes the inbound event to the user's current step handler and
// applies the returned transition. It returns the step's replies and done
// reports whether the flow resolved (completed) on this event.
//
// On handler error the state is left unchanged so the same step can be
// retried; the error is returned for the caller to report generically.
func (e *Engine) Advance(ctx context.Context, userID int64, in chat.Inbound) (replies []Reply, done bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.active[userID]
	if !ok {
		return nil, false, ErrNoFlow
	}
	flow := e.flows[st.Flow]
	if flow == nil || st.Step >= len(flow.Steps) {
		// Defunct state (flow re-registered with fewer steps); drop it.
		delete(e.active, userID)
		return nil, false, ErrNoFlow
	}

	res, err := flow.Steps[st.Step].Handle(ctx, st, in)
	if err != nil {
		return nil, false, err
	}

	switch res.kind {
	case transitionNext:
		st.Step++
		if st.Step >= len(flow.Steps) {
			// A final step should return Done; treat running off the end
			// as completion so the state can never get stuck.
			delete(e.active, userID)
			return res.replies, true, nil
		}
	case transitionDone:
		delete(e.active, userID)
		return res.replies, true, nil
	case transitionReject:
		// state untouched
	}
	return res.replies, false, nil
}

// Cancel destroys the user's dialogue state unconditionally and reports
// whether there was one. Flow cleanup runs best-effort: a panic inside it is
// logged and swallowed, never surfaced to the user.
func (e *Engine) Cancel(ctx context.Context, userID int64) bool {
	e.mu.Lock()
	st, ok := e.active[userID]
	if ok {
		delete(e.active, userID)
	}
	flow := (*Flow)(nil)
	if ok {
		flow = e.flows[st.Flow]
	}
	e.mu.Unlock()

	if !ok {
		return false
	}
	if flow != nil && flow.Cleanup != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("flow", st.Flow).Msg("flow cleanup panicked")
				}
			}()
			flow.Cleanup(ctx, st)
		}()
	}
	return true
}
