// Package trigger decides when a subject is reconciled: it filters platform
// events, debounces qualifying changes per subject and drains the pending
// queue into the reconciler.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Kind tags the payload carried by an Event.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindRoleChange
	KindManualRequest
	KindSweepRequest
	KindMemberLeave
)

func (k Kind) String() string {
	switch k {
	case KindRoleChange:
		return "role_change"
	case KindManualRequest:
		return "manual_request"
	case KindSweepRequest:
		return "sweep_request"
	case KindMemberLeave:
		return "member_leave"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// RoleChange reports that a member's roles on a community changed.
type RoleChange struct {
	Community uint64
	Subject   uint64
	Bot       bool
	Before    []uint64
	After     []uint64
}

// ManualRequest asks for an immediate reconciliation of one subject.
type ManualRequest struct {
	Subject uint64
	DryRun  bool
	// RequestedBy identifies the operator, for logs only.
	RequestedBy string
}

// SweepRequest asks for a full reconciliation of the target community.
type SweepRequest struct {
	RequestedBy string
}

// MemberLeave reports that a member left a community.
type MemberLeave struct {
	Community uint64
	Subject   uint64
}

// Event is a tagged union: exactly the payload matching Kind is set.
type Event struct {
	Kind Kind

	RoleChange *RoleChange
	Manual     *ManualRequest
	Sweep      *SweepRequest
	Leave      *MemberLeave
}

func NewRoleChange(c RoleChange) Event       { return Event{Kind: KindRoleChange, RoleChange: &c} }
func NewManualRequest(m ManualRequest) Event { return Event{Kind: KindManualRequest, Manual: &m} }
func NewSweepRequest(s SweepRequest) Event   { return Event{Kind: KindSweepRequest, Sweep: &s} }
func NewMemberLeave(l MemberLeave) Event     { return Event{Kind: KindMemberLeave, Leave: &l} }

var (
	ErrUnknownEvent = errors.New("unknown event kind")
	ErrInvalidEvent = errors.New("event payload does not match kind")
)

// Validate checks that the payload for Kind is present.
func (e Event) Validate() error {
	var ok bool
	switch e.Kind {
	case KindRoleChange:
		ok = e.RoleChange != nil
	case KindManualRequest:
		ok = e.Manual != nil
	case KindSweepRequest:
		ok = e.Sweep != nil
	case KindMemberLeave:
		ok = e.Leave != nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, e.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// Handler processes one event kind.
type Handler func(ctx context.Context, ev Event) error

// Dispatcher routes events to the handler registered for their kind.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Kind]Handler)}
}

// Handle registers h for kind, replacing any previous handler.
func (d *Dispatcher) Handle(kind Kind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Dispatch validates ev and runs its handler. Kinds without a handler
// return ErrUnknownEvent.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	d.mu.RLock()
	h, ok := d.handlers[ev.Kind]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no handler for %s", ErrUnknownEvent, ev.Kind)
	}
	return h(ctx, ev)
}
