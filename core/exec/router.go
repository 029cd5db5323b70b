// Package exec is the virtual machine that walks an ExecutionPlan,
// routing each interactive step's messages to a driven protocol state
// machine and local steps to direct arithmetic, mirroring the split
// republicprotocol-tau's core/vm.VM draws between its rng/mul/open
// background tasks and the synchronous asm instructions evaluated inline.
package exec

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/NillionNetwork/nilvm-sub002/core/program"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// PartyID identifies a cluster member.
type PartyID = shamir.PartyID

// StepKey identifies one interactive step within one running computation
// instance, the unit the router buffers round messages under — tau plays
// the equivalent role with its `processIntents map[[32]byte]process.Intent`
// keyed by an intent hash; this system keys by (computation, step index)
// instead since a program's step sequence is static once compiled.
type StepKey struct {
	Computation string
	Step        int
}

// Instance is a type-erased handle onto one running protocol driver,
// letting router.go hold a single map of heterogeneous protocol types
// (mult.State, open.State, compare.State, ...) behind one interface. Each
// concrete protocol is wrapped via NewBox, which captures its specific
// (S,Message,Final) type parameters once at construction.
type Instance interface {
	// Deliver hands a raw wire payload from a peer to the underlying
	// driver, after gob-decoding it into that protocol's Message type.
	Deliver(from PartyID, payload []byte) error
	// Poll drains the driver's pending outbound messages, gob-encoded for
	// the transport layer, and reports whether the instance has produced
	// a terminal result.
	Poll() (outgoing []RoutedMessage, completed bool, err error)
	// Result returns the typed value the instance finished with. Valid
	// only once Poll has reported completed.
	Result() (program.TypedValue, error)
}

// RoutedMessage is one outbound protocol message paired with its
// recipient set, ready for the transport layer.
type RoutedMessage struct {
	To      []PartyID // nil/empty means broadcast to the full cluster
	Payload []byte
}

// Box adapts one concrete protocol's Driver[S,PartyID,M,F] to Instance.
// The gob round trip here is the same boundary tau draws between its
// typed task messages and the raw buffer.Message values its transport
// moves between processes; gob is already the wire codec this module's
// in-process transport uses elsewhere (SPEC_FULL.md §6), so reusing it at
// the protocol-message boundary avoids introducing a second codec.
type Box[S statemachine.State[S, PartyID, M, F], M any, F any] struct {
	driver  *statemachine.Driver[S, PartyID, M, F]
	toValue func(F) (program.TypedValue, error)
	pending []statemachine.Message[PartyID, M]
}

// NewBox wraps a freshly constructed protocol state in a type-erased Box.
func NewBox[S statemachine.State[S, PartyID, M, F], M any, F any](initial S, toValue func(F) (program.TypedValue, error)) *Box[S, M, F] {
	return &Box[S, M, F]{
		driver:  statemachine.NewDriver[S, PartyID, M, F](initial),
		toValue: toValue,
	}
}

func (b *Box[S, M, F]) Deliver(from PartyID, payload []byte) error {
	var msg M
	dec := gob.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&msg); err != nil {
		return fmt.Errorf("decoding message from party %d: %w", from, err)
	}
	out, err := b.driver.Deliver(msg)
	if err != nil {
		return err
	}
	b.pending = append(b.pending, out...)
	return nil
}

func (b *Box[S, M, F]) Poll() ([]RoutedMessage, bool, error) {
	out, err := b.driver.Start()
	if err != nil {
		return nil, false, err
	}
	b.pending = append(b.pending, out...)
	routed, err := b.encodePending()
	if err != nil {
		return nil, false, err
	}
	return routed, b.driver.Done(), nil
}

func (b *Box[S, M, F]) encodePending() ([]RoutedMessage, error) {
	pending := b.pending
	b.pending = nil
	routed := make([]RoutedMessage, 0, len(pending))
	for _, m := range pending {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(m.Body); err != nil {
			return nil, fmt.Errorf("encoding outgoing message: %w", err)
		}
		r := RoutedMessage{Payload: buf.Bytes()}
		if m.Recipient.Kind == statemachine.RecipientSingle {
			r.To = []PartyID{m.Recipient.Single}
		}
		routed = append(routed, r)
	}
	return routed, nil
}

func (b *Box[S, M, F]) Result() (program.TypedValue, error) {
	if !b.driver.Done() {
		return program.TypedValue{}, fmt.Errorf("instance has not completed")
	}
	return b.toValue(b.driver.Result())
}

// Router tracks every live protocol instance for a running computation.
type Router struct {
	instances map[StepKey]Instance
}

// NewRouter builds an empty router.
func NewRouter() *Router {
	return &Router{instances: map[StepKey]Instance{}}
}

// Register adds a freshly started instance under key, overwriting any
// earlier instance sharing the key — the caller is responsible for never
// reusing a key while an instance is still pending, which the VM's step
// sequencing guarantees since a step only starts once its operands are
// all available.
func (r *Router) Register(key StepKey, inst Instance) {
	r.instances[key] = inst
}

// Deliver routes one inbound wire message to its instance.
func (r *Router) Deliver(key StepKey, from PartyID, payload []byte) error {
	inst, ok := r.instances[key]
	if !ok {
		return fmt.Errorf("no running instance for step %+v", key)
	}
	return inst.Deliver(from, payload)
}

// Poll drains one instance's pending outbound messages and completion
// status.
func (r *Router) Poll(key StepKey) ([]RoutedMessage, bool, error) {
	inst, ok := r.instances[key]
	if !ok {
		return nil, false, fmt.Errorf("no running instance for step %+v", key)
	}
	return inst.Poll()
}

// Get returns the instance registered under key, if any, without removing
// it.
func (r *Router) Get(key StepKey) (Instance, bool) {
	inst, ok := r.instances[key]
	return inst, ok
}

// Result retrieves a completed instance's value and removes it from the
// router, freeing the slot for the step sequence to move on.
func (r *Router) Result(key StepKey) (program.TypedValue, error) {
	inst, ok := r.instances[key]
	if !ok {
		return program.TypedValue{}, fmt.Errorf("no running instance for step %+v", key)
	}
	value, err := inst.Result()
	if err != nil {
		return program.TypedValue{}, err
	}
	delete(r.instances, key)
	return value, nil
}
