package statemachine

// Driver wraps a State machine and handles the out-of-order redelivery
// loop: messages that arrive before the machine is ready for them are
// buffered and retried every time the machine advances, rather than
// dropped. Buffering is keyed by nothing more than arrival order — a
// message is requeued and re-offered in full on every subsequent
// transition until the machine either consumes it or completes, matching
// the generation/round tagging protocols embed in their own message
// bodies rather than relying on buffer-position identity.
type Driver[S State[S, R, M, F], R any, M any, F any] struct {
	current S
	queue   []M
	done    bool
	result  F
}

// NewDriver starts a Driver in the given initial state.
func NewDriver[S State[S, R, M, F], R any, M any, F any](initial S) *Driver[S, R, M, F] {
	return &Driver[S, R, M, F]{current: initial}
}

// Done reports whether the driven machine has reached its Final output.
func (d *Driver[S, R, M, F]) Done() bool { return d.done }

// Result returns the terminal value once Done is true.
func (d *Driver[S, R, M, F]) Result() F { return d.result }

// Start kicks off the machine, draining TryNext for as long as it reports
// completion without input, and returns every outbound message produced
// along the way.
func (d *Driver[S, R, M, F]) Start() ([]Message[R, M], error) {
	var out []Message[R, M]
	for !d.done {
		out2, advanced, err := d.advance()
		if err != nil {
			return out, err
		}
		out = append(out, out2...)
		if !advanced {
			break
		}
	}
	return d.drainQueue(out)
}

func (d *Driver[S, R, M, F]) advance() ([]Message[R, M], bool, error) {
	output, advanced, err := AdvanceIfCompleted[S, R, M, F](d.current)
	if err != nil || !advanced {
		return nil, advanced, err
	}
	messages, _ := output.IntoMessages()
	return messages, true, d.apply(output)
}

func (d *Driver[S, R, M, F]) apply(output Output[S, R, M, F]) error {
	if final, ok := output.IntoFinal(); ok {
		d.done = true
		d.result = final
		return nil
	}
	next, _ := output.IntoState()
	d.current = next
	return nil
}

// Deliver offers one inbound message to the machine. If the machine isn't
// ready for it, the message is buffered for retry on the next successful
// transition.
func (d *Driver[S, R, M, F]) Deliver(msg M) ([]Message[R, M], error) {
	if d.done {
		return nil, nil
	}
	output, err := d.current.HandleMessage(msg)
	if err != nil {
		return nil, err
	}
	if output.IsOutOfOrder() {
		pending, _ := output.IntoPending()
		d.queue = append(d.queue, pending)
		return nil, nil
	}
	var out []Message[R, M]
	if messages, ok := output.IntoMessages(); ok {
		out = append(out, messages...)
	}
	if err := d.apply(output); err != nil {
		return out, err
	}
	more, err := d.drainOnce()
	return append(out, more...), err
}

// drainOnce retries every buffered message once against the current state,
// keeping whatever still comes back out-of-order for the next round.
func (d *Driver[S, R, M, F]) drainOnce() ([]Message[R, M], error) {
	if len(d.queue) == 0 || d.done {
		return nil, nil
	}
	pending := d.queue
	d.queue = nil
	var out []Message[R, M]
	for _, msg := range pending {
		if d.done {
			d.queue = append(d.queue, msg)
			continue
		}
		more, err := d.Deliver(msg)
		if err != nil {
			return out, err
		}
		out = append(out, more...)
	}
	return out, nil
}

func (d *Driver[S, R, M, F]) drainQueue(collected []Message[R, M]) ([]Message[R, M], error) {
	more, err := d.drainOnce()
	return append(collected, more...), err
}
