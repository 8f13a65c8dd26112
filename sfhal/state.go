package sfhal

import (
	"fmt"
	"sync/atomic"
	"time"
)

type State int32

const (
	StateUnknown State = iota
	StateReady
	StateReading
	StateWriting
	StateErasing
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateReady:
		return "ready"
	case StateReading:
		return "reading"
	case StateWriting:
		return "writing"
	case StateErasing:
		return "erasing"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type stateEvent int

const (
	eventInit stateEvent = iota
	eventRead
	eventErase
	eventEraseNext
	eventProgram
	eventRelease
)

func (e stateEvent) String() string {
	return [...]string{"init", "read", "erase", "erase-next", "program", "release"}[e]
}

// transition is the whole state machine. It never touches the token.
func transition(s State, e stateEvent) (State, error) {
	switch e {
	case eventInit:
		if s == StateUnknown {
			return StateReady, nil
		}

	case eventRead:
		if s == StateReady {
			return StateReading, nil
		}

	case eventErase:
		if s == StateReady {
			return StateErasing, nil
		}

	case eventEraseNext:
		if s == StateErasing {
			return StateErasing, nil
		}

	case eventProgram:
		if s == StateReady || s == StateErasing {
			return StateWriting, nil
		}

	case eventRelease:
		if s == StateReading || s == StateWriting || s == StateErasing {
			return StateReady, nil
		}
	}

	return s, fmt.Errorf("%w: %s on %s", ErrorInvalidTransition, e, s)
}

type stateToken struct {
	value      int32
	retryDelay time.Duration
}

func (t *stateToken) get() State {
	return State(atomic.LoadInt32(&t.value))
}

func (t *stateToken) init() error {
	next, err := transition(t.get(), eventInit)
	if err != nil {
		return err
	}
	atomic.StoreInt32(&t.value, int32(next))
	return nil
}

/* Spin until the token is observed Ready and we win the swap. Whoever
 * looks first after a release gets it, there is no queue. */
func (t *stateToken) acquire(e stateEvent) error {
	for {
		cur := t.get()
		if cur == StateUnknown {
			return ErrorNotReady
		}

		if cur == StateReady {
			next, err := transition(cur, e)
			if err != nil {
				return err
			}
			if atomic.CompareAndSwapInt32(&t.value, int32(cur), int32(next)) {
				return nil
			}
			continue
		}

		time.Sleep(t.retryDelay)
	}
}

// advance is only valid for the current holder of the token.
func (t *stateToken) advance(e stateEvent) error {
	cur := t.get()
	next, err := transition(cur, e)
	if err != nil {
		return err
	}
	atomic.StoreInt32(&t.value, int32(next))
	return nil
}

// release leaves an initialized token Ready. A release that was not a
// valid transition is reported so the caller can log it. An uninitialized
// token stays Unknown.
func (t *stateToken) release() error {
	err := t.advance(eventRelease)
	if err != nil && t.get() != StateUnknown {
		atomic.StoreInt32(&t.value, int32(StateReady))
	}
	return err
}
