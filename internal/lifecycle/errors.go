package lifecycle

import (
	"errors"
	"fmt"

	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/internal/store"
)

var (
	// ErrIllegalTransition is matched by every *TransitionError.
	ErrIllegalTransition = errors.New("lifecycle: illegal transition")
	// ErrDiscardReasonRequired rejects a discard without a reason.
	ErrDiscardReasonRequired = errors.New("lifecycle: discard requires a non-empty reason")
	// ErrSideEffect is matched by every *SideEffectError.
	ErrSideEffect = errors.New("lifecycle: side effect failed")
	// ErrRestoreExhausted rejects a second restore of the same result.
	ErrRestoreExhausted = errors.New("lifecycle: result was already restored once")
	// ErrNotFound is returned when the result or deal does not exist for the tenant.
	ErrNotFound = store.ErrNotFound
)

// TransitionError names the rejected edge.
type TransitionError struct {
	From model.PipelineStatus
	To   model.PipelineStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("lifecycle: illegal transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// SideEffectError wraps the failure of a row a transition must create
// together with the status change. The transaction has been rolled back.
type SideEffectError struct {
	Op  string
	Err error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("lifecycle: side effect %s failed: %v", e.Op, e.Err)
}

func (e *SideEffectError) Unwrap() error { return e.Err }

func (e *SideEffectError) Is(target error) bool {
	return target == ErrSideEffect
}

func sideEffect(op string, err error) error {
	if err == nil {
		return nil
	}
	return &SideEffectError{Op: op, Err: err}
}
