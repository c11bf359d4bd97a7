package rdata

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidIndex reports an out-of-range Remove, Move or edit.
	ErrInvalidIndex = errors.New("rdata: index out of range")
	// ErrDuplicateType reports an Add rejected by the duplicate policy.
	ErrDuplicateType = errors.New("rdata: feature type already present")
	// ErrUnresolvedReference reports an operation that needs a loaded object
	// on a slot whose backing object is missing.
	ErrUnresolvedReference = errors.New("rdata: unresolved feature reference")
	// ErrPersistence wraps failures returned by the persistence collaborator.
	ErrPersistence = errors.New("rdata: persistence failure")
	// ErrUnknownType reports an Add for a type missing from the registry.
	ErrUnknownType = errors.New("rdata: unknown feature type")
	// ErrOperationPending is returned while a failed operation awaits Retry
	// or Abandon.
	ErrOperationPending = errors.New("rdata: failed operation pending")
	// ErrMisaligned reports a feature list whose identifier list has a
	// different length. Run ValidateAndRepair to realign it.
	ErrMisaligned = errors.New("rdata: feature list and identifier list are misaligned")
	// ErrTornDown is returned by an adapter cache after Teardown.
	ErrTornDown = errors.New("rdata: adapter cache torn down")
)

// OperationError captures the operation context alongside the originating
// error.
type OperationError struct {
	Op    string
	Index int
	Type  string
	Err   error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("rdata: ")
	b.WriteString(e.Op)
	if e.Type != "" {
		fmt.Fprintf(&b, " type=%s", e.Type)
	}
	if e.Index >= 0 {
		fmt.Fprintf(&b, " index=%d", e.Index)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(strings.TrimPrefix(e.Err.Error(), "rdata: "))
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func opError(op string, index int, typeName string, err error) error {
	if err == nil {
		return nil
	}
	var existing *OperationError
	if errors.As(err, &existing) && existing.Op == op {
		return err
	}
	return &OperationError{Op: op, Index: index, Type: typeName, Err: err}
}

// persistenceError tags a collaborator failure with ErrPersistence while
// keeping the original error reachable through errors.Is/As.
func persistenceError(step string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, step, err)
}
