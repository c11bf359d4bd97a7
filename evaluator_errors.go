package rdata

import (
	"fmt"
	"strings"
)

// Phases of a rule's life reported by EvaluationError.
const (
	PhaseCompile  = "compile"
	PhaseEvaluate = "evaluate"
)

// EvaluationError reports a rule that failed to compile or to evaluate.
// Asset and Feature are set for evaluation failures.
type EvaluationError struct {
	Engine  string
	Expr    string
	Phase   string
	Asset   string
	Feature string
	Err     error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "rdata: %s rule %q: %s", e.Engine, e.Expr, e.Phase)
	if e.Feature != "" {
		fmt.Fprintf(&b, " feature=%s", e.Feature)
	}
	if e.Asset != "" {
		fmt.Fprintf(&b, " asset=%s", e.Asset)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
