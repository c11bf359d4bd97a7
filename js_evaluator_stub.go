//go:build !js_eval

package rdata

// NewJSEvaluator returns nil in builds without the js_eval tag.
func NewJSEvaluator(...EngineOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool { return false }
