//go:build js_eval

package rdata_test

import (
	"errors"
	"testing"

	rdata "github.com/goliatone/go-rendererdata"
)

func TestJSRulePolicy(t *testing.T) {
	policy, err := rdata.NewRulePolicy("disallowMultiple && present.indexOf(feature) >= 0", rdata.WithRuleEngine(rdata.EngineJS))
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	info := rdata.TypeInfo{Name: "Single", DisallowMultiple: true}
	rejected, err := policy.Rejects(assetWith("Single"), info)
	if err != nil || !rejected {
		t.Fatalf("expected rejection, got %v %v", rejected, err)
	}
	rejected, err = policy.Rejects(assetWith("TypeA"), info)
	if err != nil || rejected {
		t.Fatalf("expected acceptance, got %v %v", rejected, err)
	}
}

func TestJSRuleMustReturnBool(t *testing.T) {
	policy, err := rdata.NewRulePolicy("count + 1", rdata.WithRuleEngine(rdata.EngineJS))
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	_, err = policy.Rejects(assetWith("TypeA"), rdata.TypeInfo{Name: "TypeA"})
	var evalErr *rdata.EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Phase != rdata.PhaseEvaluate {
		t.Fatalf("expected evaluation error, got %v", err)
	}
}
