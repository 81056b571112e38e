package policy

import (
	"testing"

	"github.com/hyperpolymath/ochrance/pkg/verifymode"
	"github.com/hyperpolymath/ochrance/pkg/witness"
)

func TestEvaluateTotalsInvariant(t *testing.T) {
	ctx := Context{Mode: verifymode.Checked}
	predicates := []Predicate{
		RequireModeAtLeast("mode-lax", verifymode.Lax),
		RequireModeAtLeast("mode-attested", verifymode.Attested),
		RequireMinimumTier("tier-structural", witness.Structural),
	}
	report := Evaluate(ctx, predicates...)

	if report.Passed+report.Failed+report.Skipped != report.Total {
		t.Fatalf("passed+failed+skipped != total: %+v", report)
	}
	if len(report.Violations) > report.Failed {
		t.Fatalf("|violations| > failed: %+v", report)
	}
}

func TestAllOfFailsWhenOnePredicateFails(t *testing.T) {
	ctx := Context{Mode: verifymode.Lax}
	combined := AllOf("both",
		RequireModeAtLeast("lax-ok", verifymode.Lax),
		RequireModeAtLeast("attested-required", verifymode.Attested),
	)
	if combined.Eval(ctx) != Failed {
		t.Fatal("expected AllOf to fail when one predicate fails")
	}
}

func TestAnyOfPassesOnOneSuccess(t *testing.T) {
	ctx := Context{Mode: verifymode.Lax}
	combined := AnyOf("either",
		RequireModeAtLeast("lax-ok", verifymode.Lax),
		RequireModeAtLeast("attested-required", verifymode.Attested),
	)
	if combined.Eval(ctx) != Passed {
		t.Fatal("expected AnyOf to pass when one predicate passes")
	}
}

func TestNotInvertsVerdict(t *testing.T) {
	ctx := Context{Mode: verifymode.Attested}
	p := RequireModeAtLeast("attested-required", verifymode.Attested)
	inverted := Not("not-attested", p)
	if inverted.Eval(ctx) != Failed {
		t.Fatal("expected Not to invert a Passed predicate to Failed")
	}
}

func TestRequireMinimumTierSkipsWithoutWitness(t *testing.T) {
	ctx := Context{Mode: verifymode.Lax}
	p := RequireMinimumTier("needs-witness", witness.Structural)
	if p.Eval(ctx) != Skipped {
		t.Fatal("expected Skipped when no witness is present")
	}
}
