package routine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRuleForAgeCoversEveryAge(t *testing.T) {
	t.Parallel()
	for w := 0; w <= 400; w++ {
		matches := 0
		for _, r := range catalog {
			if r.Contains(w) {
				matches++
			}
		}
		if matches != 1 {
			t.Fatalf("age %d weeks matched %d bands, want exactly 1", w, matches)
		}
		got := RuleForAge(&w)
		if !got.Contains(w) {
			t.Fatalf("RuleForAge(%d) = %s which does not contain the age", w, got.ID)
		}
	}
}

func TestCatalogBandsContiguous(t *testing.T) {
	t.Parallel()
	if catalog[0].MinWeeks != 0 {
		t.Fatalf("first band starts at %d, want 0", catalog[0].MinWeeks)
	}
	for i := 1; i < len(catalog); i++ {
		prev := catalog[i-1]
		if prev.MaxWeeks == nil {
			t.Fatalf("band %s is open-ended but not last", prev.ID)
		}
		if *prev.MaxWeeks != catalog[i].MinWeeks {
			t.Fatalf("gap/overlap between %s (max %d) and %s (min %d)", prev.ID, *prev.MaxWeeks, catalog[i].ID, catalog[i].MinWeeks)
		}
	}
	if !catalog[len(catalog)-1].OpenEnded() {
		t.Fatal("last band must be open-ended")
	}
}

func TestRuleForAgeBoundaryBelongsToUpperBand(t *testing.T) {
	t.Parallel()
	six := 6
	if got := RuleForAge(&six); got.ID != "three_hour" {
		t.Fatalf("RuleForAge(6) = %s, want three_hour", got.ID)
	}
	five := 5
	if got := RuleForAge(&five); got.ID != NewbornRuleID {
		t.Fatalf("RuleForAge(5) = %s, want newborn", got.ID)
	}
}

func TestRuleForAgeDefaults(t *testing.T) {
	t.Parallel()
	if got := RuleForAge(nil); got.ID != NewbornRuleID {
		t.Fatalf("RuleForAge(nil) = %s, want newborn", got.ID)
	}
	neg := -3
	if got := RuleForAge(&neg); got.ID != NewbornRuleID {
		t.Fatalf("RuleForAge(-3) = %s, want newborn", got.ID)
	}
}

func TestRuleByIDFallsBack(t *testing.T) {
	t.Parallel()
	if got := RuleByID("four_hour"); got.ID != "four_hour" {
		t.Fatalf("RuleByID(four_hour) = %s", got.ID)
	}
	if got := RuleByID("no-such-rule"); got.ID != NewbornRuleID {
		t.Fatalf("RuleByID(unknown) = %s, want newborn", got.ID)
	}
	if _, ok := LookupRule("no-such-rule"); ok {
		t.Fatal("LookupRule(unknown) reported ok")
	}
}

func TestEstimateWakeWindowMonotonic(t *testing.T) {
	t.Parallel()
	prev := EstimateWakeWindow(0)
	for w := 1; w <= 200; w++ {
		cur := EstimateWakeWindow(w)
		if cur < prev {
			t.Fatalf("EstimateWakeWindow(%d) = %d < EstimateWakeWindow(%d) = %d", w, cur, w-1, prev)
		}
		prev = cur
	}
	if got := EstimateWakeWindow(1000); got != oldestWakeWindow {
		t.Fatalf("EstimateWakeWindow(1000) = %d, want %d", got, oldestWakeWindow)
	}
}

func TestRulesReturnsCopy(t *testing.T) {
	t.Parallel()
	rs := Rules()
	rs[0].ID = "mutated"
	if catalog[0].ID != NewbornRuleID {
		t.Fatal("Rules() exposed the catalog backing array")
	}
}

func TestRuleAccessorsDoNotShareCatalogData(t *testing.T) {
	t.Parallel()
	want := Rules()
	mutate := func(r Rule) {
		if len(r.NapMinutes) > 0 {
			r.NapMinutes[0] = 1
		}
		if r.MaxWeeks != nil {
			*r.MaxWeeks = -1
		}
		if r.AfternoonActivity != nil {
			r.AfternoonActivity.Min = -1
		}
	}
	for _, r := range Rules() {
		mutate(r)
	}
	for _, r := range want {
		mutate(RuleByID(r.ID))
		if got, ok := LookupRule(r.ID); ok {
			mutate(got)
		}
	}
	mutate(RuleForAge(nil))
	mutate(RuleForAge(age(100)))
	mutate(RuleByID("unknown"))

	if diff := cmp.Diff(want, Rules()); diff != "" {
		t.Fatalf("catalog changed through a returned rule (-want +got):\n%s", diff)
	}
}
