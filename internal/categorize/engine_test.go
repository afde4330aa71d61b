package categorize

import (
	"testing"

	"assofin/internal/core"
)

func rule(id, cat string, t core.TransactionType, prio int, kws ...string) core.CategorizationRule {
	return core.CategorizationRule{ID: id, CategoryID: cat, TransactionType: t, Priority: prio, Keywords: kws}
}

func TestMatch(t *testing.T) {
	groceries := rule("r1", "courses", core.Expense, 5, "supermarché", "carrefour")
	low := rule("a", "cat-a", core.Expense, 1, "paiement")
	high := rule("b", "cat-b", core.Expense, 8, "carte")
	dues := rule("r2", "cotisations", core.Income, 3, "cotisation")

	tests := []struct {
		name   string
		desc   string
		typ    core.TransactionType
		rules  []core.CategorizationRule
		want   string
		wantOK bool
	}{
		{"case-insensitive substring", "CB SUPERMARCHÉ CARREFOUR", core.Expense, []core.CategorizationRule{groceries}, "courses", true},
		{"higher priority wins", "paiement carte bleue", core.Expense, []core.CategorizationRule{low, high}, "cat-b", true},
		{"order of input irrelevant", "paiement carte bleue", core.Expense, []core.CategorizationRule{high, low}, "cat-b", true},
		{"lower priority still matches alone", "paiement en ligne", core.Expense, []core.CategorizationRule{low, high}, "cat-a", true},
		{"empty description", "", core.Expense, []core.CategorizationRule{groceries}, "", false},
		{"blank description", "   ", core.Expense, []core.CategorizationRule{groceries}, "", false},
		{"type restricts rules", "cotisation annuelle", core.Expense, []core.CategorizationRule{dues}, "", false},
		{"income rule", "Cotisation annuelle 2024", core.Income, []core.CategorizationRule{dues, groceries}, "cotisations", true},
		{"no rules", "carrefour", core.Expense, nil, "", false},
		{"no keyword contained", "virement loyer", core.Expense, []core.CategorizationRule{groceries, low, high}, "", false},
		{"empty keyword never matches", "anything", core.Expense, []core.CategorizationRule{rule("x", "c", core.Expense, 9, "", " ")}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(tt.desc, tt.typ, tt.rules)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("Match(%q) = (%q, %v), want (%q, %v)", tt.desc, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMatchTieBreakByID(t *testing.T) {
	r2 := rule("r2", "second", core.Expense, 5, "edf")
	r1 := rule("r1", "first", core.Expense, 5, "facture")

	for _, rules := range [][]core.CategorizationRule{{r1, r2}, {r2, r1}} {
		got, ok := Match("facture edf", core.Expense, rules)
		if !ok || got != "first" {
			t.Fatalf("expected lowest id to win a priority tie, got %q", got)
		}
	}
}

func TestMatcherRulesOrder(t *testing.T) {
	m := NewMatcher([]core.CategorizationRule{
		rule("c", "x", core.Expense, 2, "k"),
		rule("b", "x", core.Expense, 9, "k"),
		rule("a", "x", core.Expense, 2, "k"),
		rule("d", "x", core.Income, 10, "k"),
		rule("e", "x", "bogus", 10, "k"),
	})

	got := m.Rules(core.Expense)
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %d rules, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("rule %d = %s, want %s", i, got[i].ID, id)
		}
	}
	if n := len(m.Rules(core.Income)); n != 1 {
		t.Errorf("income rules = %d, want 1", n)
	}
}

func TestSortedDoesNotMutateInput(t *testing.T) {
	in := []core.CategorizationRule{
		rule("a", "x", core.Expense, 1, "k"),
		rule("b", "x", core.Expense, 7, "k"),
	}
	out := Sorted(in)
	if out[0].ID != "b" {
		t.Fatalf("Sorted()[0] = %s, want b", out[0].ID)
	}
	if in[0].ID != "a" {
		t.Fatalf("input was reordered")
	}
}
