package filter

import (
	"strings"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

func TestNewRangeFilter(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
		wantErr          string
	}{
		{"gt only", floatPtr(1), nil, nil, nil, ""},
		{"gte+lte", nil, floatPtr(0), nil, floatPtr(10), ""},
		{"gt+lt", floatPtr(0), nil, floatPtr(10), nil, ""},
		{"no boundary", nil, nil, nil, nil, "at least one"},
		{"gt and gte", floatPtr(1), floatPtr(1), nil, nil, "gt and gte"},
		{"lt and lte", nil, nil, floatPtr(1), floatPtr(1), "lt and lte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (r.GT() == nil) != (tt.gt == nil) || (r.LTE() == nil) != (tt.lte == nil) {
				t.Error("boundary mismatch")
			}
		})
	}
}

func TestNewMatch_RequiresKeyAndValue(t *testing.T) {
	if _, err := NewMatch("", "Terminal B"); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := NewMatch("Terminal", ""); err == nil {
		t.Error("expected error for empty value")
	}
	c, err := NewMatch("Terminal", "Terminal B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsMatch() || c.IsRange() {
		t.Error("expected match condition")
	}
}

func TestNewExpression_TooManyConditions(t *testing.T) {
	conds := make([]Condition, MaxConditionsPerGroup+1)
	for i := range conds {
		conds[i] = Condition{key: "k", match: "v"}
	}
	if _, err := NewExpression(conds, nil, nil); err == nil {
		t.Error("expected error for too many must conditions")
	}
	if _, err := NewExpression(nil, nil, conds); err == nil {
		t.Error("expected error for too many must_not conditions")
	}
}

func TestExpression_Keys(t *testing.T) {
	a, _ := NewMatch("Terminal", "Terminal B")
	b, _ := NewMatch("Airline", "Contoso")
	c, _ := NewMatch("Terminal", "Terminal C")
	expr, err := NewExpression([]Condition{a}, []Condition{b}, []Condition{c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys := expr.Keys()
	if len(keys) != 2 || keys[0] != "Terminal" || keys[1] != "Airline" {
		t.Errorf("Keys() = %v", keys)
	}
	if expr.IsEmpty() {
		t.Error("expected non-empty expression")
	}
}

func TestParse(t *testing.T) {
	expr, err := Parse([]string{"Terminal='Terminal B'", "GateCapacity>=150", "Status!=Closed", " "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(expr.Must()) != 2 || len(expr.MustNot()) != 1 {
		t.Fatalf("must=%d must_not=%d", len(expr.Must()), len(expr.MustNot()))
	}
	if m := expr.Must()[0]; m.Key() != "Terminal" || m.Match() != "Terminal B" {
		t.Errorf("match = %s=%q", m.Key(), m.Match())
	}
	r := expr.Must()[1].Range()
	if r == nil || r.GTE() == nil || *r.GTE() != 150 {
		t.Errorf("range = %+v", r)
	}
	if n := expr.MustNot()[0]; n.Key() != "Status" || n.Match() != "Closed" {
		t.Errorf("must_not = %s=%q", n.Key(), n.Match())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		clause string
	}{
		{"no operator", "Terminal"},
		{"missing key", "=Terminal B"},
		{"non numeric range", "GateCapacity>lots"},
		{"empty match", "Terminal="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]string{tt.clause}); err == nil {
				t.Errorf("Parse(%q) expected error", tt.clause)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	expr, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !expr.IsEmpty() {
		t.Error("expected empty expression")
	}
}
