package namespace

import "testing"

func TestComparisonFilter(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		metadata map[string]interface{}
		want     bool
	}{
		{"eq match", Eq("category", "tech"), map[string]interface{}{"category": "tech"}, true},
		{"eq no match", Eq("category", "tech"), map[string]interface{}{"category": "sports"}, false},
		{"eq field missing", Eq("category", "tech"), map[string]interface{}{}, false},
		{"ne match", Ne("status", "deleted"), map[string]interface{}{"status": "active"}, true},
		{"ne no match", Ne("status", "deleted"), map[string]interface{}{"status": "deleted"}, false},
		{"gt numeric", Gt("score", 5), map[string]interface{}{"score": 7}, true},
		{"gt numeric fail", Gt("score", 5), map[string]interface{}{"score": 3}, false},
		{"lte boundary", Lte("score", 5.0), map[string]interface{}{"score": 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.metadata); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRangeFilter(t *testing.T) {
	f := Range("price", 10, 20)
	if !f.Match(map[string]interface{}{"price": 15}) {
		t.Error("expected 15 to be in range [10,20]")
	}
	if f.Match(map[string]interface{}{"price": 25}) {
		t.Error("expected 25 to be out of range [10,20]")
	}
	if f.Match(map[string]interface{}{}) {
		t.Error("missing field should not match a range filter")
	}
}

func TestInListFilter(t *testing.T) {
	f := In("color", "red", "blue")
	if !f.Match(map[string]interface{}{"color": "blue"}) {
		t.Error("expected blue to match In(red,blue)")
	}
	if f.Match(map[string]interface{}{"color": "green"}) {
		t.Error("expected green to not match In(red,blue)")
	}

	nf := NotIn("color", "red", "blue")
	if !nf.Match(map[string]interface{}{"color": "green"}) {
		t.Error("expected green to match NotIn(red,blue)")
	}
	if nf.Match(map[string]interface{}{}) != true {
		t.Error("missing field should match NotIn (vacuously true)")
	}
}

func TestCompositeFilter(t *testing.T) {
	f := And(Eq("category", "tech"), Gt("score", 5))
	if !f.Match(map[string]interface{}{"category": "tech", "score": 7}) {
		t.Error("expected AND to match when both clauses hold")
	}
	if f.Match(map[string]interface{}{"category": "tech", "score": 3}) {
		t.Error("expected AND to fail when one clause fails")
	}

	or := Or(Eq("category", "tech"), Eq("category", "science"))
	if !or.Match(map[string]interface{}{"category": "science"}) {
		t.Error("expected OR to match on second clause")
	}

	not := Not(Eq("category", "tech"))
	if not.Match(map[string]interface{}{"category": "tech"}) {
		t.Error("expected NOT to invert a matching clause")
	}
}

func TestCompile(t *testing.T) {
	meta := map[int32]map[string]interface{}{
		1: {"category": "tech"},
		2: {"category": "sports"},
	}
	lookup := func(ordinal int32) map[string]interface{} { return meta[ordinal] }

	predicate := Compile(Eq("category", "tech"), lookup)
	if !predicate(1) {
		t.Error("expected ordinal 1 to pass the compiled filter")
	}
	if predicate(2) {
		t.Error("expected ordinal 2 to fail the compiled filter")
	}
	if predicate(99) {
		t.Error("expected an ordinal with no metadata to fail the compiled filter")
	}

	if Compile(nil, lookup) != nil {
		t.Error("expected a nil Filter to compile to a nil predicate")
	}
}
