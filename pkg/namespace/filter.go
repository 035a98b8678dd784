package namespace

import (
	"time"
)

// Filter is a metadata predicate used as §4.6's admission-control
// gate: it decides whether a candidate ordinal may appear in a
// search's results, without affecting which ordinals the beam search
// is allowed to traverse through.
type Filter interface {
	Match(metadata map[string]interface{}) bool
}

// Compile turns a Filter into the ordinal-indexed predicate
// vamana.SearchConfig.Filter expects, using metadataOf to fetch a
// candidate's metadata (nil metadata never matches). A nil Filter
// compiles to a nil predicate, which vamana.Searcher treats as
// "accept everything".
func Compile(f Filter, metadataOf func(ordinal int32) map[string]interface{}) func(ordinal int32) bool {
	if f == nil {
		return nil
	}
	return func(ordinal int32) bool {
		md := metadataOf(ordinal)
		if md == nil {
			return false
		}
		return f.Match(md)
	}
}

// Operator names one comparison or logical operation a Filter can
// perform.
type Operator string

const (
	OpEquals      Operator = "eq"
	OpNotEquals   Operator = "ne"
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpGreaterOrEq Operator = "gte"
	OpLessOrEq    Operator = "lte"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpExists      Operator = "exists"
	OpAnd         Operator = "and"
	OpOr          Operator = "or"
	OpNot         Operator = "not"
)

// ComparisonFilter matches a single field against Value using Operator.
type ComparisonFilter struct {
	Field    string
	Operator Operator
	Value    interface{}
}

func (f *ComparisonFilter) Match(metadata map[string]interface{}) bool {
	fieldValue, exists := metadata[f.Field]
	if !exists {
		return false
	}
	switch f.Operator {
	case OpEquals:
		return equals(fieldValue, f.Value)
	case OpNotEquals:
		return !equals(fieldValue, f.Value)
	case OpGreaterThan:
		return compare(fieldValue, f.Value) > 0
	case OpLessThan:
		return compare(fieldValue, f.Value) < 0
	case OpGreaterOrEq:
		return compare(fieldValue, f.Value) >= 0
	case OpLessOrEq:
		return compare(fieldValue, f.Value) <= 0
	case OpExists:
		return true
	default:
		return false
	}
}

// RangeFilter matches a field whose value falls within [Min, Max].
type RangeFilter struct {
	Field    string
	Min, Max interface{}
}

func (f *RangeFilter) Match(metadata map[string]interface{}) bool {
	fieldValue, exists := metadata[f.Field]
	if !exists {
		return false
	}
	if f.Min != nil && compare(fieldValue, f.Min) < 0 {
		return false
	}
	if f.Max != nil && compare(fieldValue, f.Max) > 0 {
		return false
	}
	return true
}

// InListFilter matches a field whose value is (or, negated, is not)
// one of Values.
type InListFilter struct {
	Field  string
	Values []interface{}
	Negate bool
}

func (f *InListFilter) Match(metadata map[string]interface{}) bool {
	fieldValue, exists := metadata[f.Field]
	if !exists {
		return f.Negate
	}
	found := false
	for _, v := range f.Values {
		if equals(fieldValue, v) {
			found = true
			break
		}
	}
	if f.Negate {
		return !found
	}
	return found
}

// ExistsFilter matches whether a field is present (or, negated, absent).
type ExistsFilter struct {
	Field  string
	Exists bool
}

func (f *ExistsFilter) Match(metadata map[string]interface{}) bool {
	_, exists := metadata[f.Field]
	if f.Exists {
		return exists
	}
	return !exists
}

// CompositeFilter combines sub-filters with OpAnd/OpOr/OpNot.
type CompositeFilter struct {
	Operator Operator
	Filters  []Filter
}

func (f *CompositeFilter) Match(metadata map[string]interface{}) bool {
	switch f.Operator {
	case OpAnd:
		for _, sub := range f.Filters {
			if !sub.Match(metadata) {
				return false
			}
		}
		return true
	case OpOr:
		for _, sub := range f.Filters {
			if sub.Match(metadata) {
				return true
			}
		}
		return false
	case OpNot:
		if len(f.Filters) == 0 {
			return true
		}
		return !f.Filters[0].Match(metadata)
	default:
		return false
	}
}

func equals(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	default:
		return toFloat64(a) == toFloat64(b)
	}
}

func compare(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	an, bn := toFloat64(a), toFloat64(b)
	switch {
	case an < bn:
		return -1
	case an > bn:
		return 1
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return 0
	}
}

// Eq, Ne, Gt, Lt, Gte, Lte build single-field comparison filters.
func Eq(field string, value interface{}) Filter {
	return &ComparisonFilter{Field: field, Operator: OpEquals, Value: value}
}
func Ne(field string, value interface{}) Filter {
	return &ComparisonFilter{Field: field, Operator: OpNotEquals, Value: value}
}
func Gt(field string, value interface{}) Filter {
	return &ComparisonFilter{Field: field, Operator: OpGreaterThan, Value: value}
}
func Lt(field string, value interface{}) Filter {
	return &ComparisonFilter{Field: field, Operator: OpLessThan, Value: value}
}
func Gte(field string, value interface{}) Filter {
	return &ComparisonFilter{Field: field, Operator: OpGreaterOrEq, Value: value}
}
func Lte(field string, value interface{}) Filter {
	return &ComparisonFilter{Field: field, Operator: OpLessOrEq, Value: value}
}

// Range builds a field-within-[min,max] filter.
func Range(field string, min, max interface{}) Filter {
	return &RangeFilter{Field: field, Min: min, Max: max}
}

// In and NotIn build membership filters.
func In(field string, values ...interface{}) Filter {
	return &InListFilter{Field: field, Values: values}
}
func NotIn(field string, values ...interface{}) Filter {
	return &InListFilter{Field: field, Values: values, Negate: true}
}

// Exists and NotExists build field-presence filters.
func Exists(field string) Filter    { return &ExistsFilter{Field: field, Exists: true} }
func NotExists(field string) Filter { return &ExistsFilter{Field: field, Exists: false} }

// And, Or, Not build composite filters.
func And(filters ...Filter) Filter { return &CompositeFilter{Operator: OpAnd, Filters: filters} }
func Or(filters ...Filter) Filter  { return &CompositeFilter{Operator: OpOr, Filters: filters} }
func Not(filter Filter) Filter     { return &CompositeFilter{Operator: OpNot, Filters: []Filter{filter}} }
