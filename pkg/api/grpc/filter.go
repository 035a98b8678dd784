package grpc

import (
	"fmt"

	"github.com/vamanadb/vamana/pkg/namespace"
	"google.golang.org/protobuf/types/known/structpb"
)

// structToFilter decodes a structpb-encoded filter tree into a
// namespace.Filter. The wire schema is {"op": <operator>, "field":
// <string>, "value"|"values"|"min"|"max": ..., "filters": [...]} —
// the same operator vocabulary as namespace.Operator, chosen so a
// client can build a filter tree without any generated types.
func structToFilter(s *structpb.Struct) (namespace.Filter, error) {
	if s == nil {
		return nil, nil
	}
	op, ok := s.Fields["op"]
	if !ok {
		return nil, fmt.Errorf("filter missing required field \"op\"")
	}
	operator := op.GetStringValue()

	switch namespace.Operator(operator) {
	case namespace.OpEquals, namespace.OpNotEquals, namespace.OpGreaterThan, namespace.OpLessThan, namespace.OpGreaterOrEq, namespace.OpLessOrEq:
		field := s.Fields["field"].GetStringValue()
		value := fromStructValue(s.Fields["value"])
		switch namespace.Operator(operator) {
		case namespace.OpEquals:
			return namespace.Eq(field, value), nil
		case namespace.OpNotEquals:
			return namespace.Ne(field, value), nil
		case namespace.OpGreaterThan:
			return namespace.Gt(field, value), nil
		case namespace.OpLessThan:
			return namespace.Lt(field, value), nil
		case namespace.OpGreaterOrEq:
			return namespace.Gte(field, value), nil
		default:
			return namespace.Lte(field, value), nil
		}

	case namespace.OpIn, namespace.OpNotIn:
		field := s.Fields["field"].GetStringValue()
		list := s.Fields["values"].GetListValue()
		values := make([]interface{}, 0)
		if list != nil {
			for _, v := range list.Values {
				values = append(values, fromStructValue(v))
			}
		}
		if namespace.Operator(operator) == namespace.OpIn {
			return namespace.In(field, values...), nil
		}
		return namespace.NotIn(field, values...), nil

	case namespace.OpExists:
		field := s.Fields["field"].GetStringValue()
		return namespace.Exists(field), nil

	case "not_exists":
		field := s.Fields["field"].GetStringValue()
		return namespace.NotExists(field), nil

	case "range":
		field := s.Fields["field"].GetStringValue()
		var min, max interface{}
		if v, ok := s.Fields["min"]; ok {
			min = fromStructValue(v)
		}
		if v, ok := s.Fields["max"]; ok {
			max = fromStructValue(v)
		}
		return namespace.Range(field, min, max), nil

	case namespace.OpAnd, namespace.OpOr:
		sub, err := structListToFilters(s.Fields["filters"].GetListValue())
		if err != nil {
			return nil, err
		}
		if namespace.Operator(operator) == namespace.OpAnd {
			return namespace.And(sub...), nil
		}
		return namespace.Or(sub...), nil

	case namespace.OpNot:
		sub, err := structListToFilters(s.Fields["filters"].GetListValue())
		if err != nil {
			return nil, err
		}
		if len(sub) != 1 {
			return nil, fmt.Errorf("not filter requires exactly one sub-filter, got %d", len(sub))
		}
		return namespace.Not(sub[0]), nil

	default:
		return nil, fmt.Errorf("unknown filter operator %q", operator)
	}
}

func structListToFilters(list *structpb.ListValue) ([]namespace.Filter, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]namespace.Filter, 0, len(list.Values))
	for _, v := range list.Values {
		f, err := structToFilter(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func fromStructValue(v *structpb.Value) interface{} {
	if v == nil {
		return nil
	}
	switch v.Kind.(type) {
	case *structpb.Value_NumberValue:
		return v.GetNumberValue()
	case *structpb.Value_StringValue:
		return v.GetStringValue()
	case *structpb.Value_BoolValue:
		return v.GetBoolValue()
	default:
		return nil
	}
}
