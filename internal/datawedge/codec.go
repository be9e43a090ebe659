package datawedge

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	wireAction   = "action"
	wireCategory = "category"
	wireExtras   = "extras"
)

// EncodeIntent marshals an intent into a protobuf Struct frame payload.
func EncodeIntent(in Intent) ([]byte, error) {
	if in.Action == "" {
		return nil, errors.New("intent action is empty")
	}
	extras, err := bundleToStruct(in.Extras)
	if err != nil {
		return nil, fmt.Errorf("encode extras: %w", err)
	}
	wire := &structpb.Struct{Fields: map[string]*structpb.Value{
		wireAction: structpb.NewStringValue(in.Action),
		wireExtras: structpb.NewStructValue(extras),
	}}
	if in.Category != "" {
		wire.Fields[wireCategory] = structpb.NewStringValue(in.Category)
	}

	payload, err := proto.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal intent: %w", err)
	}
	return payload, nil
}

// DecodeIntent parses a frame payload produced by EncodeIntent. Whole numbers
// decode as int64, lists of strings as []string and lists of structs as []Bundle.
func DecodeIntent(payload []byte) (Intent, error) {
	var wire structpb.Struct
	if err := proto.Unmarshal(payload, &wire); err != nil {
		return Intent{}, fmt.Errorf("unmarshal intent: %w", err)
	}
	action := wire.GetFields()[wireAction].GetStringValue()
	if action == "" {
		return Intent{}, errors.New("intent action is missing")
	}
	out := Intent{
		Action:   action,
		Category: wire.GetFields()[wireCategory].GetStringValue(),
		Extras:   Bundle{},
	}
	if extras := wire.GetFields()[wireExtras].GetStructValue(); extras != nil {
		out.Extras = structToBundle(extras)
	}
	return out, nil
}

func bundleToStruct(b Bundle) (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(b))}
	for k, v := range b {
		pv, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out.Fields[k] = pv
	}
	return out, nil
}

func toValue(v any) (*structpb.Value, error) {
	switch typed := v.(type) {
	case nil:
		return structpb.NewNullValue(), nil
	case string:
		return structpb.NewStringValue(typed), nil
	case bool:
		return structpb.NewBoolValue(typed), nil
	case int:
		return structpb.NewNumberValue(float64(typed)), nil
	case int64:
		return structpb.NewNumberValue(float64(typed)), nil
	case float64:
		return structpb.NewNumberValue(typed), nil
	case []string:
		items := make([]*structpb.Value, len(typed))
		for i, s := range typed {
			items[i] = structpb.NewStringValue(s)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: items}), nil
	case Bundle:
		s, err := bundleToStruct(typed)
		if err != nil {
			return nil, err
		}
		return structpb.NewStructValue(s), nil
	case map[string]any:
		return toValue(Bundle(typed))
	case []Bundle:
		items := make([]*structpb.Value, len(typed))
		for i, item := range typed {
			s, err := bundleToStruct(item)
			if err != nil {
				return nil, err
			}
			items[i] = structpb.NewStructValue(s)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: items}), nil
	default:
		return nil, fmt.Errorf("unsupported extra type %T", v)
	}
}

func structToBundle(s *structpb.Struct) Bundle {
	out := make(Bundle, len(s.GetFields()))
	for k, v := range s.GetFields() {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *structpb.Value) any {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_BoolValue:
		return kind.BoolValue
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
		return n
	case *structpb.Value_StructValue:
		return structToBundle(kind.StructValue)
	case *structpb.Value_ListValue:
		return fromList(kind.ListValue)
	default:
		return nil
	}
}

func fromList(l *structpb.ListValue) any {
	values := l.GetValues()
	if len(values) == 0 {
		return []string{}
	}
	if _, ok := values[0].GetKind().(*structpb.Value_StructValue); ok {
		out := make([]Bundle, 0, len(values))
		for _, v := range values {
			out = append(out, structToBundle(v.GetStructValue()))
		}
		return out
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStringValue())
	}
	return out
}
