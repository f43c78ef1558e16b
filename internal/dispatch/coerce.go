package dispatch

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/mcpify/mcpify/internal/spec"
)

// coerceValue converts a raw argument (as decoded from JSON) to the
// declared parameter type. Conversions are explicit and narrow; anything
// outside them is a type mismatch, never a silent stringification.
func coerceValue(typ spec.ParamType, raw any) (any, error) {
	switch typ {
	case spec.TypeString:
		return coerceString(raw)
	case spec.TypeInteger:
		return coerceInteger(raw)
	case spec.TypeNumber:
		return coerceNumber(raw)
	case spec.TypeBoolean:
		return coerceBoolean(raw)
	case spec.TypeArray:
		return coerceArray(raw)
	}
	return nil, fmt.Errorf("unsupported parameter type %q", typ)
}

func coerceString(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case float64:
		return formatFloat(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	case json.Number:
		return v.String(), nil
	}
	return nil, fmt.Errorf("expected string, got %T", raw)
}

func coerceInteger(raw any) (any, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("expected integer, got fractional number %v", v)
		}
		return int64(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		return nil, fmt.Errorf("expected integer, got %q", v.String())
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i, nil
		}
		return nil, fmt.Errorf("expected integer, got %q", v)
	}
	return nil, fmt.Errorf("expected integer, got %T", raw)
}

func coerceNumber(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("expected number, got %q", v.String())
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("expected number, got %q", v)
	}
	return nil, fmt.Errorf("expected number, got %T", raw)
}

func coerceBoolean(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("expected boolean, got %q", v)
	}
	return nil, fmt.Errorf("expected boolean, got %T", raw)
}

func coerceArray(raw any) (any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected array, got %T", raw)
}

// formatValue renders a coerced value as a single argv token or query
// value. Arrays render as JSON so structure survives the flattening.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return formatFloat(t)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		if data, err := json.Marshal(t); err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", v)
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
