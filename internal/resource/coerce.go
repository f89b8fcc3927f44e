package resource

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// coerce converts a JSON-decoded payload value into the field's storage type.
func coerce(f Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case String:
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		case json.Number:
			s = t.String()
		default:
			return nil, castError(f, v)
		}
		if f.Trim {
			s = strings.TrimSpace(s)
		}
		if f.Lowercase {
			s = strings.ToLower(s)
		}
		return s, nil
	case Number:
		switch t := v.(type) {
		case float64:
			if t != math.Trunc(t) || math.IsInf(t, 0) {
				return nil, castError(f, v)
			}
			return int64(t), nil
		case int64:
			return t, nil
		case int:
			return int64(t), nil
		case json.Number:
			n, err := t.Int64()
			if err != nil {
				return nil, castError(f, v)
			}
			return n, nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err != nil {
				return nil, castError(f, v)
			}
			return n, nil
		}
		return nil, castError(f, v)
	case Boolean:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			b, err := strconv.ParseBool(t)
			if err != nil {
				return nil, castError(f, v)
			}
			return b, nil
		}
		return nil, castError(f, v)
	case Date:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			ts, err := time.Parse(time.RFC3339, t)
			if err != nil {
				return nil, castError(f, v)
			}
			return ts.UTC(), nil
		case float64:
			return time.UnixMilli(int64(t)).UTC(), nil
		}
		return nil, castError(f, v)
	case Object:
		switch v.(type) {
		case map[string]any, []any:
			return v, nil
		}
		return nil, castError(f, v)
	}
	return nil, castError(f, v)
}

func castError(f Field, v any) error {
	return fmt.Errorf("cast to %s failed for value %q at path %q", f.Type, fmt.Sprint(v), f.Name)
}
