package persist

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// coerceError marks a setting value that cannot match its schema type. The
// value is reverted from the selection and reported as a warning, not a
// fatal error.
type coerceError struct {
	msg string
}

func (e *coerceError) Error() string { return e.msg }

// coerceValue converts a setting value to its schema type. Editor inputs
// arrive as strings; the staged document must carry proper JSON types.
func coerceValue(value any, schemaType string) (any, error) {
	if value == nil {
		return nil, nil
	}

	// Already the right type.
	switch schemaType {
	case "array":
		if _, ok := value.([]any); ok {
			return value, nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return value, nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return value, nil
		}
	case "number", "integer":
		switch value.(type) {
		case int, int64, float64:
			return value, nil
		}
	case "string", "enum", "":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return fmt.Sprint(value), nil
	}

	s, ok := value.(string)
	if !ok {
		return nil, &coerceError{msg: fmt.Sprintf("expected %s, got %T", schemaType, value)}
	}

	switch schemaType {
	case "array", "object":
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return nil, &coerceError{msg: fmt.Sprintf("expected JSON %s, got invalid JSON string", schemaType)}
		}
		switch schemaType {
		case "array":
			if _, ok := parsed.([]any); !ok {
				return nil, &coerceError{msg: fmt.Sprintf("expected array, but parsed JSON is %T", parsed)}
			}
		case "object":
			if _, ok := parsed.(map[string]any); !ok {
				return nil, &coerceError{msg: fmt.Sprintf("expected object, but parsed JSON is %T", parsed)}
			}
		}
		return parsed, nil
	case "boolean":
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		default:
			return false, nil
		}
	case "integer":
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, &coerceError{msg: fmt.Sprintf("expected integer, got %q", s)}
		}
		return n, nil
	case "number":
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, &coerceError{msg: fmt.Sprintf("expected number, got %q", s)}
		}
		return f, nil
	}

	return nil, &coerceError{msg: fmt.Sprintf("expected %s, got %T", schemaType, value)}
}
