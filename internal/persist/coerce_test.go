package persist

import (
	"reflect"
	"testing"
)

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name       string
		value      any
		schemaType string
		want       any
		wantErr    bool
	}{
		{"nil passes through", nil, "boolean", nil, false},
		{"bool already typed", true, "boolean", true, false},
		{"bool from true string", "true", "boolean", true, false},
		{"bool from yes string", "yes", "boolean", true, false},
		{"bool from 1 string", "1", "boolean", true, false},
		{"bool from other string", "off", "boolean", false, false},
		{"integer already typed", 30, "integer", 30, false},
		{"integer from float json", float64(30), "integer", float64(30), false},
		{"integer from string", "30", "integer", 30, false},
		{"integer from junk string", "thirty", "integer", nil, true},
		{"number from string", "2.5", "number", 2.5, false},
		{"number from junk", "much", "number", nil, true},
		{"string stays string", "low", "string", "low", false},
		{"string from number", 5, "string", "5", false},
		{"enum treated as string", "table", "enum", "table", false},
		{"untyped treated as string", "x", "", "x", false},
		{"array already typed", []any{"a"}, "array", []any{"a"}, false},
		{"array from json string", `["a","b"]`, "array", []any{"a", "b"}, false},
		{"array from json object string", `{"a":1}`, "array", nil, true},
		{"array from invalid json", "not json", "array", nil, true},
		{"object already typed", map[string]any{"k": "v"}, "object", map[string]any{"k": "v"}, false},
		{"object from json string", `{"k":"v"}`, "object", map[string]any{"k": "v"}, false},
		{"object from json array string", `[1]`, "object", nil, true},
		{"boolean from non-string", 5, "boolean", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceValue(tt.value, tt.schemaType)
			if (err != nil) != tt.wantErr {
				t.Fatalf("coerceValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("coerceValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
