package aisdk

import "encoding/json"

// DecodeArguments parses a JSON object of tool arguments. Anything that is not
// a JSON object yields an empty map.
func DecodeArguments(raw string) map[string]any {
	args := map[string]any{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

// EncodeArguments renders tool arguments as JSON text, "{}" when empty.
func EncodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}
