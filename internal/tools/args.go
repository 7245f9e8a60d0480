package tools

// Args is the decoded argument map of a tool call. JSON numbers arrive as
// float64; the getters coerce where that is safe.
type Args map[string]interface{}

// String returns a string argument, or "" if absent or mistyped.
func (a Args) String(key string) string {
	v, _ := a[key].(string)
	return v
}

// StringOr returns a string argument with a fallback.
func (a Args) StringOr(key, fallback string) string {
	if v, ok := a[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Float returns a numeric argument as float64.
func (a Args) Float(key string) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Int returns a numeric argument truncated to int.
func (a Args) Int(key string) int {
	return int(a.Float(key))
}

// IntOr returns a numeric argument with a fallback for absence.
func (a Args) IntOr(key string, fallback int) int {
	if _, ok := a[key]; !ok {
		return fallback
	}
	return a.Int(key)
}

// Has reports whether the argument is present at all.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Objects returns an array argument as a slice of maps, dropping entries
// of any other shape.
func (a Args) Objects(key string) []map[string]interface{} {
	raw, ok := a[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// matchesType checks a raw value against a JSON Schema primitive type name.
func matchesType(value interface{}, schemaType string) bool {
	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	}
	return true
}
