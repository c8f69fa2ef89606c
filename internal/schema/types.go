package schema

import "math"

// kind is the JSON-level representation a primitive OCSF type maps to.
type kind int

const (
	kindString kind = iota
	kindInteger
	kindNumber
	kindBoolean
	kindAny
)

// primitives maps OCSF primitive data types to their JSON representation.
var primitives = map[string]kind{
	"String":        kindString,
	"Hostname":      kindString,
	"IP Address":    kindString,
	"MAC Address":   kindString,
	"Email Address": kindString,
	"URL String":    kindString,
	"File Hash":     kindString,
	"File Name":     kindString,
	"Process Name":  kindString,
	"Resource UID":  kindString,
	"Subnet":        kindString,
	"Username":      kindString,
	"UUID":          kindString,
	"Datetime":      kindString,
	"Integer":       kindInteger,
	"Long":          kindInteger,
	"Port":          kindInteger,
	"Timestamp":     kindInteger,
	"Float":         kindNumber,
	"Boolean":       kindBoolean,
	"JSON":          kindAny,
	"Object":        kindAny,
}

func isPrimitive(dataType string) bool {
	_, ok := primitives[dataType]
	return ok
}

// JSONType returns the JSON Schema type name for a primitive data type,
// or "" when any JSON value is acceptable.
func JSONType(dataType string) string {
	switch primitives[dataType] {
	case kindString:
		return "string"
	case kindInteger:
		return "integer"
	case kindNumber:
		return "number"
	case kindBoolean:
		return "boolean"
	}
	return ""
}

// Conforms reports whether a decoded value matches the field's declared
// element type. Shape-typed fields conform when the value is a mapping.
// Array fields are checked element by element by the caller.
func (f *Field) Conforms(v any) bool {
	if f.Shape != "" {
		_, ok := v.(map[string]any)
		return ok
	}
	k, ok := primitives[f.ElementType()]
	if !ok {
		return true
	}
	switch k {
	case kindString:
		_, ok := v.(string)
		return ok
	case kindInteger:
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == math.Trunc(n)
		}
		return false
	case kindNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case kindBoolean:
		_, ok := v.(bool)
		return ok
	}
	return true
}
