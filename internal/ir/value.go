package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// Value is a sealed interface over the property value types the store can hold.
// Only Null, Bool, Int, Double, String, Timestamp, Bytes, GeoPoint, Key, Array
// and Entity implement it.
//
// Int and Double are distinct types. They never compare equal to each other,
// even when they hold the same number.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an absent or explicit null property value.
type Null struct{}

func (Null) value() {}

// Bool represents a boolean property value.
type Bool bool

func (Bool) value() {}

// Int represents a 64-bit integer property value.
type Int int64

func (Int) value() {}

// Double represents an IEEE-754 double property value.
type Double float64

func (Double) value() {}

// String represents a UTF-8 string property value.
type String string

func (String) value() {}

// Timestamp represents a point in time with microsecond precision.
type Timestamp struct {
	time.Time
}

func (Timestamp) value() {}

// Bytes represents a binary property value.
type Bytes []byte

func (Bytes) value() {}

// GeoPoint represents a latitude/longitude pair.
type GeoPoint struct {
	Lat float64
	Lng float64
}

func (GeoPoint) value() {}

// Array represents an ordered list of property values.
type Array []Value

func (Array) value() {}

// Entity represents an embedded entity or map value.
// Use SortedKeys() for deterministic iteration.
type Entity map[string]Value

func (Entity) value() {}

// Type names the variant of a Value. Field descriptors carry a Type.
type Type string

const (
	TypeUnknown   Type = "unknown"
	TypeNull      Type = "null"
	TypeBool      Type = "boolean"
	TypeInt       Type = "integer"
	TypeDouble    Type = "double"
	TypeString    Type = "string"
	TypeTimestamp Type = "timestamp"
	TypeBytes     Type = "bytes"
	TypeGeoPoint  Type = "geo_point"
	TypeKey       Type = "key"
	TypeArray     Type = "array"
	TypeEntity    Type = "entity"
)

// TypeOf returns the Type of v. A nil interface reports TypeNull.
func TypeOf(v Value) Type {
	switch v.(type) {
	case nil, Null:
		return TypeNull
	case Bool:
		return TypeBool
	case Int:
		return TypeInt
	case Double:
		return TypeDouble
	case String:
		return TypeString
	case Timestamp:
		return TypeTimestamp
	case Bytes:
		return TypeBytes
	case GeoPoint:
		return TypeGeoPoint
	case Key:
		return TypeKey
	case Array:
		return TypeArray
	case Entity:
		return TypeEntity
	default:
		return TypeUnknown
	}
}

// IsNull reports whether v is Null or a nil interface.
func IsNull(v Value) bool {
	switch v.(type) {
	case nil, Null:
		return true
	}
	return false
}

// NewTimestamp creates a Timestamp truncated to microseconds, the store's precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(time.Microsecond)}
}

// SortedKeys returns keys in UTF-16 code unit order, matching canonical output.
func (e Entity) SortedKeys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// compareUTF16 compares strings by UTF-16 code units. Go's native string
// comparison works on UTF-8 bytes and orders supplementary characters differently.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// FromNative converts a plain Go value into a Value.
// Accepts the shapes produced by encoding/json, yaml.v3 and database/sql.
func FromNative(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case float32:
		return Double(val), nil
	case float64:
		return Double(val), nil
	case string:
		return String(val), nil
	case []byte:
		return Bytes(val), nil
	case time.Time:
		return NewTimestamp(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ev, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		ent := make(Entity, len(val))
		for k, elem := range val {
			ev, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("entity[%q]: %w", k, err)
			}
			ent[k] = ev
		}
		return ent, nil
	default:
		return nil, fmt.Errorf("unsupported native type: %T", v)
	}
}

// Native converts a Value into plain Go data suitable for encoding/json.
// Timestamps become RFC 3339 strings with microseconds, keys become path lists
// and geo points become latitude/longitude maps.
func Native(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Double:
		return float64(val)
	case String:
		return string(val)
	case Timestamp:
		return FormatTimestamp(val.Time)
	case Bytes:
		return []byte(val)
	case GeoPoint:
		return map[string]any{"latitude": val.Lat, "longitude": val.Lng}
	case Key:
		return val.Native()
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Native(elem)
		}
		return out
	case Entity:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Native(elem)
		}
		return out
	default:
		return nil
	}
}

// FormatTimestamp renders t in UTC with exactly six fractional digits.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z07:00")
}

// Format renders v the way it would appear in a GQL literal position.
// Used for diagnostics and for the string form of compound values.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "NULL"
	case Bool:
		if val {
			return "true"
		}
		return "false"
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Double:
		return formatDouble(float64(val))
	case String:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'"
	case Timestamp:
		return "DATETIME('" + FormatTimestamp(val.Time) + "')"
	case Bytes:
		return "BLOB('" + strings.ReplaceAll(string(val), "'", "''") + "')"
	case GeoPoint:
		return fmt.Sprintf("GEOPT(%s, %s)", formatDouble(val.Lat), formatDouble(val.Lng))
	case Key:
		return val.String()
	default:
		return Canonical(v)
	}
}

// formatDouble always includes a decimal point or exponent so a Double
// never renders identically to an Int.
func formatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEn") { // "n" covers NaN and Inf
		return s
	}
	return s + ".0"
}
