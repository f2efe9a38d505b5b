package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"github.com/roach88/gqlbridge/internal/ir"
)

// decodeFunc converts the payload of one value tag.
type decodeFunc func(d *Decoder, raw json.RawMessage) (ir.Value, error)

// Decoder converts tagged wire values into ir values.
//
// The tag table is built once by NewDecoder and never modified afterwards,
// so a Decoder is safe for concurrent use.
type Decoder struct {
	table map[string]decodeFunc
}

// NewDecoder builds the tag table.
func NewDecoder() *Decoder {
	return &Decoder{table: map[string]decodeFunc{
		"nullValue":      decodeNull,
		"booleanValue":   decodeBool,
		"integerValue":   decodeInt,
		"doubleValue":    decodeDouble,
		"stringValue":    decodeString,
		"timestampValue": decodeTimestamp,
		"blobValue":      decodeBlob,
		"geoPointValue":  decodeGeoPoint,
		"keyValue":       decodeKey,
		"arrayValue":     decodeArray,
		"entityValue":    decodeEntity,
	}}
}

// Tags returns the value tags the decoder understands, sorted.
func (d *Decoder) Tags() []string {
	tags := make([]string, 0, len(d.table))
	for tag := range d.table {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Value decodes one tagged value. A value with no known tag decodes to Null.
func (d *Decoder) Value(v Value) (ir.Value, error) {
	for tag, raw := range v {
		fn, ok := d.table[tag]
		if !ok {
			continue
		}
		out, err := fn(d, raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", tag, err)
		}
		return out, nil
	}
	if len(v) > 0 {
		slog.Debug("unknown value tag decoded as null", "tags", valueTags(v))
	}
	return ir.Null{}, nil
}

// Properties decodes an entity's property map.
func (d *Decoder) Properties(props map[string]Value) (ir.Entity, error) {
	out := make(ir.Entity, len(props))
	for name, v := range props {
		val, err := d.Value(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		out[name] = val
	}
	return out, nil
}

func valueTags(v Value) []string {
	tags := make([]string, 0, len(v))
	for tag := range v {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func decodeNull(_ *Decoder, _ json.RawMessage) (ir.Value, error) {
	return ir.Null{}, nil
}

func decodeBool(_ *Decoder, raw json.RawMessage) (ir.Value, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	return ir.Bool(b), nil
}

// decodeInt accepts the decimal-string encoding and bare JSON numbers.
func decodeInt(_ *Decoder, raw json.RawMessage) (ir.Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %s", raw)
	}
	return ir.Int(n), nil
}

// decodeDouble accepts JSON numbers and the strings NaN, Infinity and -Infinity.
func decodeDouble(_ *Decoder, raw json.RawMessage) (ir.Value, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return ir.Double(f), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("invalid double %s", raw)
	}
	switch s {
	case "NaN":
		return ir.Double(math.NaN()), nil
	case "Infinity":
		return ir.Double(math.Inf(1)), nil
	case "-Infinity":
		return ir.Double(math.Inf(-1)), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid double %s", raw)
	}
	return ir.Double(f), nil
}

func decodeString(_ *Decoder, raw json.RawMessage) (ir.Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return ir.String(s), nil
}

func decodeTimestamp(_ *Decoder, raw json.RawMessage) (ir.Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return ir.ParseTimestamp(s)
}

func decodeBlob(_ *Decoder, raw json.RawMessage) (ir.Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err = base64.URLEncoding.DecodeString(s); err != nil {
			return nil, fmt.Errorf("invalid base64 blob: %w", err)
		}
	}
	return ir.Bytes(b), nil
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func decodeGeoPoint(_ *Decoder, raw json.RawMessage) (ir.Value, error) {
	var ll latLng
	if err := json.Unmarshal(raw, &ll); err != nil {
		return nil, err
	}
	return ir.GeoPoint{Lat: ll.Latitude, Lng: ll.Longitude}, nil
}

func decodeKey(_ *Decoder, raw json.RawMessage) (ir.Value, error) {
	var k Key
	if err := json.Unmarshal(raw, &k); err != nil {
		return nil, err
	}
	return KeyToIR(&k)
}

type arrayPayload struct {
	Values []Value `json:"values"`
}

func decodeArray(d *Decoder, raw json.RawMessage) (ir.Value, error) {
	var p arrayPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	arr := make(ir.Array, 0, len(p.Values))
	for i, v := range p.Values {
		val, err := d.Value(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		arr = append(arr, val)
	}
	return arr, nil
}

func decodeEntity(d *Decoder, raw json.RawMessage) (ir.Value, error) {
	var e Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return d.Properties(e.Properties)
}

// KeyToIR converts a wire key. Path element ids are decimal strings.
func KeyToIR(k *Key) (ir.Key, error) {
	if k == nil {
		return nil, nil
	}
	out := make(ir.Key, len(k.Path))
	for i, e := range k.Path {
		elem := ir.PathElement{Kind: e.Kind, Name: e.Name}
		if e.ID != "" {
			id, err := strconv.ParseInt(e.ID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid key id %q", e.ID)
			}
			elem.ID = id
		}
		out[i] = elem
	}
	return out, nil
}

// KeyFromIR converts an ir key to its wire form within partition.
func KeyFromIR(k ir.Key, partition *PartitionID) *Key {
	out := &Key{PartitionID: partition, Path: make([]PathElement, len(k))}
	for i, e := range k {
		pe := PathElement{Kind: e.Kind, Name: e.Name}
		if e.ID != 0 {
			pe.ID = strconv.FormatInt(e.ID, 10)
		}
		out.Path[i] = pe
	}
	return out
}

// EncodeValue converts an ir value into its tagged wire form.
func EncodeValue(v ir.Value) (Value, error) {
	var tag string
	var payload any
	switch val := v.(type) {
	case nil, ir.Null:
		tag, payload = "nullValue", "NULL_VALUE"
	case ir.Bool:
		tag, payload = "booleanValue", bool(val)
	case ir.Int:
		tag, payload = "integerValue", strconv.FormatInt(int64(val), 10)
	case ir.Double:
		tag, payload = "doubleValue", encodeDouble(float64(val))
	case ir.String:
		tag, payload = "stringValue", string(val)
	case ir.Timestamp:
		tag, payload = "timestampValue", ir.FormatTimestamp(val.Time)
	case ir.Bytes:
		tag, payload = "blobValue", base64.StdEncoding.EncodeToString(val)
	case ir.GeoPoint:
		tag, payload = "geoPointValue", latLng{Latitude: val.Lat, Longitude: val.Lng}
	case ir.Key:
		tag, payload = "keyValue", KeyFromIR(val, nil)
	case ir.Array:
		values := make([]Value, len(val))
		for i, elem := range val {
			ev, err := EncodeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			values[i] = ev
		}
		tag, payload = "arrayValue", arrayPayload{Values: values}
	case ir.Entity:
		props, err := EncodeProperties(val)
		if err != nil {
			return nil, err
		}
		tag, payload = "entityValue", Entity{Properties: props}
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", tag, err)
	}
	return Value{tag: raw}, nil
}

// EncodeProperties converts an ir property map into wire values.
func EncodeProperties(props ir.Entity) (map[string]Value, error) {
	out := make(map[string]Value, len(props))
	for _, name := range props.SortedKeys() {
		v, err := EncodeValue(props[name])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func encodeDouble(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}
