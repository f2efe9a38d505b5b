package ir

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Canonical produces a deterministic JSON-like text for any Value.
//
// It is the string form used wherever a compound value must act as a single
// scalar: group-by surrogates, ordering of arrays and entities, and the
// derived-table column encoding.
//
// Rules:
//  1. Entity keys sorted by UTF-16 code units
//  2. Strings NFC normalized, no HTML escaping
//  3. Doubles always carry a decimal point or exponent, so 2 and 2.0 differ
//  4. Keys render as path lists, geo points as latitude/longitude objects
//  5. Timestamps render as RFC 3339 strings with six fractional digits
//  6. Bytes render as standard base64 strings
func Canonical(v Value) string {
	var buf bytes.Buffer
	writeCanonical(&buf, v)
	return buf.String()
}

func writeCanonical(buf *bytes.Buffer, v Value) {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Double:
		buf.WriteString(formatDouble(float64(val)))
	case String:
		writeCanonicalString(buf, string(val))
	case Timestamp:
		writeCanonicalString(buf, FormatTimestamp(val.Time))
	case Bytes:
		writeCanonicalString(buf, base64.StdEncoding.EncodeToString(val))
	case GeoPoint:
		buf.WriteString(`{"latitude":`)
		buf.WriteString(formatDouble(val.Lat))
		buf.WriteString(`,"longitude":`)
		buf.WriteString(formatDouble(val.Lng))
		buf.WriteByte('}')
	case Key:
		buf.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(`{"kind":`)
			writeCanonicalString(buf, e.Kind)
			switch {
			case e.Name != "":
				buf.WriteString(`,"name":`)
				writeCanonicalString(buf, e.Name)
			case e.ID != 0:
				buf.WriteString(`,"id":`)
				writeCanonicalString(buf, strconv.FormatInt(e.ID, 10))
			}
			buf.WriteByte('}')
		}
		buf.WriteByte(']')
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, elem)
		}
		buf.WriteByte(']')
	case Entity:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			writeCanonical(buf, val[k])
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
}

// writeCanonicalString writes s as a JSON string after NFC normalization.
// HTML characters (<, >, &) are written verbatim.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(norm.NFC.String(s))
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
}
