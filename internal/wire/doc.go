// Package wire holds the JSON shapes of the document store's REST surface
// and the codec between tagged wire values and ir values.
//
// Integers travel as decimal strings, timestamps as RFC 3339 text and
// binary data as base64. Decoding rejects an untagged value.
package wire
