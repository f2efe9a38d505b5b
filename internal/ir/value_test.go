package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	// Compile-time check that every variant implements Value
	var _ Value = Null{}
	var _ Value = Bool(true)
	var _ Value = Int(1)
	var _ Value = Double(1.5)
	var _ Value = String("s")
	var _ Value = Timestamp{}
	var _ Value = Bytes("b")
	var _ Value = GeoPoint{}
	var _ Value = Key{{Kind: "users", ID: 1}}
	var _ Value = Array{Int(1)}
	var _ Value = Entity{"a": Int(1)}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		v    Value
		want Type
	}{
		{nil, TypeNull},
		{Null{}, TypeNull},
		{Bool(false), TypeBool},
		{Int(2), TypeInt},
		{Double(2), TypeDouble},
		{String("x"), TypeString},
		{NewTimestamp(time.Unix(0, 0)), TypeTimestamp},
		{Bytes("x"), TypeBytes},
		{GeoPoint{Lat: 1, Lng: 2}, TypeGeoPoint},
		{Key{{Kind: "k", Name: "n"}}, TypeKey},
		{Array{}, TypeArray},
		{Entity{}, TypeEntity},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TypeOf(tt.v))
	}
}

func TestEntitySortedKeys(t *testing.T) {
	ent := Entity{
		"zebra":  String("z"),
		"apple":  String("a"),
		"banana": String("b"),
		"A":      Int(1),
	}
	assert.Equal(t, []string{"A", "apple", "banana", "zebra"}, ent.SortedKeys())
}

func TestEntitySortedKeysUTF16Order(t *testing.T) {
	// U+FF61 (halfwidth) encodes as one unit 0xFF61, U+1F600 as surrogates 0xD83D...
	// UTF-16 puts the emoji first; UTF-8 byte order would put it last.
	ent := Entity{"｡": Int(1), "\U0001F600": Int(2)}
	assert.Equal(t, []string{"\U0001F600", "｡"}, ent.SortedKeys())
}

func TestFromNative(t *testing.T) {
	ts := time.Date(2025, 1, 1, 1, 2, 3, 4567, time.UTC)

	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"int64", int64(-7), Int(-7)},
		{"float", 3.14, Double(3.14)},
		{"string", "x", String("x")},
		{"bytes", []byte("hi"), Bytes("hi")},
		{"time truncated to micros", ts, NewTimestamp(ts)},
		{"array", []any{1, "a"}, Array{Int(1), String("a")}},
		{"map", map[string]any{"a": false}, Entity{"a": Bool(false)}},
		{"value passthrough", Int(9), Int(9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromNative(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, 4000, NewTimestamp(ts).Nanosecond())

	_, err := FromNative(struct{}{})
	assert.Error(t, err)
}

func TestNative(t *testing.T) {
	ts := NewTimestamp(time.Date(2025, 1, 1, 1, 2, 3, 4000, time.UTC))
	key := Key{{Kind: "users", Name: "alice"}}

	assert.Nil(t, Native(Null{}))
	assert.Equal(t, "2025-01-01T01:02:03.000004Z", Native(ts))
	assert.Equal(t, []any{map[string]any{"kind": "users", "name": "alice"}}, Native(key))
	assert.Equal(t, map[string]any{"latitude": 1.5, "longitude": -2.0}, Native(GeoPoint{Lat: 1.5, Lng: -2}))
	assert.Equal(t, []any{int64(1), nil}, Native(Array{Int(1), Null{}}))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "NULL", Format(Null{}))
	assert.Equal(t, "2", Format(Int(2)))
	assert.Equal(t, "2.0", Format(Double(2)))
	assert.Equal(t, "'it''s'", Format(String("it's")))
	assert.Equal(t, "BLOB('hello')", Format(Bytes("hello")))
	assert.Equal(t, "KEY(users, 'alice')", Format(Key{{Kind: "users", Name: "alice"}}))
	assert.Equal(t, "KEY(users, 5)", Format(Key{{Kind: "users", ID: 5}}))
}

func TestNewKey(t *testing.T) {
	k, err := NewKey("users", int64(123))
	require.NoError(t, err)
	assert.Equal(t, Key{{Kind: "users", ID: 123}}, k)
	assert.Equal(t, "users", k.Kind())
	assert.True(t, k.Complete())

	k, err = NewKey("users", "alice_id")
	require.NoError(t, err)
	assert.Equal(t, "alice_id", k.Last().Name)

	k, err = NewKey("users", nil)
	require.NoError(t, err)
	assert.False(t, k.Complete())

	_, err = NewKey("users", 1.5)
	assert.Error(t, err)
}

func TestKeyNativeIDIsString(t *testing.T) {
	k := Key{{Kind: "users", ID: 123}}
	assert.Equal(t, []any{map[string]any{"kind": "users", "id": "123"}}, k.Native())
}
