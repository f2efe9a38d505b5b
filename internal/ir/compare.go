package ir

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrIncomparable is returned when two values have no defined ordering,
// including Int against Double.
var ErrIncomparable = errors.New("incomparable values")

// Equal reports strict equality. Values of different types are never equal,
// so Int(2) and Double(2.0) are not equal. Null equals only Null.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	if TypeOf(a) != TypeOf(b) {
		return false
	}
	switch av := a.(type) {
	case Bytes:
		return bytes.Equal(av, b.(Bytes))
	case Key:
		return av.Equal(b.(Key))
	case Timestamp:
		return av.Equal(b.(Timestamp).Time)
	case Array, Entity:
		return Canonical(a) == Canonical(b)
	}
	c, err := Compare(a, b)
	return err == nil && c == 0
}

// Compare orders two values of the same type. It returns ErrIncomparable
// (wrapped) for values of different types. Arrays and entities order by their
// canonical string form.
func Compare(a, b Value) (int, error) {
	if IsNull(a) && IsNull(b) {
		return 0, nil
	}
	ta, tb := TypeOf(a), TypeOf(b)
	if ta != tb {
		return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, ta, tb)
	}

	switch av := a.(type) {
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0, nil
		case !bool(av):
			return -1, nil
		}
		return 1, nil
	case Int:
		return cmpOrdered(av, b.(Int)), nil
	case Double:
		bv := b.(Double)
		if math.IsNaN(float64(av)) || math.IsNaN(float64(bv)) {
			return 0, fmt.Errorf("%w: NaN", ErrIncomparable)
		}
		return cmpOrdered(av, bv), nil
	case String:
		return strings.Compare(string(av), string(b.(String))), nil
	case Timestamp:
		return av.Compare(b.(Timestamp).Time), nil
	case Bytes:
		return bytes.Compare(av, b.(Bytes)), nil
	case GeoPoint:
		bv := b.(GeoPoint)
		if c := cmpOrdered(av.Lat, bv.Lat); c != 0 {
			return c, nil
		}
		return cmpOrdered(av.Lng, bv.Lng), nil
	case Key:
		return compareKeys(av, b.(Key)), nil
	case Array, Entity:
		return strings.Compare(Canonical(a), Canonical(b)), nil
	}
	return 0, fmt.Errorf("%w: %T", ErrIncomparable, a)
}

func cmpOrdered[T ~int64 | ~float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
