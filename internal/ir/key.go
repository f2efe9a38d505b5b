package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// PathElement is one (kind, identifier) step of a Key.
// At most one of ID and Name is set. An element with neither is incomplete
// and only appears on keys sent for insertion before the store assigns an id.
type PathElement struct {
	Kind string
	ID   int64
	Name string
}

// Complete reports whether the element carries an id or a name.
func (e PathElement) Complete() bool {
	return e.ID != 0 || e.Name != ""
}

// Key is an entity's ancestry path. The last element names the entity itself.
type Key []PathElement

func (Key) value() {}

// NewKey builds a single-element key. idOrName may be an integer type or a string.
func NewKey(kind string, idOrName any) (Key, error) {
	elem := PathElement{Kind: kind}
	switch v := idOrName.(type) {
	case nil:
	case int:
		elem.ID = int64(v)
	case int64:
		elem.ID = v
	case Int:
		elem.ID = int64(v)
	case string:
		elem.Name = v
	case String:
		elem.Name = string(v)
	default:
		return nil, fmt.Errorf("key identifier must be integer or string, got %T", idOrName)
	}
	return Key{elem}, nil
}

// Kind returns the kind of the entity the key identifies.
func (k Key) Kind() string {
	if len(k) == 0 {
		return ""
	}
	return k[len(k)-1].Kind
}

// Last returns the key's final path element.
func (k Key) Last() PathElement {
	if len(k) == 0 {
		return PathElement{}
	}
	return k[len(k)-1]
}

// Complete reports whether every element has an id or name.
func (k Key) Complete() bool {
	if len(k) == 0 {
		return false
	}
	for _, e := range k {
		if !e.Complete() {
			return false
		}
	}
	return true
}

// Equal reports whether two keys name the same entity.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the key as a GQL KEY literal, e.g. KEY(users, 'alice').
func (k Key) String() string {
	var b strings.Builder
	b.WriteString("KEY(")
	for i, e := range k {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.Kind)
		switch {
		case e.Name != "":
			b.WriteString(", '")
			b.WriteString(strings.ReplaceAll(e.Name, "'", "''"))
			b.WriteString("'")
		case e.ID != 0:
			b.WriteString(", ")
			b.WriteString(strconv.FormatInt(e.ID, 10))
		}
	}
	b.WriteString(")")
	return b.String()
}

// Native returns the key as a list of {"kind", "id"|"name"} maps.
// Ids are rendered as decimal strings, the way the wire format carries them.
func (k Key) Native() []any {
	out := make([]any, len(k))
	for i, e := range k {
		m := map[string]any{"kind": e.Kind}
		switch {
		case e.Name != "":
			m["name"] = e.Name
		case e.ID != 0:
			m["id"] = strconv.FormatInt(e.ID, 10)
		}
		out[i] = m
	}
	return out
}

// compareKeys orders keys element by element: kind, then ids before names.
func compareKeys(a, b Key) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ea, eb := a[i], b[i]
		if c := strings.Compare(ea.Kind, eb.Kind); c != 0 {
			return c
		}
		aNamed, bNamed := ea.Name != "", eb.Name != ""
		switch {
		case !aNamed && bNamed:
			return -1
		case aNamed && !bNamed:
			return 1
		case aNamed:
			if c := strings.Compare(ea.Name, eb.Name); c != 0 {
				return c
			}
		default:
			if ea.ID != eb.ID {
				if ea.ID < eb.ID {
					return -1
				}
				return 1
			}
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
