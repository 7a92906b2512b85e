package ir

// Value is a sealed interface representing a field value.
// Only Scalar, List, and *Record implement it.
//
// A nil Value means "absent". Producers may store absent values in a
// Record; the container never drops them on its own.
type Value interface {
	fieldValue() // Sealed - only these types implement it
}

// Scalar represents a single string value (a control field body, a
// subfield, an indicator).
type Scalar string

func (Scalar) fieldValue() {}

// List represents an ordered list of values.
// Lists hold scalars for repeated subfields and records for repeated
// fields after forward conversion.
type List []Value

func (List) fieldValue() {}

func (*Record) fieldValue() {}

// NewList creates a List from values.
func NewList(vals ...Value) List {
	return List(vals)
}

// Strings creates a List of scalars.
// Example: Strings("a", "b") == List{Scalar("a"), Scalar("b")}
func Strings(ss ...string) List {
	l := make(List, len(ss))
	for i, s := range ss {
		l[i] = Scalar(s)
	}
	return l
}

// IsEmpty reports whether v is absent or an empty container.
// An empty Scalar is content, not absence.
func IsEmpty(v Value) bool {
	switch val := v.(type) {
	case nil:
		return true
	case List:
		return len(val) == 0
	case *Record:
		return val == nil || val.Len() == 0
	default:
		return false
	}
}

// ForceList normalizes v into list form.
// nil stays nil, a List is returned as is, anything else becomes a
// one-element List.
func ForceList(v Value) List {
	switch val := v.(type) {
	case nil:
		return nil
	case List:
		return val
	default:
		return List{val}
	}
}

// Collapse returns nil for no values, the value itself for one value,
// and a List for more. Rules use it to keep one-occurrence subfields
// singular while repeated subfields stay individually addressable.
func Collapse(vals []Value) Value {
	switch len(vals) {
	case 0:
		return nil
	case 1:
		return vals[0]
	default:
		out := make(List, len(vals))
		copy(out, vals)
		return out
	}
}

// AsString returns the string of a Scalar.
// For any other value it returns ("", false).
func AsString(v Value) (string, bool) {
	s, ok := v.(Scalar)
	return string(s), ok
}

// StringsOf returns the strings of all scalars in v, in order.
// Non-scalar elements are skipped.
func StringsOf(v Value) []string {
	var out []string
	for _, elem := range ForceList(v) {
		if s, ok := elem.(Scalar); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch val := v.(type) {
	case List:
		if val == nil {
			return List(nil)
		}
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case *Record:
		return val.Clone()
	default:
		return v
	}
}

// Equal reports whether a and b are deeply equal.
// Record comparison is order-sensitive and occurrence-sensitive.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Scalar:
		bv, ok := b.(Scalar)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Record:
		bv, ok := b.(*Record)
		return ok && av.Equal(bv)
	default:
		return false
	}
}
