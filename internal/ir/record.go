package ir

import "slices"

// Reserved keys.
const (
	// OrderKey holds the occurrence order of a grouped record.
	// Its value is a List of scalars naming keys, one per occurrence.
	OrderKey = "__order__"

	// Ind1Key and Ind2Key are structural modifiers returned by reverse
	// rules. They are spliced into the raw field key, never kept as content.
	Ind1Key = "$ind1"
	Ind2Key = "$ind2"

	// BlankModifier stands in for a missing or blank indicator.
	BlankModifier = "_"
)

// Entry is one (key, value) occurrence.
type Entry struct {
	Key   string
	Value Value
}

// E is a shorthand for Entry.
// Example: NewRecord(E("a", Scalar("Title")), E("b", Scalar("Subtitle")))
func E(key string, value Value) Entry {
	return Entry{Key: key, Value: value}
}

// KeyGroup is one distinct key with every value bound to it, in order.
type KeyGroup struct {
	Key    string
	Values []Value
}

// Record is an ordered multi-valued record.
//
// Keys may repeat. Every occurrence is kept with its position, so a
// record built from a MARC field list reads back in exactly the same
// order. Reads are nil-safe: a nil *Record behaves as an empty record.
//
// Records are not safe for concurrent mutation. The engine builds a
// fresh output record per conversion and never shares it.
type Record struct {
	entries []Entry
}

// NewRecord creates a Record from entries.
// Duplicate keys are allowed and preserved in order.
func NewRecord(entries ...Entry) *Record {
	r := &Record{entries: make([]Entry, len(entries))}
	copy(r.entries, entries)
	return r
}

// Len returns the number of occurrences.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Get returns the value of the first occurrence of key.
// Returns (nil, false) when key is missing.
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return nil, false
	}
	for _, e := range r.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Text returns the first occurrence of key as a string.
// Returns "" if the key is missing or its value is not a Scalar.
func (r *Record) Text(key string) string {
	v, _ := r.Get(key)
	s, _ := AsString(v)
	return s
}

// Has reports whether key occurs at least once.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// All returns every value bound to key, in original order.
// Returns nil when key is missing.
func (r *Record) All(key string) []Value {
	if r == nil {
		return nil
	}
	var out []Value
	for _, e := range r.entries {
		if e.Key == key {
			out = append(out, e.Value)
		}
	}
	return out
}

// Entries returns one Entry per occurrence, in original order.
// The returned slice is a copy; values are shared.
func (r *Record) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Grouped returns one KeyGroup per distinct key, in order of first
// appearance, each carrying all values bound to that key.
func (r *Record) Grouped() []KeyGroup {
	if r == nil {
		return nil
	}
	index := make(map[string]int)
	var groups []KeyGroup
	for _, e := range r.entries {
		i, ok := index[e.Key]
		if !ok {
			i = len(groups)
			index[e.Key] = i
			groups = append(groups, KeyGroup{Key: e.Key})
		}
		groups[i].Values = append(groups[i].Values, e.Value)
	}
	return groups
}

// Keys returns the distinct keys in order of first appearance.
func (r *Record) Keys() []string {
	groups := r.Grouped()
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	return keys
}

// OccurrenceKeys returns one key per occurrence, in original order.
func (r *Record) OccurrenceKeys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.Key
	}
	return keys
}

// Add appends a new occurrence.
func (r *Record) Add(key string, value Value) {
	r.entries = append(r.entries, Entry{Key: key, Value: value})
}

// Set binds key to value at the position of its first occurrence and
// removes any later occurrences. A missing key is appended.
func (r *Record) Set(key string, value Value) {
	for i, e := range r.entries {
		if e.Key != key {
			continue
		}
		r.entries[i].Value = value
		r.removeAfter(key, i)
		return
	}
	r.Add(key, value)
}

// Append extends the List bound to key with vals.
// A missing key is added with a new List at the end; a non-List value
// becomes the first element of the List.
func (r *Record) Append(key string, vals ...Value) {
	for i, e := range r.entries {
		if e.Key != key {
			continue
		}
		var list List
		switch cur := e.Value.(type) {
		case List:
			list = cur
		case nil:
		default:
			list = List{cur}
		}
		r.entries[i].Value = append(slices.Clip(list), vals...)
		return
	}
	list := make(List, len(vals))
	copy(list, vals)
	r.Add(key, list)
}

// Delete removes every occurrence of key and returns how many were removed.
func (r *Record) Delete(key string) int {
	if r == nil {
		return 0
	}
	kept := r.entries[:0]
	removed := 0
	for _, e := range r.entries {
		if e.Key == key {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(r.entries[len(kept):])
	r.entries = kept
	return removed
}

// Pop removes every occurrence of key and returns the first value.
func (r *Record) Pop(key string) (Value, bool) {
	v, ok := r.Get(key)
	if ok {
		r.Delete(key)
	}
	return v, ok
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{entries: make([]Entry, len(r.entries))}
	for i, e := range r.entries {
		out.entries[i] = Entry{Key: e.Key, Value: Clone(e.Value)}
	}
	return out
}

// Equal reports whether both records hold the same occurrences in the
// same order. A nil record equals an empty one.
func (r *Record) Equal(o *Record) bool {
	if r.Len() != o.Len() {
		return false
	}
	for i := 0; i < r.Len(); i++ {
		a, b := r.entries[i], o.entries[i]
		if a.Key != b.Key || !Equal(a.Value, b.Value) {
			return false
		}
	}
	return true
}

func (r *Record) removeAfter(key string, pos int) {
	kept := r.entries[:pos+1]
	for _, e := range r.entries[pos+1:] {
		if e.Key != key {
			kept = append(kept, e)
		}
	}
	clear(r.entries[len(kept):])
	r.entries = kept
}
