package ir

// Grouped and flat forms.
//
// A flat record holds one entry per occurrence, keys repeating as often
// as they occur. The grouped (wire) form holds one entry per distinct key,
// repeated values collected into a List, plus an OrderKey entry naming one
// key per occurrence. Group and Expand convert between the two; the
// round trip Expand(Group(r)) reproduces r exactly.

// Group converts a flat record into grouped form.
// A record that already carries OrderKey is returned as a clone.
// Nested records are left untouched; use GroupAll to recurse.
func Group(r *Record) *Record {
	return group(r, false)
}

// GroupAll is Group applied recursively to nested records, including
// records inside lists.
func GroupAll(r *Record) *Record {
	return group(r, true)
}

// Expand converts a grouped record back into flat form.
//
// For each key named by OrderKey, a key named once takes its whole
// value; a key named N>1 times takes successive elements of its List
// (or successive occurrences when the record already repeats it).
// Values not consumed by the order follow in first-appearance order.
// A record without OrderKey is returned as a clone.
//
// Nested records are left untouched; use ExpandAll to recurse.
func Expand(r *Record) *Record {
	return expand(r, false)
}

// ExpandAll is Expand applied recursively to nested records, including
// records inside lists.
func ExpandAll(r *Record) *Record {
	return expand(r, true)
}

// OrderOf returns the keys named by the record's OrderKey entry.
// Returns (nil, false) when the record carries no order.
func OrderOf(r *Record) ([]string, bool) {
	v, ok := r.Get(OrderKey)
	if !ok {
		return nil, false
	}
	return StringsOf(v), true
}

func group(r *Record, deep bool) *Record {
	if r == nil {
		return nil
	}
	if r.Has(OrderKey) {
		return mapValues(r.Clone(), deep, GroupAll)
	}

	out := NewRecord()
	if r.Len() == 0 {
		return out
	}

	order := make(List, 0, r.Len())
	for _, e := range r.entries {
		order = append(order, Scalar(e.Key))
	}
	out.Add(OrderKey, order)

	for _, g := range r.Grouped() {
		vals := make([]Value, len(g.Values))
		for i, v := range g.Values {
			vals[i] = Clone(v)
			if deep {
				vals[i] = recurse(vals[i], GroupAll)
			}
		}
		if len(vals) == 1 {
			out.Add(g.Key, vals[0])
			continue
		}
		out.Add(g.Key, List(vals))
	}
	return out
}

func expand(r *Record, deep bool) *Record {
	if r == nil {
		return nil
	}
	order, ok := OrderOf(r)
	if !ok {
		return mapValues(r.Clone(), deep, ExpandAll)
	}

	counts := make(map[string]int, len(order))
	for _, k := range order {
		counts[k]++
	}

	// Pool of values per key, consumed in order.
	pools := make(map[string][]Value)
	var keys []string
	for _, g := range r.Grouped() {
		if g.Key == OrderKey {
			continue
		}
		keys = append(keys, g.Key)
		switch {
		case len(g.Values) > 1:
			pools[g.Key] = g.Values
		case counts[g.Key] > 1:
			if list, isList := g.Values[0].(List); isList && len(list) == counts[g.Key] {
				pools[g.Key] = list
				continue
			}
			pools[g.Key] = g.Values
		default:
			pools[g.Key] = g.Values
		}
	}

	out := NewRecord()
	emit := func(key string, v Value) {
		v = Clone(v)
		if deep {
			v = recurse(v, ExpandAll)
		}
		out.Add(key, v)
	}

	for _, k := range order {
		pool := pools[k]
		if len(pool) == 0 {
			continue
		}
		emit(k, pool[0])
		pools[k] = pool[1:]
	}
	for _, k := range keys {
		for _, v := range pools[k] {
			emit(k, v)
		}
	}
	return out
}

func mapValues(r *Record, deep bool, fn func(*Record) *Record) *Record {
	if !deep {
		return r
	}
	for i, e := range r.entries {
		if e.Key == OrderKey {
			continue
		}
		r.entries[i].Value = recurse(e.Value, fn)
	}
	return r
}

func recurse(v Value, fn func(*Record) *Record) Value {
	switch val := v.(type) {
	case *Record:
		return fn(val)
	case List:
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = recurse(elem, fn)
		}
		return out
	default:
		return v
	}
}
