package shape

import (
	"github.com/roach88/marcshift/internal/ir"
)

// ForEach applies h independently to every occurrence in value.
//
// A List value holds one occurrence per element; any other value is a
// single occurrence. Each application receives its own deep copy, so
// results never share mutable state. An occurrence whose application
// returns ErrSkip or ModeSkip is dropped without affecting its siblings.
// Nested ModeEach results are flattened.
//
// The result is always ModeEach, even for one occurrence.
func ForEach[H Handler](h H) H {
	return H(func(ctx *Context, key string, value ir.Value) (Result, error) {
		items := ir.ForceList(value)
		out := make(ir.List, 0, len(items))
		for _, item := range items {
			res, err := h(ctx, key, ir.Clone(item))
			if IsSkip(err) {
				continue
			}
			if err != nil {
				return Result{}, err
			}
			switch res.Mode {
			case ModeSkip:
				continue
			case ModeEach:
				out = append(out, ir.ForceList(res.Value)...)
			default:
				out = append(out, res.Value)
			}
		}
		return Result{Value: out, Mode: ModeEach}, nil
	})
}

// ReverseForEach is ForEach for reverse handlers: every element of the
// canonical list yields its own raw occurrence, in list order.
func ReverseForEach(h Reverse) Reverse {
	return ForEach(h)
}

// DropEmpty removes entries whose value is absent or an empty container
// from the mapping h returns. Surviving entries keep their relative
// order. OrderKey is dropped only when its value is absent; an empty
// order list is kept.
//
// Mappings inside a List (ModeEach or a fan-out list) are pruned one by
// one, so DropEmpty(ForEach(h)) and ForEach(DropEmpty(h)) agree.
func DropEmpty[H Handler](h H) H {
	return H(func(ctx *Context, key string, value ir.Value) (Result, error) {
		res, err := h(ctx, key, value)
		if err != nil || res.Mode == ModeSkip {
			return res, err
		}
		res.Value = dropEmpty(res.Value)
		return res, nil
	})
}

func dropEmpty(v ir.Value) ir.Value {
	switch val := v.(type) {
	case *ir.Record:
		return pruneRecord(val)
	case ir.List:
		out := make(ir.List, len(val))
		for i, elem := range val {
			if rec, ok := elem.(*ir.Record); ok {
				out[i] = pruneRecord(rec)
				continue
			}
			out[i] = elem
		}
		return out
	default:
		return v
	}
}

func pruneRecord(rec *ir.Record) *ir.Record {
	if rec == nil {
		return nil
	}
	out := ir.NewRecord()
	for _, e := range rec.Entries() {
		if e.Key == ir.OrderKey {
			if e.Value != nil {
				out.Add(e.Key, e.Value)
			}
			continue
		}
		if ir.IsEmpty(e.Value) {
			continue
		}
		out.Add(e.Key, e.Value)
	}
	return out
}

// Skippable catches ErrSkip from h and reports it as a ModeSkip result.
func Skippable[H Handler](h H) H {
	return H(func(ctx *Context, key string, value ir.Value) (Result, error) {
		res, err := h(ctx, key, value)
		if IsSkip(err) {
			return Skipped(), nil
		}
		return res, err
	})
}

// IgnoreEmpty turns an empty result into ModeSkip, so the occurrence
// leaves no trace in the output.
func IgnoreEmpty[H Handler](h H) H {
	return H(func(ctx *Context, key string, value ir.Value) (Result, error) {
		res, err := h(ctx, key, value)
		if err != nil {
			return res, err
		}
		if res.Mode != ModeSkip && ir.IsEmpty(res.Value) {
			return Skipped(), nil
		}
		return res, nil
	})
}

// ForceList normalizes the input value into list form before calling h.
// A bare scalar or mapping becomes a one-element List; an absent value
// becomes an empty List.
func ForceList[H Handler](h H) H {
	return H(func(ctx *Context, key string, value ir.Value) (Result, error) {
		list := ir.ForceList(value)
		if list == nil {
			list = ir.List{}
		}
		return h(ctx, key, list)
	})
}

// MapOrder maps the occurrence order of rec through codes.
//
// The order is taken from rec's OrderKey entry when present, else from
// its entry keys. Keys with no mapping in codes are left out. Rules use
// the result as the OrderKey of the mapping they return.
func MapOrder(codes map[string]string, rec *ir.Record) ir.List {
	keys, ok := ir.OrderOf(rec)
	if !ok {
		keys = rec.OccurrenceKeys()
	}
	out := ir.List{}
	for _, k := range keys {
		if name, ok := codes[k]; ok {
			out = append(out, ir.Scalar(name))
		}
	}
	return out
}

// OrderOrAbsent returns order, or nil when it is empty. Rules use it so
// that an OrderKey with nothing to record is dropped by DropEmpty.
func OrderOrAbsent(order ir.List) ir.Value {
	if len(order) == 0 {
		return nil
	}
	return order
}
