package json

// Update applies one operation object (as produced by Delta, or one element
// of a history's stored edit script) to v and returns the result. v is never
// mutated; Update always returns a new Value sharing unmodified structure
// with v.
//
// A malformed op (wrong shape, out-of-range index) leaves v unchanged
// rather than panicking — history replay must never crash a live node over
// a corrupt stored op.
func Update(v Value, op Value) Value {
	obj, ok := op.(Object)
	if !ok {
		return v
	}
	kindVal, ok := obj.Get("op")
	if !ok {
		return v
	}
	kind, ok := kindVal.(String)
	if !ok {
		return v
	}
	pathVal, _ := obj.Get("path")
	path, _ := pathVal.(Array)
	value, _ := obj.Get("value")
	return applyAt(v, path.Items(), kind.Unescaped(), value)
}

func applyAt(v Value, path []Value, op string, val Value) Value {
	if len(path) == 0 {
		if op == "replace" {
			return val
		}
		return v
	}
	step := path[0]
	rest := path[1:]

	switch t := v.(type) {
	case Object:
		name, ok := step.(String)
		if !ok {
			return v
		}
		key := name.Unescaped()
		if len(rest) == 0 {
			switch op {
			case "replace", "insert":
				return t.withSet(key, val)
			case "delete":
				return t.withRemoved(key)
			}
			return t
		}
		child, ok := t.Get(key)
		if !ok {
			return t
		}
		return t.withSet(key, applyAt(child, rest, op, val))

	case Array:
		idxVal, ok := step.(Number)
		if !ok {
			return v
		}
		idx := numberToInt(idxVal)
		if len(rest) == 0 {
			switch op {
			case "replace":
				return t.withReplacedAt(idx, val)
			case "delete":
				return t.withRemovedAt(idx)
			case "insert":
				return t.withInsertedAt(idx, val)
			}
			return t
		}
		if idx < 0 || idx >= t.Len() {
			return t
		}
		return t.withReplacedAt(idx, applyAt(t.At(idx), rest, op, val))

	default:
		return v
	}
}
