// Package diff computes a structural patch between two value.Value trees.
// The change-feed writer uses it to store "current -> previous" patches
// (see changefeed.Writer), so a patch produced here always describes how
// to transform the first argument into the second.
package diff

import "github.com/erigontech/ligerdb/value"

// OpKind discriminates a patch operation, named after the JSON-Patch verbs
// the original distinguishes (add/remove/replace), restricted to the
// subset meaningful over a closed, statically-typed value model.
type OpKind int

const (
	OpReplace OpKind = iota
	OpAdd
	OpRemove
)

// Op is one patch step. Path is a sequence of object keys / array indices
// (array indices encoded as their decimal string) from the document root
// to the changed location.
type Op struct {
	Kind  OpKind
	Path  []string
	Value value.Value // unused for OpRemove
}

// Diff returns the patch transforming from into to. Scalars and mismatched
// kinds produce a single root Replace; objects and arrays recurse,
// producing one op per changed field/element.
func Diff(from, to value.Value) []Op {
	return diffAt(nil, from, to)
}

func diffAt(path []string, from, to value.Value) []Op {
	if from == nil && to == nil {
		return nil
	}
	if from == nil {
		return []Op{{Kind: OpAdd, Path: clone(path), Value: to}}
	}
	if to == nil {
		return []Op{{Kind: OpRemove, Path: clone(path)}}
	}
	if from.Equal(to) {
		return nil
	}

	fromObj, fromIsObj := from.(value.Object)
	toObj, toIsObj := to.(value.Object)
	if fromIsObj && toIsObj {
		return diffObjects(path, fromObj, toObj)
	}

	fromArr, fromIsArr := from.(value.Array)
	toArr, toIsArr := to.(value.Array)
	if fromIsArr && toIsArr {
		return diffArrays(path, fromArr, toArr)
	}

	return []Op{{Kind: OpReplace, Path: clone(path), Value: to}}
}

func diffObjects(path []string, from, to value.Object) []Op {
	var ops []Op
	for k, fv := range from {
		tv, ok := to[k]
		if !ok {
			ops = append(ops, Op{Kind: OpRemove, Path: append(clone(path), k)})
			continue
		}
		ops = append(ops, diffAt(append(clone(path), k), fv, tv)...)
	}
	for k, tv := range to {
		if _, ok := from[k]; !ok {
			ops = append(ops, Op{Kind: OpAdd, Path: append(clone(path), k), Value: tv})
		}
	}
	return ops
}

func diffArrays(path []string, from, to value.Array) []Op {
	var ops []Op
	n := len(from)
	if len(to) < n {
		n = len(to)
	}
	for i := 0; i < n; i++ {
		ops = append(ops, diffAt(append(clone(path), indexKey(i)), from[i], to[i])...)
	}
	for i := n; i < len(to); i++ {
		ops = append(ops, Op{Kind: OpAdd, Path: append(clone(path), indexKey(i)), Value: to[i]})
	}
	// Trailing removals go last-index first, so applying one does not
	// shift the index of the next.
	for i := len(from) - 1; i >= len(to); i-- {
		ops = append(ops, Op{Kind: OpRemove, Path: append(clone(path), indexKey(i))})
	}
	return ops
}

func indexKey(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

func clone(path []string) []string {
	out := make([]string, len(path))
	copy(out, path)
	return out
}

// Apply applies ops to base, returning the resulting value. Objects and
// arrays are copied rather than mutated in place.
func Apply(base value.Value, ops []Op) value.Value {
	result := base
	for _, op := range ops {
		result = applyOp(result, op.Path, op)
	}
	return result
}

func applyOp(v value.Value, path []string, op Op) value.Value {
	if len(path) == 0 {
		switch op.Kind {
		case OpRemove:
			return nil
		default:
			return op.Value
		}
	}
	head, rest := path[0], path[1:]
	switch t := v.(type) {
	case value.Object:
		out := make(value.Object, len(t)+1)
		for k, fv := range t {
			out[k] = fv
		}
		if len(rest) == 0 && op.Kind == OpRemove {
			delete(out, head)
			return out
		}
		child := out[head]
		out[head] = applyOp(child, rest, op)
		return out
	case value.Array:
		idx := parseIndex(head)
		out := make(value.Array, len(t))
		copy(out, t)
		if len(rest) == 0 && op.Kind == OpRemove {
			if idx < len(out) {
				out = append(out[:idx], out[idx+1:]...)
			}
			return out
		}
		if idx == len(out) {
			out = append(out, applyOp(nil, rest, op))
		} else if idx < len(out) {
			out[idx] = applyOp(out[idx], rest, op)
		}
		return out
	default:
		return v
	}
}

func parseIndex(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
