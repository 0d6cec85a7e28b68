package view

import (
	"github.com/erigontech/ligerdb/codec"
	"github.com/erigontech/ligerdb/kv"
	"github.com/erigontech/ligerdb/value"
)

// rowKey builds the aggregate row's record key, treating a view's
// materialized row as an ordinary record under its own table.
func rowKey(ns, db, table, id string) []byte {
	return kv.RecordKey(ns, db, table, id)
}

func decodeRow(raw []byte) (value.Object, error) {
	v, err := codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(value.Object)
	if !ok {
		return value.Object{}, nil
	}
	return obj, nil
}

func encodeRow(row value.Object) ([]byte, error) {
	return codec.Encode(row), nil
}

// meanCounterField is the companion counter field backing math::mean,
// named "__<field>_count" after the mean field itself (not a hash of it):
// the mean can't be folded incrementally without also tracking how many
// contributions went into it.
func meanCounterField(name string) string { return "__" + name + "_count" }

// applyFields folds one document's contribution into row in place,
// dispatching each field by its RollingKind, and reports whether the row
// should be purged entirely. Each rolling field enqueues its own purge
// predicate (its individual value reaching zero on a Delete
// contribution), and the row is purged on the OR of all of them, matching
// chg()/data()'s per-field del_ops predicates in the original: a view
// with both count() and math::sum(x) is purged as soon as EITHER field's
// contribution count lands at zero, not only when both do.
func applyFields(row value.Object, fields []FieldSpec, act Action, doc value.Value) bool {
	purge := false

	for _, f := range fields {
		val := f.Compute(doc)
		switch f.Rolling {
		case RollingNone:
			row[f.Name] = val
		case RollingCount, RollingSum:
			if zero := applyChg(row, f.Name, act, val); act == ActionDelete && zero {
				purge = true
			}
		case RollingMin:
			applyMin(row, act, f.Name, val)
		case RollingMax:
			applyMax(row, act, f.Name, val)
		case RollingMean:
			if zero := applyMean(row, act, f.Name, val); act == ActionDelete && zero {
				purge = true
			}
		}
	}

	return purge
}

func numFloat(v value.Value) float64 {
	n, ok := v.(value.Number)
	if !ok {
		return 0
	}
	switch n.Repr {
	case value.ReprInt:
		return float64(n.Int)
	case value.ReprFloat:
		return n.Float
	default:
		f, _ := n.Decimal.Float64()
		return f
	}
}

func getFloat(row value.Object, field string) float64 {
	v, ok := row[field]
	if !ok {
		return 0
	}
	return numFloat(v)
}

// applyChg mirrors chg(): Update increments the field by val (count's
// contribution is always 1, math::sum's is the summed expression's
// value); Delete decrements it. Reports whether the field landed at (or
// stayed at) zero, the purge condition for this field.
func applyChg(row value.Object, field string, act Action, val value.Value) bool {
	cur := getFloat(row, field)
	delta := numFloat(val)
	var next float64
	switch act {
	case ActionDelete:
		next = cur - delta
	default:
		next = cur + delta
	}
	row[field] = value.Float(next)
	return next == 0
}

// applyMin mirrors min(): only an Update contribution can lower the
// stored minimum; a Delete leaves it untouched, a known limitation
// carried over unchanged from the original (removing the row that set
// the current minimum does not recompute it).
func applyMin(row value.Object, act Action, field string, val value.Value) {
	if act == ActionDelete {
		return
	}
	cur, ok := row[field]
	if !ok || numFloat(val) < numFloat(cur) {
		row[field] = val
	}
}

// applyMax mirrors max(): symmetric to applyMin.
func applyMax(row value.Object, act Action, field string, val value.Value) {
	if act == ActionDelete {
		return
	}
	cur, ok := row[field]
	if !ok || numFloat(val) > numFloat(cur) {
		row[field] = val
	}
}

// applyMean mirrors mean(): val/count folded incrementally via a
// companion counter field, rather than the original's nested
// subquery-expression tree, since this module evaluates the
// read-modify-write directly instead of compiling an expression for a
// statement executor to run later.
func applyMean(row value.Object, act Action, field string, val value.Value) bool {
	counterField := meanCounterField(field)
	curMean := getFloat(row, field)
	curCount := getFloat(row, counterField)

	var nextCount float64
	var nextMean float64
	switch act {
	case ActionDelete:
		nextCount = curCount - 1
		if nextCount <= 0 {
			row[field] = value.Float(0)
			row[counterField] = value.Float(0)
			return true
		}
		nextMean = (curMean*curCount - numFloat(val)) / nextCount
	default:
		nextCount = curCount + 1
		nextMean = (curMean*curCount + numFloat(val)) / nextCount
	}
	row[field] = value.Float(nextMean)
	row[counterField] = value.Float(nextCount)
	return false
}
