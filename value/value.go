// Package value implements the closed value model shared by the codec,
// changefeed, view, plan and engine packages: a tagged union of the data types a
// document field can hold, with a total order across and within variants.
package value

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind discriminates a Value's concrete variant. The numeric order of
// these constants is the cross-variant ordering rank used by Compare: a
// Null sorts before a Bool, a Bool before any Number, and so on, matching
// the total order every record key and index range depends on.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindBytes
	KindDatetime
	KindDuration
	KindUuid
	KindArray
	KindObject
	KindGeometry
	KindRecordID
	KindRegex
	KindRange
	KindClosure
)

// Value is implemented by every concrete variant below. It is a closed
// set: callers type-switch on the concrete type, never add new ones
// outside this package.
type Value interface {
	Kind() Kind
	// Equal reports bitwise/structural equality, using bit-pattern
	// comparison for floating point so that NaN == NaN and +0 != -0,
	// matching the same rule vector.TreeVector uses for hashing.
	Equal(Value) bool
	// Compare returns -1, 0, or 1, establishing a total order first by
	// Kind rank then by variant-specific ordering.
	Compare(Value) int
	String() string
}

// ---- Null ----

type Null struct{}

func (Null) Kind() Kind       { return KindNull }
func (Null) String() string   { return "NULL" }
func (Null) Equal(v Value) bool {
	_, ok := v.(Null)
	return ok
}
func (n Null) Compare(v Value) int { return compareKindThen(n, v, func(Value) int { return 0 }) }

// ---- Bool ----

type Bool bool

func (Bool) Kind() Kind     { return KindBool }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Bool) Equal(v Value) bool {
	o, ok := v.(Bool)
	return ok && b == o
}
func (b Bool) Compare(v Value) int {
	return compareKindThen(b, v, func(ov Value) int {
		o := ov.(Bool)
		if b == o {
			return 0
		}
		if !bool(b) && bool(o) {
			return -1
		}
		return 1
	})
}

// ---- Number ----

// NumberRepr selects which underlying representation a Number carries.
type NumberRepr int

const (
	ReprInt NumberRepr = iota
	ReprFloat
	ReprDecimal
)

// Number holds one of three representations, matching the three numeric
// kinds the original value model distinguishes: machine integers, IEEE
// floats, and arbitrary-precision decimals.
type Number struct {
	Repr    NumberRepr
	Int     int64
	Float   float64
	Decimal decimal.Decimal
}

func Int(i int64) Number      { return Number{Repr: ReprInt, Int: i} }
func Float(f float64) Number  { return Number{Repr: ReprFloat, Float: f} }
func Dec(d decimal.Decimal) Number { return Number{Repr: ReprDecimal, Decimal: d} }

func (Number) Kind() Kind { return KindNumber }

func (n Number) String() string {
	switch n.Repr {
	case ReprInt:
		return fmt.Sprintf("%d", n.Int)
	case ReprFloat:
		return fmt.Sprintf("%g", n.Float)
	default:
		return n.Decimal.String()
	}
}

// Equal uses bit-pattern comparison for floats (NaN equals NaN, +0 does
// not equal -0), matching vector.TreeVector's hashing rule so that the
// same value model backs both plain fields and indexed vectors.
func (n Number) Equal(v Value) bool {
	o, ok := v.(Number)
	if !ok {
		return false
	}
	if n.Repr != o.Repr {
		return n.asFloat() == o.asFloat() && n.Repr != ReprFloat && o.Repr != ReprFloat
	}
	switch n.Repr {
	case ReprInt:
		return n.Int == o.Int
	case ReprFloat:
		return math.Float64bits(n.Float) == math.Float64bits(o.Float)
	default:
		return n.Decimal.Equal(o.Decimal)
	}
}

func (n Number) asFloat() float64 {
	switch n.Repr {
	case ReprInt:
		return float64(n.Int)
	case ReprFloat:
		return n.Float
	default:
		f, _ := n.Decimal.Float64()
		return f
	}
}

func (n Number) Compare(v Value) int {
	return compareKindThen(n, v, func(ov Value) int {
		o := ov.(Number)
		if n.Repr == ReprDecimal || o.Repr == ReprDecimal {
			nd := n.Decimal
			if n.Repr != ReprDecimal {
				nd = decimal.NewFromFloat(n.asFloat())
			}
			od := o.Decimal
			if o.Repr != ReprDecimal {
				od = decimal.NewFromFloat(o.asFloat())
			}
			return nd.Cmp(od)
		}
		nf, of := n.asFloat(), o.asFloat()
		switch {
		case nf < of:
			return -1
		case nf > of:
			return 1
		default:
			return 0
		}
	})
}

// ---- String ----

type String string

func (String) Kind() Kind     { return KindString }
func (s String) String() string { return string(s) }
func (s String) Equal(v Value) bool {
	o, ok := v.(String)
	return ok && s == o
}
func (s String) Compare(v Value) int {
	return compareKindThen(s, v, func(ov Value) int {
		o := ov.(String)
		switch {
		case s < o:
			return -1
		case s > o:
			return 1
		default:
			return 0
		}
	})
}

// ---- Bytes ----

type Bytes []byte

func (Bytes) Kind() Kind       { return KindBytes }
func (b Bytes) String() string { return fmt.Sprintf("%x", []byte(b)) }
func (b Bytes) Equal(v Value) bool {
	o, ok := v.(Bytes)
	return ok && bytes.Equal(b, o)
}
func (b Bytes) Compare(v Value) int {
	return compareKindThen(b, v, func(ov Value) int {
		return bytes.Compare(b, ov.(Bytes))
	})
}

// ---- Datetime ----

type Datetime time.Time

func (Datetime) Kind() Kind       { return KindDatetime }
func (d Datetime) String() string { return time.Time(d).UTC().Format(time.RFC3339Nano) }
func (d Datetime) Equal(v Value) bool {
	o, ok := v.(Datetime)
	return ok && time.Time(d).Equal(time.Time(o))
}
func (d Datetime) Compare(v Value) int {
	return compareKindThen(d, v, func(ov Value) int {
		o := ov.(Datetime)
		switch {
		case time.Time(d).Before(time.Time(o)):
			return -1
		case time.Time(d).After(time.Time(o)):
			return 1
		default:
			return 0
		}
	})
}

// ---- Duration ----

type Duration time.Duration

func (Duration) Kind() Kind       { return KindDuration }
func (d Duration) String() string { return time.Duration(d).String() }
func (d Duration) Equal(v Value) bool {
	o, ok := v.(Duration)
	return ok && d == o
}
func (d Duration) Compare(v Value) int {
	return compareKindThen(d, v, func(ov Value) int {
		o := ov.(Duration)
		switch {
		case d < o:
			return -1
		case d > o:
			return 1
		default:
			return 0
		}
	})
}

// ---- Uuid ----

type Uuid uuid.UUID

func (Uuid) Kind() Kind       { return KindUuid }
func (u Uuid) String() string { return uuid.UUID(u).String() }
func (u Uuid) Equal(v Value) bool {
	o, ok := v.(Uuid)
	return ok && u == o
}
func (u Uuid) Compare(v Value) int {
	return compareKindThen(u, v, func(ov Value) int {
		return bytes.Compare(u[:], ov.(Uuid)[:])
	})
}

// ---- Array ----

type Array []Value

func (Array) Kind() Kind { return KindArray }
func (a Array) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = v.String()
	}
	return "[" + joinComma(parts) + "]"
}
func (a Array) Equal(v Value) bool {
	o, ok := v.(Array)
	if !ok || len(a) != len(o) {
		return false
	}
	for i := range a {
		if !a[i].Equal(o[i]) {
			return false
		}
	}
	return true
}
func (a Array) Compare(v Value) int {
	return compareKindThen(a, v, func(ov Value) int {
		o := ov.(Array)
		for i := 0; i < len(a) && i < len(o); i++ {
			if c := a[i].Compare(o[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(a) < len(o):
			return -1
		case len(a) > len(o):
			return 1
		default:
			return 0
		}
	})
}

// ---- Object ----

type Object map[string]Value

func (Object) Kind() Kind { return KindObject }
func (o Object) String() string {
	keys := o.sortedKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, o[k].String())
	}
	return "{" + joinComma(parts) + "}"
}
func (o Object) sortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
func (o Object) Equal(v Value) bool {
	p, ok := v.(Object)
	if !ok || len(o) != len(p) {
		return false
	}
	for k, val := range o {
		pv, ok := p[k]
		if !ok || !val.Equal(pv) {
			return false
		}
	}
	return true
}
func (o Object) Compare(v Value) int {
	return compareKindThen(o, v, func(ov Value) int {
		p := ov.(Object)
		ak, bk := o.sortedKeys(), p.sortedKeys()
		for i := 0; i < len(ak) && i < len(bk); i++ {
			if ak[i] != bk[i] {
				if ak[i] < bk[i] {
					return -1
				}
				return 1
			}
			if c := o[ak[i]].Compare(p[bk[i]]); c != 0 {
				return c
			}
		}
		switch {
		case len(ak) < len(bk):
			return -1
		case len(ak) > len(bk):
			return 1
		default:
			return 0
		}
	})
}

// ---- Geometry ----

// GeometryKind distinguishes the minimal spatial variant set this module
// supports: enough to give Geometry a canonical, orderable encoding
// without pulling in a full spatial algebra (out of scope).
type GeometryKind int

const (
	GeomPoint GeometryKind = iota
	GeomLineString
	GeomPolygon
	GeomMultiPoint
	GeomCollection
)

type Point struct{ X, Y float64 }

// Geometry is a minimal spatial value: total ordering and equality only,
// via a canonical WKT-like byte encoding. No spatial predicates (within,
// intersects) are in scope for this module.
type Geometry struct {
	GKind  GeometryKind
	Points []Point
	Nested []Geometry // used by GeomCollection
}

func (Geometry) Kind() Kind { return KindGeometry }

func (g Geometry) canonical() string {
	switch g.GKind {
	case GeomPoint:
		return fmt.Sprintf("POINT(%g %g)", g.Points[0].X, g.Points[0].Y)
	case GeomLineString:
		return "LINESTRING" + g.pointList()
	case GeomPolygon:
		return "POLYGON" + g.pointList()
	case GeomMultiPoint:
		return "MULTIPOINT" + g.pointList()
	default:
		parts := make([]string, len(g.Nested))
		for i, n := range g.Nested {
			parts[i] = n.canonical()
		}
		return "GEOMETRYCOLLECTION(" + joinComma(parts) + ")"
	}
}

func (g Geometry) pointList() string {
	parts := make([]string, len(g.Points))
	for i, p := range g.Points {
		parts[i] = fmt.Sprintf("%g %g", p.X, p.Y)
	}
	return "(" + joinComma(parts) + ")"
}

func (g Geometry) String() string { return g.canonical() }
func (g Geometry) Equal(v Value) bool {
	o, ok := v.(Geometry)
	return ok && g.canonical() == o.canonical()
}
func (g Geometry) Compare(v Value) int {
	return compareKindThen(g, v, func(ov Value) int {
		o := ov.(Geometry)
		a, b := g.canonical(), o.canonical()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	})
}

// ---- RecordID ----

type RecordID struct {
	Table string
	ID    Value // typically a String or Number
}

func (RecordID) Kind() Kind { return KindRecordID }
func (r RecordID) String() string {
	return fmt.Sprintf("%s:%s", r.Table, r.ID.String())
}
func (r RecordID) Equal(v Value) bool {
	o, ok := v.(RecordID)
	return ok && r.Table == o.Table && r.ID.Equal(o.ID)
}
func (r RecordID) Compare(v Value) int {
	return compareKindThen(r, v, func(ov Value) int {
		o := ov.(RecordID)
		if r.Table != o.Table {
			if r.Table < o.Table {
				return -1
			}
			return 1
		}
		return r.ID.Compare(o.ID)
	})
}

// ---- Regex ----

type Regex string

func (Regex) Kind() Kind       { return KindRegex }
func (r Regex) String() string { return "/" + string(r) + "/" }
func (r Regex) Equal(v Value) bool {
	o, ok := v.(Regex)
	return ok && r == o
}
func (r Regex) Compare(v Value) int {
	return compareKindThen(r, v, func(ov Value) int {
		o := ov.(Regex)
		switch {
		case r < o:
			return -1
		case r > o:
			return 1
		default:
			return 0
		}
	})
}

// ---- Range ----

// ValueRange is an inclusive-or-exclusive [begin, end) style range over
// ordered Values, used by the plan package's SingleIndexRange operator.
type ValueRange struct {
	Begin       Value
	End         Value
	BeginExcl   bool
	EndExcl     bool
}

func (ValueRange) Kind() Kind { return KindRange }
func (r ValueRange) String() string {
	lb, rb := "[", "]"
	if r.BeginExcl {
		lb = "("
	}
	if r.EndExcl {
		rb = ")"
	}
	return fmt.Sprintf("%s%s..%s%s", lb, r.Begin.String(), r.End.String(), rb)
}
func (r ValueRange) Equal(v Value) bool {
	o, ok := v.(ValueRange)
	return ok && r.Begin.Equal(o.Begin) && r.End.Equal(o.End) &&
		r.BeginExcl == o.BeginExcl && r.EndExcl == o.EndExcl
}
func (r ValueRange) Compare(v Value) int {
	return compareKindThen(r, v, func(ov Value) int {
		o := ov.(ValueRange)
		if c := r.Begin.Compare(o.Begin); c != 0 {
			return c
		}
		return r.End.Compare(o.End)
	})
}

// Contains reports whether x falls within the range.
func (r ValueRange) Contains(x Value) bool {
	if r.Begin != nil {
		c := x.Compare(r.Begin)
		if c < 0 || (c == 0 && r.BeginExcl) {
			return false
		}
	}
	if r.End != nil {
		c := x.Compare(r.End)
		if c > 0 || (c == 0 && r.EndExcl) {
			return false
		}
	}
	return true
}

// ---- Closure ----

// Closure represents a callable function value. Execution is out of this
// module's scope; it exists only so the value model remains closed over
// every variant the original distinguishes.
type Closure struct {
	Name string
}

func (Closure) Kind() Kind       { return KindClosure }
func (c Closure) String() string { return "fn::" + c.Name }
func (c Closure) Equal(v Value) bool {
	o, ok := v.(Closure)
	return ok && c.Name == o.Name
}
func (c Closure) Compare(v Value) int {
	return compareKindThen(c, v, func(ov Value) int {
		o := ov.(Closure)
		switch {
		case c.Name < o.Name:
			return -1
		case c.Name > o.Name:
			return 1
		default:
			return 0
		}
	})
}

// ---- shared helpers ----

func compareKindThen(a, b Value, same func(Value) int) int {
	if a.Kind() != b.Kind() {
		if a.Kind() < b.Kind() {
			return -1
		}
		return 1
	}
	return same(b)
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
