// Package vector implements the TreeVector tagged union and distance
// kernels used by the M-tree/HNSW-style vector index: a fixed-width
// numeric array over one of five element representations, compared and
// hashed by bit pattern rather than by a single promoted numeric type, and
// ordered across representations by a fixed variant rank.
package vector

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/erigontech/ligerdb/errs"
)

// ElemKind identifies which underlying representation a TreeVector holds.
// The numeric order of these constants is the cross-variant ordering rank
// (F64 < F32 < I64 < I32 < I16), matching the original's variant rank.
type ElemKind int

const (
	F64 ElemKind = iota
	F32
	I64
	I32
	I16
)

// TreeVector is a tagged union over five element-type variants. Exactly
// one of the slices is populated, selected by Kind.
type TreeVector struct {
	Kind ElemKind
	F64s []float64
	F32s []float32
	I64s []int64
	I32s []int32
	I16s []int16
}

func NewF64(v ...float64) TreeVector { return TreeVector{Kind: F64, F64s: v} }
func NewF32(v ...float32) TreeVector { return TreeVector{Kind: F32, F32s: v} }
func NewI64(v ...int64) TreeVector   { return TreeVector{Kind: I64, I64s: v} }
func NewI32(v ...int32) TreeVector   { return TreeVector{Kind: I32, I32s: v} }
func NewI16(v ...int16) TreeVector   { return TreeVector{Kind: I16, I16s: v} }

// Len returns the number of elements, regardless of variant.
func (v TreeVector) Len() int {
	switch v.Kind {
	case F64:
		return len(v.F64s)
	case F32:
		return len(v.F32s)
	case I64:
		return len(v.I64s)
	case I32:
		return len(v.I32s)
	case I16:
		return len(v.I16s)
	default:
		panic(errs.Unreachable("vector.TreeVector.Len: unknown kind"))
	}
}

// At returns the i-th element promoted to float64, for use by the
// distance kernels below, all of which operate in float64 regardless of
// the underlying storage width.
func (v TreeVector) At(i int) float64 {
	switch v.Kind {
	case F64:
		return v.F64s[i]
	case F32:
		return float64(v.F32s[i])
	case I64:
		return float64(v.I64s[i])
	case I32:
		return float64(v.I32s[i])
	case I16:
		return float64(v.I16s[i])
	default:
		panic(errs.Unreachable("vector.TreeVector.At: unknown kind"))
	}
}

// bits64 returns the i-th element's identity bit pattern: the IEEE-754
// bit pattern for float variants (so NaN hashes/equals consistently and
// +0/-0 stay distinct), or the raw integer reinterpreted as bits for
// integer variants (exact identity, no float rounding).
func (v TreeVector) bits64(i int) uint64 {
	switch v.Kind {
	case F64:
		return math.Float64bits(v.F64s[i])
	case F32:
		return uint64(math.Float32bits(v.F32s[i]))
	case I64:
		return uint64(v.I64s[i])
	case I32:
		return uint64(uint32(v.I32s[i]))
	case I16:
		return uint64(uint16(v.I16s[i]))
	default:
		panic(errs.Unreachable("vector.TreeVector.bits64: unknown kind"))
	}
}

// Equal reports bit-pattern equality: same kind, same length, identical
// bit pattern at every position.
func (v TreeVector) Equal(o TreeVector) bool {
	if v.Kind != o.Kind || v.Len() != o.Len() {
		return false
	}
	for i := 0; i < v.Len(); i++ {
		if v.bits64(i) != o.bits64(i) {
			return false
		}
	}
	return true
}

// Hash produces an order-sensitive FNV-1a style hash over the bit
// patterns, suitable for use as a map key proxy (TreeVector itself is not
// comparable because slices aren't, so callers needing a map key should
// use Hash() combined with Equal() for collision resolution).
func (v TreeVector) Hash() uint64 {
	h := uint64(14695981039346656037)
	h ^= uint64(v.Kind)
	h *= 1099511628211
	for i := 0; i < v.Len(); i++ {
		h ^= v.bits64(i)
		h *= 1099511628211
	}
	return h
}

// Compare establishes a total order: first by ElemKind rank, then by
// length, then lexicographically by promoted float64 value.
func (v TreeVector) Compare(o TreeVector) int {
	if v.Kind != o.Kind {
		if v.Kind < o.Kind {
			return -1
		}
		return 1
	}
	n := v.Len()
	if o.Len() < n {
		n = o.Len()
	}
	for i := 0; i < n; i++ {
		a, b := v.At(i), o.At(i)
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
	}
	switch {
	case v.Len() < o.Len():
		return -1
	case v.Len() > o.Len():
		return 1
	default:
		return 0
	}
}

func dot(v, o TreeVector) float64 {
	n := v.Len()
	var sum float64
	for i := 0; i < n; i++ {
		sum += v.At(i) * o.At(i)
	}
	return sum
}

func magnitude(v TreeVector) float64 {
	var sum float64
	for i := 0; i < v.Len(); i++ {
		x := v.At(i)
		sum += x * x
	}
	return math.Sqrt(sum)
}

func checkDims(v, o TreeVector) error {
	if v.Len() != o.Len() {
		return errs.DimensionMismatch(v.Len(), o.Len())
	}
	return nil
}

// Euclidean returns the L2 distance between v and o.
func Euclidean(v, o TreeVector) (float64, error) {
	if err := checkDims(v, o); err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < v.Len(); i++ {
		d := v.At(i) - o.At(i)
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Manhattan returns the L1 distance between v and o.
func Manhattan(v, o TreeVector) (float64, error) {
	if err := checkDims(v, o); err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < v.Len(); i++ {
		sum += math.Abs(v.At(i) - o.At(i))
	}
	return sum, nil
}

// Chebyshev returns the L-infinity distance between v and o.
func Chebyshev(v, o TreeVector) (float64, error) {
	if err := checkDims(v, o); err != nil {
		return 0, err
	}
	var max float64
	for i := 0; i < v.Len(); i++ {
		if d := math.Abs(v.At(i) - o.At(i)); d > max {
			max = d
		}
	}
	return max, nil
}

// Minkowski returns the order-p Minkowski distance between v and o.
func Minkowski(v, o TreeVector, p float64) (float64, error) {
	if err := checkDims(v, o); err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < v.Len(); i++ {
		sum += math.Pow(math.Abs(v.At(i)-o.At(i)), p)
	}
	return math.Pow(sum, 1/p), nil
}

// Hamming returns the count of differing-by-bit-pattern positions.
func Hamming(v, o TreeVector) (float64, error) {
	if err := checkDims(v, o); err != nil {
		return 0, err
	}
	var count float64
	for i := 0; i < v.Len(); i++ {
		if v.bits64(i) != o.bits64(i) {
			count++
		}
	}
	return count, nil
}

// Cosine returns 1 - cosine similarity. A zero-magnitude operand returns a
// distance of zero rather than dividing by zero, matching the spec's
// stated correct formula (this module does not replicate the apparent
// precedence quirk in the reference Rust implementation).
func Cosine(v, o TreeVector) (float64, error) {
	if err := checkDims(v, o); err != nil {
		return 0, err
	}
	mv, mo := magnitude(v), magnitude(o)
	if mv == 0 || mo == 0 {
		return 0, nil
	}
	sim := dot(v, o) / (mv * mo)
	return 1 - sim, nil
}

// Jaccard returns 1 - |intersection|/|union|. For float variants,
// membership is determined by bit-pattern identity (so NaN is its own
// distinct member); for integer variants, by raw value identity.
func Jaccard(v, o TreeVector) (float64, error) {
	setA := make(map[uint64]struct{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		setA[v.bits64(i)] = struct{}{}
	}
	setB := make(map[uint64]struct{}, o.Len())
	for i := 0; i < o.Len(); i++ {
		setB[o.bits64(i)] = struct{}{}
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 0, nil
	}
	inter := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0, nil
	}
	return 1 - float64(inter)/float64(union), nil
}

// Pearson returns 1 - r, where r is the standard sample Pearson
// correlation coefficient. The reference Rust implementation leaves this
// as an unimplemented stub; this module provides the real computation
// since the spec requires a working kernel.
func Pearson(v, o TreeVector) (float64, error) {
	if err := checkDims(v, o); err != nil {
		return 0, err
	}
	n := float64(v.Len())
	if n == 0 {
		return 0, nil
	}
	as := make([]float64, v.Len())
	bs := make([]float64, v.Len())
	abs := make([]float64, v.Len())
	a2s := make([]float64, v.Len())
	b2s := make([]float64, v.Len())
	for i := 0; i < v.Len(); i++ {
		a, b := v.At(i), o.At(i)
		as[i], bs[i] = a, b
		abs[i] = a * b
		a2s[i] = a * a
		b2s[i] = b * b
	}
	sumA, sumB := Sum(as), Sum(bs)
	sumAB, sumA2, sumB2 := Sum(abs), Sum(a2s), Sum(b2s)
	numerator := n*sumAB - sumA*sumB
	denominator := math.Sqrt(n*sumA2-sumA*sumA) * math.Sqrt(n*sumB2-sumB*sumB)
	if denominator == 0 {
		return 0, nil
	}
	r := numerator / denominator
	return 1 - r, nil
}

// Sum is a generic accumulator, mirroring the teacher's SafeAdd-style
// helpers but generalized across element types via constraints.Integer /
// constraints.Float so a kernel body (Pearson's running sums) instantiates
// it without reflection or interface{} dispatch.
func Sum[T constraints.Integer | constraints.Float](xs []T) T {
	var sum T
	for _, x := range xs {
		sum += x
	}
	return sum
}
