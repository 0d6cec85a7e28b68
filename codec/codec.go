// Package codec implements the revisioned, length/tag-value wire encoding
// used to persist value.Value trees in the KV substrate: a 2-byte revision
// header followed by a tagged, length-prefixed body. Floats are encoded by
// their raw IEEE-754 bit pattern rather than through a textual
// representation, so that codec-level equality matches value.Value's
// bit-pattern equality rule (NaN encodes/decodes identically, +0 and -0
// stay distinct).
package codec

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erigontech/ligerdb/errs"
	"github.com/erigontech/ligerdb/internal/numeric"
	"github.com/erigontech/ligerdb/value"
)

// CurrentRevision is the revision this build writes. Readers accept any
// revision <= CurrentRevision; anything newer fails with errs.Revision
// rather than risk misinterpreting a body shape this build never learned.
const CurrentRevision uint16 = 1

type tag byte

const (
	tagNull tag = iota
	tagBoolFalse
	tagBoolTrue
	tagNumberInt
	tagNumberFloat
	tagNumberDecimal
	tagString
	tagBytes
	tagDatetime
	tagDuration
	tagUuid
	tagArray
	tagObject
	tagGeometry
	tagRecordID
	tagRegex
	tagRange
	tagClosure
)

// Encode serializes v into the revisioned wire format.
func Encode(v value.Value) []byte {
	buf := make([]byte, 2, 64)
	binary.BigEndian.PutUint16(buf[0:2], CurrentRevision)
	return encodeValue(buf, v)
}

func encodeValue(buf []byte, v value.Value) []byte {
	switch t := v.(type) {
	case value.Null:
		return append(buf, byte(tagNull))
	case value.Bool:
		if t {
			return append(buf, byte(tagBoolTrue))
		}
		return append(buf, byte(tagBoolFalse))
	case value.Number:
		return encodeNumber(buf, t)
	case value.String:
		return encodeBytesLike(buf, tagString, []byte(t))
	case value.Bytes:
		return encodeBytesLike(buf, tagBytes, []byte(t))
	case value.Datetime:
		buf = append(buf, byte(tagDatetime))
		return putUint64(buf, uint64(time.Time(t).UnixNano()))
	case value.Duration:
		buf = append(buf, byte(tagDuration))
		return putUint64(buf, uint64(time.Duration(t)))
	case value.Uuid:
		buf = append(buf, byte(tagUuid))
		return append(buf, t[:]...)
	case value.Array:
		buf = append(buf, byte(tagArray))
		buf = putUint32(buf, uint32(len(t)))
		for _, el := range t {
			buf = encodeValue(buf, el)
		}
		return buf
	case value.Object:
		buf = append(buf, byte(tagObject))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sortStrings(keys)
		buf = putUint32(buf, uint32(len(keys)))
		for _, k := range keys {
			buf = encodeBytesLike(buf, tagString, []byte(k))
			buf = encodeValue(buf, t[k])
		}
		return buf
	case value.RecordID:
		buf = append(buf, byte(tagRecordID))
		buf = encodeBytesLike(buf, tagString, []byte(t.Table))
		return encodeValue(buf, t.ID)
	case value.Regex:
		return encodeBytesLike(buf, tagRegex, []byte(t))
	case value.ValueRange:
		buf = append(buf, byte(tagRange))
		buf = append(buf, boolByte(t.BeginExcl), boolByte(t.EndExcl))
		buf = encodeValue(buf, t.Begin)
		return encodeValue(buf, t.End)
	case value.Closure:
		return encodeBytesLike(buf, tagClosure, []byte(t.Name))
	case value.Geometry:
		return encodeGeometry(buf, t)
	default:
		panic(errs.Unreachable("codec.encodeValue: unknown value kind"))
	}
}

func encodeNumber(buf []byte, n value.Number) []byte {
	switch n.Repr {
	case value.ReprInt:
		buf = append(buf, byte(tagNumberInt))
		return putUint64(buf, uint64(n.Int))
	case value.ReprFloat:
		buf = append(buf, byte(tagNumberFloat))
		return putUint64(buf, math.Float64bits(n.Float))
	default:
		s := n.Decimal.String()
		return encodeBytesLike(buf, tagNumberDecimal, []byte(s))
	}
}

func encodeBytesLike(buf []byte, t tag, b []byte) []byte {
	buf = append(buf, byte(t))
	buf = putUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func encodeGeometry(buf []byte, g value.Geometry) []byte {
	buf = append(buf, byte(tagGeometry))
	buf = append(buf, byte(g.GKind))
	buf = putUint32(buf, uint32(len(g.Points)))
	for _, p := range g.Points {
		buf = putUint64(buf, math.Float64bits(p.X))
		buf = putUint64(buf, math.Float64bits(p.Y))
	}
	buf = putUint32(buf, uint32(len(g.Nested)))
	for _, n := range g.Nested {
		buf = encodeGeometry(buf, n)
	}
	return buf
}

func putUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Decode parses a revisioned wire value. It returns an *errs.Error wrapping
// KindRevision if the body was written with a revision newer than
// CurrentRevision, carrying the offset at which decoding stopped so the
// caller can report precisely where the incompatibility was detected.
func Decode(b []byte) (value.Value, error) {
	d := &decoder{buf: b}
	rev := d.uint16()
	if d.err != nil {
		return nil, d.err
	}
	if rev > CurrentRevision {
		return nil, errs.Revision(2, rev, CurrentRevision)
	}
	v := d.value()
	if d.err != nil {
		return nil, d.err
	}
	return v, nil
}

type decoder struct {
	buf []byte
	pos int
	err error
}

func (d *decoder) fail(offset int) {
	if d.err == nil {
		d.err = errs.Revision(offset, 0, CurrentRevision)
	}
}

// need reports whether n more bytes are available at the current
// position. n is derived from a length tag read off the wire, so pos+n
// is computed via numeric.SafeAdd rather than plain addition: a
// corrupted or adversarial length field close to math.MaxUint64 must
// fail cleanly instead of wrapping pos around and passing the bounds
// check.
func (d *decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	end, overflowed := numeric.SafeAdd(uint64(d.pos), uint64(n))
	if overflowed || end > uint64(len(d.buf)) {
		d.fail(d.pos)
		return false
	}
	return true
}

func (d *decoder) byte() byte {
	if !d.need(1) {
		return 0
	}
	b := d.buf[d.pos]
	d.pos++
	return b
}

func (d *decoder) uint16() uint16 {
	if !d.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v
}

func (d *decoder) uint32() uint32 {
	if !d.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v
}

func (d *decoder) uint64() uint64 {
	if !d.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v
}

func (d *decoder) bytes(n int) []byte {
	if !d.need(n) {
		return nil
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) value() value.Value {
	if d.err != nil {
		return nil
	}
	t := tag(d.byte())
	switch t {
	case tagNull:
		return value.Null{}
	case tagBoolFalse:
		return value.Bool(false)
	case tagBoolTrue:
		return value.Bool(true)
	case tagNumberInt:
		return value.Int(int64(d.uint64()))
	case tagNumberFloat:
		return value.Float(math.Float64frombits(d.uint64()))
	case tagNumberDecimal:
		s := d.stringBody()
		dec, err := decimal.NewFromString(s)
		if err != nil {
			d.fail(d.pos)
			return nil
		}
		return value.Dec(dec)
	case tagString:
		return value.String(d.stringBody())
	case tagBytes:
		n := int(d.uint32())
		return value.Bytes(append([]byte(nil), d.bytes(n)...))
	case tagDatetime:
		ns := int64(d.uint64())
		return value.Datetime(time.Unix(0, ns).UTC())
	case tagDuration:
		return value.Duration(time.Duration(d.uint64()))
	case tagUuid:
		raw := d.bytes(16)
		var u uuid.UUID
		if raw != nil {
			copy(u[:], raw)
		}
		return value.Uuid(u)
	case tagArray:
		n := int(d.uint32())
		arr := make(value.Array, n)
		for i := 0; i < n && d.err == nil; i++ {
			arr[i] = d.value()
		}
		return arr
	case tagObject:
		n := int(d.uint32())
		obj := make(value.Object, n)
		for i := 0; i < n && d.err == nil; i++ {
			k := d.stringBody()
			obj[k] = d.value()
		}
		return obj
	case tagRecordID:
		tbl := d.stringBody()
		id := d.value()
		return value.RecordID{Table: tbl, ID: id}
	case tagRegex:
		return value.Regex(d.stringBody())
	case tagRange:
		be := d.byte() != 0
		ee := d.byte() != 0
		begin := d.value()
		end := d.value()
		return value.ValueRange{Begin: begin, End: end, BeginExcl: be, EndExcl: ee}
	case tagClosure:
		return value.Closure{Name: d.stringBody()}
	case tagGeometry:
		return d.geometry()
	default:
		d.fail(d.pos - 1)
		return nil
	}
}

func (d *decoder) stringBody() string {
	n := int(d.uint32())
	b := d.bytes(n)
	if b == nil {
		return ""
	}
	return string(b)
}

func (d *decoder) geometry() value.Geometry {
	gk := value.GeometryKind(d.byte())
	npts := int(d.uint32())
	pts := make([]value.Point, npts)
	for i := 0; i < npts && d.err == nil; i++ {
		x := math.Float64frombits(d.uint64())
		y := math.Float64frombits(d.uint64())
		pts[i] = value.Point{X: x, Y: y}
	}
	nnest := int(d.uint32())
	nested := make([]value.Geometry, nnest)
	for i := 0; i < nnest && d.err == nil; i++ {
		nested[i] = d.geometry()
	}
	return value.Geometry{GKind: gk, Points: pts, Nested: nested}
}
