package codec_test

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/ligerdb/codec"
	"github.com/erigontech/ligerdb/errs"
	"github.com/erigontech/ligerdb/value"
)

func roundTrip(t *testing.T, v value.Value) value.Value {
	t.Helper()
	b := codec.Encode(v)
	got, err := codec.Decode(b)
	require.NoError(t, err)
	return got
}

func TestRoundTripScalars(t *testing.T) {
	require.True(t, value.Null{}.Equal(roundTrip(t, value.Null{})))
	require.True(t, value.Bool(true).Equal(roundTrip(t, value.Bool(true))))
	require.True(t, value.Int(-42).Equal(roundTrip(t, value.Int(-42))))
	require.True(t, value.String("hello").Equal(roundTrip(t, value.String("hello"))))
}

func TestRoundTripFloatBitPattern(t *testing.T) {
	nan := value.Float(math.NaN())
	got := roundTrip(t, nan)
	require.True(t, nan.Equal(got))

	negZero := value.Float(math.Copysign(0, -1))
	got2 := roundTrip(t, negZero)
	require.True(t, negZero.Equal(got2))
	require.False(t, got2.Equal(value.Float(0)))
}

func TestRoundTripCompound(t *testing.T) {
	arr := value.Array{value.Int(1), value.String("a"), value.Bool(false)}
	got := roundTrip(t, arr)
	require.True(t, arr.Equal(got))

	obj := value.Object{"x": value.Int(1), "y": value.Array{value.Int(2)}}
	gotObj := roundTrip(t, obj)
	require.True(t, obj.Equal(gotObj))

	rid := value.RecordID{Table: "person", ID: value.String("tobie")}
	gotRid := roundTrip(t, rid)
	require.True(t, rid.Equal(gotRid))
}

func TestRoundTripUuidDatetimeDuration(t *testing.T) {
	u := value.Uuid(uuid.New())
	require.True(t, u.Equal(roundTrip(t, u)))

	dt := value.Datetime(time.Now().UTC().Truncate(time.Nanosecond))
	require.True(t, dt.Equal(roundTrip(t, dt)))

	dur := value.Duration(5 * time.Second)
	require.True(t, dur.Equal(roundTrip(t, dur)))
}

func TestDecodeFutureRevisionFails(t *testing.T) {
	b := codec.Encode(value.Int(1))
	binary.BigEndian.PutUint16(b[0:2], codec.CurrentRevision+1)
	_, err := codec.Decode(b)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindRevision))
}

func TestDecodeTruncatedFails(t *testing.T) {
	b := codec.Encode(value.String("hello world"))
	_, err := codec.Decode(b[:len(b)-2])
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindRevision))
}
