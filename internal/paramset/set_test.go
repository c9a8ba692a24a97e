package paramset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/configd/internal/cderrors"
)

func jsonValue(t *testing.T, raw string) Value {
	t.Helper()
	v, err := decodeJSON([]byte(raw))
	require.NoError(t, err)
	return NewValue(v)
}

func TestSetAddNoOverwrite(t *testing.T) {
	s := NewSet("setA")
	require.NoError(t, s.Add("foo", jsonValue(t, "42")))

	err := s.Add("foo", jsonValue(t, "7"))
	var cdErr *cderrors.Error
	require.ErrorAs(t, err, &cdErr)
	assert.Equal(t, cderrors.KindParameterAlreadyExists, cdErr.Kind)

	got, err := s.GetParameter("foo")
	require.NoError(t, err)
	i, err := got.Int64()
	require.NoError(t, err)
	assert.EqualValues(t, 42, i)
}

func TestSetUpdateAtomicity(t *testing.T) {
	s := NewSet("setA")
	s.SetCalibratable(true)
	require.NoError(t, s.Add("foo", jsonValue(t, "1")))
	require.NoError(t, s.Add("bar", jsonValue(t, "2")))

	err := s.Update(map[string]Value{
		"foo": jsonValue(t, "9"),
		"baz": jsonValue(t, "9"),
	})
	var cdErr *cderrors.Error
	require.ErrorAs(t, err, &cdErr)
	assert.Equal(t, cderrors.KindParametersNotFound, cdErr.Kind)

	v, _ := s.GetParameter("foo")
	i, _ := v.Int64()
	assert.EqualValues(t, 1, i, "update must not have applied partially")
}

func TestSetUpdateNotCalibratable(t *testing.T) {
	s := NewSet("setA")
	require.NoError(t, s.Add("foo", jsonValue(t, "1")))

	err := s.Update(map[string]Value{"foo": jsonValue(t, "2")})
	var cdErr *cderrors.Error
	require.ErrorAs(t, err, &cdErr)
	assert.Equal(t, cderrors.KindParameterSetNotCalibratable, cdErr.Kind)

	v, _ := s.GetParameter("foo")
	i, _ := v.Int64()
	assert.EqualValues(t, 1, i)
}

func TestGetParameterSetAsStringSortsKeys(t *testing.T) {
	s := NewSet("setA")
	s.SetCalibratable(true)
	require.NoError(t, s.Add("foo", jsonValue(t, "42")))
	require.NoError(t, s.Add("bar", jsonValue(t, "69420")))

	str, err := s.GetParameterSetAsString()
	require.NoError(t, err)
	assert.JSONEq(t, `{"parameters":{"bar":69420,"foo":42},"qualifier":0}`, str)
	assert.Less(t, indexOf(str, `"bar"`), indexOf(str, `"foo"`))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestRoundTrip(t *testing.T) {
	s := NewSet("setA")
	s.SetCalibratable(true)
	s.SetQualifier(QualifierModified)
	require.NoError(t, s.Add("foo", jsonValue(t, "42")))
	require.NoError(t, s.Add("bar", jsonValue(t, `"hello"`)))
	require.NoError(t, s.Add("arr", jsonValue(t, "[1,2,3]")))

	str, err := s.GetParameterSetAsString()
	require.NoError(t, err)

	reparsed, err := ParseSet("setA", str)
	require.NoError(t, err)

	str2, err := reparsed.GetParameterSetAsString()
	require.NoError(t, err)
	assert.Equal(t, str, str2)
}

func TestContainsSameContentIgnoresQualifier(t *testing.T) {
	a := NewSet("setA")
	require.NoError(t, a.Add("foo", jsonValue(t, "42")))
	a.SetQualifier(QualifierDefault)

	b := NewSet("setB")
	require.NoError(t, b.Add("foo", jsonValue(t, "42")))
	b.SetQualifier(QualifierModified)

	assert.True(t, a.ContainsSameContent(b))

	require.NoError(t, b.Add("extra", jsonValue(t, "1")))
	assert.False(t, a.ContainsSameContent(b))
}

func TestFloatAcceptsIntegerLiteral(t *testing.T) {
	v := jsonValue(t, "42")
	f, err := v.Float64()
	require.NoError(t, err)
	assert.Equal(t, 42.0, f)
}

func TestIntRejectsFractional(t *testing.T) {
	v := jsonValue(t, "42.5")
	_, err := v.Int64()
	require.Error(t, err)
}

func TestSignedWidthAccessorsRejectOverflow(t *testing.T) {
	i8, err := jsonValue(t, "127").Int8()
	require.NoError(t, err)
	assert.EqualValues(t, 127, i8)
	_, err = jsonValue(t, "128").Int8()
	require.Error(t, err)
	_, err = jsonValue(t, "-129").Int8()
	require.Error(t, err)

	i16, err := jsonValue(t, "32767").Int16()
	require.NoError(t, err)
	assert.EqualValues(t, 32767, i16)
	_, err = jsonValue(t, "32768").Int16()
	require.Error(t, err)
	_, err = jsonValue(t, "-32769").Int16()
	require.Error(t, err)

	_, err = jsonValue(t, "2147483648").Int32()
	require.Error(t, err)
}

func TestUnsignedWidthAccessorsRejectOverflowAndNegative(t *testing.T) {
	u8, err := jsonValue(t, "255").Uint8()
	require.NoError(t, err)
	assert.EqualValues(t, 255, u8)
	_, err = jsonValue(t, "256").Uint8()
	require.Error(t, err)
	_, err = jsonValue(t, "-1").Uint8()
	require.Error(t, err)

	u16, err := jsonValue(t, "65535").Uint16()
	require.NoError(t, err)
	assert.EqualValues(t, 65535, u16)
	_, err = jsonValue(t, "65536").Uint16()
	require.Error(t, err)

	u32, err := jsonValue(t, "4294967295").Uint32()
	require.NoError(t, err)
	assert.EqualValues(t, 4294967295, u32)
	_, err = jsonValue(t, "4294967296").Uint32()
	require.Error(t, err)
}

func TestFloat32RejectsOutOfRange(t *testing.T) {
	f32, err := jsonValue(t, "3.5").Float32()
	require.NoError(t, err)
	assert.InDelta(t, 3.5, f32, 0.0001)

	_, err = jsonValue(t, "1e309").Float32()
	require.Error(t, err)
}

func TestArray2D(t *testing.T) {
	v := jsonValue(t, "[[1,2],[3,4]]")
	rows, err := v.Array2D()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	first, err := rows[0][0].Int64()
	require.NoError(t, err)
	assert.EqualValues(t, 1, first)
}
