package value_test

import (
	"encoding/json"
	"testing"

	"github.com/solidb/solidb/pkg/value"
	"github.com/stretchr/testify/require"
)

func TestCompareCrossTypeNumeric(t *testing.T) {
	require.Equal(t, 0, value.Compare(value.Int(3), value.Float(3.0)))
	require.Equal(t, -1, value.Compare(value.Int(1), value.Float(1.5)))
	require.Equal(t, 1, value.Compare(value.Float(2.5), value.Int(2)))
}

func TestCompareTypeOrdering(t *testing.T) {
	require.Equal(t, -1, value.Compare(value.Null(), value.Bool(false)))
	require.Equal(t, -1, value.Compare(value.Bool(true), value.Int(0)))
	require.Equal(t, -1, value.Compare(value.Int(1), value.String("a")))
}

func TestEqualNumericCoercion(t *testing.T) {
	require.True(t, value.Equal(value.Int(2), value.Float(2.0)))
	require.False(t, value.Equal(value.Int(2), value.String("2")))
}

func TestTruthy(t *testing.T) {
	require.False(t, value.Null().Truthy())
	require.False(t, value.Int(0).Truthy())
	require.False(t, value.String("").Truthy())
	require.False(t, value.Array(nil).Truthy())
	require.True(t, value.Int(1).Truthy())
	require.True(t, value.String("x").Truthy())
	require.True(t, value.Bool(true).Truthy())
}

func TestNormalizeNumber(t *testing.T) {
	n := value.NormalizeNumber(value.Float(4.0))
	require.Equal(t, value.KindInt, n.Kind())
	require.EqualValues(t, 4, n.AsInt())

	f := value.NormalizeNumber(value.Float(4.5))
	require.Equal(t, value.KindFloat, f.Kind())
}

func TestObjectBuilderPreservesInsertionOrder(t *testing.T) {
	obj := value.NewObject().Set("b", value.Int(2)).Set("a", value.Int(1)).Build()
	require.Equal(t, []string{"b", "a"}, obj.Keys())
	f, ok := obj.Field("a")
	require.True(t, ok)
	require.EqualValues(t, 1, f.AsInt())
}

func TestFromJSONRoundTrip(t *testing.T) {
	var raw any
	require.NoError(t, json.Unmarshal([]byte(`{"n":3,"s":"x","arr":[1,2.5,null],"b":true}`), &raw))
	v := value.FromJSON(raw)

	n, _ := v.Field("n")
	require.Equal(t, value.KindInt, n.Kind())

	arr, _ := v.Field("arr")
	require.Len(t, arr.AsArray(), 3)
	require.Equal(t, value.KindFloat, arr.AsArray()[1].Kind())
	require.True(t, arr.AsArray()[2].IsNull())
}

func TestMarshalUnmarshalJSON(t *testing.T) {
	v := value.NewObject().Set("name", value.String("alice")).Set("age", value.Int(30)).Build()
	b, err := json.Marshal(v)
	require.NoError(t, err)

	var out value.Value
	require.NoError(t, json.Unmarshal(b, &out))
	name, _ := out.Field("name")
	require.Equal(t, "alice", name.AsString())
}

func TestArrayCompareByLengthAfterCommonPrefix(t *testing.T) {
	short := value.Array([]value.Value{value.Int(1)})
	long := value.Array([]value.Value{value.Int(1), value.Int(2)})
	require.Equal(t, -1, value.Compare(short, long))
}
