package driver_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/driver"
	"github.com/solidb/solidb/pkg/value"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCommandRoundTrip(t *testing.T) {
	cmd := &driver.Command{
		Kind:       driver.KindDocInsert,
		Database:   "d1",
		Collection: "items",
		Doc: value.NewObject().
			Set("_key", value.String("a")).
			Set("name", value.String("widget")).
			Build(),
	}
	encoded := driver.EncodeCommand(cmd)
	decoded, err := driver.DecodeCommand(encoded)
	require.NoError(t, err)
	require.Equal(t, driver.KindDocInsert, decoded.Kind)
	require.Equal(t, "d1", decoded.Database)
	require.Equal(t, "items", decoded.Collection)
	name, ok := decoded.Doc.Field("name")
	require.True(t, ok)
	require.Equal(t, "widget", name.AsString())
}

func TestEncodeDecodeCommandWithNestedInner(t *testing.T) {
	cmd := &driver.Command{
		Kind:  driver.KindTransactionCommand,
		TxID:  7,
		Inner: &driver.Command{Kind: driver.KindDocDelete, Database: "d1", Collection: "items", Key: "a"},
	}
	decoded, err := driver.DecodeCommand(driver.EncodeCommand(cmd))
	require.NoError(t, err)
	require.EqualValues(t, 7, decoded.TxID)
	require.NotNil(t, decoded.Inner)
	require.Equal(t, driver.KindDocDelete, decoded.Inner.Kind)
	require.Equal(t, "a", decoded.Inner.Key)
}

func TestEncodeDecodeResponseRoundTrip(t *testing.T) {
	resp := &driver.Response{
		Ok:      true,
		Data:    value.Array([]value.Value{value.Int(1), value.Int(2)}),
		HasData: true,
		Count:   2,
	}
	decoded, err := driver.DecodeResponse(driver.EncodeResponse(resp))
	require.NoError(t, err)
	require.True(t, decoded.Ok)
	require.Equal(t, 2, decoded.Count)
	require.Len(t, decoded.Data.AsArray(), 2)
}

func TestEncodeDecodeErrorResponse(t *testing.T) {
	resp := &driver.Response{Ok: false, ErrorKind: driver.ErrAuthError, ErrorMessage: "bad credentials"}
	decoded, err := driver.DecodeResponse(driver.EncodeResponse(resp))
	require.NoError(t, err)
	require.False(t, decoded.Ok)
	require.Equal(t, driver.ErrAuthError, decoded.ErrorKind)
	require.Equal(t, "bad credentials", decoded.ErrorMessage)
}

func TestEncodeDecodeBatchResponse(t *testing.T) {
	resp := &driver.Response{
		Ok: true,
		Responses: []*driver.Response{
			{Ok: true, Count: 1},
			{Ok: false, ErrorKind: driver.ErrDatabaseError, ErrorMessage: "boom"},
		},
	}
	decoded, err := driver.DecodeResponse(driver.EncodeResponse(resp))
	require.NoError(t, err)
	require.Len(t, decoded.Responses, 2)
	require.True(t, decoded.Responses[0].Ok)
	require.False(t, decoded.Responses[1].Ok)
}
