package driver

import (
	"encoding/json"
	"errors"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/solidb/solidb/pkg/value"
)

// Kind identifies a Command's or Response's variant within the tagged
// union the wire format carries (spec §6.1).
type Kind uint8

const (
	KindPing Kind = iota + 1
	KindAuth
	KindDatabaseCreate
	KindDatabaseDrop
	KindCollectionCreate
	KindCollectionDrop
	KindCollectionStats
	KindDocGet
	KindDocInsert
	KindDocUpdate
	KindDocDelete
	KindDocList
	KindQuery
	KindExplain
	KindIndexCreate
	KindIndexDrop
	KindTransactionBegin
	KindTransactionCommit
	KindTransactionRollback
	KindTransactionCommand
	KindBatch
	KindBulkInsert
	// KindDelegated covers scheduler/admin/cluster/columnar commands:
	// out of core scope (spec §1 Non-goals), accepted by the dispatcher
	// and rejected with InvalidCommand rather than dropping the
	// connection, so a driver can surface "not supported here" cleanly.
	KindDelegated
)

// DriverErrorKind is the closed set of error kinds spec §6.1 names.
type DriverErrorKind string

const (
	ErrInvalidCommand  DriverErrorKind = "InvalidCommand"
	ErrProtocolError   DriverErrorKind = "ProtocolError"
	ErrMessageTooLarge DriverErrorKind = "MessageTooLarge"
	ErrConnectionError DriverErrorKind = "ConnectionError"
	ErrAuthError       DriverErrorKind = "AuthError"
	ErrDatabaseError   DriverErrorKind = "DatabaseError"
	ErrTransactionError DriverErrorKind = "TransactionError"
)

var errMessageTooLarge = errors.New("driver: frame exceeds max message size")

// Command is a decoded request frame. Only the fields relevant to Kind
// are populated; the rest stay at their zero value.
type Command struct {
	Kind Kind

	Database   string
	Collection string
	Username   string
	Password   string
	Key        string
	Doc        value.Value
	Replace    bool
	Limit      int
	Offset     int

	SDBQL    string
	BindVars map[string]value.Value

	TxID      uint64
	Isolation string
	Inner     *Command

	CollType             string
	IndexName            string
	IndexKind            string
	Fields               []string
	LatField             string
	LngField             string
	ExpireAfterSeconds   int64
	VectorDim            int
	VectorMetric         string
	VectorM              int
	VectorEfConstruction int
	VectorEfSearch       int
	Unique               bool
	Sparse               bool

	Batch []*Command
	Docs  []value.Value
}

// Response is a decoded/encoded reply frame.
type Response struct {
	Ok      bool
	Data    value.Value
	HasData bool
	Count   int
	TxID    uint64

	ErrorKind    DriverErrorKind
	ErrorMessage string

	Responses []*Response
}

// field numbers for the hand-rolled wire encoding. Command and
// Response each own their own numbering; reused numbers across
// distinct Kinds are fine because the decoder already knows which
// struct it is filling in from the leading kind tag.
const (
	fKind = 1

	fDatabase   = 2
	fCollection = 3
	fUsername   = 4
	fPassword   = 5
	fKey        = 6
	fDoc        = 7
	fReplace    = 8
	fLimit      = 9
	fOffset     = 10
	fSDBQL      = 11
	fBindVars   = 12
	fTxID       = 13
	fIsolation  = 14
	fInner      = 15
	fIndexName  = 16
	fIndexKind  = 17
	fFields     = 18
	fLatField   = 19
	fLngField   = 20
	fExpireSecs = 21
	fVecDim     = 22
	fVecMetric  = 23
	fVecM       = 24
	fVecEfCons  = 25
	fVecEfSrch  = 26
	fUnique     = 27
	fSparse     = 28
	fBatchItem  = 29
	fDoc2       = 30 // Docs, repeated
	fCollType   = 31

	fOk        = 2
	fData      = 3
	fCount     = 4
	fErrorKind = 6
	fErrorMsg  = 7
	fResponse  = 8
)

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarintField(b, num, 1)
}

func appendJSONField(b []byte, num protowire.Number, v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return b
	}
	return appendBytesField(b, num, raw)
}

// EncodeCommand serializes cmd into its wire payload.
func EncodeCommand(cmd *Command) []byte {
	var b []byte
	b = appendVarintField(b, fKind, uint64(cmd.Kind))
	b = appendStringField(b, fDatabase, cmd.Database)
	b = appendStringField(b, fCollection, cmd.Collection)
	b = appendStringField(b, fUsername, cmd.Username)
	b = appendStringField(b, fPassword, cmd.Password)
	b = appendStringField(b, fKey, cmd.Key)
	b = appendJSONField(b, fDoc, value.ToJSON(cmd.Doc))
	b = appendBoolField(b, fReplace, cmd.Replace)
	b = appendVarintField(b, fLimit, uint64(cmd.Limit))
	b = appendVarintField(b, fOffset, uint64(cmd.Offset))
	b = appendStringField(b, fSDBQL, cmd.SDBQL)
	if len(cmd.BindVars) > 0 {
		jsonBinds := make(map[string]any, len(cmd.BindVars))
		for k, v := range cmd.BindVars {
			jsonBinds[k] = value.ToJSON(v)
		}
		b = appendJSONField(b, fBindVars, jsonBinds)
	}
	b = appendVarintField(b, fTxID, cmd.TxID)
	b = appendStringField(b, fIsolation, cmd.Isolation)
	if cmd.Inner != nil {
		b = appendBytesField(b, fInner, EncodeCommand(cmd.Inner))
	}
	b = appendStringField(b, fCollType, cmd.CollType)
	b = appendStringField(b, fIndexName, cmd.IndexName)
	b = appendStringField(b, fIndexKind, cmd.IndexKind)
	if len(cmd.Fields) > 0 {
		b = appendJSONField(b, fFields, cmd.Fields)
	}
	b = appendStringField(b, fLatField, cmd.LatField)
	b = appendStringField(b, fLngField, cmd.LngField)
	b = appendVarintField(b, fExpireSecs, uint64(cmd.ExpireAfterSeconds))
	b = appendVarintField(b, fVecDim, uint64(cmd.VectorDim))
	b = appendStringField(b, fVecMetric, cmd.VectorMetric)
	b = appendVarintField(b, fVecM, uint64(cmd.VectorM))
	b = appendVarintField(b, fVecEfCons, uint64(cmd.VectorEfConstruction))
	b = appendVarintField(b, fVecEfSrch, uint64(cmd.VectorEfSearch))
	b = appendBoolField(b, fUnique, cmd.Unique)
	b = appendBoolField(b, fSparse, cmd.Sparse)
	for _, sub := range cmd.Batch {
		b = appendBytesField(b, fBatchItem, EncodeCommand(sub))
	}
	for _, doc := range cmd.Docs {
		b = appendBytesField(b, fDoc2, mustJSON(value.ToJSON(doc)))
	}
	return b
}

func mustJSON(v any) []byte {
	raw, _ := json.Marshal(v)
	return raw
}

// DecodeCommand parses a wire payload produced by EncodeCommand.
func DecodeCommand(b []byte) (*Command, error) {
	cmd := &Command{BindVars: map[string]value.Value{}}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, dberrProtocol()
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, dberrProtocol()
			}
			b = b[n:]
			switch num {
			case fKind:
				cmd.Kind = Kind(v)
			case fReplace:
				cmd.Replace = v != 0
			case fLimit:
				cmd.Limit = int(v)
			case fOffset:
				cmd.Offset = int(v)
			case fTxID:
				cmd.TxID = v
			case fExpireSecs:
				cmd.ExpireAfterSeconds = int64(v)
			case fVecDim:
				cmd.VectorDim = int(v)
			case fVecM:
				cmd.VectorM = int(v)
			case fVecEfCons:
				cmd.VectorEfConstruction = int(v)
			case fVecEfSrch:
				cmd.VectorEfSearch = int(v)
			case fUnique:
				cmd.Unique = v != 0
			case fSparse:
				cmd.Sparse = v != 0
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, dberrProtocol()
			}
			b = b[n:]
			switch num {
			case fDatabase:
				cmd.Database = string(v)
			case fCollection:
				cmd.Collection = string(v)
			case fUsername:
				cmd.Username = string(v)
			case fPassword:
				cmd.Password = string(v)
			case fKey:
				cmd.Key = string(v)
			case fDoc:
				var raw any
				if err := json.Unmarshal(v, &raw); err == nil {
					cmd.Doc = value.FromJSON(raw)
				}
			case fSDBQL:
				cmd.SDBQL = string(v)
			case fBindVars:
				var raw map[string]any
				if err := json.Unmarshal(v, &raw); err == nil {
					for k, rv := range raw {
						cmd.BindVars[k] = value.FromJSON(rv)
					}
				}
			case fIsolation:
				cmd.Isolation = string(v)
			case fInner:
				inner, err := DecodeCommand(v)
				if err != nil {
					return nil, err
				}
				cmd.Inner = inner
			case fCollType:
				cmd.CollType = string(v)
			case fIndexName:
				cmd.IndexName = string(v)
			case fIndexKind:
				cmd.IndexKind = string(v)
			case fFields:
				var raw []string
				if err := json.Unmarshal(v, &raw); err == nil {
					cmd.Fields = raw
				}
			case fLatField:
				cmd.LatField = string(v)
			case fLngField:
				cmd.LngField = string(v)
			case fVecMetric:
				cmd.VectorMetric = string(v)
			case fBatchItem:
				sub, err := DecodeCommand(v)
				if err != nil {
					return nil, err
				}
				cmd.Batch = append(cmd.Batch, sub)
			case fDoc2:
				var raw any
				if err := json.Unmarshal(v, &raw); err == nil {
					cmd.Docs = append(cmd.Docs, value.FromJSON(raw))
				}
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, dberrProtocol()
			}
			b = b[n:]
		}
	}
	return cmd, nil
}

// EncodeResponse serializes resp into its wire payload.
func EncodeResponse(resp *Response) []byte {
	var b []byte
	b = appendBoolField(b, fOk, resp.Ok)
	if resp.HasData {
		b = appendJSONField(b, fData, value.ToJSON(resp.Data))
	}
	b = appendVarintField(b, fCount, uint64(resp.Count))
	b = appendVarintField(b, fTxID, uint64(resp.TxID))
	b = appendStringField(b, fErrorKind, string(resp.ErrorKind))
	b = appendStringField(b, fErrorMsg, resp.ErrorMessage)
	for _, sub := range resp.Responses {
		b = appendBytesField(b, fResponse, EncodeResponse(sub))
	}
	return b
}

// DecodeResponse parses a wire payload produced by EncodeResponse.
func DecodeResponse(b []byte) (*Response, error) {
	resp := &Response{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, dberrProtocol()
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, dberrProtocol()
			}
			b = b[n:]
			switch num {
			case fOk:
				resp.Ok = v != 0
			case fCount:
				resp.Count = int(v)
			case fTxID:
				resp.TxID = v
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, dberrProtocol()
			}
			b = b[n:]
			switch num {
			case fData:
				var raw any
				if err := json.Unmarshal(v, &raw); err == nil {
					resp.Data = value.FromJSON(raw)
					resp.HasData = true
				}
			case fErrorKind:
				resp.ErrorKind = DriverErrorKind(v)
			case fErrorMsg:
				resp.ErrorMessage = string(v)
			case fResponse:
				sub, err := DecodeResponse(v)
				if err != nil {
					return nil, err
				}
				resp.Responses = append(resp.Responses, sub)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, dberrProtocol()
			}
			b = b[n:]
		}
	}
	return resp, nil
}

func dberrProtocol() error {
	return errors.New("driver: malformed frame")
}
