package exec

import (
	"fmt"
	"math"
	"strings"

	"github.com/solidb/solidb/pkg/value"
)

// callBuiltin dispatches the query language's scalar function library
// (spec §4.3 built-in functions: string, math, and collection helpers).
func callBuiltin(name string, args []value.Value) (value.Value, error) {
	switch strings.ToUpper(name) {
	case "LENGTH":
		if len(args) != 1 {
			return value.Null(), fmt.Errorf("exec: LENGTH takes 1 argument")
		}
		switch args[0].Kind() {
		case value.KindString:
			return value.Int(int64(len(args[0].AsString()))), nil
		case value.KindArray:
			return value.Int(int64(len(args[0].AsArray()))), nil
		case value.KindObject:
			return value.Int(int64(len(args[0].Keys()))), nil
		}
		return value.Int(0), nil
	case "UPPER":
		return value.String(strings.ToUpper(args[0].AsString())), nil
	case "LOWER":
		return value.String(strings.ToLower(args[0].AsString())), nil
	case "TRIM":
		return value.String(strings.TrimSpace(args[0].AsString())), nil
	case "CONCAT":
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(stringify(a))
		}
		return value.String(sb.String()), nil
	case "SUBSTRING":
		s := args[0].AsString()
		start := int(args[1].Number())
		if start < 0 {
			start = 0
		}
		if start > len(s) {
			start = len(s)
		}
		end := len(s)
		if len(args) > 2 {
			end = start + int(args[2].Number())
			if end > len(s) {
				end = len(s)
			}
		}
		return value.String(s[start:end]), nil
	case "CONTAINS":
		return value.Bool(strings.Contains(args[0].AsString(), args[1].AsString())), nil
	case "SPLIT":
		parts := strings.Split(args[0].AsString(), args[1].AsString())
		items := make([]value.Value, len(parts))
		for i, p := range parts {
			items[i] = value.String(p)
		}
		return value.Array(items), nil
	case "ABS":
		return value.Float(math.Abs(args[0].Number())), nil
	case "ROUND":
		return value.Float(math.Round(args[0].Number())), nil
	case "FLOOR":
		return value.Float(math.Floor(args[0].Number())), nil
	case "CEIL":
		return value.Float(math.Ceil(args[0].Number())), nil
	case "SQRT":
		return value.Float(math.Sqrt(args[0].Number())), nil
	case "KEYS":
		if args[0].Kind() != value.KindObject {
			return value.Array(nil), nil
		}
		ks := args[0].Keys()
		items := make([]value.Value, len(ks))
		for i, k := range ks {
			items[i] = value.String(k)
		}
		return value.Array(items), nil
	case "VALUES":
		if args[0].Kind() != value.KindObject {
			return value.Array(nil), nil
		}
		ks := args[0].Keys()
		items := make([]value.Value, len(ks))
		for i, k := range ks {
			f, _ := args[0].Field(k)
			items[i] = f
		}
		return value.Array(items), nil
	case "APPEND":
		if args[0].Kind() != value.KindArray {
			return value.Null(), fmt.Errorf("exec: APPEND expects an array")
		}
		return value.Array(append(append([]value.Value(nil), args[0].AsArray()...), args[1])), nil
	case "FIRST":
		if args[0].Kind() != value.KindArray || len(args[0].AsArray()) == 0 {
			return value.Null(), nil
		}
		return args[0].AsArray()[0], nil
	case "LAST":
		arr := args[0].AsArray()
		if len(arr) == 0 {
			return value.Null(), nil
		}
		return arr[len(arr)-1], nil
	case "TO_STRING":
		return value.String(stringify(args[0])), nil
	case "TO_NUMBER":
		return value.Float(args[0].Number()), nil
	case "TO_BOOL":
		return value.Bool(args[0].Truthy()), nil
	case "IS_NULL":
		return value.Bool(args[0].IsNull()), nil
	}
	return value.Null(), fmt.Errorf("exec: unknown function %s", name)
}
