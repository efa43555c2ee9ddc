package document

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Kind classifies a document value into one of the JSON categories.
type Kind string

const (
	KindNull    Kind = "null"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// KindOf classifies any Go value. Every numeric type classifies as number;
// an absent value (nil) classifies as null.
func KindOf(v any) Kind {
	if v == nil {
		return KindNull
	}
	switch v.(type) {
	case string:
		return KindString
	case bool:
		return KindBoolean
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return KindNumber
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return KindArray
	case reflect.Map:
		return KindObject
	}
	return KindObject
}

// AsNumber normalizes any numeric value to float64. Strings never coerce,
// even when they look numeric.
func AsNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

// Equal reports value equality: numbers compare numerically regardless of
// their Go type, same-kind values compare by deep equality, and mixed kinds
// fall back to comparing their canonical string forms.
func Equal(a, b any) bool {
	if af, aok := AsNumber(a); aok {
		if bf, bok := AsNumber(b); bok {
			return af == bf
		}
	}
	if KindOf(a) == KindOf(b) {
		return reflect.DeepEqual(a, b)
	}
	return Stringify(a) == Stringify(b)
}

// Compare orders two values for range filters. Only number pairs and string
// pairs are ordered; every other pairing reports ok=false. A numeric-looking
// string is still a string.
func Compare(a, b any) (int, bool) {
	if af, aok := AsNumber(a); aok {
		if bf, bok := AsNumber(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return strings.Compare(as, bs), true
		}
	}
	return 0, false
}

// SortCompare is a total order over document values, used for sorting:
// null sorts before everything, then numbers, then strings, then booleans
// (false before true). Pairs with no defined order rank equal, so a stable
// sort preserves their arrival order.
func SortCompare(a, b any) int {
	ka, kb := KindOf(a), KindOf(b)
	switch {
	case ka == KindNull && kb == KindNull:
		return 0
	case ka == KindNull:
		return -1
	case kb == KindNull:
		return 1
	}
	if af, aok := AsNumber(a); aok {
		if bf, bok := AsNumber(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
		return -1
	}
	if _, bok := AsNumber(b); bok {
		return 1
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return strings.Compare(as, bs)
		}
		return -1
	}
	if _, bok := b.(string); bok {
		return 1
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case !ab && bb:
				return -1
			case ab && !bb:
				return 1
			}
		}
	}
	return 0
}

// Stringify renders the canonical string form used by substring matching and
// by mixed-kind equality: numbers print without a trailing ".0", booleans as
// true/false, null as "null", and composites as their JSON encoding.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	}
	if f, ok := AsNumber(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
