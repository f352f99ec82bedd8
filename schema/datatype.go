package schema

import "strings"

// DataType is the native storage type of a column. Each dialect renders it to
// its own DDL type name. Array types are formed with Array().
type DataType uint16

const (
	TypeNone DataType = iota
	TypeBoolean
	TypeSmallInt
	TypeInteger
	TypeBigInt
	TypeReal
	TypeDouble
	TypeText
	TypeBytes
	TypeTimestamp
	TypeUUID
	TypeJSON

	typeArray DataType = 1 << 8
)

var dataTypeNames = map[DataType]string{
	TypeNone:      "none",
	TypeBoolean:   "boolean",
	TypeSmallInt:  "smallint",
	TypeInteger:   "integer",
	TypeBigInt:    "bigint",
	TypeReal:      "real",
	TypeDouble:    "double",
	TypeText:      "text",
	TypeBytes:     "bytes",
	TypeTimestamp: "timestamp",
	TypeUUID:      "uuid",
	TypeJSON:      "json",
}

// Array returns the array type whose elements are t.
func (t DataType) Array() DataType { return t | typeArray }

// IsArray reports whether t is an array type.
func (t DataType) IsArray() bool { return t&typeArray != 0 }

// Elem returns the element type of an array type, or t itself.
func (t DataType) Elem() DataType { return t &^ typeArray }

func (t DataType) String() string {
	name, ok := dataTypeNames[t.Elem()]
	if !ok {
		name = "unknown"
	}
	if t.IsArray() {
		return name + "[]"
	}
	return name
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	array := strings.HasSuffix(s, "[]")
	s = strings.TrimSuffix(s, "[]")
	for t, name := range dataTypeNames {
		if name == s {
			if array {
				return t.Array(), true
			}
			return t, true
		}
	}
	return TypeNone, false
}
