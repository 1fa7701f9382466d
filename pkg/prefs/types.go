package prefs

// DataType tags every stored value. The numeric values are part of the
// persisted format and match what existing device images contain.
type DataType = uint8

const (
	TypeNone    DataType = 0
	TypeBool    DataType = 1
	TypeChar    DataType = 2
	TypeUChar   DataType = 3
	TypeShort   DataType = 4
	TypeUShort  DataType = 5
	TypeInt     DataType = 6
	TypeUInt    DataType = 7
	TypeLong    DataType = 8
	TypeULong   DataType = 9
	TypeLong64  DataType = 10
	TypeULong64 DataType = 11
	TypeFloat   DataType = 12
	TypeDouble  DataType = 13
	TypeString  DataType = 14
	TypeBytes   DataType = 15
)

// TypeName renders a tag for display surfaces.
func TypeName(t DataType) string {
	switch t {
	case TypeNone:
		return "none"
	case TypeBool:
		return "bool"
	case TypeChar:
		return "int8"
	case TypeUChar:
		return "uint8"
	case TypeShort:
		return "int16"
	case TypeUShort:
		return "uint16"
	case TypeInt:
		return "int32"
	case TypeUInt:
		return "uint32"
	case TypeLong:
		return "long"
	case TypeULong:
		return "ulong"
	case TypeLong64:
		return "int64"
	case TypeULong64:
		return "uint64"
	case TypeFloat:
		return "float32"
	case TypeDouble:
		return "float64"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	default:
		return "unknown"
	}
}
