package table

// FieldType enumerates the closed set of supported field kinds.
//
// The set is deliberately closed: field operations dispatch on the tag, so no
// runtime type machinery leaks into record buffers or persisted data.
type FieldType uint8

const (
	// TypeI32 is a 32-bit signed integer scalar.
	TypeI32 FieldType = 0x1
	// TypeI64 is a 64-bit signed integer scalar (also used for record ids).
	TypeI64 FieldType = 0x2
	// TypeF32 is a 32-bit float scalar.
	TypeF32 FieldType = 0x3
	// TypeF64 is a 64-bit float scalar.
	TypeF64 FieldType = 0x4
	// TypeString is a fixed-capacity byte string; Count is the capacity.
	TypeString FieldType = 0x5
	// TypeArrayI32 is a fixed-length array of 32-bit integers.
	TypeArrayI32 FieldType = 0x6
	// TypeArrayF32 is a fixed-length array of 32-bit floats.
	TypeArrayF32 FieldType = 0x7
	// TypeArrayF64 is a fixed-length array of 64-bit floats.
	TypeArrayF64 FieldType = 0x8
	// TypeVarArrayU16 is a variable-length array of 16-bit unsigned integers.
	TypeVarArrayU16 FieldType = 0x9
	// TypeVarArrayF32 is a variable-length array of 32-bit floats.
	TypeVarArrayF32 FieldType = 0xA
	// TypeVarArrayF64 is a variable-length array of 64-bit floats.
	TypeVarArrayF64 FieldType = 0xB
	// TypeFlag is a single bit packed into a shared 64-bit word.
	TypeFlag FieldType = 0xC
)

func (t FieldType) String() string {
	switch t {
	case TypeI32:
		return "I32"
	case TypeI64:
		return "I64"
	case TypeF32:
		return "F32"
	case TypeF64:
		return "F64"
	case TypeString:
		return "String"
	case TypeArrayI32:
		return "ArrayI32"
	case TypeArrayF32:
		return "ArrayF32"
	case TypeArrayF64:
		return "ArrayF64"
	case TypeVarArrayU16:
		return "VarArrayU16"
	case TypeVarArrayF32:
		return "VarArrayF32"
	case TypeVarArrayF64:
		return "VarArrayF64"
	case TypeFlag:
		return "Flag"
	default:
		return "Unknown"
	}
}

// IsFixedArray reports whether the type is a fixed-length array, whatever
// its element count.
func (t FieldType) IsFixedArray() bool {
	switch t {
	case TypeArrayI32, TypeArrayF32, TypeArrayF64:
		return true
	default:
		return false
	}
}

// IsVariable reports whether the type stores its values outside the record
// buffer (variable-length arrays).
func (t FieldType) IsVariable() bool {
	switch t {
	case TypeVarArrayU16, TypeVarArrayF32, TypeVarArrayF64:
		return true
	default:
		return false
	}
}

// elemSize returns the in-row byte size of one element, or 0 for types that
// occupy no row bytes of their own (variable arrays store a heap index, flags
// share packed words).
func (t FieldType) elemSize() int {
	switch t {
	case TypeI32, TypeF32, TypeArrayI32, TypeArrayF32:
		return 4
	case TypeI64, TypeF64, TypeArrayF64:
		return 8
	case TypeString:
		return 1
	default:
		return 0
	}
}

// Field describes one named, typed schema entry.
type Field struct {
	// Name is the field's dotted, hierarchical name (e.g. "coord.ra").
	Name string
	// Type is the field's type tag.
	Type FieldType
	// Doc describes the field for humans; persisted as the column comment.
	Doc string
	// Units is a free-form unit string (e.g. "pixel", "count").
	Units string
	// Count is the element count for fixed arrays, the byte capacity for
	// strings, and 1 for scalars and flags. Variable arrays have Count 0.
	Count int
}

// compatible reports whether two fields can occupy the same slot: same type
// and same element count.
func (f Field) compatible(other Field) bool {
	return f.Type == other.Type && f.Count == other.Count
}
