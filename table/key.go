package table

import "fmt"

// invalidOffset is the sentinel offset of a default-constructed Key.
const invalidOffset = -1

// Key is a lightweight handle granting O(1) access to one field's value in a
// record buffer.
//
// A Key holds a byte offset, a type tag and an element count; for Flag fields
// it additionally holds the bit index within the shared flag word, and for
// variable-length fields the index of the field's heap slot.
//
// Key identity is structural: two keys are equal when they address the same
// offset with the same type and count, regardless of which Schema produced
// them. A field renamed between two otherwise identical schemas therefore
// yields interchangeable keys, which is what makes record migration between
// equally-shaped schemas work.
//
// The zero Key is invalid and must never be used to address a record; check
// IsValid before use when a key may be unset.
type Key struct {
	offset int
	ftype  FieldType
	count  int
	bit    int
	varIdx int
}

// invalidKey is the canonical invalid key value.
var invalidKey = Key{offset: invalidOffset}

// IsValid reports whether the key was produced by a schema.
//
// Validity does not guarantee the key belongs to any particular schema; it
// only rules out the default-constructed sentinel.
func (k Key) IsValid() bool {
	return k.offset != invalidOffset && k.ftype != 0
}

// Type returns the key's field type tag.
func (k Key) Type() FieldType { return k.ftype }

// Offset returns the byte offset of the field within a record.
func (k Key) Offset() int { return k.offset }

// Count returns the element count (see Field.Count).
func (k Key) Count() int { return k.count }

// Bit returns the bit index within the flag word; meaningful only for
// TypeFlag keys.
func (k Key) Bit() int { return k.bit }

// Equal reports structural equality: same offset, type, count, bit index
// (for flags) and heap slot (for variable-length fields). Var fields occupy
// no row bytes, so the heap slot is the only thing distinguishing them.
func (k Key) Equal(other Key) bool {
	return k.offset == other.offset && k.ftype == other.ftype &&
		k.count == other.count && k.bit == other.bit && k.varIdx == other.varIdx
}

func (k Key) String() string {
	if !k.IsValid() {
		return "Key(invalid)"
	}
	if k.ftype == TypeFlag {
		return fmt.Sprintf("Key(%s @%d bit %d)", k.ftype, k.offset, k.bit)
	}

	return fmt.Sprintf("Key(%s @%d x%d)", k.ftype, k.offset, k.count)
}

// checkType panics when the key is invalid or of a different type than the
// accessor expects. Record field access is pointer arithmetic with no bounds
// checking beyond this; using a foreign key is a programming error, not a
// recoverable condition.
func (k Key) checkType(t FieldType) {
	if !k.IsValid() {
		panic("starcat/table: use of invalid key")
	}
	if k.ftype != t {
		panic(fmt.Sprintf("starcat/table: %s accessor used with %s key", t, k.ftype))
	}
}
