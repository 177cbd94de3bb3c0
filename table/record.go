package table

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/lumensky/starcat/errs"
)

// Native-endian buffer access. Record offsets are naturally aligned by the
// schema layout and chunks are 8-byte aligned, so the reinterpretation is
// well-defined on all supported platforms.

func putF32(b []byte, off int, v float32) { *(*float32)(unsafe.Pointer(&b[off])) = v }
func getF32(b []byte, off int) float32    { return *(*float32)(unsafe.Pointer(&b[off])) }
func putF64(b []byte, off int, v float64) { *(*float64)(unsafe.Pointer(&b[off])) = v }
func getF64(b []byte, off int) float64    { return *(*float64)(unsafe.Pointer(&b[off])) }
func putI32(b []byte, off int, v int32)   { *(*int32)(unsafe.Pointer(&b[off])) = v }
func getI32(b []byte, off int) int32      { return *(*int32)(unsafe.Pointer(&b[off])) }
func putI64(b []byte, off int, v int64)   { *(*int64)(unsafe.Pointer(&b[off])) = v }
func getI64(b []byte, off int) int64      { return *(*int64)(unsafe.Pointer(&b[off])) }
func putU64(b []byte, off int, v uint64)  { *(*uint64)(unsafe.Pointer(&b[off])) = v }
func getU64(b []byte, off int) uint64     { return *(*uint64)(unsafe.Pointer(&b[off])) }

// Record is one fixed-layout row: a flat byte buffer interpreted through the
// owning table's schema, plus heap slots for variable-length fields.
//
// Records are created only by a Table (usually via Catalog.AddNew). A record
// handle stays valid for the life of its table regardless of catalog growth,
// because table arenas never relocate.
//
// Field access is O(1) offset arithmetic. Typed accessors panic when handed
// a key of the wrong type or an invalid key; that is a programming error on
// the caller's side, not a runtime condition (callers holding possibly-unset
// keys must check Key.IsValid first).
type Record struct {
	table *Table
	data  []byte
	vars  []any
}

// Table returns the owning table.
func (r *Record) Table() *Table { return r.table }

// Schema returns the record's schema.
func (r *Record) Schema() *Schema { return r.table.schema }

// GetI32 returns the value of a TypeI32 field.
func (r *Record) GetI32(k Key) int32 {
	k.checkType(TypeI32)

	return getI32(r.data, k.offset)
}

// SetI32 sets the value of a TypeI32 field.
func (r *Record) SetI32(k Key, v int32) {
	k.checkType(TypeI32)
	putI32(r.data, k.offset, v)
}

// GetI64 returns the value of a TypeI64 field.
func (r *Record) GetI64(k Key) int64 {
	k.checkType(TypeI64)

	return getI64(r.data, k.offset)
}

// SetI64 sets the value of a TypeI64 field.
func (r *Record) SetI64(k Key, v int64) {
	k.checkType(TypeI64)
	putI64(r.data, k.offset, v)
}

// GetF32 returns the value of a TypeF32 field.
func (r *Record) GetF32(k Key) float32 {
	k.checkType(TypeF32)

	return getF32(r.data, k.offset)
}

// SetF32 sets the value of a TypeF32 field.
func (r *Record) SetF32(k Key, v float32) {
	k.checkType(TypeF32)
	putF32(r.data, k.offset, v)
}

// GetF64 returns the value of a TypeF64 field.
func (r *Record) GetF64(k Key) float64 {
	k.checkType(TypeF64)

	return getF64(r.data, k.offset)
}

// SetF64 sets the value of a TypeF64 field.
func (r *Record) SetF64(k Key, v float64) {
	k.checkType(TypeF64)
	putF64(r.data, k.offset, v)
}

// GetFlag returns the value of a TypeFlag field.
func (r *Record) GetFlag(k Key) bool {
	k.checkType(TypeFlag)

	return getU64(r.data, k.offset)&(1<<uint(k.bit)) != 0
}

// SetFlag sets the value of a TypeFlag field.
func (r *Record) SetFlag(k Key, v bool) {
	k.checkType(TypeFlag)
	word := getU64(r.data, k.offset)
	if v {
		word |= 1 << uint(k.bit)
	} else {
		word &^= 1 << uint(k.bit)
	}
	putU64(r.data, k.offset, word)
}

// GetString returns the value of a TypeString field with trailing zero
// padding removed.
func (r *Record) GetString(k Key) string {
	k.checkType(TypeString)
	raw := r.data[k.offset : k.offset+k.count]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}

	return string(raw)
}

// SetString sets the value of a TypeString field. Values longer than the
// field's capacity fail with errs.ErrArraySizeMismatch.
func (r *Record) SetString(k Key, v string) error {
	k.checkType(TypeString)
	if len(v) > k.count {
		return fmt.Errorf("%w: string length %d exceeds field capacity %d",
			errs.ErrArraySizeMismatch, len(v), k.count)
	}
	buf := r.data[k.offset : k.offset+k.count]
	n := copy(buf, v)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}

	return nil
}

// GetArrayI32 returns the elements of a fixed TypeArrayI32 field as a view
// into the record buffer. The view is invalidated by nothing and shared with
// the record; callers wanting an independent copy must make one.
func (r *Record) GetArrayI32(k Key) []int32 {
	k.checkType(TypeArrayI32)

	return unsafe.Slice((*int32)(unsafe.Pointer(&r.data[k.offset])), k.count)
}

// SetArrayI32 copies v into a fixed TypeArrayI32 field; the length must match
// the field's element count exactly.
func (r *Record) SetArrayI32(k Key, v []int32) error {
	k.checkType(TypeArrayI32)
	if len(v) != k.count {
		return fmt.Errorf("%w: got %d elements, field holds %d", errs.ErrArraySizeMismatch, len(v), k.count)
	}
	copy(r.GetArrayI32(k), v)

	return nil
}

// GetArrayF32 returns a view of a fixed TypeArrayF32 field (see GetArrayI32).
func (r *Record) GetArrayF32(k Key) []float32 {
	k.checkType(TypeArrayF32)

	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[k.offset])), k.count)
}

// SetArrayF32 copies v into a fixed TypeArrayF32 field.
func (r *Record) SetArrayF32(k Key, v []float32) error {
	k.checkType(TypeArrayF32)
	if len(v) != k.count {
		return fmt.Errorf("%w: got %d elements, field holds %d", errs.ErrArraySizeMismatch, len(v), k.count)
	}
	copy(r.GetArrayF32(k), v)

	return nil
}

// GetArrayF64 returns a view of a fixed TypeArrayF64 field (see GetArrayI32).
func (r *Record) GetArrayF64(k Key) []float64 {
	k.checkType(TypeArrayF64)

	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[k.offset])), k.count)
}

// SetArrayF64 copies v into a fixed TypeArrayF64 field.
func (r *Record) SetArrayF64(k Key, v []float64) error {
	k.checkType(TypeArrayF64)
	if len(v) != k.count {
		return fmt.Errorf("%w: got %d elements, field holds %d", errs.ErrArraySizeMismatch, len(v), k.count)
	}
	copy(r.GetArrayF64(k), v)

	return nil
}

// GetVarF32 returns the value of a variable-length float32 array field.
// The returned slice is owned by the record; callers must not modify it.
func (r *Record) GetVarF32(k Key) []float32 {
	k.checkType(TypeVarArrayF32)
	if v, ok := r.vars[k.varIdx].([]float32); ok {
		return v
	}

	return nil
}

// SetVarF32 stores a copy of v in a variable-length float32 array field.
func (r *Record) SetVarF32(k Key, v []float32) {
	k.checkType(TypeVarArrayF32)
	r.vars[k.varIdx] = append([]float32(nil), v...)
}

// GetVarF64 returns the value of a variable-length float64 array field.
func (r *Record) GetVarF64(k Key) []float64 {
	k.checkType(TypeVarArrayF64)
	if v, ok := r.vars[k.varIdx].([]float64); ok {
		return v
	}

	return nil
}

// SetVarF64 stores a copy of v in a variable-length float64 array field.
func (r *Record) SetVarF64(k Key, v []float64) {
	k.checkType(TypeVarArrayF64)
	r.vars[k.varIdx] = append([]float64(nil), v...)
}

// GetVarU16 returns the value of a variable-length uint16 array field.
func (r *Record) GetVarU16(k Key) []uint16 {
	k.checkType(TypeVarArrayU16)
	if v, ok := r.vars[k.varIdx].([]uint16); ok {
		return v
	}

	return nil
}

// SetVarU16 stores a copy of v in a variable-length uint16 array field.
func (r *Record) SetVarU16(k Key, v []uint16) {
	k.checkType(TypeVarArrayU16)
	r.vars[k.varIdx] = append([]uint16(nil), v...)
}

// Get returns the field value as an interface; used by generic consumers
// such as the FITS mapping and the snapshot writer.
func (r *Record) Get(k Key) any {
	switch k.ftype {
	case TypeI32:
		return r.GetI32(k)
	case TypeI64:
		return r.GetI64(k)
	case TypeF32:
		return r.GetF32(k)
	case TypeF64:
		return r.GetF64(k)
	case TypeString:
		return r.GetString(k)
	case TypeFlag:
		return r.GetFlag(k)
	case TypeArrayI32:
		return append([]int32(nil), r.GetArrayI32(k)...)
	case TypeArrayF32:
		return append([]float32(nil), r.GetArrayF32(k)...)
	case TypeArrayF64:
		return append([]float64(nil), r.GetArrayF64(k)...)
	case TypeVarArrayU16:
		return r.GetVarU16(k)
	case TypeVarArrayF32:
		return r.GetVarF32(k)
	case TypeVarArrayF64:
		return r.GetVarF64(k)
	default:
		panic("starcat/table: Get with invalid key")
	}
}

// Set assigns the field value from an interface. The dynamic type must match
// the field type exactly; mismatches fail with errs.ErrKeyTypeMismatch.
func (r *Record) Set(k Key, v any) error {
	switch k.ftype {
	case TypeI32:
		if x, ok := v.(int32); ok {
			r.SetI32(k, x)
			return nil
		}
	case TypeI64:
		if x, ok := v.(int64); ok {
			r.SetI64(k, x)
			return nil
		}
	case TypeF32:
		if x, ok := v.(float32); ok {
			r.SetF32(k, x)
			return nil
		}
	case TypeF64:
		if x, ok := v.(float64); ok {
			r.SetF64(k, x)
			return nil
		}
	case TypeString:
		if x, ok := v.(string); ok {
			return r.SetString(k, x)
		}
	case TypeFlag:
		if x, ok := v.(bool); ok {
			r.SetFlag(k, x)
			return nil
		}
	case TypeArrayI32:
		if x, ok := v.([]int32); ok {
			return r.SetArrayI32(k, x)
		}
	case TypeArrayF32:
		if x, ok := v.([]float32); ok {
			return r.SetArrayF32(k, x)
		}
	case TypeArrayF64:
		if x, ok := v.([]float64); ok {
			return r.SetArrayF64(k, x)
		}
	case TypeVarArrayU16:
		if x, ok := v.([]uint16); ok {
			r.SetVarU16(k, x)
			return nil
		}
	case TypeVarArrayF32:
		if x, ok := v.([]float32); ok {
			r.SetVarF32(k, x)
			return nil
		}
	case TypeVarArrayF64:
		if x, ok := v.([]float64); ok {
			r.SetVarF64(k, x)
			return nil
		}
	}

	return fmt.Errorf("%w: %T for %s field", errs.ErrKeyTypeMismatch, v, k.ftype)
}

// Assign copies every field value from other into r. The two records must
// have equal schemas; otherwise errs.ErrSchemaMismatch is returned. The
// schema itself is not copied.
func (r *Record) Assign(other *Record) error {
	if !r.Schema().Equal(other.Schema()) {
		return fmt.Errorf("%w: unequal schemas in record assignment", errs.ErrSchemaMismatch)
	}

	copy(r.data, other.data)
	for _, item := range r.Schema().items {
		if !item.Field.Type.IsVariable() {
			continue
		}
		// Heap slots are per-schema; resolve the source slot by name.
		src, err := other.Schema().Find(item.Field.Name)
		if err != nil {
			return err
		}
		r.vars[item.Key.varIdx] = copyVarValue(other.vars[src.Key.varIdx])
	}

	return nil
}

// AssignMapped copies field values from other into r through a SchemaMapper:
// other must contain the mapper's input schema and r must contain its output
// schema, else errs.ErrSchemaMismatch is returned.
func (r *Record) AssignMapped(other *Record, mapper *SchemaMapper) error {
	if !other.Schema().Contains(mapper.InputSchema()) {
		return fmt.Errorf("%w: input record does not contain mapper input schema", errs.ErrSchemaMismatch)
	}
	if !r.Schema().Contains(mapper.OutputSchema()) {
		return fmt.Errorf("%w: output record does not contain mapper output schema", errs.ErrSchemaMismatch)
	}

	for _, pair := range mapper.pairs {
		if err := r.Set(pair.output, other.Get(pair.input)); err != nil {
			return err
		}
	}

	return nil
}

func copyVarValue(v any) any {
	switch x := v.(type) {
	case []uint16:
		return append([]uint16(nil), x...)
	case []float32:
		return append([]float32(nil), x...)
	case []float64:
		return append([]float64(nil), x...)
	default:
		return nil
	}
}
