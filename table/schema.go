package table

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/lumensky/starcat/errs"
)

// flagWordBits is the number of flag fields one packed word can hold.
const flagWordBits = 64

// SchemaItem pairs a field descriptor with the key that addresses it.
type SchemaItem struct {
	Field Field
	Key   Key
}

// Schema is an ordered, append-only description of the fields of a record.
//
// Offsets are assigned monotonically with natural alignment and never
// overlap, except for Flag fields, which share packed 64-bit words and are
// distinguished by (offset, bit). Once a schema has been used to construct a
// Table it freezes: further AddField calls fail with errs.ErrSchemaFrozen.
//
// Schemas are typically shared between many tables, records and catalogs;
// a frozen schema is safe for concurrent readers.
type Schema struct {
	items   []SchemaItem
	byName  map[string]int
	aliases *AliasMap

	recordSize  int
	flagOffset  int // offset of current flag word, -1 when none
	flagBits    int // bits used in current flag word
	varCount    int // number of variable-length fields
	frozen      bool
	version     int
	defaultRow  []byte // built at freeze
	digest      uint64 // built at freeze
	digestValid bool
}

// NewSchema creates an empty schema at the current table format version.
func NewSchema() *Schema {
	return &Schema{
		byName:     make(map[string]int),
		aliases:    NewAliasMap(),
		flagOffset: -1,
		version:    CurrentTableVersion,
	}
}

// CurrentTableVersion is the schema format version written to new files.
// Version 0 files persist slot definitions as dedicated keywords rather than
// alias cards; readers must handle both.
const CurrentTableVersion = 1

// Version returns the schema's table format version.
func (s *Schema) Version() int { return s.version }

// SetVersion overrides the format version; used by readers of legacy files.
func (s *Schema) SetVersion(v int) { s.version = v }

// Aliases returns the schema's alias map.
func (s *Schema) Aliases() *AliasMap { return s.aliases }

// FieldCount returns the number of fields (flags included).
func (s *Schema) FieldCount() int { return len(s.items) }

// RecordSize returns the byte size of one record buffer.
func (s *Schema) RecordSize() int { return s.recordSize }

// VarFieldCount returns the number of variable-length fields.
func (s *Schema) VarFieldCount() int { return s.varCount }

// Items returns the schema items in declaration order. The slice is shared;
// callers must not modify it.
func (s *Schema) Items() []SchemaItem { return s.items }

// IsFrozen reports whether the schema has been bound to a table.
func (s *Schema) IsFrozen() bool { return s.frozen }

func validateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty field name", errs.ErrInvalidParameter)
	}
	for _, r := range name {
		ok := r == '_' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return fmt.Errorf("%w: field name %q contains %q", errs.ErrInvalidParameter, name, r)
		}
	}

	return nil
}

// AddField appends a scalar or flag field and returns its key.
//
// Adding a name that already exists fails with errs.ErrFieldExists; adding to
// a frozen schema fails with errs.ErrSchemaFrozen.
func (s *Schema) AddField(name string, ftype FieldType, doc, units string) (Key, error) {
	switch ftype {
	case TypeI32, TypeI64, TypeF32, TypeF64:
		return s.add(Field{Name: name, Type: ftype, Doc: doc, Units: units, Count: 1})
	case TypeFlag:
		return s.AddFlagField(name, doc)
	default:
		return invalidKey, fmt.Errorf("%w: %s requires a sized AddField variant", errs.ErrInvalidParameter, ftype)
	}
}

// AddFlagField appends a boolean flag field packed into a shared bit word.
func (s *Schema) AddFlagField(name, doc string) (Key, error) {
	return s.add(Field{Name: name, Type: TypeFlag, Doc: doc, Count: 1})
}

// AddArrayField appends a fixed-length array field of count elements.
func (s *Schema) AddArrayField(name string, ftype FieldType, doc, units string, count int) (Key, error) {
	switch ftype {
	case TypeArrayI32, TypeArrayF32, TypeArrayF64:
	default:
		return invalidKey, fmt.Errorf("%w: %s is not a fixed array type", errs.ErrInvalidParameter, ftype)
	}
	if count <= 0 {
		return invalidKey, fmt.Errorf("%w: array count %d", errs.ErrInvalidParameter, count)
	}

	return s.add(Field{Name: name, Type: ftype, Doc: doc, Units: units, Count: count})
}

// AddVarArrayField appends a variable-length array field. Its values live in
// per-record heap slots rather than the fixed buffer.
func (s *Schema) AddVarArrayField(name string, ftype FieldType, doc, units string) (Key, error) {
	if !ftype.IsVariable() {
		return invalidKey, fmt.Errorf("%w: %s is not a variable array type", errs.ErrInvalidParameter, ftype)
	}

	return s.add(Field{Name: name, Type: ftype, Doc: doc, Units: units})
}

// AddStringField appends a fixed-capacity string field of size bytes.
func (s *Schema) AddStringField(name, doc, units string, size int) (Key, error) {
	if size <= 0 {
		return invalidKey, fmt.Errorf("%w: string size %d", errs.ErrInvalidParameter, size)
	}

	return s.add(Field{Name: name, Type: TypeString, Doc: doc, Units: units, Count: size})
}

func (s *Schema) add(f Field) (Key, error) {
	if s.frozen {
		return invalidKey, fmt.Errorf("%w: cannot add %q", errs.ErrSchemaFrozen, f.Name)
	}
	if err := validateFieldName(f.Name); err != nil {
		return invalidKey, err
	}
	if idx, ok := s.byName[f.Name]; ok {
		existing := s.items[idx].Field
		if existing.compatible(f) {
			// Re-adding an identically shaped field hands back the same key.
			return s.items[idx].Key, nil
		}

		return invalidKey, fmt.Errorf("%w: %q is %s, not %s", errs.ErrFieldExists,
			f.Name, existing.Type, f.Type)
	}

	var key Key
	switch {
	case f.Type == TypeFlag:
		if s.flagOffset < 0 || s.flagBits == flagWordBits {
			s.flagOffset = alignUp(s.recordSize, 8)
			s.recordSize = s.flagOffset + 8
			s.flagBits = 0
		}
		key = Key{offset: s.flagOffset, ftype: TypeFlag, count: 1, bit: s.flagBits}
		s.flagBits++
	case f.Type.IsVariable():
		key = Key{offset: 0, ftype: f.Type, varIdx: s.varCount}
		// Variable fields occupy no row bytes; give the key a real offset so
		// it is distinguishable from the invalid sentinel.
		key.offset = s.recordSize
		s.varCount++
	default:
		elem := f.Type.elemSize()
		align := elem
		if f.Type == TypeString {
			align = 1
		}
		offset := alignUp(s.recordSize, align)
		key = Key{offset: offset, ftype: f.Type, count: f.Count}
		s.recordSize = offset + elem*f.Count
	}

	s.items = append(s.items, SchemaItem{Field: f, Key: key})
	s.byName[f.Name] = len(s.items) - 1
	s.digestValid = false

	return key, nil
}

// Find returns the schema item for the given name, first resolving aliases.
// Absent names fail with errs.ErrFieldNotFound.
func (s *Schema) Find(name string) (SchemaItem, error) {
	resolved := s.aliases.Apply(name)
	if idx, ok := s.byName[resolved]; ok {
		return s.items[idx], nil
	}

	return SchemaItem{}, fmt.Errorf("%w: %q", errs.ErrFieldNotFound, name)
}

// FindKey returns just the key for the given name.
func (s *Schema) FindKey(name string) (Key, error) {
	item, err := s.Find(name)
	if err != nil {
		return invalidKey, err
	}

	return item.Key, nil
}

// MustKey is FindKey for statically known names; it panics on absence.
func (s *Schema) MustKey(name string) Key {
	key, err := s.FindKey(name)
	if err != nil {
		panic(err)
	}

	return key
}

// Contains reports whether every field of other is present in s with the
// same name, shape and offset.
//
// Offset equality is part of the contract: keys obtained from other are then
// directly usable on records built with s, which is how minimal-schema
// singletons hand out static keys.
func (s *Schema) Contains(other *Schema) bool {
	for _, item := range other.items {
		idx, ok := s.byName[item.Field.Name]
		if !ok {
			return false
		}
		mine := s.items[idx]
		if !mine.Field.compatible(item.Field) || !mine.Key.Equal(item.Key) {
			return false
		}
	}

	return true
}

// Equal reports whether two schemas define the same name/type/offset mapping.
// Declaration order does not participate in the comparison.
func (s *Schema) Equal(other *Schema) bool {
	if s == other {
		return true
	}
	if len(s.items) != len(other.items) {
		return false
	}

	return s.Contains(other) && other.Contains(s)
}

// Digest returns a 64-bit content hash of the schema layout. Unequal digests
// imply unequal schemas; it is used for fast inequality checks and for table
// caches keyed by schema shape.
func (s *Schema) Digest() uint64 {
	if s.digestValid {
		return s.digest
	}

	names := make([]string, 0, len(s.items))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		item := s.items[s.byName[name]]
		fmt.Fprintf(&sb, "%s|%d|%d|%d|%d|%d;", name, item.Field.Type, item.Field.Count,
			item.Key.offset, item.Key.bit, item.Key.varIdx)
	}
	s.digest = xxhash.Sum64String(sb.String())
	s.digestValid = true

	return s.digest
}

// Clone returns an unfrozen deep copy with the same layout and aliases.
// Use it to extend a frozen (e.g. minimal) schema with additional fields.
func (s *Schema) Clone() *Schema {
	out := NewSchema()
	out.items = append(out.items, s.items...)
	for k, v := range s.byName {
		out.byName[k] = v
	}
	out.aliases = s.aliases.clone()
	out.recordSize = s.recordSize
	out.flagOffset = s.flagOffset
	out.flagBits = s.flagBits
	out.varCount = s.varCount
	out.version = s.version

	return out
}

// freeze fixes the layout and builds the default-row template. Called by
// NewTable; idempotent.
func (s *Schema) freeze() {
	if s.frozen {
		return
	}
	s.frozen = true
	s.recordSize = alignUp(s.recordSize, 8)
	s.defaultRow = make([]byte, s.recordSize)
	for _, item := range s.items {
		switch item.Field.Type {
		case TypeF32, TypeArrayF32:
			for i := 0; i < item.Field.Count; i++ {
				putF32(s.defaultRow, item.Key.offset+4*i, float32(math.NaN()))
			}
		case TypeF64, TypeArrayF64:
			for i := 0; i < item.Field.Count; i++ {
				putF64(s.defaultRow, item.Key.offset+8*i, math.NaN())
			}
		}
	}
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}

	return n + align - rem
}
