package table

import (
	"fmt"
	"sort"

	"github.com/lumensky/starcat/errs"
)

// Catalog is an ordered, resizable collection of records sharing one table.
//
// Entries hold shared record handles: erasing or reordering catalog entries
// never invalidates a record held elsewhere. Binary-search operations assume
// the catalog has been sorted on the probe key first; violating that yields
// unspecified (but memory-safe) results.
type Catalog struct {
	table   *Table
	records []*Record
}

// NewCatalog creates an empty catalog backed by the given table.
func NewCatalog(t *Table) *Catalog {
	return &Catalog{table: t}
}

// NewCatalogFromSchema creates a fresh table for schema and an empty catalog
// on it.
func NewCatalogFromSchema(schema *Schema) (*Catalog, error) {
	t, err := NewTable(schema)
	if err != nil {
		return nil, err
	}

	return NewCatalog(t), nil
}

// Table returns the backing table.
func (c *Catalog) Table() *Table { return c.table }

// Schema returns the catalog's schema.
func (c *Catalog) Schema() *Schema { return c.table.schema }

// Len returns the number of records.
func (c *Catalog) Len() int { return len(c.records) }

// At returns the i-th record.
func (c *Catalog) At(i int) *Record { return c.records[i] }

// Records returns the underlying record slice. The slice is shared; callers
// must not reorder it directly.
func (c *Catalog) Records() []*Record { return c.records }

// AddNew appends a new default-initialized record and returns it.
func (c *Catalog) AddNew() *Record {
	rec := c.table.MakeRecord()
	c.records = append(c.records, rec)

	return rec
}

// Append adds an existing record to the catalog. The record's schema must
// equal the catalog's; otherwise errs.ErrSchemaMismatch is returned.
func (c *Catalog) Append(rec *Record) error {
	if !rec.Schema().Equal(c.Schema()) {
		return fmt.Errorf("%w: appended record has a different schema", errs.ErrSchemaMismatch)
	}
	c.records = append(c.records, rec)

	return nil
}

// AppendDeep adds a deep copy of rec, which may come from any table with an
// equal schema.
func (c *Catalog) AppendDeep(rec *Record) (*Record, error) {
	cp, err := c.table.CopyRecord(rec)
	if err != nil {
		return nil, err
	}
	c.records = append(c.records, cp)

	return cp, nil
}

// Erase removes the i-th record from the catalog (the record itself remains
// valid for external holders).
func (c *Catalog) Erase(i int) {
	c.records = append(c.records[:i], c.records[i+1:]...)
}

// Clear removes every record from the catalog.
func (c *Catalog) Clear() {
	c.records = c.records[:0]
}

// Subset returns a new catalog holding the records selected by mask,
// preserving relative order. The mask length must equal Len.
func (c *Catalog) Subset(mask []bool) (*Catalog, error) {
	if len(mask) != len(c.records) {
		return nil, fmt.Errorf("%w: mask length %d for %d records",
			errs.ErrArraySizeMismatch, len(mask), len(c.records))
	}

	out := NewCatalog(c.table)
	for i, keep := range mask {
		if keep {
			out.records = append(out.records, c.records[i])
		}
	}

	return out, nil
}

// Slice returns a new catalog sharing the records in [start, stop).
func (c *Catalog) Slice(start, stop int) *Catalog {
	out := NewCatalog(c.table)
	out.records = append(out.records, c.records[start:stop]...)

	return out
}

// Sort orders the catalog ascending by the given key's field value.
func (c *Catalog) Sort(k Key) {
	sort.Slice(c.records, func(i, j int) bool {
		return fieldLess(c.records[i], c.records[j], k)
	})
}

// SortBy orders the catalog by an arbitrary comparison.
func (c *Catalog) SortBy(less func(a, b *Record) bool) {
	sort.Slice(c.records, func(i, j int) bool {
		return less(c.records[i], c.records[j])
	})
}

// IsSorted reports whether the catalog is ascending on the given key.
func (c *Catalog) IsSorted(k Key) bool {
	return sort.SliceIsSorted(c.records, func(i, j int) bool {
		return fieldLess(c.records[i], c.records[j], k)
	})
}

// LowerBound returns the index of the first record whose field value is not
// less than v. Precondition: IsSorted(k).
func (c *Catalog) LowerBound(v any, k Key) int {
	return sort.Search(len(c.records), func(i int) bool {
		return fieldCompare(c.records[i], k, v) >= 0
	})
}

// UpperBound returns the index of the first record whose field value is
// greater than v. Precondition: IsSorted(k).
func (c *Catalog) UpperBound(v any, k Key) int {
	return sort.Search(len(c.records), func(i int) bool {
		return fieldCompare(c.records[i], k, v) > 0
	})
}

// EqualRange returns the half-open index range of records whose field value
// equals v. Precondition: IsSorted(k).
func (c *Catalog) EqualRange(v any, k Key) (int, int) {
	return c.LowerBound(v, k), c.UpperBound(v, k)
}

// Find returns a record whose field value equals v, or
// errs.ErrRecordNotFound. Precondition: IsSorted(k).
func (c *Catalog) Find(v any, k Key) (*Record, error) {
	i := c.LowerBound(v, k)
	if i < len(c.records) && fieldCompare(c.records[i], k, v) == 0 {
		return c.records[i], nil
	}

	return nil, fmt.Errorf("%w: value %v", errs.ErrRecordNotFound, v)
}

// fieldLess compares one field of two records.
func fieldLess(a, b *Record, k Key) bool {
	switch k.ftype {
	case TypeI32:
		return a.GetI32(k) < b.GetI32(k)
	case TypeI64:
		return a.GetI64(k) < b.GetI64(k)
	case TypeF32:
		return a.GetF32(k) < b.GetF32(k)
	case TypeF64:
		return a.GetF64(k) < b.GetF64(k)
	case TypeString:
		return a.GetString(k) < b.GetString(k)
	case TypeFlag:
		return !a.GetFlag(k) && b.GetFlag(k)
	default:
		panic(fmt.Sprintf("starcat/table: cannot order records by %s field", k.ftype))
	}
}

// fieldCompare compares a record's field against a probe value, normalizing
// integer probes to int64 and float probes to float64.
func fieldCompare(rec *Record, k Key, v any) int {
	switch k.ftype {
	case TypeI32, TypeI64:
		var have int64
		if k.ftype == TypeI32 {
			have = int64(rec.GetI32(k))
		} else {
			have = rec.GetI64(k)
		}
		want, ok := normalizeInt(v)
		if !ok {
			panic(fmt.Sprintf("starcat/table: integer probe required, got %T", v))
		}

		return compareOrdered(have, want)
	case TypeF32, TypeF64:
		var have float64
		if k.ftype == TypeF32 {
			have = float64(rec.GetF32(k))
		} else {
			have = rec.GetF64(k)
		}
		want, ok := normalizeFloat(v)
		if !ok {
			panic(fmt.Sprintf("starcat/table: float probe required, got %T", v))
		}

		return compareOrdered(have, want)
	case TypeString:
		want, ok := v.(string)
		if !ok {
			panic(fmt.Sprintf("starcat/table: string probe required, got %T", v))
		}

		return compareOrdered(rec.GetString(k), want)
	default:
		panic(fmt.Sprintf("starcat/table: cannot search records by %s field", k.ftype))
	}
}

func normalizeInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	default:
		return 0, false
	}
}

func normalizeFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func compareOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
