package table

import (
	"fmt"

	"github.com/lumensky/starcat/errs"
)

// recordsPerChunk is the number of record buffers carved from one arena
// allocation. Chunks never relocate, so record handles stay valid as the
// table grows.
const recordsPerChunk = 128

// Table is the factory and buffer owner for records sharing one Schema.
//
// Constructing a table freezes its schema. Records are carved from chunked
// arenas; a record created by a table remains valid for the table's lifetime
// even if every catalog referencing it is resized or dropped.
type Table struct {
	schema    *Schema
	idFactory IdFactory

	chunk []byte // current arena chunk
	used  int    // bytes used in current chunk

	aliasObserver func(alias string)
}

// NewTable creates a table for the given schema, freezing it.
func NewTable(schema *Schema) (*Table, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: nil schema", errs.ErrInvalidParameter)
	}
	schema.freeze()

	t := &Table{schema: schema}
	schema.aliases.setObserver(func(alias string) {
		if t.aliasObserver != nil {
			t.aliasObserver(alias)
		}
	})

	return t, nil
}

// Schema returns the table's (frozen) schema.
func (t *Table) Schema() *Schema { return t.schema }

// IdFactory returns the table's id factory; nil when records are not
// auto-numbered.
func (t *Table) IdFactory() IdFactory { return t.idFactory }

// SetIdFactory installs the object that generates ids for new records.
func (t *Table) SetIdFactory(f IdFactory) { t.idFactory = f }

// MakeRecord creates a new record with default field values: floats NaN,
// integers and flags zero, variable-length arrays empty.
func (t *Table) MakeRecord() *Record {
	size := t.schema.recordSize
	if size > 0 && (t.chunk == nil || t.used+size > len(t.chunk)) {
		t.chunk = make([]byte, size*recordsPerChunk)
		t.used = 0
	}

	var data []byte
	if size > 0 {
		data = t.chunk[t.used : t.used+size : t.used+size]
		t.used += size
		copy(data, t.schema.defaultRow)
	}

	rec := &Record{table: t, data: data}
	if n := t.schema.varCount; n > 0 {
		rec.vars = make([]any, n)
	}

	return rec
}

// CopyRecord creates a new record holding a deep copy of other's values.
// The source record must have an equal schema.
func (t *Table) CopyRecord(other *Record) (*Record, error) {
	rec := t.MakeRecord()
	if err := rec.Assign(other); err != nil {
		return nil, err
	}

	return rec, nil
}

// setAliasObserver installs the hook invoked when the schema's alias map
// changes; specialized tables use it to recompute cached slot keys.
func (t *Table) setAliasObserver(fn func(alias string)) {
	t.aliasObserver = fn
}
