// Package table implements starcat's schema-driven record store: ordered
// field schemas with byte-offset layout, lightweight typed keys, fixed-layout
// records carved from stable arenas, and ordered catalogs with sort/search
// operations.
//
// # Core concepts
//
// A Schema is an ordered, append-only description of named, typed fields and
// their byte offsets within a fixed-size record buffer. Adding a field yields
// a Key: a plain value holding the field's offset, type tag and element
// count. Keys are structural, not nominal: two keys obtained from different
// schemas compare equal when they address the same offset with the same type,
// which is what allows data migration between identically-shaped schemas.
//
// A Table is the factory and buffer owner for records of one frozen Schema;
// a Catalog is an ordered, resizable collection of records from one table.
// Record buffers are carved from chunked arenas that never relocate, so a
// record handle stays valid however much its catalog grows.
//
// # Typical usage
//
//	schema := table.NewSchema()
//	xKey, _ := schema.AddField("x", table.TypeI32, "x position", "pixel")
//	flagKey, _ := schema.AddFlagField("saturated", "pixel was saturated")
//
//	tbl, _ := table.NewTable(schema)
//	cat := table.NewCatalog(tbl)
//	rec := cat.AddNew()
//	rec.SetI32(xKey, 42)
//	rec.SetFlag(flagKey, true)
//
// # Concurrency
//
// The package is single-threaded by design: schema mutation, record writes
// and catalog reshaping assume exclusive access. Concurrent read-only use of
// a frozen schema, table or catalog is safe.
package table
