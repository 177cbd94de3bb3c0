// Package archive serializes object graphs to and from FITS binary tables.
//
// Each persisted object is assigned a positive integer id and flattened into
// zero or more catalogs; an index catalog records, per id, the object's
// registered name and the contiguous range of data catalogs it owns. Ids are
// identity-preserving: saving the same object twice yields the same id, so a
// shared sub-object is stored once and referenced from every owner. Id 0 is
// reserved for the nil object and never assigned.
//
// Reading is driven by a name-keyed factory registry: each persistable type
// registers a factory at init time, and InputArchive dispatches on the name
// stored in the index.
package archive

import (
	"fmt"
	"io"

	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/fits"
	"github.com/lumensky/starcat/table"
)

// Persistable is implemented by objects that can be saved to an archive.
type Persistable interface {
	// PersistenceName returns the registry name the object is stored under.
	PersistenceName() string
	// PersistenceModule identifies the package providing the factory, kept in
	// the index for diagnostics.
	PersistenceModule() string
	// Write flattens the object's state onto the handle. It must call
	// MakeCatalog, SaveCatalog or SaveEmpty at least once.
	Write(h *Handle) error
}

// extension names of the archive HDUs.
const (
	extArchiveIndex = "ARCHIVE_INDEX"

	// afwTypeIndex tags the index catalog HDU.
	afwTypeIndex = "ArchiveIndexCatalog"
)

type indexEntry struct {
	id     int64
	name   string
	module string
	first  int // 1-based index of the first data catalog, 0 when empty
	count  int
}

type outCatalog struct {
	cat     *table.Catalog
	afwType string
}

// OutputArchive accumulates persisted objects for a single FITS write.
//
// An error returned from a Persistable's Write leaves the archive in an
// undefined state; callers must discard it, not write it.
type OutputArchive struct {
	nextID   int64
	ids      map[Persistable]int64
	entries  []indexEntry
	catalogs []outCatalog
}

// NewOutputArchive creates an empty archive. The first assigned id is 1.
func NewOutputArchive() *OutputArchive {
	return &OutputArchive{nextID: 1, ids: make(map[Persistable]int64)}
}

// Put saves obj and returns its id. A nil object maps to id 0. Saving an
// object already present returns its existing id without re-writing it, so
// object graphs with shared nodes serialize each node once.
func (a *OutputArchive) Put(obj Persistable) (int64, error) {
	if obj == nil {
		return 0, nil
	}
	if id, ok := a.ids[obj]; ok {
		return id, nil
	}

	id := a.nextID
	a.nextID++
	// Registered before Write so that cyclic references resolve to this id.
	a.ids[obj] = id

	h := &Handle{arch: a, id: id}
	if err := obj.Write(h); err != nil {
		return 0, fmt.Errorf("persisting %q (id %d): %w", obj.PersistenceName(), id, err)
	}
	if !h.saved {
		return 0, fmt.Errorf("%w: %q saved no catalogs and did not call SaveEmpty",
			errs.ErrInvalidCatalogCount, obj.PersistenceName())
	}

	first := 0
	if len(h.cats) > 0 {
		first = len(a.catalogs) + 1
	}
	for _, cat := range h.cats {
		a.catalogs = append(a.catalogs, outCatalog{cat: cat, afwType: obj.PersistenceName()})
	}
	a.entries = append(a.entries, indexEntry{
		id:     id,
		name:   obj.PersistenceName(),
		module: obj.PersistenceModule(),
		first:  first,
		count:  len(h.cats),
	})

	return id, nil
}

// HDUCount returns the number of HDUs WriteHDUs will emit: the index plus
// one per data catalog.
func (a *OutputArchive) HDUCount() int { return 1 + len(a.catalogs) }

// WriteFits writes the archive as a standalone FITS stream: a primary HDU
// followed by the archive HDUs.
func (a *OutputArchive) WriteFits(w io.Writer) error {
	if err := fits.WritePrimary(w, nil); err != nil {
		return err
	}

	return a.WriteHDUs(w)
}

// WriteHDUs writes the index catalog HDU followed by every data catalog
// HDU, for embedding after a caller-written header that carries AR_HDU.
func (a *OutputArchive) WriteHDUs(w io.Writer) error {
	idx := indexKeys()
	cat, err := table.NewCatalogFromSchema(idx.schema)
	if err != nil {
		return err
	}
	for _, e := range a.entries {
		rec := cat.AddNew()
		rec.SetI64(idx.id, e.id)
		rec.SetI32(idx.catFirst, int32(e.first))
		rec.SetI32(idx.catCount, int32(e.count))
		if err := rec.SetString(idx.name, e.name); err != nil {
			return err
		}
		if err := rec.SetString(idx.module, e.module); err != nil {
			return err
		}
	}

	extra := fits.NewHeader()
	extra.Append("EXTNAME", extArchiveIndex, "")
	extra.Append("AR_NCAT", int64(a.HDUCount()), "catalogs in this archive, including the index")
	if err := WriteCatalog(w, cat, afwTypeIndex, extra); err != nil {
		return err
	}

	for i, oc := range a.catalogs {
		extra := fits.NewHeader()
		extra.Append("EXTNAME", fmt.Sprintf("ARCHIVE_DATA_%d", i+1), "")
		if err := WriteCatalog(w, oc.cat, oc.afwType, extra); err != nil {
			return err
		}
	}

	return nil
}

// Handle is passed to a Persistable's Write; catalogs registered on it form
// the object's contiguous catalog range in the archive.
type Handle struct {
	arch  *OutputArchive
	id    int64
	cats  []*table.Catalog
	saved bool
}

// ID returns the id assigned to the object being written.
func (h *Handle) ID() int64 { return h.id }

// MakeCatalog creates an empty catalog over the schema and registers it as
// the object's next catalog. Records added to it before Write returns are
// persisted.
func (h *Handle) MakeCatalog(schema *table.Schema) (*table.Catalog, error) {
	cat, err := table.NewCatalogFromSchema(schema)
	if err != nil {
		return nil, err
	}
	h.register(cat)

	return cat, nil
}

// SaveCatalog registers an externally built catalog as the object's next
// catalog.
func (h *Handle) SaveCatalog(cat *table.Catalog) {
	h.register(cat)
}

// SaveEmpty marks a stateless object as deliberately saving no catalogs.
func (h *Handle) SaveEmpty() { h.saved = true }

// Put recursively saves a nested persistable and returns its id, for
// storing as an I64 field in one of the owner's catalogs.
func (h *Handle) Put(obj Persistable) (int64, error) {
	return h.arch.Put(obj)
}

func (h *Handle) register(cat *table.Catalog) {
	h.cats = append(h.cats, cat)
	h.saved = true
}
