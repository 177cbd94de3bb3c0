package archive

import (
	"fmt"
	"io"
	"sync"

	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/fits"
	"github.com/lumensky/starcat/table"
)

// indexSchema holds the index catalog's schema and field keys, built once.
type indexSchema struct {
	schema   *table.Schema
	id       table.Key
	catFirst table.Key
	catCount table.Key
	name     table.Key
	module   table.Key
}

var (
	indexOnce sync.Once
	indexInst indexSchema
)

func indexKeys() indexSchema {
	indexOnce.Do(func() {
		s := table.NewSchema()
		var err error
		if indexInst.id, err = s.AddField("id", table.TypeI64, "object id; 0 is reserved for nil", ""); err != nil {
			panic(err)
		}
		if indexInst.catFirst, err = s.AddField("cat.first", table.TypeI32, "first data catalog of the object (1-based); 0 when empty", ""); err != nil {
			panic(err)
		}
		if indexInst.catCount, err = s.AddField("cat.count", table.TypeI32, "number of data catalogs the object owns", ""); err != nil {
			panic(err)
		}
		if indexInst.name, err = s.AddStringField("name", "factory registry name", "", 64); err != nil {
			panic(err)
		}
		if indexInst.module, err = s.AddStringField("module", "package providing the factory", "", 64); err != nil {
			panic(err)
		}
		indexInst.schema = s
	})

	return indexInst
}

// Factory reconstructs one persisted object from its catalog range.
type Factory func(h *ReadHandle) (Persistable, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterFactory installs the factory for a persistence name, replacing any
// previous registration. Persistable implementations call this from init.
func RegisterFactory(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

func lookupFactory(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]

	return f, ok
}

// InputArchive reads back an object graph written by OutputArchive.
// Objects are reconstructed on demand and memoized, so shared nodes come
// back as the same pointer for every owner.
type InputArchive struct {
	entries  map[int64]indexEntry
	catalogs []*table.Catalog
	cache    map[int64]Persistable
}

// ReadArchive reads a standalone archive FITS stream (as written by
// WriteFits), skipping any leading non-table HDUs.
func ReadArchive(r io.Reader) (*InputArchive, error) {
	hdus, err := fits.ReadAll(r)
	if err != nil {
		return nil, err
	}
	for len(hdus) > 0 && hdus[0].Table == nil {
		hdus = hdus[1:]
	}

	return ArchiveFromHDUs(hdus)
}

// ArchiveFromHDUs builds an input archive from the index HDU followed by
// its data catalog HDUs. Extra trailing HDUs beyond the AR_NCAT count are
// ignored, so the slice may extend past the archive.
func ArchiveFromHDUs(hdus []*fits.HDU) (*InputArchive, error) {
	if len(hdus) == 0 || hdus[0].Table == nil {
		return nil, fmt.Errorf("%w: archive index HDU missing", errs.ErrInvalidHeader)
	}

	idxCat, afwType, err := CatalogFromHDU(hdus[0])
	if err != nil {
		return nil, fmt.Errorf("reading archive index: %w", err)
	}
	if afwType != afwTypeIndex {
		return nil, fmt.Errorf("%w: first archive HDU is %q, not %q",
			errs.ErrInvalidHeader, afwType, afwTypeIndex)
	}

	nCat := len(hdus) - 1
	if v, ok := hdus[0].Header.GetInt("AR_NCAT"); ok {
		n := int(v) - 1
		if n < 0 || n > nCat {
			return nil, fmt.Errorf("%w: AR_NCAT %d with %d data HDUs", errs.ErrInvalidHeader, v, nCat)
		}
		nCat = n
	}

	s := idxCat.Schema()
	idKey, err := s.FindKey("id")
	if err != nil {
		return nil, fmt.Errorf("archive index: %w", err)
	}
	firstKey, err := s.FindKey("cat.first")
	if err != nil {
		return nil, fmt.Errorf("archive index: %w", err)
	}
	countKey, err := s.FindKey("cat.count")
	if err != nil {
		return nil, fmt.Errorf("archive index: %w", err)
	}
	nameKey, err := s.FindKey("name")
	if err != nil {
		return nil, fmt.Errorf("archive index: %w", err)
	}
	moduleKey, err := s.FindKey("module")
	if err != nil {
		return nil, fmt.Errorf("archive index: %w", err)
	}

	a := &InputArchive{
		entries: make(map[int64]indexEntry, idxCat.Len()),
		cache:   make(map[int64]Persistable),
	}
	for _, rec := range idxCat.Records() {
		e := indexEntry{
			id:     rec.GetI64(idKey),
			first:  int(rec.GetI32(firstKey)),
			count:  int(rec.GetI32(countKey)),
			name:   rec.GetString(nameKey),
			module: rec.GetString(moduleKey),
		}
		// cat.first is 1-based; a populated entry must start inside the
		// catalog block or Get would slice out of range.
		if e.count < 0 || (e.count > 0 && e.first < 1) || e.first+e.count-1 > nCat {
			return nil, fmt.Errorf("%w: id %d claims catalogs %d..%d of %d",
				errs.ErrInvalidCatalogCount, e.id, e.first, e.first+e.count-1, nCat)
		}
		a.entries[e.id] = e
	}

	a.catalogs = make([]*table.Catalog, nCat)
	for i := 0; i < nCat; i++ {
		cat, _, err := CatalogFromHDU(hdus[1+i])
		if err != nil {
			return nil, fmt.Errorf("reading archive catalog %d: %w", i+1, err)
		}
		a.catalogs[i] = cat
	}

	return a, nil
}

// Get reconstructs the object with the given id. Id 0 returns (nil, nil).
// Repeated calls for the same id return the same object.
func (a *InputArchive) Get(id int64) (Persistable, error) {
	if id == 0 {
		return nil, nil
	}
	if obj, ok := a.cache[id]; ok {
		return obj, nil
	}

	e, ok := a.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", errs.ErrArchiveIDNotFound, id)
	}
	f, ok := lookupFactory(e.name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (module %q)", errs.ErrUnknownPersistable, e.name, e.module)
	}

	var cats []*table.Catalog
	if e.count > 0 {
		cats = a.catalogs[e.first-1 : e.first-1+e.count]
	}
	obj, err := f(&ReadHandle{arch: a, name: e.name, cats: cats})
	if err != nil {
		return nil, fmt.Errorf("restoring %q (id %d): %w", e.name, id, err)
	}
	a.cache[id] = obj

	return obj, nil
}

// Len returns the number of objects in the index.
func (a *InputArchive) Len() int { return len(a.entries) }

// ReadHandle hands a factory its object's catalogs, in the order they were
// registered on the output side.
type ReadHandle struct {
	arch *InputArchive
	name string
	cats []*table.Catalog
	next int
}

// PopCatalog returns the next catalog of the object's range.
func (h *ReadHandle) PopCatalog() (*table.Catalog, error) {
	if h.next >= len(h.cats) {
		return nil, fmt.Errorf("%w: %q has only %d catalogs", errs.ErrInvalidCatalogCount, h.name, len(h.cats))
	}
	cat := h.cats[h.next]
	h.next++

	return cat, nil
}

// Remaining returns the number of catalogs not yet popped.
func (h *ReadHandle) Remaining() int { return len(h.cats) - h.next }

// Get resolves a nested object id stored in one of the catalogs.
func (h *ReadHandle) Get(id int64) (Persistable, error) {
	return h.arch.Get(id)
}
