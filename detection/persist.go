package detection

import (
	"fmt"

	"github.com/lumensky/starcat/archive"
	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/geom"
	"github.com/lumensky/starcat/table"
)

// Persistence names under which footprints are stored in archives.
const (
	persistenceModule   = "starcat.detection"
	spanSetName         = "SpanSet"
	footprintName       = "Footprint"
	heavyFootprintFName = "HeavyFootprintF"
)

// persistedSpanSet adapts a span set to the archive interface. Footprints
// store their spans as a separately archived object so several footprints
// over the same region stay compact.
type persistedSpanSet struct {
	spans *geom.SpanSet
}

func (p *persistedSpanSet) PersistenceName() string   { return spanSetName }
func (p *persistedSpanSet) PersistenceModule() string { return persistenceModule }

func (p *persistedSpanSet) Write(h *archive.Handle) error {
	s := table.NewSchema()
	yk, err := s.AddField("y", table.TypeI32, "row of the span", "pixel")
	if err != nil {
		return err
	}
	x0k, err := s.AddField("x0", table.TypeI32, "first column, inclusive", "pixel")
	if err != nil {
		return err
	}
	x1k, err := s.AddField("x1", table.TypeI32, "last column, inclusive", "pixel")
	if err != nil {
		return err
	}
	cat, err := h.MakeCatalog(s)
	if err != nil {
		return err
	}
	for _, sp := range p.spans.Spans() {
		rec := cat.AddNew()
		rec.SetI32(yk, int32(sp.Y))
		rec.SetI32(x0k, int32(sp.X0))
		rec.SetI32(x1k, int32(sp.X1))
	}

	return nil
}

// spanSetFromCatalog rebuilds a span set from a y/x0/x1 catalog. Both the
// archived SpanSet object and the legacy span catalog of old footprints use
// this layout.
func spanSetFromCatalog(cat *table.Catalog) (*geom.SpanSet, error) {
	s := cat.Schema()
	yk, err := s.FindKey("y")
	if err != nil {
		return nil, err
	}
	x0k, err := s.FindKey("x0")
	if err != nil {
		return nil, err
	}
	x1k, err := s.FindKey("x1")
	if err != nil {
		return nil, err
	}

	spans := make([]geom.Span, 0, cat.Len())
	for _, rec := range cat.Records() {
		spans = append(spans, geom.NewSpan(
			int(rec.GetI32(yk)), int(rec.GetI32(x0k)), int(rec.GetI32(x1k))))
	}

	return geom.NewSpanSet(spans...), nil
}

// PersistenceName implements archive.Persistable.
func (f *Footprint) PersistenceName() string   { return footprintName }
func (f *Footprint) PersistenceModule() string { return persistenceModule }

// Write stores the footprint as two catalogs: a single-row main catalog
// referencing the archived span set and holding the region box, and the
// peak catalog.
func (f *Footprint) Write(h *archive.Handle) error {
	return writeFootprintParts(f, h)
}

func writeFootprintParts(fp *Footprint, h *archive.Handle) error {
	spansID, err := h.Put(&persistedSpanSet{spans: fp.spans})
	if err != nil {
		return err
	}

	s := table.NewSchema()
	spansKey, err := s.AddField("spans", table.TypeI64, "archive id of the span set", "")
	if err != nil {
		return err
	}
	boxKeys, err := addBoxFields(s, "region")
	if err != nil {
		return err
	}
	cat, err := h.MakeCatalog(s)
	if err != nil {
		return err
	}
	rec := cat.AddNew()
	rec.SetI64(spansKey, spansID)
	setBoxFields(rec, boxKeys, fp.region)

	h.SaveCatalog(fp.peaks.Catalog)

	return nil
}

type boxKeys struct {
	x0, y0, x1, y1 table.Key
	empty          table.Key
}

func addBoxFields(s *table.Schema, prefix string) (boxKeys, error) {
	var k boxKeys
	var err error
	if k.x0, err = s.AddField(prefix+".x0", table.TypeI32, "", "pixel"); err != nil {
		return k, err
	}
	if k.y0, err = s.AddField(prefix+".y0", table.TypeI32, "", "pixel"); err != nil {
		return k, err
	}
	if k.x1, err = s.AddField(prefix+".x1", table.TypeI32, "", "pixel"); err != nil {
		return k, err
	}
	if k.y1, err = s.AddField(prefix+".y1", table.TypeI32, "", "pixel"); err != nil {
		return k, err
	}
	k.empty, err = s.AddFlagField(prefix+".empty", "box is the empty box")

	return k, err
}

func setBoxFields(rec *table.Record, k boxKeys, box geom.Box2I) {
	rec.SetFlag(k.empty, box.IsEmpty())
	if box.IsEmpty() {
		return
	}
	rec.SetI32(k.x0, int32(box.Min().X))
	rec.SetI32(k.y0, int32(box.Min().Y))
	rec.SetI32(k.x1, int32(box.Max().X))
	rec.SetI32(k.y1, int32(box.Max().Y))
}

func boxFromFields(rec *table.Record, s *table.Schema, prefix string) (geom.Box2I, error) {
	emptyKey, err := s.FindKey(prefix + ".empty")
	if err == nil && rec.GetFlag(emptyKey) {
		return geom.EmptyBox2I(), nil
	}
	x0k, err := s.FindKey(prefix + ".x0")
	if err != nil {
		return geom.Box2I{}, err
	}
	y0k, err := s.FindKey(prefix + ".y0")
	if err != nil {
		return geom.Box2I{}, err
	}
	x1k, err := s.FindKey(prefix + ".x1")
	if err != nil {
		return geom.Box2I{}, err
	}
	y1k, err := s.FindKey(prefix + ".y1")
	if err != nil {
		return geom.Box2I{}, err
	}

	return geom.NewBox2I(
		geom.Point2I{X: int(rec.GetI32(x0k)), Y: int(rec.GetI32(y0k))},
		geom.Point2I{X: int(rec.GetI32(x1k)), Y: int(rec.GetI32(y1k))},
	), nil
}

// readFootprintParts rebuilds a footprint from the handle's first two
// catalogs. A main catalog without a "spans" field is a legacy footprint
// whose spans are stored inline as y/x0/x1 rows; its region defaults to the
// span bounding box.
func readFootprintParts(h *archive.ReadHandle) (*Footprint, error) {
	main, err := h.PopCatalog()
	if err != nil {
		return nil, err
	}

	var (
		spans  *geom.SpanSet
		region geom.Box2I
	)
	if _, err := main.Schema().FindKey("spans"); err == nil {
		if main.Len() != 1 {
			return nil, fmt.Errorf("%w: footprint main catalog has %d rows",
				errs.ErrInvalidCatalogCount, main.Len())
		}
		rec := main.At(0)
		obj, err := h.Get(rec.GetI64(main.Schema().MustKey("spans")))
		if err != nil {
			return nil, err
		}
		ps, ok := obj.(*persistedSpanSet)
		if !ok {
			return nil, fmt.Errorf("%w: footprint spans id resolves to %T",
				errs.ErrUnknownPersistable, obj)
		}
		spans = ps.spans
		region, err = boxFromFields(rec, main.Schema(), "region")
		if err != nil {
			return nil, err
		}
	} else {
		spans, err = spanSetFromCatalog(main)
		if err != nil {
			return nil, err
		}
		region = spans.BBox()
	}

	peaksCat, err := h.PopCatalog()
	if err != nil {
		return nil, err
	}
	fp, err := NewFootprintWithPeakSchema(spans, region, peaksCat.Schema())
	if err != nil {
		return nil, err
	}
	for _, rec := range peaksCat.Records() {
		if _, err := fp.peaks.AppendDeep(rec); err != nil {
			return nil, err
		}
	}

	return fp, nil
}

// PersistenceName implements archive.Persistable.
func (hf *HeavyFootprint) PersistenceName() string   { return heavyFootprintFName }
func (hf *HeavyFootprint) PersistenceModule() string { return persistenceModule }

// Write stores the footprint's two catalogs followed by a single-row pixel
// catalog of three variable-length arrays.
//
// Mask pixels persist as 16-bit words; a mask value using higher planes
// cannot be stored and fails with errs.ErrUnsupportedOperation.
func (hf *HeavyFootprint) Write(h *archive.Handle) error {
	if err := writeFootprintParts(hf.Footprint, h); err != nil {
		return err
	}

	mask := make([]uint16, len(hf.mask))
	for i, m := range hf.mask {
		if m > 0xFFFF {
			return fmt.Errorf("%w: mask value %#x does not fit the persisted 16-bit mask column",
				errs.ErrUnsupportedOperation, m)
		}
		mask[i] = uint16(m)
	}

	s := table.NewSchema()
	imgKey, err := s.AddVarArrayField("image", table.TypeVarArrayF32, "image pixels in span order", "")
	if err != nil {
		return err
	}
	maskKey, err := s.AddVarArrayField("mask", table.TypeVarArrayU16, "mask pixels in span order", "")
	if err != nil {
		return err
	}
	varKey, err := s.AddVarArrayField("variance", table.TypeVarArrayF32, "variance pixels in span order", "")
	if err != nil {
		return err
	}
	cat, err := h.MakeCatalog(s)
	if err != nil {
		return err
	}
	rec := cat.AddNew()
	rec.SetVarF32(imgKey, hf.image)
	rec.SetVarU16(maskKey, mask)
	rec.SetVarF32(varKey, hf.variance)

	return nil
}

func readHeavyFootprint(h *archive.ReadHandle) (archive.Persistable, error) {
	fp, err := readFootprintParts(h)
	if err != nil {
		return nil, err
	}
	pixels, err := h.PopCatalog()
	if err != nil {
		return nil, err
	}
	if pixels.Len() != 1 {
		return nil, fmt.Errorf("%w: heavy pixel catalog has %d rows",
			errs.ErrInvalidCatalogCount, pixels.Len())
	}

	s := pixels.Schema()
	rec := pixels.At(0)
	img := rec.GetVarF32(s.MustKey("image"))
	mask16 := rec.GetVarU16(s.MustKey("mask"))
	variance := rec.GetVarF32(s.MustKey("variance"))

	mask := make([]uint32, len(mask16))
	for i, m := range mask16 {
		mask[i] = uint32(m)
	}

	hf := NewHeavyFootprint(fp)
	if err := hf.SetArrays(img, mask, variance); err != nil {
		return nil, err
	}

	return hf, nil
}

func init() {
	archive.RegisterFactory(spanSetName, func(h *archive.ReadHandle) (archive.Persistable, error) {
		cat, err := h.PopCatalog()
		if err != nil {
			return nil, err
		}
		spans, err := spanSetFromCatalog(cat)
		if err != nil {
			return nil, err
		}

		return &persistedSpanSet{spans: spans}, nil
	})
	archive.RegisterFactory(footprintName, func(h *archive.ReadHandle) (archive.Persistable, error) {
		return readFootprintParts(h)
	})
	archive.RegisterFactory(heavyFootprintFName, readHeavyFootprint)
}
