package table

import (
	"fmt"
	"sync"

	"github.com/lumensky/starcat/errs"
)

// peakMinimal holds the canonical minimal peak schema and its keys.
type peakMinimal struct {
	schema    *Schema
	id        Key
	ix, iy    Key
	fx, fy    Key
	peakValue Key
}

var (
	peakMinimalOnce sync.Once
	peakMinimalInst peakMinimal
)

func getPeakMinimal() *peakMinimal {
	peakMinimalOnce.Do(func() {
		s := NewSchema()
		id, _ := s.AddField("id", TypeI64, "unique id for peak", "")
		ix, _ := s.AddField("i.x", TypeI32, "column position of highest pixel", "pixel")
		iy, _ := s.AddField("i.y", TypeI32, "row position of highest pixel", "pixel")
		fx, _ := s.AddField("f.x", TypeF32, "subpixel column position", "pixel")
		fy, _ := s.AddField("f.y", TypeF32, "subpixel row position", "pixel")
		pv, _ := s.AddField("peakValue", TypeF32, "value of the peak pixel", "count")
		peakMinimalInst = peakMinimal{schema: s, id: id, ix: ix, iy: iy, fx: fx, fy: fy, peakValue: pv}
	})

	return &peakMinimalInst
}

// PeakMinimalSchema returns an unfrozen copy of the minimal schema required
// of every peak table: id, i.x, i.y, f.x, f.y, peakValue. Extend the copy
// with additional fields before constructing a PeakTable from it.
func PeakMinimalSchema() *Schema {
	return getPeakMinimal().schema.Clone()
}

// PeakValueKey returns the canonical key of the "peakValue" field.
func PeakValueKey() Key { return getPeakMinimal().peakValue }

// CheckPeakSchema reports whether schema contains the minimal peak schema.
func CheckPeakSchema(schema *Schema) bool {
	return schema.Contains(getPeakMinimal().schema)
}

// PeakRecord is a record in a peak catalog, with convenience accessors for
// the minimal-schema fields.
type PeakRecord struct {
	*Record
}

// GetId returns the peak's unique id.
func (p PeakRecord) GetId() RecordID { return p.GetI64(getPeakMinimal().id) }

// SetId sets the peak's unique id.
func (p PeakRecord) SetId(id RecordID) { p.SetI64(getPeakMinimal().id, id) }

// GetIx returns the integer column of the peak pixel.
func (p PeakRecord) GetIx() int { return int(p.GetI32(getPeakMinimal().ix)) }

// GetIy returns the integer row of the peak pixel.
func (p PeakRecord) GetIy() int { return int(p.GetI32(getPeakMinimal().iy)) }

// SetIx sets the integer column of the peak pixel.
func (p PeakRecord) SetIx(x int) { p.SetI32(getPeakMinimal().ix, int32(x)) }

// SetIy sets the integer row of the peak pixel.
func (p PeakRecord) SetIy(y int) { p.SetI32(getPeakMinimal().iy, int32(y)) }

// GetFx returns the subpixel column position.
func (p PeakRecord) GetFx() float32 { return p.GetF32(getPeakMinimal().fx) }

// GetFy returns the subpixel row position.
func (p PeakRecord) GetFy() float32 { return p.GetF32(getPeakMinimal().fy) }

// SetFx sets the subpixel column position.
func (p PeakRecord) SetFx(x float32) { p.SetF32(getPeakMinimal().fx, x) }

// SetFy sets the subpixel row position.
func (p PeakRecord) SetFy(y float32) { p.SetF32(getPeakMinimal().fy, y) }

// GetPeakValue returns the value of the peak pixel.
func (p PeakRecord) GetPeakValue() float32 { return p.GetF32(getPeakMinimal().peakValue) }

// SetPeakValue sets the value of the peak pixel.
func (p PeakRecord) SetPeakValue(v float32) { p.SetF32(getPeakMinimal().peakValue, v) }

// PeakTable is the record factory for peak catalogs.
//
// Unlike most tables, PeakTables are cached and reused by schema shape: there
// are typically very few distinct peak schemas but a great many peak catalogs
// (one per footprint), each holding only a handful of peaks. MakePeakTable
// therefore hands back an existing table with the same schema digest unless
// forceNew is set.
type PeakTable struct {
	*Table
}

var (
	peakTableCacheMu sync.Mutex
	peakTableCache   = make(map[uint64]*PeakTable)
)

// MakePeakTable returns a peak table for the given schema, which must
// contain the minimal peak schema. With forceNew false, a cached table with
// the same schema shape is reused when available.
func MakePeakTable(schema *Schema, forceNew bool) (*PeakTable, error) {
	if !CheckPeakSchema(schema) {
		return nil, fmt.Errorf("%w: schema does not contain the minimal peak schema",
			errs.ErrSchemaMismatch)
	}

	if !forceNew {
		peakTableCacheMu.Lock()
		cached, ok := peakTableCache[schema.Digest()]
		peakTableCacheMu.Unlock()
		if ok {
			return cached, nil
		}
	}

	base, err := NewTable(schema)
	if err != nil {
		return nil, err
	}
	base.SetIdFactory(NewSimpleIdFactory())
	pt := &PeakTable{Table: base}

	if !forceNew {
		peakTableCacheMu.Lock()
		peakTableCache[schema.Digest()] = pt
		peakTableCacheMu.Unlock()
	}

	return pt, nil
}

// PeakCatalog is a catalog of peak records.
type PeakCatalog struct {
	*Catalog
	peakTable *PeakTable
}

// NewPeakCatalog creates an empty peak catalog over a (possibly cached)
// table for the given schema.
func NewPeakCatalog(schema *Schema) (*PeakCatalog, error) {
	pt, err := MakePeakTable(schema, false)
	if err != nil {
		return nil, err
	}

	return &PeakCatalog{Catalog: NewCatalog(pt.Table), peakTable: pt}, nil
}

// NewMinimalPeakCatalog creates a peak catalog with exactly the minimal
// schema.
func NewMinimalPeakCatalog() *PeakCatalog {
	pc, err := NewPeakCatalog(PeakMinimalSchema())
	if err != nil {
		// The minimal schema always satisfies CheckPeakSchema.
		panic(err)
	}

	return pc
}

// PeakTable returns the typed table.
func (pc *PeakCatalog) PeakTable() *PeakTable { return pc.peakTable }

// AddNew appends a new peak record, assigning it the table's next id.
func (pc *PeakCatalog) AddNew() PeakRecord {
	rec := PeakRecord{pc.Catalog.AddNew()}
	if f := pc.peakTable.IdFactory(); f != nil {
		if id, err := f.Next(); err == nil {
			rec.SetId(id)
		}
	}

	return rec
}

// PeakAt returns the i-th record as a PeakRecord.
func (pc *PeakCatalog) PeakAt(i int) PeakRecord {
	return PeakRecord{pc.Catalog.At(i)}
}
