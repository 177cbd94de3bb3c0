package table

import (
	"fmt"
	"strings"
	"sync"

	"github.com/lumensky/starcat/errs"
)

// Slot roles understood by SourceTable. A slot binds a semantic role to a
// concrete field-name prefix through the schema's alias map, so measurement
// consumers can ask for "the centroid" without knowing which algorithm's
// fields provide it.
const (
	SlotPsfFlux  = "slot_PsfFlux"
	SlotApFlux   = "slot_ApFlux"
	SlotCentroid = "slot_Centroid"
	SlotShape    = "slot_Shape"
)

// FluxSlot caches the keys of a flux-style slot: <prefix>_instFlux,
// <prefix>_instFluxErr and <prefix>_flag. Unbound members are invalid keys.
type FluxSlot struct {
	Flux    Key
	FluxErr Key
	Flag    Key
}

// CentroidSlot caches the keys of a centroid slot: <prefix>_x, <prefix>_y
// and <prefix>_flag.
type CentroidSlot struct {
	X    Key
	Y    Key
	Flag Key
}

// ShapeSlot caches the keys of a shape slot: <prefix>_xx, <prefix>_yy and
// <prefix>_xy.
type ShapeSlot struct {
	XX Key
	YY Key
	XY Key
}

// sourceMinimal holds the canonical minimal source schema and its keys.
type sourceMinimal struct {
	schema *Schema
	id     Key
	ra     Key
	dec    Key
	parent Key
}

var (
	sourceMinimalOnce sync.Once
	sourceMinimalInst sourceMinimal
)

func getSourceMinimal() *sourceMinimal {
	sourceMinimalOnce.Do(func() {
		s := NewSchema()
		id, _ := s.AddField("id", TypeI64, "unique id for source", "")
		ra, _ := s.AddField("coord.ra", TypeF64, "ICRS right ascension", "rad")
		dec, _ := s.AddField("coord.dec", TypeF64, "ICRS declination", "rad")
		parent, _ := s.AddField("parent", TypeI64, "id of deblend parent, 0 if isolated", "")
		sourceMinimalInst = sourceMinimal{schema: s, id: id, ra: ra, dec: dec, parent: parent}
	})

	return &sourceMinimalInst
}

// SourceMinimalSchema returns an unfrozen copy of the minimal schema
// required of every source table: id, coord.ra, coord.dec, parent.
func SourceMinimalSchema() *Schema {
	return getSourceMinimal().schema.Clone()
}

// CheckSourceSchema reports whether schema contains the minimal source
// schema.
func CheckSourceSchema(schema *Schema) bool {
	return schema.Contains(getSourceMinimal().schema)
}

// SourceTable is the record factory for source catalogs, carrying cached
// slot definitions resolved through the schema's alias map.
//
// Slot keys are recomputed whenever a relevant alias changes; rebinding a
// slot never moves stored data, it only redirects which fields the slot
// getters read.
type SourceTable struct {
	*Table

	psfFlux  FluxSlot
	apFlux   FluxSlot
	centroid CentroidSlot
	shape    ShapeSlot
}

// NewSourceTable creates a source table for the given schema, which must
// contain the minimal source schema.
func NewSourceTable(schema *Schema, idFactory IdFactory) (*SourceTable, error) {
	if !CheckSourceSchema(schema) {
		return nil, fmt.Errorf("%w: schema does not contain the minimal source schema",
			errs.ErrSchemaMismatch)
	}
	base, err := NewTable(schema)
	if err != nil {
		return nil, err
	}
	if idFactory == nil {
		idFactory = NewSimpleIdFactory()
	}
	base.SetIdFactory(idFactory)

	st := &SourceTable{Table: base}
	base.setAliasObserver(st.handleAliasChange)
	st.recomputeSlots()

	return st, nil
}

// DefinePsfFlux binds the PsfFlux slot to the given field-name prefix.
func (st *SourceTable) DefinePsfFlux(prefix string) { st.schema.aliases.Set(SlotPsfFlux, prefix) }

// DefineApFlux binds the ApFlux slot to the given field-name prefix.
func (st *SourceTable) DefineApFlux(prefix string) { st.schema.aliases.Set(SlotApFlux, prefix) }

// DefineCentroid binds the Centroid slot to the given field-name prefix.
func (st *SourceTable) DefineCentroid(prefix string) { st.schema.aliases.Set(SlotCentroid, prefix) }

// DefineShape binds the Shape slot to the given field-name prefix.
func (st *SourceTable) DefineShape(prefix string) { st.schema.aliases.Set(SlotShape, prefix) }

// PsfFluxSlot returns the cached PsfFlux slot keys.
func (st *SourceTable) PsfFluxSlot() FluxSlot { return st.psfFlux }

// ApFluxSlot returns the cached ApFlux slot keys.
func (st *SourceTable) ApFluxSlot() FluxSlot { return st.apFlux }

// CentroidSlot returns the cached centroid slot keys.
func (st *SourceTable) CentroidSlot() CentroidSlot { return st.centroid }

// ShapeSlot returns the cached shape slot keys.
func (st *SourceTable) ShapeSlot() ShapeSlot { return st.shape }

// handleAliasChange recomputes slot caches when a slot alias is redefined.
func (st *SourceTable) handleAliasChange(alias string) {
	if strings.HasPrefix(alias, "slot_") {
		st.recomputeSlots()
	}
}

func (st *SourceTable) recomputeSlots() {
	st.psfFlux = st.resolveFluxSlot(SlotPsfFlux)
	st.apFlux = st.resolveFluxSlot(SlotApFlux)
	st.centroid = st.resolveCentroidSlot()
	st.shape = st.resolveShapeSlot()
}

// slotKey resolves one slot member field; an unbound or missing member
// yields the invalid key.
func (st *SourceTable) slotKey(alias, suffix string, want FieldType) Key {
	if st.schema.aliases.Get(alias) == "" {
		return invalidKey
	}
	item, err := st.schema.Find(alias + suffix)
	if err != nil || item.Field.Type != want {
		return invalidKey
	}

	return item.Key
}

func (st *SourceTable) resolveFluxSlot(alias string) FluxSlot {
	return FluxSlot{
		Flux:    st.slotKey(alias, "_instFlux", TypeF64),
		FluxErr: st.slotKey(alias, "_instFluxErr", TypeF64),
		Flag:    st.slotKey(alias, "_flag", TypeFlag),
	}
}

func (st *SourceTable) resolveCentroidSlot() CentroidSlot {
	return CentroidSlot{
		X:    st.slotKey(SlotCentroid, "_x", TypeF64),
		Y:    st.slotKey(SlotCentroid, "_y", TypeF64),
		Flag: st.slotKey(SlotCentroid, "_flag", TypeFlag),
	}
}

func (st *SourceTable) resolveShapeSlot() ShapeSlot {
	return ShapeSlot{
		XX: st.slotKey(SlotShape, "_xx", TypeF64),
		YY: st.slotKey(SlotShape, "_yy", TypeF64),
		XY: st.slotKey(SlotShape, "_xy", TypeF64),
	}
}

// SourceRecord is a record in a source catalog with slot-aware accessors.
type SourceRecord struct {
	*Record
	sourceTable *SourceTable
}

// GetId returns the source's unique id.
func (s SourceRecord) GetId() RecordID { return s.GetI64(getSourceMinimal().id) }

// SetId sets the source's unique id.
func (s SourceRecord) SetId(id RecordID) { s.SetI64(getSourceMinimal().id, id) }

// GetRa returns the source's right ascension in radians.
func (s SourceRecord) GetRa() float64 { return s.GetF64(getSourceMinimal().ra) }

// GetDec returns the source's declination in radians.
func (s SourceRecord) GetDec() float64 { return s.GetF64(getSourceMinimal().dec) }

// SetCoord sets the source's sky position in radians.
func (s SourceRecord) SetCoord(ra, dec float64) {
	s.SetF64(getSourceMinimal().ra, ra)
	s.SetF64(getSourceMinimal().dec, dec)
}

// GetParent returns the id of the source's deblend parent (0 if isolated).
func (s SourceRecord) GetParent() RecordID { return s.GetI64(getSourceMinimal().parent) }

// SetParent sets the id of the source's deblend parent.
func (s SourceRecord) SetParent(id RecordID) { s.SetI64(getSourceMinimal().parent, id) }

// GetPsfInstFlux returns the flux of the PsfFlux slot; the slot must be
// bound (check the slot's key validity first when unsure).
func (s SourceRecord) GetPsfInstFlux() float64 { return s.GetF64(s.sourceTable.psfFlux.Flux) }

// GetApInstFlux returns the flux of the ApFlux slot.
func (s SourceRecord) GetApInstFlux() float64 { return s.GetF64(s.sourceTable.apFlux.Flux) }

// GetX returns the centroid slot's x position.
func (s SourceRecord) GetX() float64 { return s.GetF64(s.sourceTable.centroid.X) }

// GetY returns the centroid slot's y position.
func (s SourceRecord) GetY() float64 { return s.GetF64(s.sourceTable.centroid.Y) }

// SourceCatalog is a catalog of source records.
type SourceCatalog struct {
	*Catalog
	sourceTable *SourceTable
}

// NewSourceCatalog creates an empty catalog on the given source table.
func NewSourceCatalog(st *SourceTable) *SourceCatalog {
	return &SourceCatalog{Catalog: NewCatalog(st.Table), sourceTable: st}
}

// SourceTable returns the typed table.
func (sc *SourceCatalog) SourceTable() *SourceTable { return sc.sourceTable }

// AddNew appends a new source record, assigning it the table's next id.
// Id exhaustion (a source id factory can overflow its reserved bits) is
// returned rather than panicking.
func (sc *SourceCatalog) AddNew() (SourceRecord, error) {
	rec := SourceRecord{Record: sc.Catalog.AddNew(), sourceTable: sc.sourceTable}
	if f := sc.sourceTable.IdFactory(); f != nil {
		id, err := f.Next()
		if err != nil {
			sc.Catalog.Erase(sc.Catalog.Len() - 1)

			return SourceRecord{}, err
		}
		rec.SetId(id)
	}

	return rec, nil
}

// SourceAt returns the i-th record as a SourceRecord.
func (sc *SourceCatalog) SourceAt(i int) SourceRecord {
	return SourceRecord{Record: sc.Catalog.At(i), sourceTable: sc.sourceTable}
}
