package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/fits"
	"github.com/lumensky/starcat/table"
)

// Reserved header keywords of the catalog HDU mapping.
const (
	keyAfwType      = "AFW_TYPE"
	keyTableVersion = "AFW_TABLE_VERSION"
	keyAlias        = "ALIAS"
	keyFlagCol      = "FLAGCOL"
)

// KeyArchiveHDU is the catalog-HDU keyword naming the 1-based index of the
// HDU that holds the archive index for the catalog's object references.
const KeyArchiveHDU = "AR_HDU"

// legacySlotCards maps the version-0 slot keywords to the alias names the
// current format stores in ALIAS cards. Version-0 files carry the slot
// target as the card value.
var legacySlotCards = map[string]string{
	"PSF_FLUX_SLOT": table.SlotPsfFlux,
	"AP_FLUX_SLOT":  table.SlotApFlux,
	"CENTROID_SLOT": table.SlotCentroid,
	"SHAPE_SLOT":    table.SlotShape,
}

const flagWordBits = 32

// fieldColumn maps a schema field to its binary-table column type.
// Flag fields have no column of their own; they ride the packed flag column.
func fieldColumn(f table.Field) (fits.ColumnType, bool) {
	switch f.Type {
	case table.TypeI32:
		return fits.ColumnType{Code: 'J', Repeat: 1}, true
	case table.TypeI64:
		return fits.ColumnType{Code: 'K', Repeat: 1}, true
	case table.TypeF32:
		return fits.ColumnType{Code: 'E', Repeat: 1}, true
	case table.TypeF64:
		return fits.ColumnType{Code: 'D', Repeat: 1}, true
	case table.TypeString:
		return fits.ColumnType{Code: 'A', Repeat: f.Count}, true
	case table.TypeArrayI32:
		return fits.ColumnType{Code: 'J', Repeat: f.Count}, true
	case table.TypeArrayF32:
		return fits.ColumnType{Code: 'E', Repeat: f.Count}, true
	case table.TypeArrayF64:
		return fits.ColumnType{Code: 'D', Repeat: f.Count}, true
	case table.TypeVarArrayU16:
		return fits.ColumnType{Code: 'U', Var: true}, true
	case table.TypeVarArrayF32:
		return fits.ColumnType{Code: 'E', Var: true}, true
	case table.TypeVarArrayF64:
		return fits.ColumnType{Code: 'D', Var: true}, true
	default:
		return fits.ColumnType{}, false
	}
}

// columnField maps a binary-table column back to a schema field type.
// Unmapped column shapes report ok=false and are skipped by the reader.
func columnField(ct fits.ColumnType) (table.FieldType, bool) {
	switch ct.Code {
	case 'J':
		if ct.Var {
			return 0, false
		}
		if ct.Repeat == 1 {
			return table.TypeI32, true
		}

		return table.TypeArrayI32, true
	case 'K':
		if ct.Var || ct.Repeat != 1 {
			return 0, false
		}

		return table.TypeI64, true
	case 'E':
		if ct.Var {
			return table.TypeVarArrayF32, true
		}
		if ct.Repeat == 1 {
			return table.TypeF32, true
		}

		return table.TypeArrayF32, true
	case 'D':
		if ct.Var {
			return table.TypeVarArrayF64, true
		}
		if ct.Repeat == 1 {
			return table.TypeF64, true
		}

		return table.TypeArrayF64, true
	case 'A':
		return table.TypeString, true
	case 'U':
		if ct.Var {
			return table.TypeVarArrayU16, true
		}

		return 0, false
	default:
		return 0, false
	}
}

// catalogLayout is the flattened column plan of one catalog: one column per
// non-flag field in declaration order, plus a trailing packed flag column
// when the schema has flags.
type catalogLayout struct {
	cols     []fits.Column
	keys     []table.Key // keys[i] addresses cols[i]; flag column excluded
	flagKeys []table.Key // declaration order, bit i of the flag column
	flagCol  int         // index into cols, -1 when no flags
}

func layoutForSchema(s *table.Schema) catalogLayout {
	l := catalogLayout{flagCol: -1}
	for _, item := range s.Items() {
		if item.Field.Type == table.TypeFlag {
			l.flagKeys = append(l.flagKeys, item.Key)

			continue
		}
		ct, ok := fieldColumn(item.Field)
		if !ok {
			continue
		}
		l.cols = append(l.cols, fits.Column{
			Name: item.Field.Name,
			Type: ct,
			Unit: item.Field.Units,
			Doc:  item.Field.Doc,
		})
		l.keys = append(l.keys, item.Key)
	}
	if len(l.flagKeys) > 0 {
		words := (len(l.flagKeys) + flagWordBits - 1) / flagWordBits
		l.flagCol = len(l.cols)
		l.cols = append(l.cols, fits.Column{
			Name: "flags",
			Type: fits.ColumnType{Code: 'J', Repeat: words},
			Doc:  "packed boolean flag bits",
		})
	}

	return l
}

// packFlags gathers a record's flag bits into 32-bit words in bit order.
func packFlags(rec *table.Record, keys []table.Key) []int32 {
	words := make([]int32, (len(keys)+flagWordBits-1)/flagWordBits)
	for i, k := range keys {
		if rec.GetFlag(k) {
			words[i/flagWordBits] |= 1 << (i % flagWordBits)
		}
	}

	return words
}

// CatalogToTable flattens a catalog into a binary table: one column per
// non-flag field in declaration order, flags packed into a trailing column
// of 32-bit words.
func CatalogToTable(cat *table.Catalog) (*fits.BinTable, error) {
	l := layoutForSchema(cat.Schema())
	tbl := fits.NewBinTable(l.cols)

	row := make([]any, len(l.cols))
	for _, rec := range cat.Records() {
		for i, k := range l.keys {
			row[i] = rec.Get(k)
		}
		if l.flagCol >= 0 {
			row[l.flagCol] = packFlags(rec, l.flagKeys)
		}
		if err := tbl.AppendRow(row); err != nil {
			return nil, err
		}
	}

	return tbl, nil
}

// CatalogHeader builds the reserved-keyword header for a catalog HDU:
// AFW_TYPE, AFW_TABLE_VERSION, one ALIAS card per alias, and FLAGCOL plus
// TFLAGn name cards when the schema has flag fields.
func CatalogHeader(cat *table.Catalog, afwType string) *fits.Header {
	s := cat.Schema()
	h := fits.NewHeader()
	h.Append(keyAfwType, afwType, "")
	h.Append(keyTableVersion, int64(s.Version()), "")
	for _, pair := range s.Aliases().Items() {
		h.Append(keyAlias, pair[0]+":"+pair[1], "")
	}

	l := layoutForSchema(s)
	if l.flagCol >= 0 {
		h.Append(keyFlagCol, int64(l.flagCol+1), "packed flag column (1-based)")
		for i, k := range l.flagKeys {
			item := findItemByKey(s, k)
			h.Append(fmt.Sprintf("TFLAG%d", i+1), item.Field.Name, item.Field.Doc)
		}
	}

	return h
}

func findItemByKey(s *table.Schema, k table.Key) table.SchemaItem {
	for _, item := range s.Items() {
		if item.Key.Equal(k) {
			return item
		}
	}

	return table.SchemaItem{}
}

// WriteCatalog writes one catalog as a BINTABLE HDU. extra cards, if any,
// follow the reserved keywords.
func WriteCatalog(w io.Writer, cat *table.Catalog, afwType string, extra *fits.Header) error {
	tbl, err := CatalogToTable(cat)
	if err != nil {
		return err
	}
	h := CatalogHeader(cat, afwType)
	if extra != nil {
		for _, c := range extra.Cards() {
			h.Append(c.Key, c.Value, c.Comment)
		}
	}

	return fits.WriteBinTable(w, tbl, h)
}

// CatalogFromHDU rebuilds a catalog from a BINTABLE HDU, reversing the
// CatalogToTable/CatalogHeader mapping. It returns the catalog and the
// HDU's AFW_TYPE tag ("" when absent).
//
// Version handling: a missing AFW_TABLE_VERSION with AFW_TYPE present marks
// a version-0 file, whose slot definitions live in dedicated <SLOT>_SLOT
// keywords rather than ALIAS cards. Columns with shapes the schema model
// cannot represent are skipped.
func CatalogFromHDU(hdu *fits.HDU) (*table.Catalog, string, error) {
	if hdu.Table == nil {
		return nil, "", fmt.Errorf("%w: HDU has no binary table", errs.ErrInvalidHeader)
	}
	h := hdu.Header
	afwType, _ := h.GetString(keyAfwType)

	version := table.CurrentTableVersion
	if v, ok := h.GetInt(keyTableVersion); ok {
		version = int(v)
	} else if afwType != "" {
		version = 0
	}

	flagCol := -1
	if v, ok := h.GetInt(keyFlagCol); ok {
		flagCol = int(v) - 1
	}

	schema := table.NewSchema()
	schema.SetVersion(version)

	type binding struct {
		key table.Key
		col int
	}
	var bindings []binding
	for i, col := range hdu.Table.Cols {
		if i == flagCol {
			continue
		}
		ftype, ok := columnField(col.Type)
		if !ok {
			continue
		}
		doc := cardComment(h, fmt.Sprintf("TTYPE%d", i+1))
		var (
			key table.Key
			err error
		)
		switch ftype {
		case table.TypeString:
			key, err = schema.AddStringField(col.Name, doc, col.Unit, col.Type.Repeat)
		case table.TypeArrayI32, table.TypeArrayF32, table.TypeArrayF64:
			key, err = schema.AddArrayField(col.Name, ftype, doc, col.Unit, col.Type.Repeat)
		case table.TypeVarArrayU16, table.TypeVarArrayF32, table.TypeVarArrayF64:
			key, err = schema.AddVarArrayField(col.Name, ftype, doc, col.Unit)
		default:
			key, err = schema.AddField(col.Name, ftype, doc, col.Unit)
		}
		if err != nil {
			return nil, "", fmt.Errorf("column %q: %w", col.Name, err)
		}
		bindings = append(bindings, binding{key: key, col: i})
	}

	var flagKeys []table.Key
	for n := 1; ; n++ {
		name, ok := h.GetString(fmt.Sprintf("TFLAG%d", n))
		if !ok {
			break
		}
		key, err := schema.AddFlagField(name, cardComment(h, fmt.Sprintf("TFLAG%d", n)))
		if err != nil {
			return nil, "", fmt.Errorf("flag %q: %w", name, err)
		}
		flagKeys = append(flagKeys, key)
	}

	// Version-0 slot keywords first; ALIAS cards overwrite them when both
	// are present.
	if version == 0 {
		for card, alias := range legacySlotCards {
			if target, ok := h.GetString(card); ok && target != "" {
				schema.Aliases().Set(alias, target)
			}
		}
	}
	for _, v := range h.GetAll(keyAlias) {
		s, ok := v.(string)
		if !ok {
			continue
		}
		alias, target, found := strings.Cut(s, ":")
		if !found {
			return nil, "", fmt.Errorf("%w: malformed ALIAS card %q", errs.ErrInvalidHeader, s)
		}
		schema.Aliases().Set(alias, target)
	}

	cat, err := table.NewCatalogFromSchema(schema)
	if err != nil {
		return nil, "", err
	}
	for r := 0; r < hdu.Table.NRows(); r++ {
		rec := cat.AddNew()
		for _, b := range bindings {
			v, err := hdu.Table.Cell(r, b.col)
			if err != nil {
				return nil, "", err
			}
			if err := rec.Set(b.key, v); err != nil {
				return nil, "", fmt.Errorf("row %d column %d: %w", r, b.col, err)
			}
		}
		if flagCol >= 0 && len(flagKeys) > 0 {
			v, err := hdu.Table.Cell(r, flagCol)
			if err != nil {
				return nil, "", err
			}
			words := flagWords(v)
			for i, k := range flagKeys {
				w := i / flagWordBits
				if w < len(words) {
					rec.SetFlag(k, words[w]&(1<<(i%flagWordBits)) != 0)
				}
			}
		}
	}

	return cat, afwType, nil
}

// flagWords normalizes the flag column cell, which decodes as a scalar when
// the column holds a single word.
func flagWords(v any) []int32 {
	switch w := v.(type) {
	case int32:
		return []int32{w}
	case []int32:
		return w
	default:
		return nil
	}
}

func cardComment(h *fits.Header, key string) string {
	for _, c := range h.Cards() {
		if c.Key == key {
			return c.Comment
		}
	}

	return ""
}
