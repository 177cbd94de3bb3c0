package table

import (
	"fmt"

	"github.com/lumensky/starcat/errs"
)

type mappedPair struct {
	input  Key
	output Key
}

// SchemaMapper defines a field-by-field mapping from an input schema to an
// output schema it builds incrementally.
//
// The canonical uses are migrating catalogs between differently named but
// equally shaped schemas, and upgrading legacy persisted layouts to the
// current minimal schema (map old field names onto new ones, then
// Record.AssignMapped each row).
type SchemaMapper struct {
	input  *Schema
	output *Schema
	pairs  []mappedPair
}

// NewSchemaMapper creates a mapper reading from the given input schema, with
// an empty output schema.
func NewSchemaMapper(input *Schema) *SchemaMapper {
	return &SchemaMapper{input: input, output: NewSchema()}
}

// InputSchema returns the schema mapped from.
func (m *SchemaMapper) InputSchema() *Schema { return m.input }

// OutputSchema returns the schema built by the mapper. Freeze it by
// constructing a table once mapping is complete.
func (m *SchemaMapper) OutputSchema() *Schema { return m.output }

// AddMinimalSchema appends every field of minimal to the output schema
// without mapping any input field onto it. Returns an error if a field
// cannot be added.
func (m *SchemaMapper) AddMinimalSchema(minimal *Schema) error {
	for _, item := range minimal.Items() {
		if _, err := m.addOutputField(item.Field); err != nil {
			return err
		}
	}

	return nil
}

// AddMapping maps the input field addressed by inKey onto a new output field
// with the same definition, returning the output key.
func (m *SchemaMapper) AddMapping(inKey Key) (Key, error) {
	item, err := m.findInputItem(inKey)
	if err != nil {
		return invalidKey, err
	}

	return m.addMappingTo(inKey, item.Field)
}

// AddMappingRenamed maps the input field addressed by inKey onto an output
// field named outName (created if absent, reusing the input field's shape).
func (m *SchemaMapper) AddMappingRenamed(inKey Key, outName string) (Key, error) {
	item, err := m.findInputItem(inKey)
	if err != nil {
		return invalidKey, err
	}
	field := item.Field
	field.Name = outName

	return m.addMappingTo(inKey, field)
}

func (m *SchemaMapper) addMappingTo(inKey Key, field Field) (Key, error) {
	outKey, err := m.addOutputField(field)
	if err != nil {
		return invalidKey, err
	}
	m.pairs = append(m.pairs, mappedPair{input: inKey, output: outKey})

	return outKey, nil
}

func (m *SchemaMapper) addOutputField(f Field) (Key, error) {
	switch {
	case f.Type == TypeFlag:
		return m.output.AddFlagField(f.Name, f.Doc)
	case f.Type.IsVariable():
		return m.output.AddVarArrayField(f.Name, f.Type, f.Doc, f.Units)
	case f.Type == TypeString:
		return m.output.AddStringField(f.Name, f.Doc, f.Units, f.Count)
	case f.Type.IsFixedArray():
		return m.output.AddArrayField(f.Name, f.Type, f.Doc, f.Units, f.Count)
	default:
		return m.output.AddField(f.Name, f.Type, f.Doc, f.Units)
	}
}

func (m *SchemaMapper) findInputItem(inKey Key) (SchemaItem, error) {
	for _, item := range m.input.Items() {
		if item.Key.Equal(inKey) {
			return item, nil
		}
	}

	return SchemaItem{}, fmt.Errorf("%w: mapper input key %s", errs.ErrFieldNotFound, inKey)
}

// Pairs returns the (input, output) key pairs in mapping order.
func (m *SchemaMapper) Pairs() [][2]Key {
	out := make([][2]Key, len(m.pairs))
	for i, p := range m.pairs {
		out[i] = [2]Key{p.input, p.output}
	}

	return out
}
