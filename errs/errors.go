// Package errs defines the sentinel error values returned by starcat.
//
// Errors fall into five families, mirroring the failure taxonomy of the
// library:
//
//   - Logic errors: the caller combined objects whose structures are
//     incompatible (schema mismatches, frozen schemas, mask-plane conflicts).
//   - Not-found errors: a name or id the caller asked for does not exist.
//   - Range errors: a counter or array exceeded its reserved capacity.
//   - Invalid-input errors: persisted or caller-supplied data is malformed.
//   - Unsupported-operation errors: an optional capability is not provided
//     by the concrete type in hand.
//
// All of these are programming-contract or malformed-input conditions; none
// are retryable. Callers should match with errors.Is, since the library wraps
// sentinels with contextual detail via fmt.Errorf and %w.
package errs

import "errors"

// Logic errors: structural incompatibility between objects.
var (
	// ErrSchemaMismatch indicates two records or a record and a mapper do not
	// share a compatible schema.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrSchemaFrozen indicates an attempt to add a field to a schema that has
	// already been used to construct a table.
	ErrSchemaFrozen = errors.New("schema is frozen")

	// ErrFieldExists indicates a field name is already present in the schema
	// with an incompatible definition.
	ErrFieldExists = errors.New("field already exists")

	// ErrMaskPlaneConflict indicates no mask-plane bit is available, or a
	// plane definition conflicts with an existing one.
	ErrMaskPlaneConflict = errors.New("mask plane conflict")

	// ErrInvalidKey indicates a default-constructed or foreign key was used to
	// address a record.
	ErrInvalidKey = errors.New("invalid key")

	// ErrKeyTypeMismatch indicates a typed accessor was called with a key of a
	// different field type.
	ErrKeyTypeMismatch = errors.New("key type mismatch")
)

// Not-found errors.
var (
	// ErrFieldNotFound indicates a field name is absent from a schema and its
	// alias map.
	ErrFieldNotFound = errors.New("field not found")

	// ErrMaskPlaneNotFound indicates a mask-plane name is not defined.
	ErrMaskPlaneNotFound = errors.New("mask plane not found")

	// ErrArchiveIDNotFound indicates an object id is absent from an input
	// archive's index.
	ErrArchiveIDNotFound = errors.New("archive id not found")

	// ErrUnknownPersistable indicates no factory is registered for a persisted
	// object's name.
	ErrUnknownPersistable = errors.New("unknown persistable name")

	// ErrRecordNotFound indicates a sorted-catalog search did not match.
	ErrRecordNotFound = errors.New("record not found")
)

// Range errors.
var (
	// ErrIDOverflow indicates an id factory exhausted its reserved bit width.
	ErrIDOverflow = errors.New("id sequence overflow")

	// ErrArraySizeMismatch indicates a bulk value's length differs from the
	// field's element count.
	ErrArraySizeMismatch = errors.New("array size mismatch")
)

// Invalid-input errors.
var (
	// ErrInvalidTForm indicates an unsupported FITS TFORM column format code.
	ErrInvalidTForm = errors.New("invalid TFORM code")

	// ErrInvalidCatalogCount indicates a persisted object was stored with an
	// unexpected number of catalogs.
	ErrInvalidCatalogCount = errors.New("unexpected catalog count")

	// ErrInvalidHeader indicates a malformed FITS or snapshot header.
	ErrInvalidHeader = errors.New("invalid header")

	// ErrInvalidParameter indicates a negative, zero or otherwise malformed
	// argument to a constructor.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotNormalized indicates an operation that requires normalized spans
	// was given an unnormalized span set.
	ErrNotNormalized = errors.New("span set not normalized")

	// ErrChecksumMismatch indicates a snapshot payload failed checksum
	// verification.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Unsupported-operation errors.
var (
	// ErrUnsupportedOperation indicates an optional operation is not
	// implemented by the concrete type.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)
