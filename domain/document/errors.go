package document

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	// ErrEmptyContent indicates a document was constructed without content.
	ErrEmptyContent = fmt.Errorf("%w: document content must not be empty", ErrValidation)

	// ErrNotFound indicates no document exists for the requested id.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate indicates the document was rejected as a near duplicate
	// of one already stored.
	ErrDuplicate = errors.New("document is a duplicate and was not added")

	// ErrValidation is the parent of all caller input errors.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateID indicates the same id appears more than once in a request.
	ErrDuplicateID = fmt.Errorf("%w: duplicate id in request", ErrValidation)

	// ErrLengthMismatch indicates ids and documents differ in length.
	ErrLengthMismatch = fmt.Errorf("%w: ids and documents length mismatch", ErrValidation)

	// ErrEmptyTargets indicates a delete request without any ids.
	ErrEmptyTargets = fmt.Errorf("%w: target ids must not be empty", ErrValidation)

	// ErrIDExists indicates an insert reused the id of a stored document.
	ErrIDExists = fmt.Errorf("%w: document id already exists", ErrValidation)

	// ErrInvariant indicates the store's internal bookkeeping is inconsistent.
	// It is a bug, never a caller error.
	ErrInvariant = errors.New("document store invariant violated")
)
