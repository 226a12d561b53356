// errors.go - stable error kinds for the embeddable document database.
//
// Each kind from spec §7 is modelled as an errs.Class (the same pattern
// storj-storj uses throughout its storage layer): a class wraps an
// underlying cause while stamping a stable, matchable identity that callers
// can test with errors.Is/errors.As without parsing a message string.

package filedb

import (
	"errors"

	"github.com/zeebo/errs"
)

var (
	// ErrInvalidArgument - caller provided a value of wrong type/shape/range.
	ErrInvalidArgument = errs.Class("invalid argument")
	// ErrInvalidQuery - query or update expression rejected by validation.
	ErrInvalidQuery = errs.Class("invalid query")
	// ErrDocumentNotFound - no document matched the requested id/filter.
	ErrDocumentNotFound = errs.Class("document not found")
	// ErrDuplicateKey - insert collided with an existing _id.
	ErrDuplicateKey = errs.Class("duplicate key")
	// ErrCollectionNotFound - collection name is not registered in the master index.
	ErrCollectionNotFound = errs.Class("collection not found")
	// ErrLockTimeout - process-level exclusion was not acquired within its timeout.
	ErrLockTimeout = errs.Class("lock timeout")
	// ErrLockAcquisitionFailure - the collection-level virtual lock could not be acquired.
	ErrLockAcquisitionFailure = errs.Class("lock acquisition failure")
	// ErrModificationConflict - the modification token no longer matched after a reload.
	ErrModificationConflict = errs.Class("modification conflict")
	// ErrCoordinationTimeout - a coordinated operation exceeded its lock timeout deadline.
	ErrCoordinationTimeout = errs.Class("coordination timeout")
	// ErrFileIOError - a blob/property-store read or write failed.
	ErrFileIOError = errs.Class("file io error")
	// ErrFileNotFound - the requested blob id does not exist.
	ErrFileNotFound = errs.Class("file not found")
	// ErrPermissionDenied - the blob/property store rejected the operation.
	ErrPermissionDenied = errs.Class("permission denied")
	// ErrQuotaExceeded - the backing store is out of space/quota.
	ErrQuotaExceeded = errs.Class("quota exceeded")
	// ErrInvalidFileFormat - a blob failed to parse as the collection blob format.
	ErrInvalidFileFormat = errs.Class("invalid file format")
	// ErrMasterIndexError - the master index blob is corrupt or internally inconsistent.
	ErrMasterIndexError = errs.Class("master index error")
	// ErrConfigurationError - misconfiguration caught at construction time.
	ErrConfigurationError = errs.Class("configuration error")
	// ErrOperationError - catch-all for internal assertions and misuse.
	ErrOperationError = errs.Class("operation error")
)

// classOf reports whether err belongs to the given errs.Class, looking
// through wrapping the way the teacher's err == ErrNotFound comparisons
// used to for its single sentinel case.
func classOf(class errs.Class, err error) bool {
	return class.Has(err)
}

// errsIs is a small package-internal shim over errors.Is.
func errsIs(err, target error) bool {
	return errors.Is(err, target)
}
