// store.go - external collaborator interfaces (spec §6). Out of scope for
// this package's own logic, but every other component depends on these
// shapes, so they are declared first among the storage-facing files.

package filedb

import "context"

// BlobService is the file-level storage collaborator required by
// Collection. Implementations store one JSON-equivalent mapping per id.
type BlobService interface {
	// ReadFile returns the parsed content of id, or fails with
	// ErrFileNotFound / ErrInvalidFileFormat.
	ReadFile(ctx context.Context, id string) (Document, error)
	// WriteFile overwrites id with a canonical JSON serialisation of doc.
	WriteFile(ctx context.Context, id string, doc Document) error
	// DeleteFile removes id, if present. Idempotent.
	DeleteFile(ctx context.Context, id string) error
}

// ScriptLock is the mutex primitive handed out by PropertyStore for
// process-level exclusion.
type ScriptLock interface {
	// WaitLock blocks up to timeoutMs for the lock, returning false on
	// timeout.
	WaitLock(timeoutMs int64) (bool, error)
	ReleaseLock() error
}

// PropertyStore is the process-wide key-value collaborator required by the
// Lock Service and Master Index.
type PropertyStore interface {
	GetProperty(ctx context.Context, key string) (string, bool, error)
	SetProperty(ctx context.Context, key, value string) error
	DeleteProperty(ctx context.Context, key string) error
	// GetScriptLock returns a lock handle scoped to key, shared by every
	// caller using the same underlying store and key.
	GetScriptLock(key string) ScriptLock
}
