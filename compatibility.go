// compatibility.go - thin convenience constructors in the teacher's
// compatibility.go idiom (a short Dial wrapper plus a couple of type
// aliases), re-purposed here for an embedded engine that has nothing to
// dial: "dialing" means wiring a Database to its in-memory or real
// backends.

package filedb

import "context"

// DB is an alias kept for readers coming from the teacher's
// Session/Collection naming - Database is this package's top-level handle,
// the same role ModernMGO/Session played for a live mongod connection.
type DB = Database

// OpenMemory wires a Database entirely in-process, against
// MemoryBlobStore/MemoryPropertyStore. Useful for tests and for embedders
// that don't need cross-process coordination.
func OpenMemory(config DatabaseConfig) (*Database, error) {
	return OpenDatabase(NewMemoryBlobStore(), NewMemoryPropertyStore(), config)
}

// DialEmbedded is a thin wrapper around OpenDatabase that also runs
// CreateDatabase-or-Initialise, matching the teacher's Dial in spirit: one
// call that gets you a ready-to-use handle instead of a bare, uninitialised
// struct.
func DialEmbedded(ctx context.Context, blobService BlobService, propertyStore PropertyStore, config DatabaseConfig) (*Database, error) {
	db, err := OpenDatabase(blobService, propertyStore, config)
	if err != nil {
		return nil, err
	}
	initialised, err := db.masterIndex.IsInitialised(ctx)
	if err != nil {
		return nil, err
	}
	if initialised {
		if err := db.Initialise(ctx); err != nil {
			return nil, err
		}
		return db, nil
	}
	if err := db.CreateDatabase(ctx); err != nil {
		return nil, err
	}
	return db, nil
}
