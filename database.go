// database.go - C10 Database: collection lifecycle (create/initialise/
// recover/drop/list) and name validation, analogous to the teacher's
// ModernDB in modern_types.go/modern_session.go but backed by the embedded
// engine instead of a live mongod connection.

package filedb

import (
	"context"
	"strings"
	"sync"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var reservedCollectionNames = map[string]bool{
	"index": true, "master": true, "system": true, "admin": true,
}

const disallowedCollectionNameChars = `/\:*?"<>|`

// DatabaseConfig is the enumerated C10 configuration.
type DatabaseConfig struct {
	RootFolderId                          string
	AutoCreateCollections                  bool
	LockTimeoutMs                          int64
	CacheEnabled                           bool
	LogLevel                               string
	MasterIndexKey                         string
	BackupOnInitialise                     bool
	StripDisallowedCollectionNameCharacters bool

	RetryAttempts int
	RetryDelayMs  int64
	// CoordinationEnabled, when false, bypasses all locking for every
	// collection created from this Database. See CoordinatorConfig's
	// field of the same name.
	CoordinationEnabled bool
	// Logger receives Debug/Warn events for lock acquisition, timeout,
	// conflict and reload across the Database, its Coordinators and its
	// Lock Service. Nil is treated as a no-op logger.
	Logger *zap.SugaredLogger
}

// DefaultDatabaseConfig returns the spec's documented defaults.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		AutoCreateCollections:                  true,
		LockTimeoutMs:                          30000,
		MasterIndexKey:                         "filedb:master-index",
		StripDisallowedCollectionNameCharacters: false,
		RetryAttempts:                           3,
		RetryDelayMs:                            1000,
		CoordinationEnabled:                     true,
	}
}

func (cfg DatabaseConfig) coordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		LockTimeoutMs:       cfg.LockTimeoutMs,
		RetryAttempts:       cfg.RetryAttempts,
		RetryDelayMs:        cfg.RetryDelayMs,
		CoordinationEnabled: cfg.CoordinationEnabled,
		Logger:              cfg.Logger,
	}
}

// Database is the C10 component.
type Database struct {
	blobService   BlobService
	propertyStore PropertyStore
	config        DatabaseConfig
	masterIndex   *MasterIndex
	logger        *zap.SugaredLogger

	mu          sync.Mutex
	collections map[string]*Collection
}

// OpenDatabase wires a Database to its storage collaborators without
// touching the Master Index; callers must still call CreateDatabase or
// Initialise before using it.
func OpenDatabase(blobService BlobService, propertyStore PropertyStore, config DatabaseConfig) (*Database, error) {
	if blobService == nil || propertyStore == nil {
		return nil, ErrInvalidArgument.Wrap(errs.New("blobService and propertyStore are required"))
	}
	if config.MasterIndexKey == "" {
		return nil, ErrConfigurationError.Wrap(errs.New("masterIndexKey must be non-empty"))
	}
	masterIndex, err := NewMasterIndex(propertyStore, config.MasterIndexKey)
	if err != nil {
		return nil, err
	}
	logger := namedLogger(config.Logger, "database")
	masterIndex.SetLogger(config.Logger)
	return &Database{
		blobService:   blobService,
		propertyStore: propertyStore,
		config:        config,
		masterIndex:   masterIndex,
		logger:        logger,
		collections:   make(map[string]*Collection),
	}, nil
}

// CreateDatabase initialises a brand-new Master Index. Fails if one
// already exists.
func (db *Database) CreateDatabase(ctx context.Context) error {
	initialised, err := db.masterIndex.IsInitialised(ctx)
	if err != nil {
		return err
	}
	if initialised {
		db.logger.Warnw("create requested but database is already initialised")
		return ErrConfigurationError.New("database is already initialised")
	}
	db.logger.Debugw("initialising new master index", "key", db.config.MasterIndexKey)
	return db.masterIndex.InitialiseEmpty(ctx, db.config.LockTimeoutMs)
}

// Initialise verifies the Master Index exists and is readable. Fails if
// absent or corrupted.
func (db *Database) Initialise(ctx context.Context) error {
	initialised, err := db.masterIndex.IsInitialised(ctx)
	if err != nil {
		return err
	}
	if !initialised {
		db.logger.Warnw("initialise requested but no master index exists", "key", db.config.MasterIndexKey)
		return ErrMasterIndexError.New("database is not initialised")
	}
	return db.masterIndex.ReadRaw(ctx, db.config.LockTimeoutMs)
}

// RecoverDatabase reads a backup master-index blob from backupFileId and
// restores it as the live Master Index.
func (db *Database) RecoverDatabase(ctx context.Context, backupFileId string) error {
	backup, err := db.blobService.ReadFile(ctx, backupFileId)
	if err != nil {
		return err
	}
	return db.masterIndex.restoreFromBackup(ctx, backup, db.config.LockTimeoutMs)
}

// validateCollectionName checks/strips disallowed characters and rejects
// reserved names, per spec §4.10.
func (db *Database) validateCollectionName(name string) (string, error) {
	if name == "" {
		return "", ErrInvalidArgument.Wrap(errs.New("collection name must be non-empty"))
	}
	if strings.ContainsAny(name, disallowedCollectionNameChars) {
		if !db.config.StripDisallowedCollectionNameCharacters {
			return "", ErrInvalidArgument.New("collection name %q contains disallowed characters", name)
		}
		name = stripChars(name, disallowedCollectionNameChars)
		if name == "" {
			return "", ErrInvalidArgument.Wrap(errs.New("collection name is empty after stripping disallowed characters"))
		}
	}
	if reservedCollectionNames[strings.ToLower(name)] {
		return "", ErrInvalidArgument.New("collection name %q is reserved", name)
	}
	return name, nil
}

func stripChars(s, disallowed string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(disallowed, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Collection returns the named collection, creating it first if
// AutoCreateCollections is enabled and it doesn't yet exist in the Master
// Index.
func (db *Database) Collection(ctx context.Context, name string) (*Collection, error) {
	name, err := db.validateCollectionName(name)
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	if c, ok := db.collections[name]; ok {
		db.mu.Unlock()
		return c, nil
	}
	db.mu.Unlock()

	meta, err := db.masterIndex.GetCollection(ctx, name, db.config.LockTimeoutMs)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		if !db.config.AutoCreateCollections {
			return nil, ErrCollectionNotFound.New("collection %q is not registered", name)
		}
		if _, err := db.CreateCollection(ctx, name); err != nil {
			return nil, err
		}
	}

	return db.bindCollection(name)
}

// CreateCollection registers name in the Master Index and binds a fresh
// Collection instance to it.
func (db *Database) CreateCollection(ctx context.Context, name string) (*Collection, error) {
	name, err := db.validateCollectionName(name)
	if err != nil {
		return nil, err
	}
	meta, err := NewCollectionMetadata(name, name)
	if err != nil {
		return nil, err
	}
	if err := db.masterIndex.AddCollection(ctx, name, meta, db.config.LockTimeoutMs); err != nil {
		return nil, err
	}
	return db.bindCollection(name)
}

// DropCollection removes name from the Master Index and deletes its blob.
func (db *Database) DropCollection(ctx context.Context, name string) error {
	if err := db.masterIndex.RemoveCollection(ctx, name, db.config.LockTimeoutMs); err != nil {
		return err
	}
	if err := db.blobService.DeleteFile(ctx, name); err != nil {
		return err
	}
	db.mu.Lock()
	delete(db.collections, name)
	db.mu.Unlock()
	return nil
}

// ListCollections returns every registered collection's metadata.
func (db *Database) ListCollections(ctx context.Context) ([]*CollectionMetadata, error) {
	return db.masterIndex.GetCollections(ctx, db.config.LockTimeoutMs)
}

func (db *Database) bindCollection(name string) (*Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c, ok := db.collections[name]; ok {
		return c, nil
	}
	c, err := NewCollection(name, name, db, db.blobService)
	if err != nil {
		return nil, err
	}
	db.collections[name] = c
	return c, nil
}
