// masterindex.go - C7 Master Index: the authoritative collection registry,
// persisted as a single JSON blob in the property store under
// masterIndexKey (spec §4.7, §6).

package filedb

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

const masterIndexVersion = 1

// masterIndexPayload is the on-the-wire shape of the master-index blob.
type masterIndexPayload struct {
	Version     int                    `json:"version"`
	Collections map[string]interface{} `json:"collections"`
	LastUpdated interface{}            `json:"lastUpdated"`
	Locks       map[string]interface{} `json:"locks"`
}

// MasterIndex is the process-wide collection registry described in spec
// §4.7. It owns its own LockService instance so that every public
// operation that reads or writes the registry payload runs under
// process-level exclusion without requiring callers to juggle two
// collaborators. IsInitialised (an existence check) and
// GenerateModificationToken take no exclusion.
type MasterIndex struct {
	store PropertyStore
	key   string
	lock  *LockService
}

// NewMasterIndex constructs a MasterIndex over store, keyed by key.
func NewMasterIndex(store PropertyStore, key string) (*MasterIndex, error) {
	lock, err := NewLockService(store, key)
	if err != nil {
		return nil, err
	}
	return &MasterIndex{store: store, key: key, lock: lock}, nil
}

// SetLogger plumbs a configured logger down into the Master Index's
// LockService, so process-level exclusion events are attributed to
// whatever Config.Logger the owning Database was constructed with.
func (mi *MasterIndex) SetLogger(l *zap.SugaredLogger) {
	mi.lock.SetLogger(l)
}

// InitialiseEmpty writes a fresh, empty master-index blob. Callers must
// have already verified none exists (see Database.CreateDatabase).
func (mi *MasterIndex) InitialiseEmpty(ctx context.Context, timeoutMs int64) error {
	return mi.lock.withExclusion(ctx, timeoutMs, func() error {
		return mi.writePayloadLocked(ctx, &masterIndexPayload{
			Version:     masterIndexVersion,
			Collections: map[string]interface{}{},
			Locks:       map[string]interface{}{},
		})
	})
}

// IsInitialised reports whether the property-store entry exists.
func (mi *MasterIndex) IsInitialised(ctx context.Context) (bool, error) {
	_, ok, err := mi.store.GetProperty(ctx, mi.key)
	if err != nil {
		return false, ErrFileIOError.Wrap(err)
	}
	return ok, nil
}

// AddCollection inserts or overwrites name's metadata. Input is normalised:
// dates coerced, documentCount defaulted to 0, a modification token
// generated if absent. On a duplicate key the new metadata overwrites the
// old one (see DESIGN.md for why overwrite, not DuplicateKey, was chosen).
func (mi *MasterIndex) AddCollection(ctx context.Context, name string, metadata *CollectionMetadata, timeoutMs int64) error {
	return mi.lock.withExclusion(ctx, timeoutMs, func() error {
		normalised := metadata.Clone()
		if normalised.ModificationToken == "" {
			normalised.ModificationToken = generateModificationToken()
		}
		return mi.putCollectionLocked(ctx, name, normalised)
	})
}

// RemoveCollection deletes name from the registry. Idempotent.
func (mi *MasterIndex) RemoveCollection(ctx context.Context, name string, timeoutMs int64) error {
	return mi.lock.withExclusion(ctx, timeoutMs, func() error {
		payload, err := mi.readPayloadLocked(ctx)
		if err != nil {
			return err
		}
		delete(payload.Collections, name)
		return mi.writePayloadLocked(ctx, payload)
	})
}

// GetCollection returns the hydrated metadata for name, or nil if absent.
func (mi *MasterIndex) GetCollection(ctx context.Context, name string, timeoutMs int64) (*CollectionMetadata, error) {
	var result *CollectionMetadata
	err := mi.lock.withExclusion(ctx, timeoutMs, func() error {
		meta, err := mi.getCollectionLocked(ctx, name)
		if err != nil {
			return err
		}
		result = meta
		return nil
	})
	return result, err
}

// GetCollections returns every registered collection's hydrated metadata.
func (mi *MasterIndex) GetCollections(ctx context.Context, timeoutMs int64) ([]*CollectionMetadata, error) {
	var result []*CollectionMetadata
	err := mi.lock.withExclusion(ctx, timeoutMs, func() error {
		names, err := mi.listCollectionNamesLocked(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			meta, err := mi.getCollectionLocked(ctx, name)
			if err != nil {
				return err
			}
			if meta != nil {
				result = append(result, meta)
			}
		}
		return nil
	})
	return result, err
}

// UpdateCollectionMetadata merges partial onto the stored metadata for
// name. Unknown name fails with ErrCollectionNotFound.
func (mi *MasterIndex) UpdateCollectionMetadata(ctx context.Context, name string, apply func(*CollectionMetadata), timeoutMs int64) error {
	return mi.lock.withExclusion(ctx, timeoutMs, func() error {
		meta, err := mi.getCollectionLocked(ctx, name)
		if err != nil {
			return err
		}
		if meta == nil {
			return ErrCollectionNotFound.New("collection %q is not registered", name)
		}
		apply(meta)
		return mi.putCollectionLocked(ctx, name, meta)
	})
}

// GenerateModificationToken returns an opaque, UUID-grade unique token.
func (mi *MasterIndex) GenerateModificationToken() string {
	return generateModificationToken()
}

// AcquireCollectionLock attempts to mark name as locked by operationId.
func (mi *MasterIndex) AcquireCollectionLock(ctx context.Context, name, operationId string, timeoutMs int64) (bool, error) {
	return mi.lock.acquireCollectionLock(ctx, mi, name, operationId, timeoutMs)
}

// ReleaseCollectionLock clears name's virtual lock iff held by operationId.
func (mi *MasterIndex) ReleaseCollectionLock(ctx context.Context, name, operationId string, timeoutMs int64) (bool, error) {
	return mi.lock.releaseCollectionLock(ctx, mi, name, operationId, timeoutMs)
}

// IsCollectionLocked reports whether name currently carries an active,
// unexpired lock.
func (mi *MasterIndex) IsCollectionLocked(ctx context.Context, name string, timeoutMs int64) (bool, error) {
	return mi.lock.isCollectionLocked(ctx, mi, name, timeoutMs)
}

// CleanupExpiredLocks clears every collection's expired lockStatus.
func (mi *MasterIndex) CleanupExpiredLocks(ctx context.Context, timeoutMs int64) error {
	return mi.lock.cleanupExpiredLocks(ctx, mi, timeoutMs)
}

// --- internal helpers, assume the process-level exclusion is already held ---

func (mi *MasterIndex) getCollectionLocked(ctx context.Context, name string) (*CollectionMetadata, error) {
	payload, err := mi.readPayloadLocked(ctx)
	if err != nil {
		return nil, err
	}
	raw, ok := payload.Collections[name]
	if !ok {
		return nil, nil
	}
	doc, ok := asDocument(decodeValue(raw))
	if !ok {
		return nil, ErrMasterIndexError.New("collection %q metadata is malformed", name)
	}
	return DeserialiseCollectionMetadata(doc)
}

func (mi *MasterIndex) putCollectionLocked(ctx context.Context, name string, meta *CollectionMetadata) error {
	payload, err := mi.readPayloadLocked(ctx)
	if err != nil {
		return err
	}
	payload.Collections[name] = encodeDocumentDates(meta.Serialise())
	return mi.writePayloadLocked(ctx, payload)
}

func (mi *MasterIndex) listCollectionNamesLocked(ctx context.Context) ([]string, error) {
	payload, err := mi.readPayloadLocked(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(payload.Collections))
	for name := range payload.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (mi *MasterIndex) readPayloadLocked(ctx context.Context) (*masterIndexPayload, error) {
	raw, ok, err := mi.store.GetProperty(ctx, mi.key)
	if err != nil {
		return nil, ErrFileIOError.Wrap(err)
	}
	if !ok {
		return &masterIndexPayload{
			Version:     masterIndexVersion,
			Collections: map[string]interface{}{},
			Locks:       map[string]interface{}{},
		}, nil
	}
	var payload masterIndexPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, ErrMasterIndexError.Wrap(err)
	}
	if payload.Collections == nil {
		payload.Collections = map[string]interface{}{}
	}
	if payload.Locks == nil {
		payload.Locks = map[string]interface{}{}
	}
	return &payload, nil
}

func (mi *MasterIndex) writePayloadLocked(ctx context.Context, payload *masterIndexPayload) error {
	payload.Version = masterIndexVersion
	payload.LastUpdated = encodeDocumentDates(time.Now().UTC())
	data, err := json.Marshal(payload)
	if err != nil {
		return ErrMasterIndexError.Wrap(err)
	}
	if err := mi.store.SetProperty(ctx, mi.key, string(data)); err != nil {
		return ErrFileIOError.Wrap(err)
	}
	return nil
}

// ReadRaw reads and deserialises the master-index payload under exclusion
// and discards it, returning only the error: ErrMasterIndexError on a
// corrupt blob. Used by
// Database.Initialise to verify readability without otherwise touching
// state.
func (mi *MasterIndex) ReadRaw(ctx context.Context, timeoutMs int64) error {
	return mi.lock.withExclusion(ctx, timeoutMs, func() error {
		_, err := mi.readPayloadLocked(ctx)
		return err
	})
}

// restoreFromBackup overwrites the live master index with the contents of
// a backup blob, validating its structure first. Used by
// Database.RecoverDatabase.
func (mi *MasterIndex) restoreFromBackup(ctx context.Context, backup Document, timeoutMs int64) error {
	collectionsRaw, ok := backup["collections"]
	if !ok {
		return ErrInvalidArgument.Wrap(errs.New("backup is missing collections"))
	}
	collectionsDoc, ok := asDocument(collectionsRaw)
	if !ok {
		return ErrInvalidArgument.Wrap(errs.New("backup collections must be a mapping"))
	}

	return mi.lock.withExclusion(ctx, timeoutMs, func() error {
		payload := &masterIndexPayload{
			Version:     masterIndexVersion,
			Collections: map[string]interface{}{},
			Locks:       map[string]interface{}{},
		}
		for name, raw := range collectionsDoc {
			doc, ok := asDocument(raw)
			if !ok {
				return ErrInvalidArgument.Wrap(errs.New("backup collection entry must be a mapping"))
			}
			if _, err := DeserialiseCollectionMetadata(doc); err != nil {
				return ErrInvalidArgument.Wrap(err)
			}
			payload.Collections[name] = encodeDocumentDates(doc)
		}
		return mi.writePayloadLocked(ctx, payload)
	})
}
