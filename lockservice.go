// lockservice.go - C6 Lock Service: process-level exclusion scoped around
// a PropertyStore's ScriptLock, plus the collection-level virtual lock
// persisted in the Master Index's lockStatus.

package filedb

import (
	"context"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// LockService implements both lock tiers described in spec §4.6.
type LockService struct {
	store          PropertyStore
	masterIndexKey string
	logger         *zap.SugaredLogger
}

// NewLockService constructs a LockService. masterIndexKey must be
// non-empty; it identifies the property-store entry the virtual lock
// operations read and write through the Master Index.
func NewLockService(store PropertyStore, masterIndexKey string) (*LockService, error) {
	if masterIndexKey == "" {
		return nil, ErrInvalidArgument.Wrap(errs.New("masterIndexKey must be non-empty"))
	}
	return &LockService{store: store, masterIndexKey: masterIndexKey, logger: namedLogger(nil, "lockservice")}, nil
}

// SetLogger rewires the LockService's logger, used by Database to plumb
// its configured Config.Logger down into process-level exclusion events.
func (s *LockService) SetLogger(l *zap.SugaredLogger) {
	s.logger = namedLogger(l, "lockservice")
}

// withExclusion runs fn under process-level mutual exclusion against any
// other process sharing this LockService's property store. Release is
// guaranteed on every exit path, including fn panicking.
func (s *LockService) withExclusion(ctx context.Context, timeoutMs int64, fn func() error) error {
	if timeoutMs <= 0 {
		return ErrInvalidArgument.Wrap(errs.New("timeoutMs must be positive"))
	}
	lock := s.store.GetScriptLock(s.masterIndexKey)
	acquired, err := lock.WaitLock(timeoutMs)
	if err != nil {
		return ErrLockTimeout.Wrap(err)
	}
	if !acquired {
		s.logger.Warnw("process-level exclusion timed out", "key", s.masterIndexKey, "timeoutMs", timeoutMs)
		return ErrLockTimeout.New("failed to acquire process-level exclusion within %dms", timeoutMs)
	}
	s.logger.Debugw("acquired process-level exclusion", "key", s.masterIndexKey)
	defer lock.ReleaseLock()
	return fn()
}

// acquireCollectionLock attempts to mark name as locked by operationId.
// Succeeds iff name is registered and there is currently no active,
// unexpired lock on it; an unregistered name returns false.
func (s *LockService) acquireCollectionLock(ctx context.Context, index *MasterIndex, name, operationId string, timeoutMs int64) (bool, error) {
	acquired := false
	err := s.withExclusion(ctx, timeoutMs, func() error {
		meta, err := index.getCollectionLocked(ctx, name)
		if err != nil {
			return err
		}
		if meta == nil {
			return nil
		}
		if isLockActive(meta.LockStatus) {
			return nil
		}
		meta.LockStatus = &LockStatus{
			IsLocked:    true,
			LockedBy:    operationId,
			LockedAtMs:  time.Now().UnixMilli(),
			LockTimeout: timeoutMs,
		}
		if err := index.putCollectionLocked(ctx, name, meta); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	if err == nil {
		if acquired {
			s.logger.Debugw("acquired collection lock", "collection", name, "operationId", operationId)
		} else {
			s.logger.Debugw("collection lock already held", "collection", name)
		}
	}
	return acquired, err
}

// releaseCollectionLock clears name's virtual lock iff currently held by
// operationId. Absent collection or absent lock is a successful no-op
// (idempotent release). Wrong owner returns false without clearing.
func (s *LockService) releaseCollectionLock(ctx context.Context, index *MasterIndex, name, operationId string, timeoutMs int64) (bool, error) {
	released := false
	err := s.withExclusion(ctx, timeoutMs, func() error {
		meta, err := index.getCollectionLocked(ctx, name)
		if err != nil {
			return err
		}
		if meta == nil || meta.LockStatus == nil || !meta.LockStatus.IsLocked {
			released = true
			return nil
		}
		if meta.LockStatus.LockedBy != operationId {
			released = false
			return nil
		}
		meta.LockStatus = nil
		if err := index.putCollectionLocked(ctx, name, meta); err != nil {
			return err
		}
		released = true
		return nil
	})
	return released, err
}

// isCollectionLocked reports whether name currently carries an active,
// unexpired lock.
func (s *LockService) isCollectionLocked(ctx context.Context, index *MasterIndex, name string, timeoutMs int64) (bool, error) {
	locked := false
	err := s.withExclusion(ctx, timeoutMs, func() error {
		meta, err := index.getCollectionLocked(ctx, name)
		if err != nil {
			return err
		}
		locked = meta != nil && isLockActive(meta.LockStatus)
		return nil
	})
	return locked, err
}

// cleanupExpiredLocks clears every collection's lockStatus whose timeout
// has elapsed.
func (s *LockService) cleanupExpiredLocks(ctx context.Context, index *MasterIndex, timeoutMs int64) error {
	return s.withExclusion(ctx, timeoutMs, func() error {
		names, err := index.listCollectionNamesLocked(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			meta, err := index.getCollectionLocked(ctx, name)
			if err != nil {
				return err
			}
			if meta == nil || meta.LockStatus == nil {
				continue
			}
			if !isLockActive(meta.LockStatus) {
				meta.LockStatus = nil
				if err := index.putCollectionLocked(ctx, name, meta); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// isLockActive reports whether ls represents a currently-held,
// non-expired lock.
func isLockActive(ls *LockStatus) bool {
	if ls == nil || !ls.IsLocked {
		return false
	}
	expiresAt := ls.LockedAtMs + ls.LockTimeout
	return time.Now().UnixMilli() < expiresAt
}
