// coordinator.go - C8 Collection Coordinator: wraps every collection
// mutation in lock acquisition, modification-token validation, conflict
// resolution (reload-and-retry) and lock release. Grounded on
// homveloper-boss-raid-game's nodestorage/v2 Storage.FindOneAndUpdate,
// which uses the same acquire/check-token/execute/commit/release shape
// around optimistic concurrency, rewritten here in the teacher's terser
// idiom.

package filedb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CoordinatorConfig is the enumerated C8 configuration.
type CoordinatorConfig struct {
	LockTimeoutMs int64
	RetryAttempts int
	RetryDelayMs  int64
	// CoordinationEnabled gates all locking. Defaulted true; flipping it
	// off bypasses the Master Index entirely and is a correctness escape
	// hatch per spec §9 - present for embedders that own their own
	// external coordination, never as a casual performance knob.
	CoordinationEnabled bool
	// Logger receives lock-acquisition/conflict/reload events at
	// Debug/Warn level. Nil is treated as a no-op logger.
	Logger *zap.SugaredLogger
}

// DefaultCoordinatorConfig returns the spec's documented defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		LockTimeoutMs:       30000,
		RetryAttempts:       3,
		RetryDelayMs:        1000,
		CoordinationEnabled: true,
	}
}

// coordinatorTarget is the minimal surface Collection exposes to its
// Coordinator - a non-owning back-reference, per spec §9's cyclic
// reference resolution.
type coordinatorTarget interface {
	collectionName() string
	currentModificationToken() string
	reload(ctx context.Context) error
	commitMetadata(token string, newDocumentCount int) error
	persist(ctx context.Context) error
	documentCount() int
}

// Coordinator is the C8 Collection Coordinator.
type Coordinator struct {
	target      coordinatorTarget
	masterIndex *MasterIndex
	config      CoordinatorConfig
	logger      *zap.SugaredLogger
}

// NewCoordinator constructs a Coordinator bound to a Collection, the
// shared MasterIndex, and a resolved configuration.
func NewCoordinator(target coordinatorTarget, masterIndex *MasterIndex, config CoordinatorConfig) *Coordinator {
	return &Coordinator{
		target:      target,
		masterIndex: masterIndex,
		config:      config,
		logger:      namedLogger(config.Logger, "coordinator"),
	}
}

// coordinate runs fn under the full protocol described in spec §4.8:
// acquire the collection's virtual lock, reconcile the modification token
// (reloading once on conflict), invoke fn, commit the new token, then
// release the lock on every exit path.
func (c *Coordinator) coordinate(ctx context.Context, operationName string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if !c.config.CoordinationEnabled {
		result, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.target.persist(ctx); err != nil {
			return nil, err
		}
		return result, nil
	}

	name := c.target.collectionName()
	operationId := uuid.NewString()

	if err := c.acquireOperationLock(ctx, name, operationId); err != nil {
		return nil, err
	}
	defer c.masterIndex.ReleaseCollectionLock(ctx, name, operationId, c.config.LockTimeoutMs)

	deadline := time.Now().Add(time.Duration(c.config.LockTimeoutMs) * time.Millisecond)

	if err := c.reconcileToken(ctx, name); err != nil {
		return nil, err
	}

	result, err := c.runWithDeadline(ctx, deadline, fn)
	if err != nil {
		return nil, err
	}

	if err := c.commitAndPersist(ctx, name); err != nil {
		return nil, err
	}

	return result, nil
}

// acquireOperationLock attempts to acquire the collection's virtual lock
// up to retryAttempts+1 times, sleeping retryDelayMs between attempts.
func (c *Coordinator) acquireOperationLock(ctx context.Context, name, operationId string) error {
	attempts := c.config.RetryAttempts + 1
	for i := 0; i < attempts; i++ {
		ok, err := c.masterIndex.AcquireCollectionLock(ctx, name, operationId, c.config.LockTimeoutMs)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(time.Duration(c.config.RetryDelayMs) * time.Millisecond)
		}
	}
	c.logger.Warnw("lock acquisition failed", "collection", name, "attempts", attempts)
	return ErrLockAcquisitionFailure.New("could not acquire lock for collection %q after %d attempts", name, attempts)
}

// reconcileToken compares the Collection's in-memory token against the
// Master Index's current token, reloading (once) on mismatch per spec
// §4.8 step 4. If the token still disagrees after the reload, the
// conflict is persistent and is surfaced to the caller as
// ErrModificationConflict per spec §7 rather than silently proceeding.
func (c *Coordinator) reconcileToken(ctx context.Context, name string) error {
	remote, err := c.masterIndex.GetCollection(ctx, name, c.config.LockTimeoutMs)
	if err != nil {
		return err
	}
	if remote == nil {
		return nil
	}
	local := c.target.currentModificationToken()
	if local == "" || remote.ModificationToken == local {
		return nil
	}

	c.logger.Debugw("modification token mismatch, reloading", "collection", name)
	if err := c.target.reload(ctx); err != nil {
		return err
	}

	remote, err = c.masterIndex.GetCollection(ctx, name, c.config.LockTimeoutMs)
	if err != nil {
		return err
	}
	if remote != nil && remote.ModificationToken != c.target.currentModificationToken() {
		c.logger.Warnw("modification conflict persists after reload", "collection", name)
		return ErrModificationConflict.New("collection %q still conflicts with the master index after reload", name)
	}
	return nil
}

// runWithDeadline invokes fn, failing with ErrCoordinationTimeout if the
// configured lockTimeout elapses before it returns. Because coordinate
// runs cooperatively single-threaded (spec §5), the callback cannot
// actually be preempted; the check fires once fn returns, which still
// catches a callback that blocked on slow blob-store I/O past the
// deadline.
func (c *Coordinator) runWithDeadline(ctx context.Context, deadline time.Time, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	result, err := fn(ctx)
	if time.Now().After(deadline) {
		return nil, ErrCoordinationTimeout.New("coordinated operation exceeded lockTimeout")
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// commitAndPersist generates a fresh modification token and applies it (and
// the current document count) to the Collection's in-memory metadata and
// its blob *before* recording the same token in the Master Index. That
// ordering matters: it guarantees a concurrently reloading process never
// observes a blob whose persisted token lags behind what the Master Index
// already reports - exactly the condition reconcileToken's post-reload
// check treats as a permanent conflict.
func (c *Coordinator) commitAndPersist(ctx context.Context, name string) error {
	token := c.masterIndex.GenerateModificationToken()
	count := c.target.documentCount()

	if err := c.target.commitMetadata(token, count); err != nil {
		return err
	}
	if err := c.target.persist(ctx); err != nil {
		return err
	}

	err := c.masterIndex.UpdateCollectionMetadata(ctx, name, func(m *CollectionMetadata) {
		m.ModificationToken = token
		m.DocumentCount = count
		m.Touch()
	}, c.config.LockTimeoutMs)
	if err != nil {
		if classOf(ErrCollectionNotFound, err) {
			meta, buildErr := NewCollectionMetadata(name, name)
			if buildErr != nil {
				return ErrOperationError.Wrap(buildErr)
			}
			meta.ModificationToken = token
			meta.DocumentCount = count
			return c.masterIndex.AddCollection(ctx, name, meta, c.config.LockTimeoutMs)
		}
		return err
	}
	return nil
}
