// collection.go - C9 Collection: lazy-loaded, dirty-tracked document set,
// routed through a Coordinator for every mutation. API shape (InsertOne,
// find-by-filter-or-id, Bulk hookup) follows the teacher's ModernColl in
// modern_collection.go; the body underneath is the embedded engine instead
// of a delegated call to a live mongod.

package filedb

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
)

// ChangeInfo mirrors the teacher's legacy_types.go result shape, reused
// here for insert/update/delete acknowledgements.
type ChangeInfo struct {
	Acknowledged bool
	InsertedId   string
	Matched      int
	Modified     int
	Removed      int
}

// Collection is the C9 component: a named set of documents persisted as a
// single blob, plus the metadata tying it to the Master Index.
type Collection struct {
	name        string
	fileId      string
	database    *Database
	blobService BlobService

	mu        sync.Mutex
	loaded     bool
	documents  map[string]Document
	order      []string
	metadata   *CollectionMetadata
	dirty      bool
	coordinator *Coordinator
}

// NewCollection constructs a Collection bound to name/fileId. All four
// arguments are required. Documents are not loaded until first operation.
func NewCollection(name, fileId string, database *Database, blobService BlobService) (*Collection, error) {
	if name == "" || fileId == "" || database == nil || blobService == nil {
		return nil, ErrInvalidArgument.Wrap(errs.New("name, fileId, database and blobService are all required"))
	}
	c := &Collection{name: name, fileId: fileId, database: database, blobService: blobService}
	c.coordinator = NewCoordinator(c, database.masterIndex, database.config.coordinatorConfig())
	return c, nil
}

// --- coordinatorTarget interface, called only by Coordinator ---

func (c *Collection) collectionName() string { return c.name }

func (c *Collection) currentModificationToken() string {
	if c.metadata == nil {
		return ""
	}
	return c.metadata.ModificationToken
}

func (c *Collection) documentCount() int {
	return len(c.documents)
}

func (c *Collection) reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadFromBlob(ctx)
}

// commitMetadata applies the Coordinator's freshly minted token and
// document count before persist writes the blob, so the blob's own
// recorded token never trails what the Master Index is about to report.
func (c *Collection) commitMetadata(token string, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata.ModificationToken = token
	c.metadata.DocumentCount = count
	c.metadata.Touch()
	return nil
}

// persist writes the collection's blob, called by the Coordinator only
// after commitMetadata so the written blob carries the same token the
// Master Index is about to be updated with.
func (c *Collection) persist(ctx context.Context) error {
	return c.Save(ctx)
}

// --- lazy load / persistence ---

func (c *Collection) ensureLoaded(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	return c.loadFromBlob(ctx)
}

func (c *Collection) loadFromBlob(ctx context.Context) error {
	blob, err := c.blobService.ReadFile(ctx, c.fileId)
	if err != nil {
		if classOf(ErrFileNotFound, err) {
			c.documents = make(map[string]Document)
			c.order = nil
			meta, buildErr := NewCollectionMetadata(c.name, c.fileId)
			if buildErr != nil {
				return buildErr
			}
			c.metadata = meta
			c.loaded = true
			return nil
		}
		return err
	}

	docs := make(map[string]Document)
	var order []string
	if rawDocs, ok := asDocument(blob["documents"]); ok {
		for id, rawDoc := range rawDocs {
			doc, ok := asDocument(rawDoc)
			if !ok {
				return ErrInvalidFileFormat.New("document %q in collection %q is malformed", id, c.name)
			}
			docs[id] = doc
			order = append(order, id)
		}
	}

	metaDoc, _ := asDocument(blob["metadata"])
	meta, err := DeserialiseCollectionMetadata(metaDoc)
	if err != nil {
		return err
	}
	// the parent name/fileId override whatever the blob itself recorded.
	meta.Name = c.name
	meta.FileID = c.fileId

	c.documents = docs
	c.order = order
	c.metadata = meta
	c.loaded = true
	c.dirty = false
	return nil
}

// Save writes the blob if the collection is dirty.
func (c *Collection) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked(ctx)
}

func (c *Collection) saveLocked(ctx context.Context) error {
	if !c.dirty {
		return nil
	}
	blob := c.toBlobLocked()
	if err := c.blobService.WriteFile(ctx, c.fileId, blob); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func (c *Collection) toBlobLocked() Document {
	docs := make(Document, len(c.documents))
	for id, doc := range c.documents {
		docs[id] = doc
	}
	return Document{
		"documents": docs,
		"metadata":  c.metadata.Serialise(),
	}
}

// orderedDocuments returns documents in the order c.order holds them - the
// "stable input order" the query engine's invariants are phrased against.
// Documents inserted since the last load follow insertion order; documents
// read from the blob come first, in map iteration order, because the blob
// does not record an order.
func (c *Collection) orderedDocuments() []Document {
	out := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		if doc, ok := c.documents[id]; ok {
			out = append(out, doc)
		}
	}
	return out
}

// --- mutation operations, routed through the coordinator ---

// InsertOne assigns an _id if missing, rejects on duplicate, appends, and
// marks the collection dirty.
func (c *Collection) InsertOne(ctx context.Context, doc Document) (*ChangeInfo, error) {
	result, err := c.coordinator.coordinate(ctx, "insertOne", func(ctx context.Context) (interface{}, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.ensureLoaded(ctx); err != nil {
			return nil, err
		}

		toInsert := cloneDocument(doc)
		id, _ := toInsert["_id"].(string)
		if id == "" {
			id = uuid.NewString()
			toInsert["_id"] = id
		}
		if _, exists := c.documents[id]; exists {
			return nil, ErrDuplicateKey.New("document with _id %q already exists", id)
		}

		c.documents[id] = toInsert
		c.order = append(c.order, id)
		c.metadata.IncrementDocumentCount()
		c.dirty = true

		return &ChangeInfo{Acknowledged: true, InsertedId: id}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*ChangeInfo), nil
}

// UpdateOne finds the first document matching filterOrId and applies ops:
// an update-operator mapping via C4, or otherwise treats ops as a full
// replacement (preserving _id).
func (c *Collection) UpdateOne(ctx context.Context, filterOrId interface{}, ops Document) (*ChangeInfo, error) {
	result, err := c.coordinator.coordinate(ctx, "updateOne", func(ctx context.Context) (interface{}, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.ensureLoaded(ctx); err != nil {
			return nil, err
		}

		id, doc, err := c.findOneLocked(ctx, filterOrId)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return &ChangeInfo{Acknowledged: true, Matched: 0, Modified: 0}, nil
		}

		updated, err := c.applyUpdateOrReplace(doc, ops)
		if err != nil {
			return nil, err
		}
		c.documents[id] = updated
		c.dirty = true
		return &ChangeInfo{Acknowledged: true, Matched: 1, Modified: 1}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*ChangeInfo), nil
}

// UpdateMany applies ops to every document matching filter.
func (c *Collection) UpdateMany(ctx context.Context, filter Document, ops Document) (*ChangeInfo, error) {
	result, err := c.coordinator.coordinate(ctx, "updateMany", func(ctx context.Context) (interface{}, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.ensureLoaded(ctx); err != nil {
			return nil, err
		}

		ids, err := c.matchingIdsLocked(filter)
		if err != nil {
			return nil, err
		}
		modified := 0
		for _, id := range ids {
			updated, err := c.applyUpdateOrReplace(c.documents[id], ops)
			if err != nil {
				return nil, err
			}
			c.documents[id] = updated
			modified++
		}
		if modified > 0 {
			c.dirty = true
		}
		return &ChangeInfo{Acknowledged: true, Matched: len(ids), Modified: modified}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*ChangeInfo), nil
}

// ReplaceOne replaces the full document matched by filterOrId, preserving
// its _id.
func (c *Collection) ReplaceOne(ctx context.Context, filterOrId interface{}, replacement Document) (*ChangeInfo, error) {
	result, err := c.coordinator.coordinate(ctx, "replaceOne", func(ctx context.Context) (interface{}, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.ensureLoaded(ctx); err != nil {
			return nil, err
		}

		id, doc, err := c.findOneLocked(ctx, filterOrId)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return &ChangeInfo{Acknowledged: true, Matched: 0, Modified: 0}, nil
		}

		next := cloneDocument(replacement)
		next["_id"] = id
		c.documents[id] = next
		c.dirty = true
		return &ChangeInfo{Acknowledged: true, Matched: 1, Modified: 1}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*ChangeInfo), nil
}

// DeleteOne removes the first document matching filter.
func (c *Collection) DeleteOne(ctx context.Context, filter Document) (*ChangeInfo, error) {
	result, err := c.coordinator.coordinate(ctx, "deleteOne", func(ctx context.Context) (interface{}, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.ensureLoaded(ctx); err != nil {
			return nil, err
		}

		id, doc, err := c.findOneLocked(ctx, filter)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return &ChangeInfo{Acknowledged: true, Removed: 0}, nil
		}

		c.removeLocked(id)
		c.dirty = true
		return &ChangeInfo{Acknowledged: true, Removed: 1}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*ChangeInfo), nil
}

// DeleteMany removes every document matching filter.
func (c *Collection) DeleteMany(ctx context.Context, filter Document) (*ChangeInfo, error) {
	result, err := c.coordinator.coordinate(ctx, "deleteMany", func(ctx context.Context) (interface{}, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.ensureLoaded(ctx); err != nil {
			return nil, err
		}

		ids, err := c.matchingIdsLocked(filter)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			c.removeLocked(id)
		}
		if len(ids) > 0 {
			c.dirty = true
		}
		return &ChangeInfo{Acknowledged: true, Removed: len(ids)}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*ChangeInfo), nil
}

func (c *Collection) removeLocked(id string) {
	delete(c.documents, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if c.metadata.DocumentCount > 0 {
		c.metadata.DocumentCount--
	}
}

func (c *Collection) applyUpdateOrReplace(doc Document, ops Document) (Document, error) {
	if hasUpdateOperators(ops) {
		return applyUpdateOperators(doc, ops)
	}
	replacement := cloneDocument(ops)
	replacement["_id"] = doc["_id"]
	return replacement, nil
}

// hasUpdateOperators mirrors the teacher's legacy_types.go helper of the
// same name: ops is an update-operator mapping iff every top-level key
// starts with "$".
func hasUpdateOperators(ops Document) bool {
	if len(ops) == 0 {
		return false
	}
	for k := range ops {
		if len(k) == 0 || k[0] != '$' {
			return false
		}
	}
	return true
}

// --- read operations ---

// FindOne returns the first document matching filter, or nil.
func (c *Collection) FindOne(ctx context.Context, filter interface{}) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	_, doc, err := c.findOneLocked(ctx, filter)
	if err != nil || doc == nil {
		return nil, err
	}
	return cloneDocument(doc), nil
}

// Find returns every document matching filter, in orderedDocuments order
// (insertion order only for documents inserted since the last load).
func (c *Collection) Find(ctx context.Context, filter Document) ([]Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	matches, err := c.evaluateLocked(filter)
	if err != nil {
		return nil, err
	}
	out := make([]Document, len(matches))
	for i, d := range matches {
		out[i] = cloneDocument(d)
	}
	return out, nil
}

// CountDocuments counts documents matching filter.
func (c *Collection) CountDocuments(ctx context.Context, filter Document) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	matches, err := c.evaluateLocked(filter)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// supportedAggregationStages is the pipeline surface this embedded engine
// evaluates; anything else is rejected rather than silently dropped (see
// SPEC_FULL.md §4 for why the pipeline surface is intentionally narrow).
var supportedAggregationStages = map[string]bool{
	"$match": true,
}

// Aggregate supports a pipeline of {$match: <filter>} stages only; each
// stage narrows the result further, as if the filters were joined by $and.
// Any stage naming an operator outside supportedAggregationStages, or a
// stage that isn't a single-key mapping, is a validation error rather than
// a silently ignored no-op.
func (c *Collection) Aggregate(ctx context.Context, pipeline []Document) ([]Document, error) {
	var filters []interface{}
	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, ErrInvalidQuery.New("aggregation stage must contain exactly one operator")
		}
		for stageName, operand := range stage {
			if !supportedAggregationStages[stageName] {
				return nil, ErrInvalidQuery.New("unsupported aggregation stage %q", stageName)
			}
			doc, ok := asDocument(operand)
			if !ok {
				return nil, ErrInvalidQuery.New("%s operand must be a mapping", stageName)
			}
			filters = append(filters, doc)
		}
	}
	filter := Document{}
	switch len(filters) {
	case 0:
	case 1:
		filter = filters[0].(Document)
	default:
		filter = Document{"$and": filters}
	}
	return c.Find(ctx, filter)
}

func (c *Collection) findOneLocked(ctx context.Context, filterOrId interface{}) (string, Document, error) {
	if id, ok := filterOrId.(string); ok {
		doc, found := c.documents[id]
		if !found {
			return "", nil, nil
		}
		return id, doc, nil
	}
	filter, _ := asDocument(filterOrId)
	if id, ok := directIdLookup(filter); ok {
		doc, found := c.documents[id]
		if !found {
			return "", nil, nil
		}
		return id, doc, nil
	}
	matches, err := c.evaluateLocked(filter)
	if err != nil || len(matches) == 0 {
		return "", nil, err
	}
	first := matches[0]
	id, _ := first["_id"].(string)
	return id, first, nil
}

func (c *Collection) matchingIdsLocked(filter Document) ([]string, error) {
	matches, err := c.evaluateLocked(filter)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, d := range matches {
		if id, ok := d["_id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *Collection) evaluateLocked(filter Document) ([]Document, error) {
	if len(filter) == 0 {
		return c.orderedDocuments(), nil
	}
	if id, ok := directIdLookup(filter); ok {
		if doc, found := c.documents[id]; found {
			return []Document{doc}, nil
		}
		return nil, nil
	}
	return executeQuery(c.orderedDocuments(), filter)
}

// directIdLookup reports whether filter is exactly {_id: <string>}, which
// C9 special-cases as a direct map lookup rather than delegating to C3.
func directIdLookup(filter Document) (string, bool) {
	if len(filter) != 1 {
		return "", false
	}
	raw, ok := filter["_id"]
	if !ok {
		return "", false
	}
	id, ok := raw.(string)
	return id, ok
}
