// metadata.go - C5 Collection Metadata: the value object persisted both
// inside a collection's own blob and, in summary form, inside the Master
// Index.

package filedb

import (
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
)

// LockStatus mirrors the Master Index's per-collection lock record.
type LockStatus struct {
	IsLocked    bool
	LockedBy    string
	LockedAtMs  int64
	LockTimeout int64
}

// CollectionMetadata is the value object described in spec §4.5.
type CollectionMetadata struct {
	Name              string
	FileID            string
	Created           time.Time
	LastUpdated       time.Time
	DocumentCount     int
	ModificationToken string
	LockStatus        *LockStatus
}

// NewCollectionMetadata constructs metadata for a brand-new collection,
// defaulting Created/LastUpdated to now and DocumentCount to 0.
func NewCollectionMetadata(name, fileID string) (*CollectionMetadata, error) {
	return NewCollectionMetadataWithInitial(name, fileID, nil)
}

// NewCollectionMetadataWithInitial applies initial field overrides (any
// subset of Created/LastUpdated/DocumentCount/ModificationToken/LockStatus)
// on top of the defaulted values, then validates the result.
func NewCollectionMetadataWithInitial(name, fileID string, initial *CollectionMetadata) (*CollectionMetadata, error) {
	now := time.Now().UTC()
	m := &CollectionMetadata{
		Name:        name,
		FileID:      fileID,
		Created:     now,
		LastUpdated: now,
	}
	if initial != nil {
		if !initial.Created.IsZero() {
			m.Created = initial.Created
		}
		if !initial.LastUpdated.IsZero() {
			m.LastUpdated = initial.LastUpdated
		}
		m.DocumentCount = initial.DocumentCount
		m.ModificationToken = initial.ModificationToken
		m.LockStatus = initial.LockStatus
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CollectionMetadata) validate() error {
	if m.Name == "" {
		return ErrInvalidArgument.Wrap(errs.New("metadata name must be non-empty"))
	}
	if m.FileID == "" {
		return ErrInvalidArgument.Wrap(errs.New("metadata fileId must be non-empty"))
	}
	if m.Created.IsZero() {
		return ErrInvalidArgument.Wrap(errs.New("metadata created must be a valid timestamp"))
	}
	if m.LastUpdated.IsZero() {
		return ErrInvalidArgument.Wrap(errs.New("metadata lastUpdated must be a valid timestamp"))
	}
	if m.DocumentCount < 0 {
		return ErrInvalidArgument.Wrap(errs.New("metadata documentCount must be non-negative"))
	}
	if err := validateLockStatus(m.LockStatus); err != nil {
		return err
	}
	return nil
}

func validateLockStatus(ls *LockStatus) error {
	if ls == nil {
		return nil
	}
	if !ls.IsLocked {
		return nil
	}
	if ls.LockedBy == "" {
		return ErrInvalidArgument.Wrap(errs.New("lockStatus.lockedBy must be non-empty when locked"))
	}
	if ls.LockedAtMs == 0 {
		return ErrInvalidArgument.Wrap(errs.New("lockStatus.lockedAt must be set when locked"))
	}
	if ls.LockTimeout <= 0 {
		return ErrInvalidArgument.Wrap(errs.New("lockStatus.lockTimeout must be positive when locked"))
	}
	return nil
}

// SetModificationToken sets the token; it must be empty (treated as null)
// or non-empty.
func (m *CollectionMetadata) SetModificationToken(token string) error {
	m.ModificationToken = token
	return nil
}

// SetLockStatus validates and assigns a new lock status, or nil to clear it.
func (m *CollectionMetadata) SetLockStatus(ls *LockStatus) error {
	if err := validateLockStatus(ls); err != nil {
		return err
	}
	m.LockStatus = ls
	return nil
}

// Touch refreshes LastUpdated to now.
func (m *CollectionMetadata) Touch() {
	m.LastUpdated = time.Now().UTC()
}

// IncrementDocumentCount bumps the counter by one.
func (m *CollectionMetadata) IncrementDocumentCount() {
	m.DocumentCount++
}

// DecrementDocumentCount bumps the counter down by one; decrementing below
// zero is rejected.
func (m *CollectionMetadata) DecrementDocumentCount() error {
	if m.DocumentCount <= 0 {
		return ErrInvalidArgument.Wrap(errs.New("documentCount cannot be decremented below zero"))
	}
	m.DocumentCount--
	return nil
}

// SetDocumentCount assigns an explicit count.
func (m *CollectionMetadata) SetDocumentCount(n int) error {
	if n < 0 {
		return ErrInvalidArgument.Wrap(errs.New("documentCount must be non-negative"))
	}
	m.DocumentCount = n
	return nil
}

// Clone produces an independent deep copy; timestamps are cloned by
// epoch-ms equivalence.
func (m *CollectionMetadata) Clone() *CollectionMetadata {
	clone := *m
	clone.Created = time.UnixMilli(m.Created.UnixMilli()).UTC()
	clone.LastUpdated = time.UnixMilli(m.LastUpdated.UnixMilli()).UTC()
	if m.LockStatus != nil {
		ls := *m.LockStatus
		clone.LockStatus = &ls
	}
	return &clone
}

// Serialise converts the metadata to a plain Document suitable for JSON
// encoding via jsonformat.go's Date-tagging rules.
func (m *CollectionMetadata) Serialise() Document {
	doc := Document{
		"name":              m.Name,
		"fileId":            m.FileID,
		"created":           m.Created,
		"lastUpdated":       m.LastUpdated,
		"documentCount":     m.DocumentCount,
		"modificationToken": nullableString(m.ModificationToken),
	}
	if m.LockStatus == nil {
		doc["lockStatus"] = nil
	} else {
		doc["lockStatus"] = Document{
			"isLocked":    m.LockStatus.IsLocked,
			"lockedBy":    nullableString(m.LockStatus.LockedBy),
			"lockedAt":    m.LockStatus.LockedAtMs,
			"lockTimeout": m.LockStatus.LockTimeout,
		}
	}
	return doc
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// DeserialiseCollectionMetadata rebuilds a CollectionMetadata from a plain
// Document produced by Serialise (or read back from a blob).
func DeserialiseCollectionMetadata(doc Document) (*CollectionMetadata, error) {
	if doc == nil {
		return nil, ErrMasterIndexError.Wrap(errs.New("metadata payload is nil"))
	}
	m := &CollectionMetadata{}

	name, _ := doc["name"].(string)
	m.Name = name
	fileID, _ := doc["fileId"].(string)
	m.FileID = fileID

	if t, ok := asTime(doc["created"]); ok {
		m.Created = t
	}
	if t, ok := asTime(doc["lastUpdated"]); ok {
		m.LastUpdated = t
	}

	if n, ok := asFloat(doc["documentCount"]); ok {
		m.DocumentCount = int(n)
	}

	if tok, ok := doc["modificationToken"].(string); ok {
		m.ModificationToken = tok
	}

	if rawLock, ok := doc["lockStatus"]; ok && rawLock != nil {
		lockDoc, _ := asDocument(rawLock)
		ls := &LockStatus{}
		ls.IsLocked, _ = lockDoc["isLocked"].(bool)
		ls.LockedBy, _ = lockDoc["lockedBy"].(string)
		if n, ok := asFloat(lockDoc["lockedAt"]); ok {
			ls.LockedAtMs = int64(n)
		}
		if n, ok := asFloat(lockDoc["lockTimeout"]); ok {
			ls.LockTimeout = int64(n)
		}
		m.LockStatus = ls
	}

	if err := m.validate(); err != nil {
		return nil, ErrMasterIndexError.Wrap(err)
	}
	return m, nil
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	default:
		return time.Time{}, false
	}
}

// generateModificationToken returns a UUID-grade opaque unique token.
func generateModificationToken() string {
	return uuid.NewString()
}
