package ports

import (
	"context"
	"errors"
)

var (
	// ErrVersionConflict means a document changed between read and commit.
	ErrVersionConflict = errors.New("document version conflict")
	// ErrDuplicateKey means a create-only write found an existing document.
	ErrDuplicateKey = errors.New("document already exists")
	// ErrDocumentNotFound is returned by Get for absent keys.
	ErrDocumentNotFound = errors.New("document not found")
)

// DocumentKind namespaces document ids.
type DocumentKind string

const (
	KindProperty          DocumentKind = "property"
	KindInvite            DocumentKind = "invite"
	KindTenantAssociation DocumentKind = "tenant_association"
	KindLandlordRoster    DocumentKind = "landlord_roster"
)

type DocumentKey struct {
	Kind DocumentKind
	ID   string
}

func (k DocumentKey) String() string {
	return string(k.Kind) + ":" + k.ID
}

// Document is a versioned JSON body. Version 0 is reserved for "absent".
type Document struct {
	Key     DocumentKey
	Version int64
	Body    []byte
}

// DocumentVersion is a read-set entry: the version observed for Key.
type DocumentVersion struct {
	Key     DocumentKey
	Version int64
}

// DocumentWrite replaces the body of Key, which must still be at ExpectedVersion.
// The stored version becomes ExpectedVersion+1.
type DocumentWrite struct {
	Key             DocumentKey
	ExpectedVersion int64
	Body            []byte
	// CreateOnly writes report ErrDuplicateKey instead of ErrVersionConflict when the key exists.
	CreateOnly bool
}

// DocumentStore is the storage contract behind the transaction coordinator: single-key reads and
// an atomic multi-key compare-and-swap. Any store with serializable transactions or CAS can
// implement it. Implementations MUST be safe for concurrent use.
type DocumentStore interface {
	Get(ctx context.Context, key DocumentKey) (*Document, error)
	List(ctx context.Context, kind DocumentKind) ([]*Document, error)
	// Commit verifies every read version and applies every write atomically, or applies nothing
	// and returns ErrVersionConflict / ErrDuplicateKey.
	Commit(ctx context.Context, reads []DocumentVersion, writes []DocumentWrite) error
}
