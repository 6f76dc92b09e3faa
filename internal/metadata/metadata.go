// Package metadata implements the meta-data backend the collection
// engine depends on (§4.5.2): a workspace-scoped key/value store that
// holds, per collection, a CollectionInformation record and a decimal
// "size" string, exactly the two keys §4.5.2 names
// ("mcs_iov_backend_<uuid>"-style workspace scoping, serialized
// CollectionInformation, decimal size string). A collection's existence
// is determined solely by the presence of its info key.
package metadata

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/wire"
)

// Backend is the key/value contract every meta-data store (Files, MySQL,
// Postgres) satisfies. Keys and values are opaque byte strings; higher
// level record shapes (CollectionInformation, the size counter) are
// layered on top in this package, not pushed down into the backend.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// CollectionInformation is the persistent record §4.5.2 keys collection
// existence on: its presence in the backend (not its contents) is what
// distinguishes "exists" from "absent."
type CollectionInformation struct {
	SizeMax domain.MaxSize
}

func encodeInfo(info CollectionInformation) []byte {
	e := wire.NewEncoder()
	e.PutMaxSize(info.SizeMax)
	return e.Bytes()
}

func decodeInfo(b []byte) (CollectionInformation, error) {
	d := wire.NewDecoder(b)
	max, err := d.GetMaxSize()
	if err != nil {
		return CollectionInformation{}, fmt.Errorf("metadata: decode CollectionInformation: %w", err)
	}
	return CollectionInformation{SizeMax: max}, nil
}

// Workspace scopes a group of collections under one meta-data namespace,
// keyed the way §4.5.2 describes: "mcs_iov_backend_<uuid>".
type Workspace struct {
	ID      string
	backend Backend
}

// NewWorkspace wraps backend under the namespace id.
func NewWorkspace(id string, backend Backend) *Workspace {
	return &Workspace{ID: id, backend: backend}
}

func (w *Workspace) infoKey(collectionID string) string {
	return fmt.Sprintf("mcs_iov_backend_%s/%s/info", w.ID, collectionID)
}

func (w *Workspace) sizeKey(collectionID string) string {
	return fmt.Sprintf("mcs_iov_backend_%s/%s/size", w.ID, collectionID)
}

// Exists reports whether collectionID has a live info record.
func (w *Workspace) Exists(ctx context.Context, collectionID string) (bool, error) {
	_, ok, err := w.backend.Get(ctx, w.infoKey(collectionID))
	return ok, err
}

// Open writes collectionID's CollectionInformation record and an initial
// size of 0, the two keys collection_open is specified to write. Callers
// that need "create only if absent" semantics check Exists first — the
// collection-create/delete mutex that serializes this against concurrent
// opens/deletes lives one level up, in internal/collection.
func (w *Workspace) Open(ctx context.Context, collectionID string, info CollectionInformation) error {
	if err := w.backend.Put(ctx, w.infoKey(collectionID), encodeInfo(info)); err != nil {
		return fmt.Errorf("metadata: open %s: write info: %w", collectionID, err)
	}
	if err := w.backend.Put(ctx, w.sizeKey(collectionID), []byte("0")); err != nil {
		// Roll back the info write so a failed open never leaves a
		// collection that "exists" with no recorded size (§4.5.4's
		// rollback-on-local-failure discipline, applied to meta-data
		// writes instead of physical placement).
		_ = w.backend.Delete(ctx, w.infoKey(collectionID))
		return fmt.Errorf("metadata: open %s: write size: %w", collectionID, err)
	}
	return nil
}

// Delete removes both of collectionID's keys. Per §4.5.5, if this fails
// after the caller has already destroyed the physical placement, the
// error is surfaced as-is — the physical state is already gone and there
// is nothing left to roll back to.
func (w *Workspace) Delete(ctx context.Context, collectionID string) error {
	if err := w.backend.Delete(ctx, w.sizeKey(collectionID)); err != nil {
		return fmt.Errorf("metadata: delete %s: size key: %w", collectionID, err)
	}
	if err := w.backend.Delete(ctx, w.infoKey(collectionID)); err != nil {
		return fmt.Errorf("metadata: delete %s: info key: %w", collectionID, err)
	}
	return nil
}

// Info reads collectionID's CollectionInformation record, failing with
// CollectionDoesNotExistError if absent.
func (w *Workspace) Info(ctx context.Context, collectionID string) (CollectionInformation, error) {
	b, ok, err := w.backend.Get(ctx, w.infoKey(collectionID))
	if err != nil {
		return CollectionInformation{}, err
	}
	if !ok {
		return CollectionInformation{}, &domain.CollectionDoesNotExistError{CollectionID: collectionID}
	}
	return decodeInfo(b)
}

// Size reads collectionID's current decimal size.
func (w *Workspace) Size(ctx context.Context, collectionID string) (domain.Size, error) {
	b, ok, err := w.backend.Get(ctx, w.sizeKey(collectionID))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &domain.CollectionDoesNotExistError{CollectionID: collectionID}
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("metadata: parse size for %s: %w", collectionID, err)
	}
	return domain.Size(n), nil
}

// SetSize overwrites collectionID's decimal size record, used by
// collection_append after it has extended every client's placement.
func (w *Workspace) SetSize(ctx context.Context, collectionID string, size domain.Size) error {
	return w.backend.Put(ctx, w.sizeKey(collectionID), []byte(strconv.FormatUint(uint64(size), 10)))
}

func (w *Workspace) Close() error { return w.backend.Close() }
