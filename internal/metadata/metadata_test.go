package metadata

import (
	"context"
	"testing"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

func buildWorkspace(t *testing.T) *Workspace {
	t.Helper()
	backend, err := NewFilesBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesBackend: %v", err)
	}
	return NewWorkspace("ws1", backend)
}

func TestWorkspaceOpenCloseLifecycle(t *testing.T) {
	ctx := context.Background()
	w := buildWorkspace(t)

	if ok, err := w.Exists(ctx, "c1"); err != nil || ok {
		t.Fatalf("expected c1 absent before Open, ok=%v err=%v", ok, err)
	}
	if err := w.Open(ctx, "c1", CollectionInformation{SizeMax: domain.Unlimited()}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ok, err := w.Exists(ctx, "c1"); err != nil || !ok {
		t.Fatalf("expected c1 present after Open, ok=%v err=%v", ok, err)
	}
	size, err := w.Size(ctx, "c1")
	if err != nil || size != 0 {
		t.Fatalf("expected initial size 0, got %d err=%v", size, err)
	}
	if err := w.SetSize(ctx, "c1", 3<<20); err != nil {
		t.Fatalf("SetSize: %v", err)
	}
	size, err = w.Size(ctx, "c1")
	if err != nil || size != 3<<20 {
		t.Fatalf("expected size 3MiB, got %d err=%v", size, err)
	}
	if err := w.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := w.Exists(ctx, "c1"); ok {
		t.Fatalf("expected c1 absent after Delete")
	}
}

func TestWorkspaceInfoUnknownCollection(t *testing.T) {
	ctx := context.Background()
	w := buildWorkspace(t)
	if _, err := w.Info(ctx, "missing"); err == nil {
		t.Fatalf("expected CollectionDoesNotExist")
	} else if _, ok := err.(*domain.CollectionDoesNotExistError); !ok {
		t.Fatalf("expected *domain.CollectionDoesNotExistError, got %T", err)
	}
}

func TestWorkspaceInfoPreservesSizeMax(t *testing.T) {
	ctx := context.Background()
	w := buildWorkspace(t)
	if err := w.Open(ctx, "c2", CollectionInformation{SizeMax: domain.Limit(4096)}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	info, err := w.Info(ctx, "c2")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if limit, bounded := info.SizeMax.Value(); !bounded || limit != 4096 {
		t.Fatalf("unexpected info.SizeMax: %+v", info.SizeMax)
	}
}
