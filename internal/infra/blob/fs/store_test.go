package fs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	coreblob "qcref/internal/blob/core"
)

func TestStorePutGetList(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if store.Driver() != coreblob.DriverFilesystem {
		t.Fatalf("unexpected driver %v", store.Driver())
	}
	ctx := context.Background()
	info, err := store.Put(ctx, "seed-uploads/a.csv", bytes.NewBufferString("Program,Batch"), coreblob.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"processed": "3"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len("Program,Batch")) || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(root, "seed-uploads", "a.csv")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
	if _, err := store.Put(ctx, "seed-uploads/a.csv", bytes.NewBufferString("x"), coreblob.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put to fail")
	}
	got, rc, err := store.Get(ctx, "seed-uploads/a.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "Program,Batch" {
		t.Fatalf("unexpected payload %q", string(b))
	}
	if got.ContentType != "text/csv" || got.Metadata["processed"] != "3" {
		t.Fatalf("metadata lost: %+v", got)
	}
	if _, err := store.Put(ctx, "other/b.csv", bytes.NewBufferString("y"), coreblob.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, err := store.List(ctx, "seed-uploads/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "seed-uploads/a.csv" {
		t.Fatalf("unexpected list %+v", list)
	}
	all, err := store.List(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 blobs, got %d (%v)", len(all), err)
	}
}

func TestSanitizeKeyRejectsEscapes(t *testing.T) {
	for _, key := range []string{"", "  ", "../x", "a/../../b", "/abs"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
	if k, err := sanitizeKey("a//b/./c"); err != nil || k != "a/b/c" {
		t.Fatalf("unexpected clean key %q (%v)", k, err)
	}
}

func TestGetMissingAndEmptyRoot(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "nested"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for missing blob")
	}
	list, err := store.List(context.Background(), "")
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v (%v)", list, err)
	}
}

func TestCloneMetadata(t *testing.T) {
	if cloneMetadata(nil) != nil {
		t.Fatalf("expected nil clone for nil input")
	}
	original := map[string]string{"k": "v"}
	cloned := cloneMetadata(original)
	cloned["k"] = "mutated"
	if original["k"] != "v" {
		t.Fatalf("expected original to remain unchanged")
	}
}
