package kvindex

import (
	"bytes"
	"path/filepath"
	"testing"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "leveldb"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestGetPutDelete(t *testing.T) {
	idx := newTestIndex(t)

	if _, err := idx.Get("misc:height"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound before first write, got %v", err)
	}

	if err := idx.Put("misc:height", []byte("-1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	val, err := idx.Get("misc:height")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(val, []byte("-1")) {
		t.Fatalf("got %q, want %q", val, "-1")
	}

	if err := idx.Delete("misc:height"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := idx.Get("misc:height"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestWriteBatchAtomic(t *testing.T) {
	idx := newTestIndex(t)

	batch := NewBatch()
	batch.Put("misc:height", []byte("0"))
	batch.Put("misc:tophash", []byte("00"))
	batch.Delete("misc:total_work")

	if err := idx.Write(batch); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if val, err := idx.Get("misc:height"); err != nil || !bytes.Equal(val, []byte("0")) {
		t.Fatalf("misc:height = %q, %v", val, err)
	}
	if val, err := idx.Get("misc:tophash"); err != nil || !bytes.Equal(val, []byte("00")) {
		t.Fatalf("misc:tophash = %q, %v", val, err)
	}
}
