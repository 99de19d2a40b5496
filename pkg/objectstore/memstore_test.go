package objectstore

import (
	"context"
	"errors"
	"testing"
)

func TestMemStoreGetMissing(t *testing.T) {
	s := NewMemStore()
	_, err := s.Get(context.Background(), "data/p=a/x.json")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemStorePutGetRoundTrip(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Put(ctx, "data/p=a/x.json", []byte(`{"a":1}`), PutOptions{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	obj, err := s.Get(ctx, "data/p=a/x.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(obj.Content) != `{"a":1}` {
		t.Errorf("Content = %q, want %q", obj.Content, `{"a":1}`)
	}
}

func TestMemStorePutIfNotExists(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Put(ctx, "_log/00000000.json", []byte("{}"), PutOptions{IfNotExists: true}); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}

	err := s.Put(ctx, "_log/00000000.json", []byte("{}"), PutOptions{IfNotExists: true})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("second Put() error = %v, want ErrPreconditionFailed", err)
	}
}

func TestMemStoreListPrefix(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	keys := []string{
		"data/p=a/1.json",
		"data/p=a/2.json",
		"data/p=b/3.json",
		"schema/schema.json",
	}
	for _, k := range keys {
		if err := s.Put(ctx, k, []byte("x"), PutOptions{}); err != nil {
			t.Fatalf("Put(%q) error = %v", k, err)
		}
	}

	got, err := s.List(ctx, "data/p=a/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List() = %v, want 2 keys", got)
	}
}

func TestMemStoreDeleteMissingIsNotError(t *testing.T) {
	s := NewMemStore()
	if err := s.Delete(context.Background(), "data/p=a/missing.json"); err != nil {
		t.Fatalf("Delete() error = %v, want nil", err)
	}
}
