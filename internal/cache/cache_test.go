package cache_test

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/daverre/graphpress/internal/apperr"
	"github.com/daverre/graphpress/internal/cache"
)

func openTemp(t *testing.T) *cache.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "graphpress-cache-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := cache.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenWithQueryParams(t *testing.T) {
	dbFile, err := os.CreateTemp("", "graphpress-cache-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	// A DSN that already carries options must not end up with a second
	// "?" when the pragmas are appended.
	store, err := cache.Open(dbFile.Name() + "?cache=shared")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, err := store.Decide("a.html", []byte("hi")); err != nil {
		t.Fatalf("Decide: %v", err)
	}
}

func TestDecideFirstSightWrites(t *testing.T) {
	store := openTemp(t)

	d, err := store.Decide("a.html", []byte("<p>hi</p>"))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d != cache.Write {
		t.Errorf("decision = %v, want Write", d)
	}

	rec, err := store.Get("a.html")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Fingerprint == "" {
		t.Error("fingerprint not stored")
	}
	if !rec.CreatedAt.Equal(rec.EditedAt) {
		t.Errorf("new record: created %v != edited %v", rec.CreatedAt, rec.EditedAt)
	}
}

func TestDecideUnchangedSkipsAndKeepsTimestamps(t *testing.T) {
	store := openTemp(t)
	content := []byte("stable content")

	if _, err := store.Decide("a.html", content); err != nil {
		t.Fatal(err)
	}
	before, err := store.Get("a.html")
	if err != nil {
		t.Fatal(err)
	}

	d, err := store.Decide("a.html", content)
	if err != nil {
		t.Fatal(err)
	}
	if d != cache.Skip {
		t.Errorf("decision = %v, want Skip", d)
	}

	after, err := store.Get("a.html")
	if err != nil {
		t.Fatal(err)
	}
	if !after.EditedAt.Equal(before.EditedAt) {
		t.Errorf("edited_at moved on skip: %v -> %v", before.EditedAt, after.EditedAt)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Errorf("created_at moved on skip: %v -> %v", before.CreatedAt, after.CreatedAt)
	}
}

func TestDecideChangedWritesAndPreservesCreatedAt(t *testing.T) {
	store := openTemp(t)

	if _, err := store.Decide("a.html", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	before, err := store.Get("a.html")
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	d, err := store.Decide("a.html", []byte("v2"))
	if err != nil {
		t.Fatal(err)
	}
	if d != cache.Write {
		t.Errorf("decision = %v, want Write", d)
	}

	after, err := store.Get("a.html")
	if err != nil {
		t.Fatal(err)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Errorf("created_at changed on update: %v -> %v", before.CreatedAt, after.CreatedAt)
	}
	if !after.EditedAt.After(before.EditedAt) {
		t.Errorf("edited_at not advanced: %v -> %v", before.EditedAt, after.EditedAt)
	}
	if after.Fingerprint == before.Fingerprint {
		t.Error("fingerprint unchanged for new content")
	}
}

func TestGetMissing(t *testing.T) {
	store := openTemp(t)
	_, err := store.Get("none.html")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentDecisions(t *testing.T) {
	store := openTemp(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := fmt.Sprintf("page-%d.html", n)
			if _, err := store.Decide(name, []byte(name)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Decide: %v", err)
	}

	for i := 0; i < 16; i++ {
		if _, err := store.Get(fmt.Sprintf("page-%d.html", i)); err != nil {
			t.Errorf("Get page-%d: %v", i, err)
		}
	}
}
