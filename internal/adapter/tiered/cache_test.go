package tiered_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/ActionForge/internal/adapter/tiered"
)

var errDown = errors.New("l2 down")

// memCache is a simple in-memory cache for testing. A non-nil err makes
// every call fail.
type memCache struct {
	data map[string][]byte
	err  error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

func TestTiered_Get(t *testing.T) {
	tests := []struct {
		name      string
		inL1      bool
		inL2      bool
		l2Err     error
		wantFound bool
		wantFill  bool
	}{
		{name: "l1 hit", inL1: true, wantFound: true},
		{name: "l2 hit backfills l1", inL2: true, wantFound: true, wantFill: true},
		{name: "miss", wantFound: false},
		{name: "l2 error is a miss", l2Err: errDown, wantFound: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l1, l2 := newMemCache(), newMemCache()
			if tt.inL1 {
				l1.data["directory"] = []byte("dir")
			}
			if tt.inL2 {
				l2.data["directory"] = []byte("dir")
			}
			l2.err = tt.l2Err
			c := tiered.New(l1, l2, time.Minute)

			val, found, err := c.Get(context.Background(), "directory")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if found && string(val) != "dir" {
				t.Fatalf("val = %q, want dir", val)
			}
			if tt.wantFill {
				if string(l1.data["directory"]) != "dir" {
					t.Fatal("expected L1 backfill")
				}
			}
		})
	}
}

func TestTiered_L1ErrorPropagates(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l1.err = errDown
	c := tiered.New(l1, l2, time.Minute)

	if _, _, err := c.Get(context.Background(), "k"); !errors.Is(err, errDown) {
		t.Fatalf("expected L1 error, got %v", err)
	}
}

func TestTiered_SetBoth(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, time.Minute)

	if err := c.Set(context.Background(), "directory", []byte("dir"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["directory"]; !ok {
		t.Fatal("expected key in L1")
	}
	if _, ok := l2.data["directory"]; !ok {
		t.Fatal("expected key in L2")
	}
}

func TestTiered_SetKeepsL1WhenL2Fails(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l2.err = errDown
	c := tiered.New(l1, l2, time.Minute)

	if err := c.Set(context.Background(), "directory", []byte("dir"), time.Minute); !errors.Is(err, errDown) {
		t.Fatalf("expected L2 error, got %v", err)
	}
	if _, ok := l1.data["directory"]; !ok {
		t.Fatal("expected L1 write to stand")
	}
}

func TestTiered_DeleteBoth(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, time.Minute)
	l1.data["directory"] = []byte("dir")
	l2.data["directory"] = []byte("dir")

	if err := c.Delete(context.Background(), "directory"); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["directory"]; ok {
		t.Fatal("expected key deleted from L1")
	}
	if _, ok := l2.data["directory"]; ok {
		t.Fatal("expected key deleted from L2")
	}
}

func TestTiered_DeleteAttemptsBothLevels(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l2.err = errDown
	c := tiered.New(l1, l2, time.Minute)
	l1.data["directory"] = []byte("dir")

	if err := c.Delete(context.Background(), "directory"); !errors.Is(err, errDown) {
		t.Fatalf("expected L2 error, got %v", err)
	}
	if _, ok := l1.data["directory"]; ok {
		t.Fatal("expected L1 delete despite L2 failure")
	}
}

func TestTiered_NilL2(t *testing.T) {
	l1 := newMemCache()
	c := tiered.New(l1, nil, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "directory", []byte("dir"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Get(ctx, "directory"); !found {
		t.Fatal("expected L1 hit")
	}
	if err := c.Delete(ctx, "directory"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Get(ctx, "absent"); found {
		t.Fatal("expected miss")
	}
}
