package service

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/port/database"
)

func TestCachedDirectory_CachesLoads(t *testing.T) {
	store := &fakeEntityStore{dir: interaction.Directory{
		Companies: []interaction.EntityRef{{ID: "c-1", Name: "Acme"}},
	}}
	d := NewCachedDirectory(store, newMemCache(), time.Minute)
	ctx := context.Background()

	for range 3 {
		dir, err := d.LoadDirectory(ctx)
		if err != nil {
			t.Fatalf("LoadDirectory: %v", err)
		}
		if len(dir.Companies) != 1 || dir.Companies[0].Name != "Acme" {
			t.Fatalf("directory = %+v", dir)
		}
	}
	if store.loads != 1 {
		t.Fatalf("store loads = %d, want 1", store.loads)
	}
}

func TestCachedDirectory_UpsertInvalidates(t *testing.T) {
	store := &fakeEntityStore{}
	d := NewCachedDirectory(store, newMemCache(), time.Minute)
	ctx := context.Background()

	if _, err := d.LoadDirectory(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.UpsertEntity(ctx, database.KindCompany, &interaction.EntityRef{ID: "c-2", Name: "Globex"}); err != nil {
		t.Fatal(err)
	}
	dir, err := d.LoadDirectory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dir.Companies) != 1 || dir.Companies[0].Name != "Globex" {
		t.Fatalf("stale directory after upsert: %+v", dir)
	}
	if store.loads != 2 {
		t.Fatalf("store loads = %d, want 2", store.loads)
	}
}

func TestCachedDirectory_DeleteInvalidates(t *testing.T) {
	store := &fakeEntityStore{}
	c := newMemCache()
	d := NewCachedDirectory(store, c, time.Minute)
	ctx := context.Background()

	if _, err := d.LoadDirectory(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.DeleteEntity(ctx, database.KindDeal, "d-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, directoryCacheKey); ok {
		t.Fatal("cache entry survived delete")
	}
}

func TestCachedDirectory_NilCache(t *testing.T) {
	store := &fakeEntityStore{}
	d := NewCachedDirectory(store, nil, time.Minute)
	for range 2 {
		if _, err := d.LoadDirectory(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if store.loads != 2 {
		t.Fatalf("store loads = %d, want 2", store.loads)
	}
}
