package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

func open(t *testing.T) (*Index, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "index.db")
	ix, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix, path
}

func TestVeinTypesAppendOnly(t *testing.T) {
	ctx := context.Background()
	ix, _ := open(t)
	if err := ix.TouchWorld(ctx, "w1", "gt", "/srv/world"); err != nil {
		t.Fatalf("TouchWorld: %v", err)
	}

	got, err := ix.VeinTypes(ctx, "w1")
	if err != nil || len(got) != 0 {
		t.Fatalf("fresh world dictionary = (%v, %v)", got, err)
	}

	rows := []veintype.Entry{{ID: 2, Name: "ore.mix.tin"}, {ID: 1, Name: "ore.mix.copper"}}
	if err := ix.AddVeinTypes(ctx, "w1", rows); err != nil {
		t.Fatalf("AddVeinTypes: %v", err)
	}
	if err := ix.AddVeinTypes(ctx, "w1", []veintype.Entry{{ID: 1, Name: "ore.mix.iron"}}); err == nil {
		t.Fatal("reused id accepted")
	}
	if err := ix.AddVeinTypes(ctx, "w1", []veintype.Entry{{ID: 3, Name: "ore.mix.tin"}}); err == nil {
		t.Fatal("duplicate name accepted")
	}

	got, err = ix.VeinTypes(ctx, "w1")
	if err != nil {
		t.Fatalf("VeinTypes: %v", err)
	}
	if len(got) != 2 || got[0] != (veintype.Entry{ID: 1, Name: "ore.mix.copper"}) || got[1].ID != 2 {
		t.Fatalf("dictionary = %+v", got)
	}
}

func TestDictionaryAcrossSessions(t *testing.T) {
	ctx := context.Background()
	ix, _ := open(t)
	ix.TouchWorld(ctx, "w", "gt", "/w")

	cat, err := veintype.LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	_, added, err := veintype.NewDictionary(cat, nil)
	if err != nil {
		t.Fatalf("NewDictionary: %v", err)
	}
	if err := ix.AddVeinTypes(ctx, "w", added); err != nil {
		t.Fatalf("AddVeinTypes: %v", err)
	}

	persisted, _ := ix.VeinTypes(ctx, "w")
	d, added, err := veintype.NewDictionary(cat, persisted)
	if err != nil {
		t.Fatalf("NewDictionary: %v", err)
	}
	if len(added) != 0 {
		t.Fatalf("second session added %v", added)
	}
	copper, _ := cat.Lookup("ore.mix.copper")
	if id, ok := d.ID(copper); !ok || id != 1 {
		t.Fatalf("copper id = (%d, %v), want 1", id, ok)
	}
}

func TestSpawnMarker(t *testing.T) {
	ctx := context.Background()
	ix, _ := open(t)

	if done, err := ix.SpawnRecached(ctx, "w"); err != nil || done {
		t.Fatalf("unknown world marker = (%v, %v)", done, err)
	}
	if err := ix.MarkSpawnRecached(ctx, "w"); err == nil {
		t.Fatal("marker set on an unknown world")
	}

	ix.TouchWorld(ctx, "w", "gt", "/w")
	if done, _ := ix.SpawnRecached(ctx, "w"); done {
		t.Fatal("new world already marked")
	}
	if err := ix.MarkSpawnRecached(ctx, "w"); err != nil {
		t.Fatalf("MarkSpawnRecached: %v", err)
	}
	ix.TouchWorld(ctx, "w", "renamed", "/w")
	if done, err := ix.SpawnRecached(ctx, "w"); err != nil || !done {
		t.Fatalf("marker = (%v, %v), want set", done, err)
	}
}

func TestRecordScan(t *testing.T) {
	ctx := context.Background()
	ix, path := open(t)
	ix.TouchWorld(ctx, "w", "gt", "/w")

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	want := ScanRecord{
		Kind: "world", DimensionID: -1, Strategy: "slow", Files: 12, CorruptFiles: 1,
		OreChunks: 9000, Resolved: 40, StartedAt: start, FinishedAt: start.Add(time.Minute),
	}
	if err := ix.RecordScan(ctx, "w", want); err != nil {
		t.Fatalf("RecordScan: %v", err)
	}
	if err := ix.RecordScan(ctx, "w", ScanRecord{Kind: "spawn", StartedAt: start, FinishedAt: start}); err != nil {
		t.Fatalf("RecordScan: %v", err)
	}

	got, err := ix.Scans(ctx, "w")
	if err != nil {
		t.Fatalf("Scans: %v", err)
	}
	if len(got) != 2 || got[1].Kind != "spawn" {
		t.Fatalf("scans = %+v", got)
	}
	first := got[0]
	if !first.StartedAt.Equal(want.StartedAt) || !first.FinishedAt.Equal(want.FinishedAt) {
		t.Fatalf("times = %v..%v, want %v..%v", first.StartedAt, first.FinishedAt, want.StartedAt, want.FinishedAt)
	}
	first.StartedAt, first.FinishedAt = want.StartedAt, want.FinishedAt
	if first != want {
		t.Fatalf("scan = %+v, want %+v", first, want)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var version string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='schema_version'`).Scan(&version); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if version != schemaVersion {
		t.Fatalf("schema_version = %q", version)
	}
}

func TestOpenSQLiteEmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatal("empty path accepted")
	}
}
