package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	vlog "greatwood.gg/internal/persistence/log"
	"greatwood.gg/internal/persistence/snapshot"
	"greatwood.gg/internal/sim/catalogs"
	"greatwood.gg/internal/sim/tuning"
	"greatwood.gg/internal/sim/world"
)

func TestSQLiteIndex_RecordsRows(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "index.sqlite")

	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	idx.RecordGeneration(GenerationRun{
		Seed:            1337,
		Attempts:        2,
		Accepted:        true,
		StructuralCells: 420,
		MaxStressRatio:  0.31,
	})

	g := world.NewGrid(4, 4, 4)
	g.Set(world.Vec3i{X: 1, Y: 0, Z: 1}, world.ForestFloor)
	region := snapshot.FromGrid(g, nil, 1337, 2)
	idx.RecordSnapshot("/data/region-1337.snap.zst", region)

	idx.RecordValidation(vlog.ValidationRecord{
		Time: time.Unix(1700000000, 0).UTC(), SessionID: "S1", RequestID: "R1",
		Mode: "BLUEPRINT", Tier: "OK", WorstRatio: 0.3, CellCount: 5, DurationMs: 1.5,
	})
	idx.RecordValidation(vlog.ValidationRecord{
		Time: time.Unix(1700000001, 0).UTC(), SessionID: "S1", RequestID: "R2",
		Mode: "BLUEPRINT", Tier: "BLOCKED", WorstRatio: 2.4, CellCount: 30, DurationMs: 6.1,
	})

	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sql: %v", err)
	}
	defer db.Close()

	var (
		attempts int
		accepted int
		cells    int
		ratio    float64
	)
	row := db.QueryRow(`SELECT attempts, accepted, structural_cells, max_stress_ratio FROM generation_runs WHERE seed = ?`, 1337)
	if err := row.Scan(&attempts, &accepted, &cells, &ratio); err != nil {
		t.Fatalf("scan generation_runs: %v", err)
	}
	if attempts != 2 || accepted != 1 || cells != 420 {
		t.Fatalf("generation_runs mismatch: attempts=%d accepted=%d cells=%d", attempts, accepted, cells)
	}

	var path string
	if err := db.QueryRow(`SELECT path FROM snapshots WHERE seed = ?`, 1337).Scan(&path); err != nil {
		t.Fatalf("scan snapshots: %v", err)
	}
	if path != "/data/region-1337.snap.zst" {
		t.Fatalf("snapshot path = %q", path)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM validations WHERE tier = 'BLOCKED'`).Scan(&n); err != nil {
		t.Fatalf("count validations: %v", err)
	}
	if n != 1 {
		t.Fatalf("blocked validations = %d, want 1", n)
	}
}

func TestSQLiteIndex_ReadHelpers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	idx.RecordGeneration(GenerationRun{Seed: 7, Attempts: 1, Accepted: true, StructuralCells: 10, MaxStressRatio: 0.1})
	idx.RecordValidation(vlog.ValidationRecord{Time: time.Now(), Mode: "CARVE", Tier: "OK", CellCount: 1})
	idx.RecordValidation(vlog.ValidationRecord{Time: time.Now(), Mode: "CARVE", Tier: "OK", CellCount: 2})

	// The writer batches; wait for the rows to land.
	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for {
		run, err := idx.GenerationRunBySeed(ctx, 7)
		if err == nil && run.Accepted && run.Attempts == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("generation run never indexed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	deadline = time.Now().Add(5 * time.Second)
	for {
		counts, err := idx.ValidationTierCounts(ctx)
		if err == nil && counts["OK"] == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("validations never indexed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	path, err := idx.SnapshotPath(ctx, 999)
	if err != nil {
		t.Fatalf("snapshot path: %v", err)
	}
	if path != "" {
		t.Fatalf("path for unknown seed = %q, want empty", path)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Default()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sql: %v", err)
	}
	defer db.Close()

	for _, name := range []string{"materials", "faces", "tuning"} {
		var digest string
		if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name = ?`, name).Scan(&digest); err != nil {
			t.Fatalf("catalog %s: %v", name, err)
		}
		if digest == "" {
			t.Fatalf("catalog %s has empty digest", name)
		}
	}
}
