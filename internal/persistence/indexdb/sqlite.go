// Package indexdb maintains a queryable SQLite index over the durable
// artifacts: generation runs, region snapshots, and authoritative validation
// decisions. The JSONL logs remain the source of truth; this index exists
// for ops queries and may drop writes under pressure.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	vlog "greatwood.gg/internal/persistence/log"
	"greatwood.gg/internal/persistence/snapshot"
	"greatwood.gg/internal/sim/catalogs"
	"greatwood.gg/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqGeneration reqKind = iota + 1
	reqSnapshot
	reqValidation
)

type req struct {
	kind reqKind

	generation GenerationRun
	snapshot   snapshotRow
	validation vlog.ValidationRecord
}

// GenerationRun summarizes one generate-validate cycle for a seed.
type GenerationRun struct {
	Seed            int64
	Attempts        int
	Accepted        bool
	StructuralCells int
	MaxStressRatio  float32
}

type snapshotRow struct {
	Seed     int64
	Path     string
	SizeX    int
	SizeY    int
	SizeZ    int
	Cells    int
	Attempts int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Buffered: validation bursts from a busy editor session must not
		// stall the solver path.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS generation_runs (
			seed INTEGER PRIMARY KEY,
			attempts INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			structural_cells INTEGER NOT NULL,
			max_stress_ratio REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			seed INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			size_x INTEGER NOT NULL,
			size_y INTEGER NOT NULL,
			size_z INTEGER NOT NULL,
			cells INTEGER NOT NULL,
			attempts INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS validations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			request_id TEXT,
			mode TEXT NOT NULL,
			tier TEXT NOT NULL,
			worst_ratio REAL NOT NULL,
			cell_count INTEGER NOT NULL,
			duration_ms REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_validations_tier ON validations(tier);`,
		`CREATE INDEX IF NOT EXISTS idx_validations_session ON validations(session_id, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) RecordGeneration(run GenerationRun) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqGeneration, generation: run}:
	default:
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, region snapshot.RegionV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Seed:     region.Header.Seed,
		Path:     path,
		SizeX:    region.SizeX,
		SizeY:    region.SizeY,
		SizeZ:    region.SizeZ,
		Cells:    len(region.Voxels),
		Attempts: region.Attempts,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

func (s *SQLiteIndex) RecordValidation(rec vlog.ValidationRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqValidation, validation: rec}:
	default:
	}
}

// UpsertCatalogs stores the raw config files and applied tuning with their
// digests, so any stress number in the index can be traced to the exact
// tables that produced it.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tun tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	read := func(name, digest, path string) {
		b, err := os.ReadFile(path)
		if err != nil {
			return
		}
		rows = append(rows, kv{name: name, digest: digest, json: b})
	}
	if configDir != "" {
		read("materials", cats.Materials.Digest, filepath.Join(configDir, "materials.json"))
		read("faces", cats.Faces.Digest, filepath.Join(configDir, "faces.json"))
	}
	{
		b, _ := json.Marshal(tun)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GenerationRunBySeed reads one indexed run back.
func (s *SQLiteIndex) GenerationRunBySeed(ctx context.Context, seed int64) (GenerationRun, error) {
	var (
		run      GenerationRun
		accepted int
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT seed, attempts, accepted, structural_cells, max_stress_ratio
		 FROM generation_runs WHERE seed = ?`, seed)
	if err := row.Scan(&run.Seed, &run.Attempts, &accepted, &run.StructuralCells, &run.MaxStressRatio); err != nil {
		return run, err
	}
	run.Accepted = accepted != 0
	return run, nil
}

// ValidationTierCounts returns how many indexed validations landed in each
// tier.
func (s *SQLiteIndex) ValidationTierCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tier, COUNT(*) FROM validations GROUP BY tier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			tier string
			n    int
		)
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, err
		}
		out[tier] = n
	}
	return out, rows.Err()
}

// SnapshotPath returns the indexed file path for a seed, or "" when the
// seed was never snapshotted.
func (s *SQLiteIndex) SnapshotPath(ctx context.Context, seed int64) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx, `SELECT path FROM snapshots WHERE seed = ?`, seed).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return path, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertGeneration, _ := s.db.Prepare(`INSERT OR REPLACE INTO generation_runs(seed,attempts,accepted,structural_cells,max_stress_ratio,recorded_at) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(seed,path,size_x,size_y,size_z,cells,attempts,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	insertValidation, _ := s.db.Prepare(`INSERT INTO validations(session_id,request_id,mode,tier,worst_ratio,cell_count,duration_ms,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertGeneration != nil {
			_ = insertGeneration.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
		if insertValidation != nil {
			_ = insertValidation.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	// The periodic flush also releases the connection between bursts so
	// concurrent readers are not starved behind an idle transaction.
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		var (
			r  req
			ok bool
		)
		select {
		case r, ok = <-s.ch:
			if !ok {
				commit()
				return
			}
		case <-ticker.C:
			flushIfNeeded()
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		switch r.kind {
		case reqGeneration:
			g := r.generation
			accepted := 0
			if g.Accepted {
				accepted = 1
			}
			if insertGeneration != nil {
				if _, err := tx.Stmt(insertGeneration).Exec(
					g.Seed, g.Attempts, accepted, g.StructuralCells, g.MaxStressRatio, now,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					sn.Seed, sn.Path, sn.SizeX, sn.SizeY, sn.SizeZ, sn.Cells, sn.Attempts, now,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqValidation:
			v := r.validation
			if insertValidation != nil {
				if _, err := tx.Stmt(insertValidation).Exec(
					v.SessionID, v.RequestID, v.Mode, v.Tier,
					v.WorstRatio, v.CellCount, v.DurationMs,
					v.Time.UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}
}
