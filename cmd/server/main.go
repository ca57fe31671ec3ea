package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"greatwood.gg/internal/persistence/indexdb"
	persistlog "greatwood.gg/internal/persistence/log"
	"greatwood.gg/internal/persistence/snapshot"
	"greatwood.gg/internal/sim/catalogs"
	"greatwood.gg/internal/sim/rng"
	"greatwood.gg/internal/sim/structural"
	"greatwood.gg/internal/sim/treegen"
	"greatwood.gg/internal/sim/tuning"
	"greatwood.gg/internal/sim/world"
	"greatwood.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 1337, "generation seed (used only when growing a fresh region)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")

		profileName = flag.String("profile", "fantasy_mega", "tree profile: fantasy_mega, oak, conifer")
		sizeX       = flag.Int("size_x", 128, "region size x")
		sizeY       = flag.Int("size_y", 160, "region size y")
		sizeZ       = flag.Int("size_z", 128, "region size z")

		snapPath   = flag.String("snapshot", "", "path to region snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Default()
	}

	snapDir := filepath.Join(*dataDir, "snapshots")
	_ = os.MkdirAll(snapDir, 0o755)

	// Optional: read-model index backend (does not affect determinism).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index backend: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	profile, err := profileByName(*profileName)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	// Region (resumed from snapshot or freshly grown).
	var (
		grid     *world.Grid
		faces    map[world.Vec3i]world.FaceSet
		worldSeed = *seed
		attempts  int
	)
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		latest, err := snapshot.Latest(snapDir)
		if err != nil {
			logger.Fatalf("scan snapshots: %v", err)
		}
		snapshotToLoad = latest
	}

	if snapshotToLoad != "" {
		region, err := snapshot.ReadRegion(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		grid, faces, err = region.ToGrid()
		if err != nil {
			logger.Fatalf("restore snapshot: %v", err)
		}
		worldSeed = region.Header.Seed
		attempts = region.Attempts
		logger.Printf("resumed from snapshot=%s seed=%d cells=%d",
			filepath.Base(snapshotToLoad), worldSeed, grid.CountStructural())
	} else {
		grid = world.NewGrid(*sizeX, *sizeY, *sizeZ)
		site := treegen.DefaultSite()
		start := time.Now()
		_, attempts, err = treegen.GrowValidated(grid, cats, tune, profile, site, rng.New(uint64(worldSeed)))
		if err != nil {
			logger.Fatalf("grow region (seed %d): %v", worldSeed, err)
		}
		logger.Printf("grew region seed=%d attempts=%d cells=%d in %s",
			worldSeed, attempts, grid.CountStructural(), time.Since(start).Round(time.Millisecond))

		region := snapshot.FromGrid(grid, faces, worldSeed, attempts)
		path := snapshot.PathFor(snapDir, worldSeed)
		if err := snapshot.WriteRegion(path, region); err != nil {
			logger.Printf("snapshot write: %v", err)
		} else if idx != nil {
			idx.RecordSnapshot(path, region)
		}
		if idx != nil {
			solved := structural.Solve(structural.BuildNetwork(grid, faces, cats, tune), tune)
			idx.RecordGeneration(indexdb.GenerationRun{
				Seed:            worldSeed,
				Attempts:        attempts,
				Accepted:        true,
				StructuralCells: grid.CountStructural(),
				MaxStressRatio:  solved.MaxStressRatio,
			})
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	vlogger := persistlog.NewValidationLogger(*dataDir)
	defer vlogger.Close()

	recorders := []ws.Recorder{loggerRecorder{l: vlogger, log: logger}}
	if idx != nil {
		recorders = append(recorders, idx)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP greatwood_region_structural_cells Structural cells in the loaded region.\n")
		fmt.Fprintf(rw, "# TYPE greatwood_region_structural_cells gauge\n")
		fmt.Fprintf(rw, "greatwood_region_structural_cells{seed=\"%d\"} %d\n", worldSeed, grid.CountStructural())

		fmt.Fprintf(rw, "# HELP greatwood_generation_attempts Attempts the generation validator needed.\n")
		fmt.Fprintf(rw, "# TYPE greatwood_generation_attempts gauge\n")
		fmt.Fprintf(rw, "greatwood_generation_attempts{seed=\"%d\"} %d\n", worldSeed, attempts)
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(grid, faces, cats, tune, worldSeed, logger, recorders...).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func profileByName(name string) (treegen.Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fantasy_mega":
		return treegen.FantasyMega(), nil
	case "oak":
		return treegen.Oak(), nil
	case "conifer":
		return treegen.Conifer(), nil
	default:
		return treegen.Profile{}, fmt.Errorf("unknown tree profile %q", name)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// loggerRecorder adapts the JSONL validation logger to the ws.Recorder
// interface, logging write failures instead of surfacing them to clients.
type loggerRecorder struct {
	l   *persistlog.ValidationLogger
	log *log.Logger
}

func (r loggerRecorder) RecordValidation(rec persistlog.ValidationRecord) {
	if err := r.l.WriteValidation(rec); err != nil {
		r.log.Printf("validation log: %v", err)
	}
}
