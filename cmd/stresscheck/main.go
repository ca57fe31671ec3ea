package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"greatwood.gg/internal/persistence/snapshot"
	"greatwood.gg/internal/sim/catalogs"
	"greatwood.gg/internal/sim/rng"
	"greatwood.gg/internal/sim/structural"
	"greatwood.gg/internal/sim/treegen"
	"greatwood.gg/internal/sim/tuning"
	"greatwood.gg/internal/sim/world"
)

// stresscheck runs the authoritative solver over region snapshots (or a
// freshly grown tree) and reports the worst connections. Exit code 1 means
// at least one region failed the block threshold.
func main() {
	var (
		configDir   = flag.String("configs", "./configs", "config directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir     = flag.String("data", "", "data dir; checks the latest snapshot under <data>/snapshots")
		growSeed    = flag.Int64("grow", 0, "grow a fresh tree with this seed instead of reading snapshots")
		profileName = flag.String("profile", "fantasy_mega", "tree profile for -grow: fantasy_mega, oak, conifer")
		preview     = flag.Bool("preview", false, "run the reduced-iteration preview solve instead of the authoritative one")
		topN        = flag.Int("top", 10, "number of worst connections to print per region")
	)
	flag.Parse()

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Default()
	}

	if *growSeed != 0 {
		g := world.NewGrid(128, 160, 128)
		profile, err := profileByName(*profileName)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		_, attempts, err := treegen.GrowValidated(g, cats, tune, profile, treegen.DefaultSite(), rng.New(uint64(*growSeed)))
		if err != nil {
			fmt.Fprintln(os.Stderr, "grow:", err)
			os.Exit(1)
		}
		fmt.Printf("grown seed=%d attempts=%d\n", *growSeed, attempts)
		if !checkRegion(fmt.Sprintf("seed %d", *growSeed), g, nil, cats, tune, *preview, *topN) {
			os.Exit(1)
		}
		return
	}

	paths := flag.Args()
	if len(paths) == 0 && *dataDir != "" {
		latest, err := snapshot.Latest(filepath.Join(*dataDir, "snapshots"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "scan snapshots:", err)
			os.Exit(1)
		}
		if latest != "" {
			paths = []string{latest}
		}
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "nothing to check: pass snapshot paths, -data, or -grow")
		os.Exit(2)
	}

	var (
		mu     sync.Mutex
		failed bool
	)
	eg, _ := errgroup.WithContext(context.Background())
	for _, path := range paths {
		path := path
		eg.Go(func() error {
			region, err := snapshot.ReadRegion(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			g, faces, err := region.ToGrid()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			ok := checkRegion(filepath.Base(path), g, faces, cats, tune, *preview, *topN)
			mu.Lock()
			if !ok {
				failed = true
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if failed {
		os.Exit(1)
	}
}

var reportMu sync.Mutex

// checkRegion solves one region and prints its report. Returns false when the
// worst ratio exceeds the block threshold.
func checkRegion(name string, g *world.Grid, faces map[world.Vec3i]world.FaceSet,
	cats *catalogs.Catalogs, tune tuning.Tuning, preview bool, topN int) bool {

	n := structural.BuildNetwork(g, faces, cats, tune)
	var res structural.SolveResult
	if preview {
		res = structural.SolvePreview(n, tune)
	} else {
		res = structural.Solve(n, tune)
	}

	type worst struct {
		ratio float32
		a, b  world.Vec3i
	}
	springs := n.Springs()
	worsts := make([]worst, 0, len(springs))
	for i, s := range springs {
		worsts = append(worsts, worst{ratio: res.SpringStresses[i], a: n.Coord(s.A), b: n.Coord(s.B)})
	}
	sort.Slice(worsts, func(i, j int) bool { return worsts[i].ratio > worsts[j].ratio })
	if topN < len(worsts) {
		worsts = worsts[:topN]
	}

	verdict := "OK"
	switch {
	case res.MaxStressRatio > tune.BlockStressRatio:
		verdict = "BLOCKED"
	case res.MaxStressRatio > tune.WarnStressRatio:
		verdict = "WARNING"
	}

	reportMu.Lock()
	defer reportMu.Unlock()
	fmt.Printf("%s: nodes=%d springs=%d pinned=%d max_stress=%.4f verdict=%s\n",
		name, n.NumNodes(), n.NumSprings(), n.PinnedCount(), res.MaxStressRatio, verdict)
	for _, w := range worsts {
		fmt.Printf("  %.4f  (%d,%d,%d)-(%d,%d,%d)\n",
			w.ratio, w.a.X, w.a.Y, w.a.Z, w.b.X, w.b.Y, w.b.Z)
	}
	return verdict != "BLOCKED"
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
