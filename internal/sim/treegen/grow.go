package treegen

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"greatwood.gg/internal/sim/catalogs"
	"greatwood.gg/internal/sim/rng"
	"greatwood.gg/internal/sim/structural"
	"greatwood.gg/internal/sim/tuning"
	"greatwood.gg/internal/sim/world"
)

// ErrRetriesExhausted means no generation attempt produced a structurally
// sound tree within the retry budget. That is a configuration problem (the
// profile or the material catalog cannot produce a standing tree), never a
// transient condition worth retrying harder.
var ErrRetriesExhausted = errors.New("tree generation retries exhausted")

// GrowValidated grows a tree and checks it with the generation validator,
// clearing the grid and regrowing on failure. Every attempt draws from the
// same advancing generator; the sequence is never reset, so a seed fully
// determines the accepted tree and how many attempts it took. Returns the
// accepted geometry and the attempt count.
func GrowValidated(g *world.Grid, cats *catalogs.Catalogs, tun tuning.Tuning,
	profile Profile, site Site, r *rng.Rand) (Result, int, error) {

	var lastErr error
	for attempt := 1; attempt <= tun.TreeGenerationMaxRetries; attempt++ {
		g.Clear()
		res := Grow(g, profile, site, r)
		if err := structural.ValidateGrown(g, nil, cats, tun); err != nil {
			lastErr = err
			continue
		}
		return res, attempt, nil
	}
	return Result{}, tun.TreeGenerationMaxRetries,
		fmt.Errorf("%w after %d attempts: %v",
			ErrRetriesExhausted, tun.TreeGenerationMaxRetries, lastErr)
}

// GroveSpec describes one independent tree of a grove.
type GroveSpec struct {
	Seed    uint64
	Profile Profile
	Site    Site
	// Grid dimensions for this tree's region.
	SizeX, SizeY, SizeZ int
}

// GroveTree is one grown and validated grove member.
type GroveTree struct {
	Grid     *world.Grid
	Result   Result
	Attempts int
}

// GrowGrove generates the specs concurrently, one grid and one generator
// per tree, and fails fast on the first exhausted member. Trees share no
// state, so the output is independent of scheduling; results land at the
// index of their spec.
func GrowGrove(ctx context.Context, specs []GroveSpec, cats *catalogs.Catalogs,
	tun tuning.Tuning) ([]GroveTree, error) {

	out := make([]GroveTree, len(specs))
	eg, ctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		i, spec := i, spec
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			g := world.NewGrid(spec.SizeX, spec.SizeY, spec.SizeZ)
			res, attempts, err := GrowValidated(g, cats, tun, spec.Profile, spec.Site, rng.New(spec.Seed))
			if err != nil {
				return fmt.Errorf("grove tree %d (seed %d): %w", i, spec.Seed, err)
			}
			out[i] = GroveTree{Grid: g, Result: res, Attempts: attempts}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
