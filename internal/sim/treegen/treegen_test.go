package treegen

import (
	"reflect"
	"testing"

	"greatwood.gg/internal/sim/rng"
	"greatwood.gg/internal/sim/world"
)

// smallProfile is FantasyMega scaled down to fit a 64^3 test grid, with the
// root system disabled so assertions about trunk and branch cells stay
// simple.
func smallProfile() Profile {
	p := FantasyMega()
	p.Growth.InitialEnergy = 50
	p.Roots.EnergyFraction = 0
	p.Roots.InitialCount = 0
	return p
}

func flatSite() Site {
	return Site{FloorExtent: 10}
}

func TestGrowPlacesTrunk(t *testing.T) {
	g := world.NewGrid(64, 64, 64)
	res := Grow(g, smallProfile(), flatSite(), rng.New(42))

	if len(res.Trunk) == 0 {
		t.Fatal("no trunk cells placed")
	}
	for _, c := range res.Trunk {
		if got := g.Get(c); got != world.Trunk {
			t.Fatalf("cell (%d,%d,%d) = %v, want TRUNK", c.X, c.Y, c.Z, got)
		}
	}
	base := world.Vec3i{X: 32, Y: 1, Z: 32}
	if got := g.Get(base); got != world.Trunk {
		t.Fatalf("trunk base %v = %v, want TRUNK", base, got)
	}
	if got := g.Get(world.Vec3i{X: 32, Y: 0, Z: 32}); got != world.ForestFloor {
		t.Fatalf("floor under trunk = %v, want FOREST_FLOOR", got)
	}
}

func TestGrowDeterministic(t *testing.T) {
	ga := world.NewGrid(64, 64, 64)
	gb := world.NewGrid(64, 64, 64)
	a := Grow(ga, smallProfile(), flatSite(), rng.New(42))
	b := Grow(gb, smallProfile(), flatSite(), rng.New(42))

	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different geometry")
	}
	if ga.CountStructural() != gb.CountStructural() {
		t.Fatalf("structural cell counts differ: %d vs %d",
			ga.CountStructural(), gb.CountStructural())
	}
}

func TestGrowSeedsDiffer(t *testing.T) {
	ga := world.NewGrid(64, 64, 64)
	gb := world.NewGrid(64, 64, 64)
	a := Grow(ga, smallProfile(), flatSite(), rng.New(42))
	b := Grow(gb, smallProfile(), flatSite(), rng.New(999))

	if reflect.DeepEqual(a.Trunk, b.Trunk) {
		t.Fatal("different seeds produced identical trunks")
	}
}

func TestGrowAdvancesGenerator(t *testing.T) {
	g := world.NewGrid(64, 64, 64)
	r := rng.New(7)
	a := Grow(g, smallProfile(), flatSite(), r)
	g.Clear()
	b := Grow(g, smallProfile(), flatSite(), r)

	if reflect.DeepEqual(a.Trunk, b.Trunk) {
		t.Fatal("consecutive grows from one generator produced identical trunks")
	}
}

func TestGrowWithRootsPlacesRoots(t *testing.T) {
	p := FantasyMega()
	p.Growth.InitialEnergy = 60
	p.Roots.EnergyFraction = 0.5
	g := world.NewGrid(64, 64, 64)
	res := Grow(g, p, Site{FloorExtent: 20}, rng.New(11))

	if len(res.Root) == 0 {
		t.Fatal("no root cells placed")
	}
	for _, c := range res.Root {
		if got := g.Get(c); got != world.Root {
			t.Fatalf("cell (%d,%d,%d) = %v, want ROOT", c.X, c.Y, c.Z, got)
		}
	}
}

func TestGrowTerrainRaisesDirt(t *testing.T) {
	g := world.NewGrid(64, 64, 64)
	site := Site{FloorExtent: 10, TerrainMaxHeight: 2, TerrainNoiseScale: 8.0}
	Grow(g, smallProfile(), site, rng.New(42))

	dirt := 0
	for x := 22; x <= 42; x++ {
		for z := 22; z <= 42; z++ {
			for y := 1; y <= 2; y++ {
				if g.Get(world.Vec3i{X: x, Y: y, Z: z}) == world.Dirt {
					dirt++
				}
			}
		}
	}
	if dirt == 0 {
		t.Fatal("terrain noise raised no dirt")
	}
}

func TestLeafBlobsAreLeaves(t *testing.T) {
	g := world.NewGrid(64, 64, 64)
	res := Grow(g, smallProfile(), flatSite(), rng.New(42))

	if len(res.Leaf) == 0 {
		t.Fatal("no leaf cells placed")
	}
	for _, c := range res.Leaf {
		if got := g.Get(c); got != world.Leaf {
			t.Fatalf("cell (%d,%d,%d) = %v, want LEAF", c.X, c.Y, c.Z, got)
		}
	}
}

func TestLeavesNeverReplaceWood(t *testing.T) {
	g := world.NewGrid(64, 64, 64)
	res := Grow(g, smallProfile(), flatSite(), rng.New(42))

	wood := make(map[world.Vec3i]bool, len(res.Trunk)+len(res.Branch))
	for _, c := range res.Trunk {
		wood[c] = true
	}
	for _, c := range res.Branch {
		wood[c] = true
	}
	for _, c := range res.Leaf {
		if wood[c] {
			t.Fatalf("leaf overwrote wood at (%d,%d,%d)", c.X, c.Y, c.Z)
		}
	}
}
