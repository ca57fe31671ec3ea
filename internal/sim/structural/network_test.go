package structural

import (
	"testing"

	"greatwood.gg/internal/sim/catalogs"
	"greatwood.gg/internal/sim/tuning"
	"greatwood.gg/internal/sim/world"
)

func testCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

// columnWorld builds a forest floor plane at y=0 over [0,floorExtent) in x
// and z, with a trunk column at (cx, 1..height, cz).
func columnWorld(sx, sy, sz, floorExtent, cx, cz, height int) *world.Grid {
	g := world.NewGrid(sx, sy, sz)
	for x := 0; x < floorExtent; x++ {
		for z := 0; z < floorExtent; z++ {
			g.Set(world.Vec3i{X: x, Y: 0, Z: z}, world.ForestFloor)
		}
	}
	for y := 1; y <= height; y++ {
		g.Set(world.Vec3i{X: cx, Y: y, Z: cz}, world.Trunk)
	}
	return g
}

// addArm lays a horizontal run of kind at height y from x0 to x1 inclusive.
func addArm(g *world.Grid, y, z, x0, x1 int, kind world.VoxelKind) {
	for x := x0; x <= x1; x++ {
		g.Set(world.Vec3i{X: x, Y: y, Z: z}, kind)
	}
}

// worstTouching returns the worst stress ratio among springs touching any of
// the given cells.
func worstTouching(n *Network, stresses []float32, cells map[world.Vec3i]bool) float32 {
	worst := float32(0)
	for si, s := range n.Springs() {
		if cells[n.Coord(s.A)] || cells[n.Coord(s.B)] {
			if stresses[si] > worst {
				worst = stresses[si]
			}
		}
	}
	return worst
}

func TestBuildNetworkColumnAndPlatform(t *testing.T) {
	cats := testCatalogs(t)
	tun := tuning.Default()

	g := columnWorld(16, 8, 16, 8, 4, 4, 5)
	addArm(g, 5, 4, 5, 6, world.GrownPlatform)

	n := BuildNetwork(g, nil, cats, tun)

	// 64 floor cells + 5 trunk + 2 platform.
	if got, want := n.NumNodes(), 71; got != want {
		t.Fatalf("nodes: got %d want %d", got, want)
	}
	if got, want := n.PinnedCount(), 64; got != want {
		t.Fatalf("pinned: got %d want %d", got, want)
	}
	if got, want := n.NumSprings(), 119; got != want {
		t.Fatalf("springs: got %d want %d", got, want)
	}
}

func TestBuildNetworkSkipsNonStructural(t *testing.T) {
	cats := testCatalogs(t)
	tun := tuning.Default()

	g := columnWorld(16, 8, 16, 8, 4, 4, 5)
	base := BuildNetwork(g, nil, cats, tun).NumNodes()

	g.Set(world.Vec3i{X: 4, Y: 6, Z: 4}, world.Leaf)
	g.Set(world.Vec3i{X: 4, Y: 7, Z: 4}, world.Fruit)

	n := BuildNetwork(g, nil, cats, tun)
	if n.NumNodes() != base {
		t.Fatalf("leaf and fruit cells must not add nodes: got %d want %d", n.NumNodes(), base)
	}
}

func TestNodeAtLookup(t *testing.T) {
	cats := testCatalogs(t)
	tun := tuning.Default()

	g := columnWorld(16, 8, 16, 8, 4, 4, 5)
	n := BuildNetwork(g, nil, cats, tun)

	c := world.Vec3i{X: 4, Y: 3, Z: 4}
	i, ok := n.NodeAt(c)
	if !ok {
		t.Fatalf("expected node at %v", c)
	}
	if n.Coord(i) != c {
		t.Fatalf("coord round trip: got %v want %v", n.Coord(i), c)
	}
	if _, ok := n.NodeAt(world.Vec3i{X: 9, Y: 9, Z: 9}); ok {
		t.Fatalf("unexpected node in empty air")
	}
}

func TestSpringEndpointsOrdered(t *testing.T) {
	cats := testCatalogs(t)
	tun := tuning.Default()

	g := columnWorld(16, 8, 16, 8, 4, 4, 5)
	addArm(g, 5, 4, 5, 6, world.GrownPlatform)
	n := BuildNetwork(g, nil, cats, tun)

	for _, s := range n.Springs() {
		if !n.Coord(s.A).Less(n.Coord(s.B)) {
			t.Fatalf("spring endpoints out of order: %v -> %v", n.Coord(s.A), n.Coord(s.B))
		}
		if s.RestLength != 1.0 {
			t.Fatalf("rest length: got %f want 1.0", s.RestLength)
		}
		if s.Stiffness <= 0 || s.Strength <= 0 {
			t.Fatalf("degenerate spring emitted: k=%f strength=%f", s.Stiffness, s.Strength)
		}
	}
}

func TestHarmonicMeanStiffnessMinStrength(t *testing.T) {
	cats := testCatalogs(t)
	tun := tuning.Default()

	// A trunk cell next to a platform cell, both on the floor so the
	// network is anchored.
	g := world.NewGrid(4, 4, 4)
	g.Set(world.Vec3i{X: 0, Y: 0, Z: 0}, world.ForestFloor)
	g.Set(world.Vec3i{X: 1, Y: 0, Z: 0}, world.ForestFloor)
	g.Set(world.Vec3i{X: 0, Y: 1, Z: 0}, world.Trunk)
	g.Set(world.Vec3i{X: 1, Y: 1, Z: 0}, world.GrownPlatform)

	n := BuildNetwork(g, nil, cats, tun)
	trunk, _ := cats.Material(world.Trunk)
	plat, _ := cats.Material(world.GrownPlatform)
	wantK := 2 * trunk.Stiffness * plat.Stiffness / (trunk.Stiffness + plat.Stiffness)

	found := false
	a := world.Vec3i{X: 0, Y: 1, Z: 0}
	b := world.Vec3i{X: 1, Y: 1, Z: 0}
	for _, s := range n.Springs() {
		if n.Coord(s.A) == a && n.Coord(s.B) == b {
			found = true
			if s.Stiffness != wantK {
				t.Fatalf("stiffness: got %f want harmonic mean %f", s.Stiffness, wantK)
			}
			if s.Strength != plat.Strength {
				t.Fatalf("strength: got %f want min %f", s.Strength, plat.Strength)
			}
		}
	}
	if !found {
		t.Fatalf("no spring between %v and %v", a, b)
	}
}
