package world

import (
	"sort"
	"testing"
)

func TestGridBounds(t *testing.T) {
	g := NewGrid(4, 3, 5)
	if sx, sy, sz := g.Size(); sx != 4 || sy != 3 || sz != 5 {
		t.Fatalf("size = %d,%d,%d", sx, sy, sz)
	}

	g.Set(Vec3i{X: 3, Y: 2, Z: 4}, Trunk)
	if got := g.Get(Vec3i{X: 3, Y: 2, Z: 4}); got != Trunk {
		t.Fatalf("corner read = %v", got)
	}

	// Out-of-bounds reads are Air, writes are dropped.
	outside := []Vec3i{
		{X: -1}, {Y: -1}, {Z: -1},
		{X: 4}, {Y: 3}, {Z: 5},
		{X: 100, Y: 100, Z: 100},
	}
	for _, c := range outside {
		g.Set(c, Trunk)
		if got := g.Get(c); got != Air {
			t.Fatalf("out-of-bounds read at %v = %v, want AIR", c, got)
		}
		if g.InBounds(c) {
			t.Fatalf("InBounds(%v) = true", c)
		}
	}
}

func TestGridClearAndCount(t *testing.T) {
	g := NewGrid(4, 4, 4)
	g.Set(Vec3i{X: 0, Y: 0, Z: 0}, ForestFloor)
	g.Set(Vec3i{X: 1, Y: 1, Z: 1}, Trunk)
	g.Set(Vec3i{X: 2, Y: 2, Z: 2}, Leaf)
	g.Set(Vec3i{X: 3, Y: 3, Z: 3}, Fruit)

	// Leaves and fruit hang off the tree but carry nothing.
	if got := g.CountStructural(); got != 2 {
		t.Fatalf("CountStructural = %d, want 2", got)
	}

	g.Clear()
	if got := g.CountStructural(); got != 0 {
		t.Fatalf("CountStructural after Clear = %d", got)
	}
	if got := g.Get(Vec3i{X: 1, Y: 1, Z: 1}); got != Air {
		t.Fatalf("cell after Clear = %v", got)
	}
}

func TestHasFaceNeighbor(t *testing.T) {
	g := NewGrid(8, 8, 8)
	c := Vec3i{X: 4, Y: 4, Z: 4}
	if g.HasFaceNeighbor(c, Trunk) {
		t.Fatal("empty grid reports a neighbor")
	}
	g.Set(Vec3i{X: 4, Y: 3, Z: 4}, Trunk)
	if !g.HasFaceNeighbor(c, Trunk) {
		t.Fatal("face-adjacent cell not seen")
	}

	// Diagonal contact carries no area between unit cubes.
	g.Clear()
	g.Set(Vec3i{X: 5, Y: 5, Z: 4}, Trunk)
	if g.HasFaceNeighbor(c, Trunk) {
		t.Fatal("edge neighbor counted as face-adjacent")
	}
}

func TestOverlay(t *testing.T) {
	g := NewGrid(4, 4, 4)
	g.Set(Vec3i{X: 1, Y: 1, Z: 1}, Trunk)

	o := &Overlay{
		Base: g,
		Proposed: map[Vec3i]VoxelKind{
			{X: 1, Y: 1, Z: 1}: GrownPlatform,
			{X: 9, Y: 9, Z: 9}: Branch,
		},
	}
	if got := o.Get(Vec3i{X: 1, Y: 1, Z: 1}); got != GrownPlatform {
		t.Fatalf("overridden cell = %v", got)
	}
	if got := o.Get(Vec3i{X: 0, Y: 0, Z: 0}); got != Air {
		t.Fatalf("base passthrough = %v", got)
	}
	// Proposals may extend past the generated region.
	if got := o.Get(Vec3i{X: 9, Y: 9, Z: 9}); got != Branch {
		t.Fatalf("outside proposal = %v", got)
	}
	if !o.InBounds(Vec3i{X: 9, Y: 9, Z: 9}) {
		t.Fatal("proposed cell outside base reported out of bounds")
	}
	if o.InBounds(Vec3i{X: 5, Y: 5, Z: 5}) {
		t.Fatal("unproposed cell outside base reported in bounds")
	}
}

func TestVec3iLessOrdersYZX(t *testing.T) {
	cells := []Vec3i{
		{X: 1, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Less(cells[j]) })

	want := []Vec3i{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 0, Z: 1},
		{X: 0, Y: 1, Z: 0},
		{X: 1, Y: 1, Z: 0},
	}
	for i := range want {
		if cells[i] != want[i] {
			t.Fatalf("order[%d] = %v, want %v", i, cells[i], want[i])
		}
	}
}

func TestManhattan(t *testing.T) {
	if d := Manhattan(Vec3i{X: 1, Y: 2, Z: 3}, Vec3i{X: -1, Y: 5, Z: 3}); d != 5 {
		t.Fatalf("Manhattan = %d, want 5", d)
	}
}
