package structural

import (
	"math"
	"testing"

	"greatwood.gg/internal/sim/tuning"
	"greatwood.gg/internal/sim/world"
)

func TestShortCantileverHolds(t *testing.T) {
	cats := testCatalogs(t)
	tun := tuning.Default()

	g := columnWorld(16, 8, 16, 8, 4, 4, 5)
	addArm(g, 5, 4, 5, 6, world.GrownPlatform)

	n := BuildNetwork(g, nil, cats, tun)
	res := Solve(n, tun)
	if res.AnyFailed {
		t.Fatalf("short platform must hold, peak %f", res.MaxStressRatio)
	}
	if res.MaxStressRatio >= tun.WarnStressRatio {
		t.Fatalf("short platform peak %f should stay below warn %f", res.MaxStressRatio, tun.WarnStressRatio)
	}
}

func TestLongCantileverFails(t *testing.T) {
	cats := testCatalogs(t)
	tun := tuning.Default()

	g := columnWorld(48, 16, 48, 10, 5, 5, 10)
	addArm(g, 10, 5, 6, 38, world.GrownPlatform)

	n := BuildNetwork(g, nil, cats, tun)
	res := Solve(n, tun)
	if !res.AnyFailed {
		t.Fatalf("33-cell platform cantilever must fail, peak %f", res.MaxStressRatio)
	}
}

func TestStressMonotonicWithArmLength(t *testing.T) {
	cats := testCatalogs(t)
	tun := tuning.Default()

	junction := world.Vec3i{X: 6, Y: 8, Z: 5}
	prev := float32(-1)
	for _, length := range []int{3, 5, 8, 12, 16, 20} {
		g := columnWorld(32, 12, 32, 10, 5, 5, 8)
		addArm(g, 8, 5, 6, 5+length, world.GrownPlatform)

		n := BuildNetwork(g, nil, cats, tun)
		res := Solve(n, tun)
		j := worstTouching(n, res.SpringStresses, map[world.Vec3i]bool{junction: true})
		if j < prev {
			t.Fatalf("junction stress dropped from %f to %f at arm length %d", prev, j, length)
		}
		prev = j
	}
}

func TestDiagonalBraceReducesJunctionStress(t *testing.T) {
	cats := testCatalogs(t)
	tun := tuning.Default()
	junction := map[world.Vec3i]bool{{X: 6, Y: 8, Z: 5}: true}

	build := func(braced bool) float32 {
		g := columnWorld(24, 12, 24, 20, 5, 5, 8)
		addArm(g, 8, 5, 6, 17, world.GrownPlatform)
		if braced {
			// Staircase of trunk from the column base out to under the
			// arm tip, giving the tip a second path to ground.
			x, y := 6, 1
			g.Set(world.Vec3i{X: x, Y: y, Z: 5}, world.Trunk)
			for x < 17 || y < 7 {
				if x < 17 {
					x++
					g.Set(world.Vec3i{X: x, Y: y, Z: 5}, world.Trunk)
				}
				if y < 7 && (x-6)*6 >= y*11 {
					y++
					g.Set(world.Vec3i{X: x, Y: y, Z: 5}, world.Trunk)
				}
			}
		}
		n := BuildNetwork(g, nil, cats, tun)
		res := Solve(n, tun)
		return worstTouching(n, res.SpringStresses, junction)
	}

	unbraced := build(false)
	braced := build(true)
	if unbraced <= 0.1 {
		t.Fatalf("baseline junction stress %f too low to be meaningful", unbraced)
	}
	if braced >= unbraced {
		t.Fatalf("brace must lower junction stress: braced %f unbraced %f", braced, unbraced)
	}
}

func TestThickerArmLowersStress(t *testing.T) {
	cats := testCatalogs(t)
	tun := tuning.Default()
	const length = 8

	build := func(halfWidth int) float32 {
		g := world.NewGrid(32, 12, 32)
		for x := 0; x < 12; x++ {
			for z := 0; z < 12; z++ {
				g.Set(world.Vec3i{X: x, Y: 0, Z: z}, world.ForestFloor)
			}
		}
		junction := make(map[world.Vec3i]bool)
		for z := 5 - halfWidth; z <= 5+halfWidth; z++ {
			for y := 1; y <= 8; y++ {
				g.Set(world.Vec3i{X: 5, Y: y, Z: z}, world.Trunk)
			}
			addArm(g, 8, z, 6, 5+length, world.GrownPlatform)
			junction[world.Vec3i{X: 6, Y: 8, Z: z}] = true
		}
		n := BuildNetwork(g, nil, cats, tun)
		res := Solve(n, tun)
		return worstTouching(n, res.SpringStresses, junction)
	}

	thin := build(0)
	thick := build(1)
	if thick >= thin {
		t.Fatalf("tripled cross-section must lower peak stress: thick %f thin %f", thick, thin)
	}
}

func TestSolveDeterministic(t *testing.T) {
	cats := testCatalogs(t)
	tun := tuning.Default()

	run := func() ([]float32, []Node) {
		g := columnWorld(24, 12, 24, 10, 5, 5, 8)
		addArm(g, 8, 5, 6, 17, world.GrownPlatform)
		n := BuildNetwork(g, nil, cats, tun)
		res := Solve(n, tun)
		nodes := make([]Node, n.NumNodes())
		for i := range nodes {
			nodes[i] = n.Node(i)
		}
		return res.SpringStresses, nodes
	}

	s1, n1 := run()
	s2, n2 := run()
	if len(s1) != len(s2) {
		t.Fatalf("spring count differs: %d vs %d", len(s1), len(s2))
	}
	for i := range s1 {
		if math.Float32bits(s1[i]) != math.Float32bits(s2[i]) {
			t.Fatalf("spring %d stress not bit-identical: %x vs %x",
				i, math.Float32bits(s1[i]), math.Float32bits(s2[i]))
		}
	}
	for i := range n1 {
		for axis := 0; axis < 3; axis++ {
			if math.Float32bits(n1[i].Pos[axis]) != math.Float32bits(n2[i].Pos[axis]) {
				t.Fatalf("node %d axis %d not bit-identical", i, axis)
			}
		}
	}
}

func TestSolvePreviewAgreesOnHealthyStructure(t *testing.T) {
	cats := testCatalogs(t)
	tun := tuning.Default()

	g := columnWorld(16, 8, 16, 8, 4, 4, 5)
	addArm(g, 5, 4, 5, 6, world.GrownPlatform)

	full := Solve(BuildNetwork(g, nil, cats, tun), tun)
	preview := SolvePreview(BuildNetwork(g, nil, cats, tun), tun)

	if preview.AnyFailed {
		t.Fatalf("preview reported failure on a healthy structure")
	}
	// Weight flow does not depend on the iteration count, and it dominates
	// the peak here.
	if math.Float32bits(preview.MaxStressRatio) != math.Float32bits(full.MaxStressRatio) {
		t.Fatalf("preview peak %f differs from authoritative %f", preview.MaxStressRatio, full.MaxStressRatio)
	}
}
