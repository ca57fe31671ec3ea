package snapshot

import (
	"path/filepath"
	"testing"

	"greatwood.gg/internal/sim/world"
)

func testRegionGrid() (*world.Grid, map[world.Vec3i]world.FaceSet) {
	g := world.NewGrid(8, 6, 8)
	for x := 0; x < 8; x++ {
		for z := 0; z < 8; z++ {
			g.Set(world.Vec3i{X: x, Y: 0, Z: z}, world.ForestFloor)
		}
	}
	for y := 1; y < 5; y++ {
		g.Set(world.Vec3i{X: 4, Y: y, Z: 4}, world.Trunk)
	}
	g.Set(world.Vec3i{X: 5, Y: 4, Z: 4}, world.GrownPlatform)
	g.Set(world.Vec3i{X: 5, Y: 5, Z: 4}, world.BuildingInterior)

	var fs world.FaceSet
	fs.Set(world.NegY, world.FaceFloor)
	fs.Set(world.PosY, world.FaceCeiling)
	fs.Set(world.PosX, world.FaceWall)
	faces := map[world.Vec3i]world.FaceSet{
		{X: 5, Y: 5, Z: 4}: fs,
	}
	return g, faces
}

func TestRegionRoundTrip(t *testing.T) {
	g, faces := testRegionGrid()
	region := FromGrid(g, faces, 1337, 2)

	path := filepath.Join(t.TempDir(), "region.snap.zst")
	if err := WriteRegion(path, region); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := ReadRegion(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if loaded.Header != region.Header {
		t.Fatalf("header = %+v, want %+v", loaded.Header, region.Header)
	}
	if loaded.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", loaded.Attempts)
	}

	g2, faces2, err := loaded.ToGrid()
	if err != nil {
		t.Fatalf("to grid: %v", err)
	}
	sx, sy, sz := g.Size()
	for y := 0; y < sy; y++ {
		for z := 0; z < sz; z++ {
			for x := 0; x < sx; x++ {
				c := world.Vec3i{X: x, Y: y, Z: z}
				if g2.Get(c) != g.Get(c) {
					t.Fatalf("cell (%d,%d,%d) = %v, want %v", x, y, z, g2.Get(c), g.Get(c))
				}
			}
		}
	}
	if len(faces2) != len(faces) {
		t.Fatalf("got %d face cells, want %d", len(faces2), len(faces))
	}
	for c, fs := range faces {
		if faces2[c] != fs {
			t.Fatalf("faces at %v = %v, want %v", c, faces2[c], fs)
		}
	}
}

func TestRegionPaletteSorted(t *testing.T) {
	g, faces := testRegionGrid()
	region := FromGrid(g, faces, 1, 1)

	for i := 1; i < len(region.Palette); i++ {
		if region.Palette[i-1] >= region.Palette[i] {
			t.Fatalf("palette not sorted: %v", region.Palette)
		}
	}
	// Same grid, same bytes: palette and voxel indices must not depend on
	// map iteration anywhere.
	again := FromGrid(g, faces, 1, 1)
	if len(again.Voxels) != len(region.Voxels) {
		t.Fatalf("voxel lengths differ")
	}
	for i := range region.Voxels {
		if again.Voxels[i] != region.Voxels[i] {
			t.Fatalf("voxel %d differs between captures", i)
		}
	}
}

func TestToGridRejectsBadRegions(t *testing.T) {
	g, faces := testRegionGrid()
	region := FromGrid(g, faces, 1, 1)

	bad := region
	bad.Header.Version = 9
	if _, _, err := bad.ToGrid(); err == nil {
		t.Fatal("expected version error")
	}

	bad = region
	bad.SizeX++
	if _, _, err := bad.ToGrid(); err == nil {
		t.Fatal("expected size mismatch error")
	}

	bad = region
	bad.Palette = append([]string{}, region.Palette...)
	bad.Palette[0] = "NOT_A_MATERIAL"
	if _, _, err := bad.ToGrid(); err == nil {
		t.Fatal("expected palette error")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()

	got, err := Latest(dir)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got != "" {
		t.Fatalf("latest in empty dir = %q, want empty", got)
	}

	g, faces := testRegionGrid()
	for _, seed := range []int64{3, 1, 2} {
		region := FromGrid(g, faces, seed, 1)
		if err := WriteRegion(PathFor(dir, seed), region); err != nil {
			t.Fatalf("write seed %d: %v", seed, err)
		}
	}
	got, err = Latest(dir)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got != PathFor(dir, 3) {
		t.Fatalf("latest = %q, want %q", got, PathFor(dir, 3))
	}
}
