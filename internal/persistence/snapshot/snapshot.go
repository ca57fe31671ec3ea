// Package snapshot persists voxel regions: a JSON header line for cheap
// inspection, then a gob body, zstd-compressed. Voxels are stored as indices
// into a palette of material ids so files survive renumbering of the
// in-memory kinds.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"greatwood.gg/internal/sim/world"
)

type Header struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`
}

type RegionV1 struct {
	Header Header `json:"header"`

	SizeX int `json:"size_x"`
	SizeY int `json:"size_y"`
	SizeZ int `json:"size_z"`

	// Palette lists the material ids appearing in the region, sorted.
	// Voxels holds one palette index per cell, x + z*sx + y*sx*sz.
	Palette []string `json:"palette"`
	Voxels  []uint16 `json:"voxels"`

	// Faces lists interior cell assignments, sorted by coordinate.
	Faces []FaceEntryV1 `json:"faces,omitempty"`

	// Attempts is how many generation tries the region's tree needed.
	Attempts int `json:"attempts,omitempty"`
}

type FaceEntryV1 struct {
	Cell  [3]int    `json:"cell"`
	Faces [6]string `json:"faces"`
}

// FromGrid captures a region for persistence.
func FromGrid(g *world.Grid, faces map[world.Vec3i]world.FaceSet, seed int64, attempts int) RegionV1 {
	sx, sy, sz := g.Size()
	region := RegionV1{
		Header:   Header{Version: 1, Seed: seed},
		SizeX:    sx,
		SizeY:    sy,
		SizeZ:    sz,
		Voxels:   make([]uint16, sx*sy*sz),
		Attempts: attempts,
	}

	present := map[string]bool{}
	for y := 0; y < sy; y++ {
		for z := 0; z < sz; z++ {
			for x := 0; x < sx; x++ {
				present[g.Get(world.Vec3i{X: x, Y: y, Z: z}).String()] = true
			}
		}
	}
	region.Palette = make([]string, 0, len(present))
	for id := range present {
		region.Palette = append(region.Palette, id)
	}
	sort.Strings(region.Palette)
	index := make(map[string]uint16, len(region.Palette))
	for i, id := range region.Palette {
		index[id] = uint16(i)
	}

	i := 0
	for y := 0; y < sy; y++ {
		for z := 0; z < sz; z++ {
			for x := 0; x < sx; x++ {
				region.Voxels[i] = index[g.Get(world.Vec3i{X: x, Y: y, Z: z}).String()]
				i++
			}
		}
	}

	cells := make([]world.Vec3i, 0, len(faces))
	for c := range faces {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(a, b int) bool { return cells[a].Less(cells[b]) })
	for _, c := range cells {
		var entry FaceEntryV1
		entry.Cell = c.ToArray()
		fs := faces[c]
		for i, d := range world.FaceDirs {
			entry.Faces[i] = fs.Get(d).String()
		}
		region.Faces = append(region.Faces, entry)
	}
	return region
}

// ToGrid rebuilds the live region from a stored one.
func (r RegionV1) ToGrid() (*world.Grid, map[world.Vec3i]world.FaceSet, error) {
	if r.Header.Version != 1 {
		return nil, nil, fmt.Errorf("unsupported region version %d", r.Header.Version)
	}
	if len(r.Voxels) != r.SizeX*r.SizeY*r.SizeZ {
		return nil, nil, fmt.Errorf("voxel count %d does not match %dx%dx%d",
			len(r.Voxels), r.SizeX, r.SizeY, r.SizeZ)
	}

	kinds := make([]world.VoxelKind, len(r.Palette))
	for i, id := range r.Palette {
		k, err := world.ParseVoxelKind(id)
		if err != nil {
			return nil, nil, fmt.Errorf("palette: %w", err)
		}
		kinds[i] = k
	}

	g := world.NewGrid(r.SizeX, r.SizeY, r.SizeZ)
	i := 0
	for y := 0; y < r.SizeY; y++ {
		for z := 0; z < r.SizeZ; z++ {
			for x := 0; x < r.SizeX; x++ {
				pi := r.Voxels[i]
				if int(pi) >= len(kinds) {
					return nil, nil, fmt.Errorf("voxel %d: palette index %d out of range", i, pi)
				}
				g.Set(world.Vec3i{X: x, Y: y, Z: z}, kinds[pi])
				i++
			}
		}
	}

	faces := make(map[world.Vec3i]world.FaceSet, len(r.Faces))
	for _, entry := range r.Faces {
		var fs world.FaceSet
		for i, d := range world.FaceDirs {
			k, err := world.ParseFaceKind(entry.Faces[i])
			if err != nil {
				return nil, nil, fmt.Errorf("faces: %w", err)
			}
			fs.Set(d, k)
		}
		faces[world.Vec3i{X: entry.Cell[0], Y: entry.Cell[1], Z: entry.Cell[2]}] = fs
	}
	return g, faces, nil
}

func WriteRegion(path string, region RegionV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(region.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&region); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadRegion(path string) (RegionV1, error) {
	var region RegionV1
	f, err := os.Open(path)
	if err != nil {
		return region, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return region, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; the gob body carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&region); err != nil {
		return region, fmt.Errorf("gob decode: %w", err)
	}
	return region, nil
}

// PathFor names a region file so lexical order matches seed order.
func PathFor(dir string, seed int64) string {
	return filepath.Join(dir, fmt.Sprintf("region-%016x.snap.zst", uint64(seed)))
}

// Latest returns the lexically last region file in dir, or "" when none
// exist.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "region-*.snap.zst"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
