package world

// Grid is a dense axis-aligned voxel region, stored as a flat slice indexed
// x + z*sx + y*sx*sz. Reads outside the bounds return Air and writes outside
// the bounds are dropped, so callers can probe neighbors without bounds
// checks of their own.
//
// A Grid is mutated only by generation and designation code; the structural
// solver consumes it through the read-only Snapshot interface and many
// solver calls may read one Grid concurrently.
type Grid struct {
	voxels []VoxelKind
	sx     int
	sy     int
	sz     int
}

// Snapshot is the read-only view of a voxel region that the structural
// subsystem consumes. Implementations must be safe for concurrent reads.
type Snapshot interface {
	Get(Vec3i) VoxelKind
	InBounds(Vec3i) bool
	Size() (sx, sy, sz int)
}

func NewGrid(sx, sy, sz int) *Grid {
	return &Grid{
		voxels: make([]VoxelKind, sx*sy*sz),
		sx:     sx,
		sy:     sy,
		sz:     sz,
	}
}

func (g *Grid) Size() (sx, sy, sz int) { return g.sx, g.sy, g.sz }

func (g *Grid) InBounds(c Vec3i) bool {
	return c.X >= 0 && c.Y >= 0 && c.Z >= 0 && c.X < g.sx && c.Y < g.sy && c.Z < g.sz
}

func (g *Grid) index(c Vec3i) (int, bool) {
	if !g.InBounds(c) {
		return 0, false
	}
	return c.X + c.Z*g.sx + c.Y*g.sx*g.sz, true
}

func (g *Grid) Get(c Vec3i) VoxelKind {
	i, ok := g.index(c)
	if !ok {
		return Air
	}
	return g.voxels[i]
}

func (g *Grid) Set(c Vec3i, k VoxelKind) {
	if i, ok := g.index(c); ok {
		g.voxels[i] = k
	}
}

// Clear resets every cell to Air (reused between generation attempts).
func (g *Grid) Clear() {
	for i := range g.voxels {
		g.voxels[i] = Air
	}
}

// CountStructural returns the number of cells participating in the
// structural network.
func (g *Grid) CountStructural() int {
	n := 0
	for _, k := range g.voxels {
		if k.IsStructural() {
			n++
		}
	}
	return n
}

// HasFaceNeighbor reports whether any face-adjacent cell is the given kind.
func (g *Grid) HasFaceNeighbor(c Vec3i, k VoxelKind) bool {
	for _, off := range FaceOffsets {
		if g.Get(c.Add(off)) == k {
			return true
		}
	}
	return false
}

// Overlay is a Snapshot that substitutes a proposed material at a set of
// cells without copying the underlying grid. Cells outside the base bounds
// are allowed when they appear in the proposal, so proposals may extend past
// the generated region.
type Overlay struct {
	Base     Snapshot
	Proposed map[Vec3i]VoxelKind
}

func (o *Overlay) Get(c Vec3i) VoxelKind {
	if k, ok := o.Proposed[c]; ok {
		return k
	}
	return o.Base.Get(c)
}

func (o *Overlay) InBounds(c Vec3i) bool {
	if _, ok := o.Proposed[c]; ok {
		return true
	}
	return o.Base.InBounds(c)
}

func (o *Overlay) Size() (sx, sy, sz int) { return o.Base.Size() }
