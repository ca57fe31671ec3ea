// Package structural decides whether voxel structures can carry their own
// weight. It models every structural cell as a point mass and every
// face-adjacent contact as a scalar spring, relaxes the network under
// gravity for a fixed iteration count, and reports per-spring stress
// relative to failure strength.
//
// Determinism contract: every function here produces bit-identical output
// for byte-identical input on one architecture. Nodes and springs are keyed
// and iterated by coordinate order, never by map order; the solver runs a
// fixed pass count with no convergence early-exit; all arithmetic is
// add/sub/mul/div plus square root for vector length.
package structural

import (
	"sort"

	"greatwood.gg/internal/sim/catalogs"
	"greatwood.gg/internal/sim/tuning"
	"greatwood.gg/internal/sim/world"
)

// Node is one point mass in the network.
type Node struct {
	// Pos starts at the cell center and is displaced by relaxation.
	Pos [3]float32
	// Mass from material density, plus face weights for interior cells.
	Mass float32
	// Pinned nodes never move and absorb unlimited force.
	Pinned bool
}

// Spring connects two nodes across a shared cell face.
type Spring struct {
	A, B       int
	Stiffness  float32
	Strength   float32
	RestLength float32
}

// Network is the spring-mass graph built for exactly one validation call.
// Node order equals coordinate order (y outer, z mid, x inner), so the node
// at index i corresponds to Coords()[i].
type Network struct {
	nodes   []Node
	springs []Spring
	coords  []world.Vec3i // sorted by Vec3i.Less; parallel to nodes
}

func (n *Network) NumNodes() int           { return len(n.nodes) }
func (n *Network) NumSprings() int         { return len(n.springs) }
func (n *Network) Springs() []Spring       { return n.springs }
func (n *Network) Coords() []world.Vec3i   { return n.coords }
func (n *Network) Node(i int) Node         { return n.nodes[i] }
func (n *Network) Coord(i int) world.Vec3i { return n.coords[i] }

// NodeAt looks a node index up by coordinate.
func (n *Network) NodeAt(c world.Vec3i) (int, bool) {
	i := sort.Search(len(n.coords), func(i int) bool { return !n.coords[i].Less(c) })
	if i < len(n.coords) && n.coords[i] == c {
		return i, true
	}
	return 0, false
}

// PinnedCount returns the number of pinned nodes.
func (n *Network) PinnedCount() int {
	count := 0
	for _, nd := range n.nodes {
		if nd.Pinned {
			count++
		}
	}
	return count
}

func (n *Network) addNode(c world.Vec3i, mass float32, pinned bool) {
	n.coords = append(n.coords, c)
	n.nodes = append(n.nodes, Node{
		Pos:    [3]float32{float32(c.X), float32(c.Y), float32(c.Z)},
		Mass:   mass,
		Pinned: pinned,
	})
}

// nodeMass computes a cell's mass: interior cells weigh their base weight
// plus assigned faces, solid cells weigh their material density. The second
// result is false for kinds without a catalog entry (excluded from the
// network, matching the builder's skip of non-structural kinds).
func nodeMass(kind world.VoxelKind, c world.Vec3i, faces map[world.Vec3i]world.FaceSet,
	cats *catalogs.Catalogs, tun tuning.Tuning) (mass float32, pinned, ok bool) {
	if kind == world.BuildingInterior {
		m := tun.InteriorBaseWeight
		if fs, has := faces[c]; has {
			for _, dir := range world.FaceDirs {
				if fd, defined := cats.Face(fs.Get(dir)); defined {
					m += fd.Weight
				}
			}
		}
		return m, false, true
	}
	mat, has := cats.Material(kind)
	if !has {
		return 0, false, false
	}
	return mat.Density, mat.Anchor, true
}

// BuildNetwork constructs the spring-mass graph for every structural cell of
// the snapshot. Cells are visited in the fixed traversal order and springs
// are emitted by scanning only the three positive-axis neighbors of each
// node, so the spring set does not depend on discovery direction.
func BuildNetwork(snap world.Snapshot, faces map[world.Vec3i]world.FaceSet,
	cats *catalogs.Catalogs, tun tuning.Tuning) *Network {
	n := &Network{}
	sx, sy, sz := snap.Size()

	for y := 0; y < sy; y++ {
		for z := 0; z < sz; z++ {
			for x := 0; x < sx; x++ {
				c := world.Vec3i{X: x, Y: y, Z: z}
				kind := snap.Get(c)
				if !kind.IsStructural() {
					continue
				}
				mass, pinned, ok := nodeMass(kind, c, faces, cats, tun)
				if !ok {
					continue
				}
				n.addNode(c, mass, pinned)
			}
		}
	}

	n.buildSprings(func(c world.Vec3i) world.VoxelKind { return snap.Get(c) }, faces, cats)
	return n
}

// buildNetworkFromSet constructs the graph from an explicit cell set instead
// of scanning a whole region. Used by the fast validators, which only need
// the connected component around a proposal.
func buildNetworkFromSet(cells map[world.Vec3i]world.VoxelKind, faces map[world.Vec3i]world.FaceSet,
	cats *catalogs.Catalogs, tun tuning.Tuning) *Network {
	coords := make([]world.Vec3i, 0, len(cells))
	for c := range cells {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool { return coords[i].Less(coords[j]) })

	n := &Network{}
	for _, c := range coords {
		kind := cells[c]
		if !kind.IsStructural() {
			continue
		}
		mass, pinned, ok := nodeMass(kind, c, faces, cats, tun)
		if !ok {
			continue
		}
		n.addNode(c, mass, pinned)
	}

	n.buildSprings(func(c world.Vec3i) world.VoxelKind { return cells[c] }, faces, cats)
	return n
}

var positiveOffsets = [3]world.Vec3i{{X: 1}, {Y: 1}, {Z: 1}}

func (n *Network) buildSprings(kindAt func(world.Vec3i) world.VoxelKind,
	faces map[world.Vec3i]world.FaceSet, cats *catalogs.Catalogs) {
	for ia, ca := range n.coords {
		ka := kindAt(ca)
		for _, off := range positiveOffsets {
			cb := ca.Add(off)
			ib, ok := n.NodeAt(cb)
			if !ok {
				continue
			}
			kb := kindAt(cb)

			stiffness, strength := springProps(ca, ka, cb, kb, off, faces, cats)
			if stiffness <= 0 && strength <= 0 {
				// No structural contribution (open face, inert material).
				continue
			}
			n.springs = append(n.springs, Spring{
				A:          ia,
				B:          ib,
				Stiffness:  stiffness,
				Strength:   strength,
				RestLength: 1.0, // face-adjacent cells are one unit apart
			})
		}
	}
}

// springProps derives the stiffness and strength of the spring between two
// face-adjacent cells. Solid pairs combine their materials (harmonic mean of
// stiffness, minimum of strength). Pairs involving interior cells use the
// face assigned to the shared boundary; when both sides are interior the
// stiffer face governs, and when one side is solid the face is blended with
// the material the same way two materials are.
func springProps(ca world.Vec3i, ka world.VoxelKind, cb world.Vec3i, kb world.VoxelKind,
	off world.Vec3i, faces map[world.Vec3i]world.FaceSet, cats *catalogs.Catalogs) (float32, float32) {
	if ka != world.BuildingInterior && kb != world.BuildingInterior {
		matA, okA := cats.Material(ka)
		matB, okB := cats.Material(kb)
		if !okA || !okB {
			return 0, 0
		}
		return harmonicMean(matA.Stiffness, matB.Stiffness), minF32(matA.Strength, matB.Strength)
	}

	// At least one side is interior: resolve the face on the shared boundary.
	dirAB, _ := world.FaceDirFromOffset(off)
	dirBA := dirAB.Opposite()

	faceA, hasA := interiorFace(ka, ca, dirAB, faces)
	faceB, hasB := interiorFace(kb, cb, dirBA, faces)

	var face world.FaceKind
	switch {
	case hasA && hasB:
		fdA, okA := cats.Face(faceA)
		fdB, okB := cats.Face(faceB)
		switch {
		case okA && okB && fdA.Stiffness >= fdB.Stiffness:
			face = faceA
		case okA && okB:
			face = faceB
		case okA:
			face = faceA
		case okB:
			face = faceB
		default:
			return 0, 0
		}
	case hasA:
		face = faceA
	case hasB:
		face = faceB
	default:
		return 0, 0
	}

	if face == world.FaceOpen {
		return 0, 0
	}
	fd, ok := cats.Face(face)
	if !ok {
		return 0, 0
	}

	// Blend with the solid side's material, if there is one.
	solidKind := world.BuildingInterior
	if ka != world.BuildingInterior {
		solidKind = ka
	} else if kb != world.BuildingInterior {
		solidKind = kb
	}
	if solidKind != world.BuildingInterior {
		if mat, has := cats.Material(solidKind); has {
			return harmonicMean(mat.Stiffness, fd.Stiffness), minF32(mat.Strength, fd.Strength)
		}
	}
	return fd.Stiffness, fd.Strength
}

// interiorFace returns the face an interior cell presents toward dir.
// A cell without an assignment presents Open faces on every side.
func interiorFace(kind world.VoxelKind, c world.Vec3i, dir world.FaceDir,
	faces map[world.Vec3i]world.FaceSet) (world.FaceKind, bool) {
	if kind != world.BuildingInterior {
		return world.FaceOpen, false
	}
	if fs, ok := faces[c]; ok {
		return fs.Get(dir), true
	}
	return world.FaceOpen, true
}

func harmonicMean(a, b float32) float32 {
	if a+b <= 0 {
		return 0
	}
	return 2 * a * b / (a + b)
}

func minF32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
