package structural

import (
	"greatwood.gg/internal/sim/catalogs"
	"greatwood.gg/internal/sim/world"
)

// FloodFillConnected reports whether every proposed cell would be reachable
// from an anchor cell through face-adjacent structural cells, in the
// hypothetical region where the proposal is already placed. This is the
// cheap pre-check that rejects floating proposals before any solver work.
func FloodFillConnected(snap world.Snapshot, proposed []world.Vec3i,
	proposedKind world.VoxelKind, cats *catalogs.Catalogs) bool {
	if len(proposed) == 0 {
		return true
	}

	proposedSet := make(map[world.Vec3i]bool, len(proposed))
	for _, c := range proposed {
		proposedSet[c] = true
	}

	isStructural := func(c world.Vec3i) bool {
		if proposedSet[c] {
			return proposedKind.IsStructural()
		}
		return snap.Get(c).IsStructural()
	}

	// Seed from every anchor cell, in traversal order.
	sx, sy, sz := snap.Size()
	visited := make(map[world.Vec3i]bool)
	var queue []world.Vec3i
	for y := 0; y < sy; y++ {
		for z := 0; z < sz; z++ {
			for x := 0; x < sx; x++ {
				c := world.Vec3i{X: x, Y: y, Z: z}
				if cats.Anchor(snap.Get(c)) {
					visited[c] = true
					queue = append(queue, c)
				}
			}
		}
	}
	if len(queue) == 0 {
		return false // no ground anywhere
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, off := range world.FaceOffsets {
			nb := cur.Add(off)
			if visited[nb] {
				continue
			}
			if !snap.InBounds(nb) && !proposedSet[nb] {
				continue
			}
			if isStructural(nb) {
				visited[nb] = true
				queue = append(queue, nb)
			}
		}
	}

	for _, c := range proposed {
		if !visited[c] {
			return false
		}
	}
	return true
}

// connectedFrom walks outward from the seed cells through face-adjacent
// structural cells of the hypothetical region and returns the visited
// component plus whether any anchor cell was reached. kindAt resolves a
// cell's hypothetical material; inBounds bounds the walk for non-proposal
// cells.
func connectedFrom(seeds []world.Vec3i, kindAt func(world.Vec3i) world.VoxelKind,
	inBounds func(world.Vec3i) bool, cats *catalogs.Catalogs) (map[world.Vec3i]world.VoxelKind, bool) {
	visited := make(map[world.Vec3i]world.VoxelKind)
	var queue []world.Vec3i
	reachedGround := false

	for _, c := range seeds {
		if _, seen := visited[c]; seen {
			continue
		}
		kind := kindAt(c)
		if !kind.IsStructural() {
			continue
		}
		visited[c] = kind
		queue = append(queue, c)
		if cats.Anchor(kind) {
			reachedGround = true
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, off := range world.FaceOffsets {
			nb := cur.Add(off)
			if _, seen := visited[nb]; seen {
				continue
			}
			if !inBounds(nb) {
				continue
			}
			kind := kindAt(nb)
			if !kind.IsStructural() {
				continue
			}
			visited[nb] = kind
			queue = append(queue, nb)
			if cats.Anchor(kind) {
				reachedGround = true
			}
		}
	}
	return visited, reachedGround
}
