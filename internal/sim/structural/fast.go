package structural

import (
	"fmt"

	"greatwood.gg/internal/sim/catalogs"
	"greatwood.gg/internal/sim/tuning"
	"greatwood.gg/internal/sim/world"
)

// ValidateBlueprintFast is the lightweight preview check used during
// interactive placement: a BFS collects the connected component around the
// proposal (simultaneously checking ground connectivity), then weight-flow
// analysis alone scores it, with no relaxation passes. Orders of magnitude
// cheaper than the full solve and good enough for a live overlay, but never
// for the authoritative accept/reject decision.
func ValidateBlueprintFast(snap world.Snapshot, faces map[world.Vec3i]world.FaceSet,
	prop Proposal, cats *catalogs.Catalogs, tun tuning.Tuning) Validation {
	if len(prop.Cells) == 0 && len(prop.Faces) == 0 {
		return Validation{Tier: TierOk, StressMap: map[world.Vec3i]float32{}, Message: "no cells proposed"}
	}

	for _, c := range prop.Cells {
		if !snap.InBounds(c) {
			return Validation{
				Tier:      TierBlocked,
				StressMap: map[world.Vec3i]float32{},
				Message:   fmt.Sprintf("proposal cell (%d,%d,%d) is outside the buildable region", c.X, c.Y, c.Z),
			}
		}
	}

	overlay := overlayFor(snap, prop)

	seeds := make([]world.Vec3i, 0, len(prop.Cells)+len(prop.Faces))
	seeds = append(seeds, prop.Cells...)
	for c := range prop.Faces {
		seeds = append(seeds, c)
	}

	visited, reachedGround := connectedFrom(seeds, overlay.Get, overlay.InBounds, cats)
	if !reachedGround {
		return Validation{
			Tier:      TierBlocked,
			StressMap: map[world.Vec3i]float32{},
			Message:   "structure is not connected to the ground",
		}
	}

	merged := mergeFaces(faces, prop.Faces)
	n := buildNetworkFromSet(visited, merged, cats, tun)

	flow := make([]float32, n.NumSprings())
	weightFlowStresses(n, tun.Gravity, adjacency(n), flow)

	focus := focusCells(overlay, prop)
	worst, stressMap := stressOverCells(n, flow, focus)
	return classify(worst, stressMap, tun)
}

// ValidateCarveFast checks whether removing cells would disconnect or
// overstress the surviving structure. The BFS is seeded from the carved
// cells' surviving structural neighbors; anchor cells join the visited set
// when the walk touches them but are never expanded, so the search stays
// local to the affected component instead of flooding the floor. A second
// walk from the visited anchors then proves every surviving cell still has
// a ground path: a base carve and a mid-column carve both strand cells
// above the cut, and both must come back Blocked.
func ValidateCarveFast(snap world.Snapshot, faces map[world.Vec3i]world.FaceSet,
	carved []world.Vec3i, cats *catalogs.Catalogs, tun tuning.Tuning) Validation {
	if len(carved) == 0 {
		return Validation{Tier: TierOk, StressMap: map[world.Vec3i]float32{}, Message: "no cells to carve"}
	}

	carvedSet := make(map[world.Vec3i]bool, len(carved))
	for _, c := range carved {
		carvedSet[c] = true
	}
	kindAt := func(c world.Vec3i) world.VoxelKind {
		if carvedSet[c] {
			return world.Air
		}
		return snap.Get(c)
	}

	visited := make(map[world.Vec3i]world.VoxelKind)
	var queue []world.Vec3i

	visit := func(c world.Vec3i) {
		kind := kindAt(c)
		if !kind.IsStructural() {
			return
		}
		if _, seen := visited[c]; seen {
			return
		}
		visited[c] = kind
		if !cats.Anchor(kind) {
			queue = append(queue, c)
		}
	}

	for _, c := range carved {
		for _, off := range world.FaceOffsets {
			nb := c.Add(off)
			if carvedSet[nb] || !snap.InBounds(nb) {
				continue
			}
			visit(nb)
		}
	}

	if len(visited) == 0 {
		// Carving non-structural or isolated cells.
		return Validation{Tier: TierOk, StressMap: map[world.Vec3i]float32{}, Message: "structure is sound"}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, off := range world.FaceOffsets {
			nb := cur.Add(off)
			if carvedSet[nb] || !snap.InBounds(nb) {
				continue
			}
			visit(nb)
		}
	}

	if stranded(visited, cats) {
		return Validation{
			Tier:      TierBlocked,
			StressMap: map[world.Vec3i]float32{},
			Message:   "carving would disconnect structure from the ground",
		}
	}

	n := buildNetworkFromSet(visited, faces, cats, tun)

	flow := make([]float32, n.NumSprings())
	weightFlowStresses(n, tun.Gravity, adjacency(n), flow)

	// The carve has no proposal cells in the surviving structure, so the
	// whole affected component is scored.
	focus := make(map[world.Vec3i]bool, len(visited))
	for c := range visited {
		focus[c] = true
	}
	worst, stressMap := stressOverCells(n, flow, focus)
	v := classify(worst, stressMap, tun)
	if v.Tier == TierBlocked {
		v.Message = fmt.Sprintf("carving would cause structural failure: peak stress %.1fx exceeds limit %.1fx",
			worst, tun.BlockStressRatio)
	}
	return v
}

// stranded reports whether any visited cell has no path to a visited anchor
// through the visited set.
func stranded(visited map[world.Vec3i]world.VoxelKind, cats *catalogs.Catalogs) bool {
	grounded := make(map[world.Vec3i]bool, len(visited))
	var queue []world.Vec3i
	for c, kind := range visited {
		if cats.Anchor(kind) {
			grounded[c] = true
			queue = append(queue, c)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, off := range world.FaceOffsets {
			nb := cur.Add(off)
			if _, ok := visited[nb]; ok && !grounded[nb] {
				grounded[nb] = true
				queue = append(queue, nb)
			}
		}
	}
	return len(grounded) != len(visited)
}
