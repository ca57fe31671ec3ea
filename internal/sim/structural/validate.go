package structural

import (
	"fmt"

	"greatwood.gg/internal/sim/catalogs"
	"greatwood.gg/internal/sim/tuning"
	"greatwood.gg/internal/sim/world"
)

// Tier is the three-level outcome of construction validation.
type Tier uint8

const (
	TierOk Tier = iota
	TierWarning
	TierBlocked
)

func (t Tier) String() string {
	switch t {
	case TierOk:
		return "OK"
	case TierWarning:
		return "WARNING"
	default:
		return "BLOCKED"
	}
}

// Validation is the result of checking one proposal.
type Validation struct {
	Tier Tier
	// StressMap holds, for each proposal cell and immediate structural
	// neighbor, the worst stress ratio of any spring touching that cell.
	StressMap map[world.Vec3i]float32
	// Message is a human-readable explanation for display to the player.
	Message string
}

// Proposal is a hypothetical construction: cells to add with a target
// material, and/or face assignments for interior cells.
type Proposal struct {
	Cells    []world.Vec3i
	Material world.VoxelKind
	Faces    map[world.Vec3i]world.FaceSet
}

// ValidateGrown checks a freshly generated structure: every structural cell
// must reach an anchor, and no spring may exceed its failure threshold under
// the structure's own weight. An empty region is trivially valid. The
// returned error wraps ErrDisconnected or ErrOverstressed.
func ValidateGrown(snap world.Snapshot, faces map[world.Vec3i]world.FaceSet,
	cats *catalogs.Catalogs, tun tuning.Tuning) error {
	n := BuildNetwork(snap, faces, cats, tun)
	if n.NumNodes() == 0 {
		return nil // nothing to fail
	}
	if n.PinnedCount() == 0 {
		return fmt.Errorf("%w: region has no anchor cells", ErrDisconnected)
	}
	if c, ok := firstUnreachable(n); ok {
		return fmt.Errorf("%w: cell (%d,%d,%d) has no path to an anchor",
			ErrDisconnected, c.X, c.Y, c.Z)
	}

	res := Solve(n, tun)
	if res.AnyFailed {
		return fmt.Errorf("%w: peak stress %.2fx of limit", ErrOverstressed, res.MaxStressRatio)
	}
	return nil
}

// firstUnreachable BFS-walks the spring graph from the pinned nodes and
// returns the first node (in coordinate order) no spring path reaches.
func firstUnreachable(n *Network) (world.Vec3i, bool) {
	adj := adjacency(n)
	reached := make([]bool, n.NumNodes())
	var queue []int
	for i := range reached {
		if n.Node(i).Pinned {
			reached[i] = true
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, a := range adj[cur] {
			if !reached[a.other] {
				reached[a.other] = true
				queue = append(queue, a.other)
			}
		}
	}
	for i, ok := range reached {
		if !ok {
			return n.Coord(i), true
		}
	}
	return world.Vec3i{}, false
}

// ValidateBlueprint is the authoritative construction check: connectivity
// pre-check, full relaxation solve over existing structure plus proposal,
// and tiered classification on the worst stress ratio among springs touching
// the proposal or its immediate neighbors. Thresholds are inclusive at the
// lower-severity side: a ratio exactly at warn_stress_ratio is Ok, exactly
// at block_stress_ratio is Warning.
//
// Pure query: neither the snapshot nor any shared state is mutated.
func ValidateBlueprint(snap world.Snapshot, faces map[world.Vec3i]world.FaceSet,
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

	if !FloodFillConnected(snap, prop.Cells, prop.Material, cats) {
		return Validation{
			Tier:      TierBlocked,
			StressMap: map[world.Vec3i]float32{},
			Message:   "structure is not connected to the ground",
		}
	}

	overlay := overlayFor(snap, prop)
	merged := mergeFaces(faces, prop.Faces)

	n := BuildNetwork(overlay, merged, cats, tun)
	res := Solve(n, tun)

	focus := focusCells(overlay, prop)
	worst, stressMap := stressOverCells(n, res.SpringStresses, focus)
	return classify(worst, stressMap, tun)
}

func overlayFor(snap world.Snapshot, prop Proposal) *world.Overlay {
	proposed := make(map[world.Vec3i]world.VoxelKind, len(prop.Cells))
	for _, c := range prop.Cells {
		proposed[c] = prop.Material
	}
	return &world.Overlay{Base: snap, Proposed: proposed}
}

func mergeFaces(base, extra map[world.Vec3i]world.FaceSet) map[world.Vec3i]world.FaceSet {
	if len(extra) == 0 {
		return base
	}
	merged := make(map[world.Vec3i]world.FaceSet, len(base)+len(extra))
	for c, fs := range base {
		merged[c] = fs
	}
	for c, fs := range extra {
		merged[c] = fs
	}
	return merged
}

// focusCells collects the proposal cells plus every face-adjacent structural
// cell of the hypothetical region. Classification and the stress map are
// restricted to this set: a proposal is judged by the load it adds near
// itself, not by pre-existing stress on the far side of the region.
func focusCells(snap world.Snapshot, prop Proposal) map[world.Vec3i]bool {
	focus := make(map[world.Vec3i]bool, 7*(len(prop.Cells)+len(prop.Faces)))
	add := func(c world.Vec3i) {
		focus[c] = true
		for _, off := range world.FaceOffsets {
			nb := c.Add(off)
			if snap.Get(nb).IsStructural() {
				focus[nb] = true
			}
		}
	}
	for _, c := range prop.Cells {
		add(c)
	}
	for c := range prop.Faces {
		add(c)
	}
	return focus
}

// stressOverCells returns the worst ratio among springs touching a focus
// cell, and the per-cell worst ratios for the stress map.
func stressOverCells(n *Network, stresses []float32, focus map[world.Vec3i]bool) (float32, map[world.Vec3i]float32) {
	worst := float32(0)
	m := make(map[world.Vec3i]float32, len(focus))
	for si, s := range n.springs {
		stress := stresses[si]
		ca := n.Coord(s.A)
		cb := n.Coord(s.B)
		touched := false
		if focus[ca] {
			touched = true
			if stress > m[ca] {
				m[ca] = stress
			}
		}
		if focus[cb] {
			touched = true
			if stress > m[cb] {
				m[cb] = stress
			}
		}
		if touched && stress > worst {
			worst = stress
		}
	}
	return worst, m
}

func classify(worst float32, stressMap map[world.Vec3i]float32, tun tuning.Tuning) Validation {
	switch {
	case worst > tun.BlockStressRatio:
		return Validation{
			Tier:      TierBlocked,
			StressMap: stressMap,
			Message: fmt.Sprintf("structure would fail: peak stress %.1fx exceeds limit %.1fx",
				worst, tun.BlockStressRatio),
		}
	case worst > tun.WarnStressRatio:
		return Validation{
			Tier:      TierWarning,
			StressMap: stressMap,
			Message:   fmt.Sprintf("structure is under significant stress (%.1fx of limit)", worst),
		}
	default:
		return Validation{Tier: TierOk, StressMap: stressMap, Message: "structure is sound"}
	}
}
