package structural

import (
	"math"
	"sort"

	"greatwood.gg/internal/sim/tuning"
)

// SolveResult reports per-spring stress after relaxation.
type SolveResult struct {
	// SpringStresses holds one stress ratio per spring, in spring order.
	// A ratio above 1.0 means that connection fails under gravity alone.
	SpringStresses []float32
	MaxStressRatio float32
	AnyFailed      bool
}

// Solve runs the authoritative solve: exactly tun.MaxIterations relaxation
// passes followed by stress extraction.
func Solve(n *Network, tun tuning.Tuning) SolveResult {
	return solve(n, tun, tun.MaxIterations)
}

// SolvePreview is the reduced-fidelity interactive mode. It runs the same
// algorithm with tun.PreviewIterations passes and must never back an
// accept/reject decision.
func SolvePreview(n *Network, tun tuning.Tuning) SolveResult {
	return solve(n, tun, tun.PreviewIterations)
}

type adjEntry struct {
	spring int
	other  int
}

// adjacency builds the per-node list of (spring, other endpoint) pairs in
// spring order, which fixes the force accumulation order per node.
func adjacency(n *Network) [][]adjEntry {
	adj := make([][]adjEntry, n.NumNodes())
	for si, s := range n.springs {
		adj[s.A] = append(adj[s.A], adjEntry{spring: si, other: s.B})
		adj[s.B] = append(adj[s.B], adjEntry{spring: si, other: s.A})
	}
	return adj
}

// solve runs Gauss-Seidel relaxation for a fixed pass count: each node is
// updated in place, so later nodes in a pass see earlier updates. Damping is
// adaptive per node (dampingFactor / summed neighbor stiffness).
//
// The iteration count is fixed rather than convergence-checked: a "close
// enough" comparison could flip between runs on rounding and break the
// determinism contract. All arithmetic here is +,-,*,/ and sqrt, so a
// fixed-point representation could replace float32 without touching the
// structure of the pass.
func solve(n *Network, tun tuning.Tuning, iterations int) SolveResult {
	adj := adjacency(n)

	kEff := make([]float32, n.NumNodes())
	for _, s := range n.springs {
		kEff[s.A] += s.Stiffness
		kEff[s.B] += s.Stiffness
	}

	gravity := tun.Gravity
	for iter := 0; iter < iterations; iter++ {
		for i := range n.nodes {
			if n.nodes[i].Pinned || kEff[i] <= 0 {
				continue
			}

			fx := float32(0)
			fy := -n.nodes[i].Mass * gravity
			fz := float32(0)

			pi := n.nodes[i].Pos
			for _, a := range adj[i] {
				s := &n.springs[a.spring]
				po := n.nodes[a.other].Pos

				dx := po[0] - pi[0]
				dy := po[1] - pi[1]
				dz := po[2] - pi[2]
				dist := float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
				if dist < 1e-10 {
					continue
				}

				fMag := s.Stiffness * (dist - s.RestLength)
				fx += fMag * dx / dist
				fy += fMag * dy / dist
				fz += fMag * dz / dist
			}

			damping := tun.DampingFactor / kEff[i]
			n.nodes[i].Pos[0] = pi[0] + fx*damping
			n.nodes[i].Pos[1] = pi[1] + fy*damping
			n.nodes[i].Pos[2] = pi[2] + fz*damping
		}
	}

	// Deformation stress: how far each spring stretched or compressed.
	deform := make([]float32, n.NumSprings())
	for si, s := range n.springs {
		if s.Strength <= 0 {
			continue
		}
		pa := n.nodes[s.A].Pos
		pb := n.nodes[s.B].Pos
		dx := pb[0] - pa[0]
		dy := pb[1] - pa[1]
		dz := pb[2] - pa[2]
		dist := float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
		ext := dist - s.RestLength
		if ext < 0 {
			ext = -ext
		}
		deform[si] = s.Stiffness * ext / s.Strength
	}

	// Weight-flow stress: axial springs barely deform under a hanging load,
	// so pure deformation misses cantilever bottlenecks. Routing each node's
	// weight down toward the anchors exposes them.
	flow := make([]float32, n.NumSprings())
	weightFlowStresses(n, gravity, adj, flow)

	res := SolveResult{SpringStresses: make([]float32, 0, n.NumSprings())}
	for si := range n.springs {
		stress := deform[si]
		if flow[si] > stress {
			stress = flow[si]
		}
		res.SpringStresses = append(res.SpringStresses, stress)
		if stress > res.MaxStressRatio {
			res.MaxStressRatio = stress
		}
		if stress > 1.0 {
			res.AnyFailed = true
		}
	}
	return res
}

// weightFlowStresses distributes each node's accumulated weight across its
// upstream springs (those leading toward the anchors), proportionally to
// spring stiffness, and records flow/strength per spring.
//
// A BFS from the pinned nodes assigns each node a distance-to-ground; nodes
// are then processed leaves-first so downstream weight arrives before a node
// passes its total on. Parallel paths share load by stiffness. Springs to
// equal-distance neighbors carry no flow themselves but count toward the
// cross-section supporting the node, which lowers the stress reading at
// every member of a widened arm; load forwarding stays conservative, only
// the per-spring reading is scaled. This is what makes a thicker arm
// measurably stronger than a thin one.
func weightFlowStresses(n *Network, gravity float32, adj [][]adjEntry, out []float32) {
	numNodes := n.NumNodes()
	if numNodes == 0 {
		return
	}

	const unreached = math.MaxUint32

	dist := make([]uint32, numNodes)
	for i := range dist {
		dist[i] = unreached
	}
	queue := make([]int, 0, numNodes)
	for i := range n.nodes {
		if n.nodes[i].Pinned {
			dist[i] = 0
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, a := range adj[cur] {
			if dist[a.other] > dist[cur]+1 {
				dist[a.other] = dist[cur] + 1
				queue = append(queue, a.other)
			}
		}
	}

	// Leaves first. Stable tie-break on node index keeps the processing
	// order reproducible.
	order := make([]int, numNodes)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if dist[order[a]] != dist[order[b]] {
			return dist[order[a]] > dist[order[b]]
		}
		return order[a] < order[b]
	})

	load := make([]float32, numNodes)
	for i := range n.nodes {
		load[i] = n.nodes[i].Mass
	}

	for _, i := range order {
		if n.nodes[i].Pinned || dist[i] == unreached || load[i] <= 0 {
			continue
		}

		totalK := float32(0)
		lateralK := float32(0)
		for _, a := range adj[i] {
			switch {
			case dist[a.other] < dist[i]:
				totalK += upstreamK(n.springs[a.spring].Stiffness)
			case dist[a.other] == dist[i]:
				lateralK += n.springs[a.spring].Stiffness
			}
		}
		if totalK <= 0 {
			continue
		}
		support := totalK + lateralK

		for _, a := range adj[i] {
			if dist[a.other] >= dist[i] {
				continue
			}
			s := &n.springs[a.spring]
			k := upstreamK(s.Stiffness)
			if s.Strength > 0 {
				out[a.spring] = load[i] * gravity * (k / support) / s.Strength
			}
			load[a.other] += load[i] * (k / totalK)
		}
	}
}

// upstreamK floors stiffness so zero-stiffness springs still take a share
// instead of dividing by zero.
func upstreamK(k float32) float32 {
	if k < 1e-6 {
		return 1e-6
	}
	return k
}
