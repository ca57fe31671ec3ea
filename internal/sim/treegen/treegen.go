// Package treegen grows organic tree geometry into a voxel grid: trunk,
// branches, roots, and leaf canopy, all produced by one energy-based segment
// growth model processed through a FIFO work queue.
//
// Determinism contract: every random draw comes from the caller's rng.Rand,
// the queue is processed breadth-first, and draws happen in a fixed pattern
// per step. Two calls with equal profile, site, and generator state produce
// identical grids.
package treegen

import (
	"math"

	"github.com/ojrac/opensimplex-go"

	"greatwood.gg/internal/sim/rng"
	"greatwood.gg/internal/sim/world"
)

// Result lists the placed cells by role, in placement order.
type Result struct {
	Trunk  []world.Vec3i
	Branch []world.Vec3i
	Root   []world.Vec3i
	Leaf   []world.Vec3i
}

type vec3 [3]float32

func vadd(a, b vec3) vec3    { return vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func vscale(v vec3, s float32) vec3 { return vec3{v[0] * s, v[1] * s, v[2] * s} }
func vdot(a, b vec3) float32 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func vcross(a, b vec3) vec3 {
	return vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func vlen(v vec3) float32 {
	return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
}

func vnorm(v vec3) vec3 {
	l := vlen(v)
	if l < 1e-10 {
		return vec3{0, 1, 0}
	}
	return vec3{v[0] / l, v[1] / l, v[2] / l}
}

// rotate applies Rodrigues' formula: v rotated around unit axis by angle
// radians.
func rotate(v, axis vec3, angle float32) vec3 {
	cosA := float32(math.Cos(float64(angle)))
	sinA := float32(math.Sin(float64(angle)))
	d := vdot(axis, v)
	c := vcross(axis, v)
	return vec3{
		v[0]*cosA + c[0]*sinA + axis[0]*d*(1-cosA),
		v[1]*cosA + c[1]*sinA + axis[1]*d*(1-cosA),
		v[2]*cosA + c[2]*sinA + axis[2]*d*(1-cosA),
	}
}

// perpendicular picks a deterministic unit vector perpendicular to v, using
// the coordinate axis least aligned with it.
func perpendicular(v vec3) vec3 {
	ax, ay, az := abs32(v[0]), abs32(v[1]), abs32(v[2])
	var partner vec3
	switch {
	case ax <= ay && ax <= az:
		partner = vec3{1, 0, 0}
	case ay <= az:
		partner = vec3{0, 1, 0}
	default:
		partner = vec3{0, 0, 1}
	}
	return vnorm(vcross(v, partner))
}

func randomPerpendicular(v vec3, r *rng.Rand) vec3 {
	perp := perpendicular(v)
	angle := r.Float32() * 2 * math.Pi
	return rotate(perp, v, angle)
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func roundToVoxel(p vec3) world.Vec3i {
	return world.Vec3i{
		X: int(math.Round(float64(p[0]))),
		Y: int(math.Round(float64(p[1]))),
		Z: int(math.Round(float64(p[2]))),
	}
}

// segmentJob is one pending growth job on the FIFO queue.
type segmentJob struct {
	position vec3
	// direction is the current unit growth direction.
	direction vec3
	energy    float32
	// generation 0 is the trunk; 1+ are branches.
	generation int
	// deflectionAxis accumulates wobble state for coherent curvature.
	deflectionAxis vec3
	isRoot         bool
}

// Placement priority: trunk > branch > root > leaf > everything else.
// A higher-priority cell is never overwritten, so overlapping segments merge
// instead of gnawing holes into each other.
func voxelPriority(k world.VoxelKind) int {
	switch k {
	case world.Trunk:
		return 4
	case world.Branch:
		return 3
	case world.Root:
		return 2
	case world.Leaf:
		return 1
	}
	return 0
}

type generator struct {
	g       *world.Grid
	profile Profile
	r       *rng.Rand

	queue       []segmentJob
	blobCenters []vec3
	out         Result
}

// Grow generates one tree centered in the grid: forest floor and terrain
// first, then trunk and root seeds processed through the queue, then leaf
// blobs at branch terminals. The grid is written in place; existing cells
// are only overwritten per placement priority.
func Grow(g *world.Grid, profile Profile, site Site, r *rng.Rand) Result {
	sx, _, sz := g.Size()
	cx := float32(sx) / 2
	cz := float32(sz) / 2

	placeGround(g, site, world.Vec3i{X: int(cx), Y: 0, Z: int(cz)}, r)

	gen := &generator{g: g, profile: profile, r: r}

	trunkEnergy := profile.Growth.InitialEnergy * (1 - profile.Roots.EnergyFraction)
	trunkDir := vnorm(vec3(profile.Trunk.InitialDirection))
	gen.queue = append(gen.queue, segmentJob{
		position:       vec3{cx, 1, cz},
		direction:      trunkDir,
		energy:         trunkEnergy,
		deflectionAxis: perpendicular(trunkDir),
	})

	rootEnergy := profile.Growth.InitialEnergy * profile.Roots.EnergyFraction
	if profile.Roots.InitialCount > 0 && rootEnergy > 0 {
		perRoot := rootEnergy / float32(profile.Roots.InitialCount)
		for i := 0; i < profile.Roots.InitialCount; i++ {
			angle := float64(i) * 2 * math.Pi / float64(profile.Roots.InitialCount)
			pitch := float64(profile.Roots.InitialAngle)
			dir := vnorm(vec3{
				float32(math.Cos(angle) * math.Cos(pitch)),
				float32(-math.Sin(pitch)),
				float32(math.Sin(angle) * math.Cos(pitch)),
			})
			gen.queue = append(gen.queue, segmentJob{
				position:       vec3{cx, 1, cz},
				direction:      dir,
				energy:         perRoot,
				deflectionAxis: perpendicular(dir),
				isRoot:         true,
			})
		}
	}

	for len(gen.queue) > 0 {
		job := gen.queue[0]
		gen.queue = gen.queue[1:]
		gen.growSegment(job)
	}

	gen.placeLeafBlobs()
	return gen.out
}

// placeGround fills the forest floor plane at y=0 and, when the site enables
// it, raises dirt mounds above it from noise. Both materials are anchors, so
// terrain height never changes what counts as ground contact.
func placeGround(g *world.Grid, site Site, center world.Vec3i, r *rng.Rand) {
	var noise opensimplex.Noise32
	if site.TerrainMaxHeight > 0 {
		noise = opensimplex.NewNormalized32(int64(r.Uint64()))
	}
	for dx := -site.FloorExtent; dx <= site.FloorExtent; dx++ {
		for dz := -site.FloorExtent; dz <= site.FloorExtent; dz++ {
			c := world.Vec3i{X: center.X + dx, Y: 0, Z: center.Z + dz}
			g.Set(c, world.ForestFloor)
			if noise == nil {
				continue
			}
			h := int(noise.Eval2(float32(c.X)/site.TerrainNoiseScale,
				float32(c.Z)/site.TerrainNoiseScale) * float32(site.TerrainMaxHeight+1))
			if h > site.TerrainMaxHeight {
				h = site.TerrainMaxHeight
			}
			for y := 1; y <= h; y++ {
				g.Set(world.Vec3i{X: c.X, Y: y, Z: c.Z}, world.Dirt)
			}
		}
	}
}

func (gen *generator) growSegment(job segmentJob) {
	p := &gen.profile
	initialEnergy := job.energy
	stepLen := p.Growth.StepLength
	perStep := p.Growth.EnergyPerStep

	steps := 0
	prevCenter := roundToVoxel(job.position)

	for job.energy > 0 {
		radius := float32(math.Sqrt(float64(job.energy * p.Growth.EnergyToRadius)))
		if radius < p.Growth.MinRadius {
			radius = p.Growth.MinRadius
		}
		if job.generation == 0 && !job.isRoot && p.Trunk.BaseFlare > 0 {
			height := job.position[1] - 1
			if height < 5 {
				f := 1 - height/5
				if f < 0 {
					f = 0
				}
				radius *= 1 + p.Trunk.BaseFlare*f
			}
		}

		kind := world.Branch
		switch {
		case job.isRoot:
			kind = world.Root
		case job.generation == 0:
			kind = world.Trunk
		}

		// A step can move the rounded center diagonally across two or three
		// axes, which would leave only edge or corner contact. Fill the gap
		// along a 6-connected path first so every placed cell shares a face
		// with the segment.
		cur := roundToVoxel(job.position)
		gen.bridge(prevCenter, cur, radius, kind)
		prevCenter = cur

		gen.crossSection(job.position, radius, kind)

		progress := 1 - job.energy/initialEnergy
		if progress >= p.Split.MinProgress && !job.isRoot {
			if gen.r.Float32() < p.Split.ChanceBase {
				for i := 0; i < p.Split.Count; i++ {
					childEnergy := job.energy * p.Split.EnergyRatio
					if childEnergy <= perStep {
						continue
					}
					offset := p.Split.Angle +
						gen.r.RangeF32(-p.Split.AngleVariance, p.Split.AngleVariance)
					perp := randomPerpendicular(job.direction, gen.r)
					childDir := vnorm(rotate(job.direction, perp, offset))
					gen.queue = append(gen.queue, segmentJob{
						position:       job.position,
						direction:      childDir,
						energy:         childEnergy,
						generation:     job.generation + 1,
						deflectionAxis: perpendicular(childDir),
					})
					job.energy -= childEnergy
				}
			}
		} else if job.isRoot {
			// Roots never split but still draw the roll, keeping the draw
			// pattern per step fixed regardless of segment role.
			_ = gen.r.Float32()
		}

		job.energy -= perStep
		if job.energy <= 0 {
			break
		}

		gravitropism := p.Curvature.Gravitropism
		if job.isRoot {
			gravitropism = -p.Roots.Gravitropism
		}
		job.direction = vnorm(vadd(job.direction, vec3{0, gravitropism, 0}))

		if job.isRoot && p.Roots.SurfaceTendency > 0 {
			yOffset := job.position[1]
			bias := vec3{0, -yOffset * p.Roots.SurfaceTendency * 0.1, 0}
			job.direction = vnorm(vadd(job.direction, bias))
		}

		if p.Curvature.RandomDeflection > 0 {
			newAxis := randomPerpendicular(job.direction, gen.r)
			coh := p.Curvature.DeflectionCoherence
			job.deflectionAxis = vnorm(vadd(
				vscale(job.deflectionAxis, coh),
				vscale(newAxis, 1-coh)))
			job.direction = vnorm(rotate(job.direction, job.deflectionAxis,
				p.Curvature.RandomDeflection*gen.r.RangeF32(-1, 1)))
		}

		job.position = vadd(job.position, vscale(job.direction, stepLen))
		steps++
	}

	if !job.isRoot && steps > 0 {
		gen.blobCenters = append(gen.blobCenters, job.position)
	}
}

// bridge fills intermediate cross-sections along the shortest 6-connected
// path between two voxel centers, stepping greedily along the axis with the
// largest remaining gap. Endpoints are the caller's responsibility.
func (gen *generator) bridge(from, to world.Vec3i, radius float32, kind world.VoxelKind) {
	cur := from
	for cur != to {
		dx, dy, dz := to.X-cur.X, to.Y-cur.Y, to.Z-cur.Z
		switch {
		case absInt(dx) >= absInt(dy) && absInt(dx) >= absInt(dz):
			cur.X += sign(dx)
		case absInt(dy) >= absInt(dz):
			cur.Y += sign(dy)
		default:
			cur.Z += sign(dz)
		}
		if cur == to {
			break
		}
		gen.crossSection(vec3{float32(cur.X), float32(cur.Y), float32(cur.Z)}, radius, kind)
	}
}

// crossSection places a filled horizontal disc of cells around the center.
func (gen *generator) crossSection(center vec3, radius float32, kind world.VoxelKind) {
	c := roundToVoxel(center)
	r := int(math.Round(float64(radius)))
	if r <= 0 {
		gen.place(c, kind)
		return
	}
	rSq := radius * radius
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			if float32(dx*dx+dz*dz) <= rSq {
				gen.place(world.Vec3i{X: c.X + dx, Y: c.Y, Z: c.Z + dz}, kind)
			}
		}
	}
}

func (gen *generator) place(c world.Vec3i, kind world.VoxelKind) {
	if !gen.g.InBounds(c) {
		return
	}
	if voxelPriority(gen.g.Get(c)) >= voxelPriority(kind) {
		return
	}
	gen.g.Set(c, kind)
	switch kind {
	case world.Trunk:
		gen.out.Trunk = append(gen.out.Trunk, c)
	case world.Branch:
		gen.out.Branch = append(gen.out.Branch, c)
	case world.Root:
		gen.out.Root = append(gen.out.Root, c)
	case world.Leaf:
		gen.out.Leaf = append(gen.out.Leaf, c)
	}
}

// placeLeafBlobs fills canopy blobs at the recorded branch terminals. One
// roll is drawn per candidate cell whether or not it lands, so canopy
// density tweaks never shift the draws of anything generated afterward.
func (gen *generator) placeLeafBlobs() {
	p := &gen.profile
	density := p.Leaves.Density * p.Leaves.CanopyDensity
	radius := p.Leaves.Size
	rSq := float32(radius * radius)
	cloud := p.Leaves.Shape == LeafCloud

	for _, center := range gen.blobCenters {
		c := roundToVoxel(center)
		for dx := -radius; dx <= radius; dx++ {
			for dy := -radius; dy <= radius; dy++ {
				for dz := -radius; dz <= radius; dz++ {
					roll := gen.r.Float32()
					fy := float32(dy)
					if cloud {
						fy *= 1.5
					}
					distSq := float32(dx*dx+dz*dz) + fy*fy
					if distSq > rSq || roll >= density {
						continue
					}
					gen.place(world.Vec3i{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}, world.Leaf)
				}
			}
		}
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
