package treegen

// Profile groups the generation parameters of one tree species. Presets are
// starting points; hosts may load tweaked profiles from config.
type Profile struct {
	Growth    GrowthParams
	Split     SplitParams
	Curvature CurvatureParams
	Roots     RootParams
	Leaves    LeafParams
	Trunk     TrunkParams
}

// GrowthParams control the shared energy model. Every segment, trunk
// included, grows by the same rules: the trunk is just the first branch.
type GrowthParams struct {
	// InitialEnergy is the whole tree's budget, split between the trunk
	// seed and the root seeds.
	InitialEnergy float32
	// EnergyToRadius converts remaining energy to segment radius:
	// radius = sqrt(energy * EnergyToRadius).
	EnergyToRadius float32
	MinRadius      float32
	StepLength     float32
	EnergyPerStep  float32
}

type SplitParams struct {
	// ChanceBase is the per-step probability of spawning side branches once
	// MinProgress of the segment's energy is spent.
	ChanceBase    float32
	Count         int
	EnergyRatio   float32
	Angle         float32
	AngleVariance float32
	MinProgress   float32
}

type CurvatureParams struct {
	// Gravitropism biases growth direction toward vertical each step.
	Gravitropism float32
	// RandomDeflection is the per-step wobble amplitude; coherence blends
	// each new deflection axis with the previous one so curves stay smooth
	// instead of jittering.
	RandomDeflection    float32
	DeflectionCoherence float32
}

type RootParams struct {
	// EnergyFraction of InitialEnergy goes to the root system, shared
	// equally among InitialCount seeds fanned around the trunk base.
	EnergyFraction float32
	InitialCount   int
	// Gravitropism pulls roots downward (applied negated).
	Gravitropism float32
	// InitialAngle is the downward pitch of root seed directions, radians.
	InitialAngle float32
	// SurfaceTendency pulls wandering roots back toward ground level.
	SurfaceTendency float32
}

// LeafShape selects the blob silhouette at branch terminals.
type LeafShape uint8

const (
	LeafSphere LeafShape = iota
	// LeafCloud is a vertically compressed ellipsoid, wider than tall.
	LeafCloud
)

type LeafParams struct {
	Shape LeafShape
	// Density and CanopyDensity multiply into the per-cell fill chance.
	Density       float32
	Size          int
	CanopyDensity float32
}

type TrunkParams struct {
	// BaseFlare widens the trunk near the ground, fading out by height 5.
	BaseFlare        float32
	InitialDirection [3]float32
}

// FantasyMega is the default preset: a towering tree with a thick trunk,
// wide spread, and a generous root system.
func FantasyMega() Profile {
	return Profile{
		Growth: GrowthParams{
			InitialEnergy:  400.0,
			EnergyToRadius: 0.08,
			MinRadius:      0.5,
			StepLength:     1.0,
			EnergyPerStep:  1.0,
		},
		Split: SplitParams{
			ChanceBase:    0.12,
			Count:         1,
			EnergyRatio:   0.35,
			Angle:         0.7,
			AngleVariance: 0.3,
			MinProgress:   0.15,
		},
		Curvature: CurvatureParams{
			Gravitropism:        0.08,
			RandomDeflection:    0.15,
			DeflectionCoherence: 0.7,
		},
		Roots: RootParams{
			EnergyFraction:  0.15,
			InitialCount:    5,
			Gravitropism:    0.12,
			InitialAngle:    0.3,
			SurfaceTendency: 0.8,
		},
		Leaves: LeafParams{
			Shape:         LeafSphere,
			Density:       0.65,
			Size:          3,
			CanopyDensity: 1.0,
		},
		Trunk: TrunkParams{
			BaseFlare:        0.5,
			InitialDirection: [3]float32{0, 1, 0},
		},
	}
}

// Oak: broad spreading crown, thick trunk, moderate height.
func Oak() Profile {
	return Profile{
		Growth: GrowthParams{
			InitialEnergy:  250.0,
			EnergyToRadius: 0.1,
			MinRadius:      0.5,
			StepLength:     1.0,
			EnergyPerStep:  1.2,
		},
		Split: SplitParams{
			ChanceBase:    0.18,
			Count:         1,
			EnergyRatio:   0.4,
			Angle:         0.9,
			AngleVariance: 0.4,
			MinProgress:   0.1,
		},
		Curvature: CurvatureParams{
			Gravitropism:        0.04,
			RandomDeflection:    0.2,
			DeflectionCoherence: 0.6,
		},
		Roots: RootParams{
			EnergyFraction:  0.12,
			InitialCount:    4,
			Gravitropism:    0.15,
			InitialAngle:    0.2,
			SurfaceTendency: 0.9,
		},
		Leaves: LeafParams{
			Shape:         LeafCloud,
			Density:       0.7,
			Size:          3,
			CanopyDensity: 1.0,
		},
		Trunk: TrunkParams{
			BaseFlare:        0.3,
			InitialDirection: [3]float32{0, 1, 0},
		},
	}
}

// Conifer: tall and narrow, strong central leader, paired short branches.
func Conifer() Profile {
	return Profile{
		Growth: GrowthParams{
			InitialEnergy:  300.0,
			EnergyToRadius: 0.06,
			MinRadius:      0.5,
			StepLength:     1.0,
			EnergyPerStep:  0.8,
		},
		Split: SplitParams{
			ChanceBase:    0.08,
			Count:         2,
			EnergyRatio:   0.2,
			Angle:         0.6,
			AngleVariance: 0.2,
			MinProgress:   0.2,
		},
		Curvature: CurvatureParams{
			Gravitropism:        0.15,
			RandomDeflection:    0.08,
			DeflectionCoherence: 0.8,
		},
		Roots: RootParams{
			EnergyFraction:  0.1,
			InitialCount:    4,
			Gravitropism:    0.15,
			InitialAngle:    0.25,
			SurfaceTendency: 0.8,
		},
		Leaves: LeafParams{
			Shape:         LeafSphere,
			Density:       0.6,
			Size:          2,
			CanopyDensity: 1.0,
		},
		Trunk: TrunkParams{
			BaseFlare:        0.2,
			InitialDirection: [3]float32{0, 1, 0},
		},
	}
}

// Site describes the ground the tree grows on.
type Site struct {
	// FloorExtent is the half-width of the forest floor plane at y=0,
	// centered on the trunk.
	FloorExtent int
	// TerrainMaxHeight caps the dirt mounds raised above the floor by
	// noise. Zero disables terrain variation.
	TerrainMaxHeight int
	// TerrainNoiseScale is the noise cell size in voxels; larger values
	// give smoother, broader mounds.
	TerrainNoiseScale float32
}

// DefaultSite returns the production ground parameters.
func DefaultSite() Site {
	return Site{
		FloorExtent:       20,
		TerrainMaxHeight:  4,
		TerrainNoiseScale: 8.0,
	}
}
