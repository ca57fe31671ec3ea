package world

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

// Less orders coordinates the way the solver traverses the grid: y outer,
// z mid, x inner. Every ordered container of coordinates in the sim uses
// this ordering so iteration is identical across runs.
func (v Vec3i) Less(o Vec3i) bool {
	if v.Y != o.Y {
		return v.Y < o.Y
	}
	if v.Z != o.Z {
		return v.Z < o.Z
	}
	return v.X < o.X
}

func Manhattan(a, b Vec3i) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y) + absInt(a.Z-b.Z)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// FaceOffsets lists the six face-adjacent neighbor offsets. Edge and corner
// neighbors never count as adjacent: those contacts carry no area between
// unit cubes.
var FaceOffsets = [6]Vec3i{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}
