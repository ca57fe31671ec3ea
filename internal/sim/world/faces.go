package world

import "fmt"

// FaceDir identifies one side of a cell.
type FaceDir uint8

const (
	PosX FaceDir = iota
	NegX
	PosY
	NegY
	PosZ
	NegZ
)

// FaceDirs lists all six directions in a fixed order.
var FaceDirs = [6]FaceDir{PosX, NegX, PosY, NegY, PosZ, NegZ}

func (d FaceDir) Offset() Vec3i {
	switch d {
	case PosX:
		return Vec3i{X: 1}
	case NegX:
		return Vec3i{X: -1}
	case PosY:
		return Vec3i{Y: 1}
	case NegY:
		return Vec3i{Y: -1}
	case PosZ:
		return Vec3i{Z: 1}
	default:
		return Vec3i{Z: -1}
	}
}

func (d FaceDir) Opposite() FaceDir {
	switch d {
	case PosX:
		return NegX
	case NegX:
		return PosX
	case PosY:
		return NegY
	case NegY:
		return PosY
	case PosZ:
		return NegZ
	default:
		return PosZ
	}
}

// FaceDirFromOffset maps a unit axis offset back to a direction.
func FaceDirFromOffset(o Vec3i) (FaceDir, bool) {
	for _, d := range FaceDirs {
		if d.Offset() == o {
			return d, true
		}
	}
	return PosX, false
}

func (d FaceDir) String() string {
	switch d {
	case PosX:
		return "+X"
	case NegX:
		return "-X"
	case PosY:
		return "+Y"
	case NegY:
		return "-Y"
	case PosZ:
		return "+Z"
	default:
		return "-Z"
	}
}

// FaceKind is the structural role assigned to one side of an interior cell.
type FaceKind uint8

const (
	FaceOpen FaceKind = iota
	FaceWall
	FaceWindow
	FaceDoor
	FaceFloor
	FaceCeiling
)

var faceNames = [...]string{
	FaceOpen:    "OPEN",
	FaceWall:    "WALL",
	FaceWindow:  "WINDOW",
	FaceDoor:    "DOOR",
	FaceFloor:   "FLOOR",
	FaceCeiling: "CEILING",
}

func (k FaceKind) String() string {
	if int(k) < len(faceNames) {
		return faceNames[k]
	}
	return fmt.Sprintf("FACE_%d", uint8(k))
}

func ParseFaceKind(s string) (FaceKind, error) {
	for k, name := range faceNames {
		if name == s {
			return FaceKind(k), nil
		}
	}
	return FaceOpen, fmt.Errorf("unknown face kind %q", s)
}

// FaceKinds lists every face kind in palette order.
func FaceKinds() []FaceKind {
	out := make([]FaceKind, len(faceNames))
	for i := range faceNames {
		out[i] = FaceKind(i)
	}
	return out
}

// FaceSet holds the six face assignments of one interior cell.
// The zero value is all-Open.
type FaceSet [6]FaceKind

func (f FaceSet) Get(d FaceDir) FaceKind     { return f[d] }
func (f *FaceSet) Set(d FaceDir, k FaceKind) { f[d] = k }
