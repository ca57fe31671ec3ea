package world

import "fmt"

// VoxelKind identifies the material occupying one cell of the grid.
type VoxelKind uint8

const (
	Air VoxelKind = iota
	ForestFloor
	Dirt
	Trunk
	Branch
	Root
	GrownPlatform
	GrownWall
	GrownStairs
	Bridge
	Leaf
	Fruit
	// BuildingInterior marks a furnished room cell. It carries no material of
	// its own; its structural behavior comes from the faces assigned to it.
	BuildingInterior
)

var voxelNames = [...]string{
	Air:              "AIR",
	ForestFloor:      "FOREST_FLOOR",
	Dirt:             "DIRT",
	Trunk:            "TRUNK",
	Branch:           "BRANCH",
	Root:             "ROOT",
	GrownPlatform:    "GROWN_PLATFORM",
	GrownWall:        "GROWN_WALL",
	GrownStairs:      "GROWN_STAIRS",
	Bridge:           "BRIDGE",
	Leaf:             "LEAF",
	Fruit:            "FRUIT",
	BuildingInterior: "BUILDING_INTERIOR",
}

func (k VoxelKind) String() string {
	if int(k) < len(voxelNames) {
		return voxelNames[k]
	}
	return fmt.Sprintf("VOXEL_%d", uint8(k))
}

// ParseVoxelKind resolves a catalog id to a VoxelKind.
func ParseVoxelKind(s string) (VoxelKind, error) {
	for k, name := range voxelNames {
		if name == s {
			return VoxelKind(k), nil
		}
	}
	return Air, fmt.Errorf("unknown voxel kind %q", s)
}

// IsStructural reports whether cells of this kind participate in the
// structural network. Leaves and fruit hang off the tree but carry nothing.
func (k VoxelKind) IsStructural() bool {
	switch k {
	case Air, Leaf, Fruit:
		return false
	}
	return true
}

// VoxelKinds lists every kind in palette order.
func VoxelKinds() []VoxelKind {
	out := make([]VoxelKind, len(voxelNames))
	for i := range voxelNames {
		out[i] = VoxelKind(i)
	}
	return out
}
