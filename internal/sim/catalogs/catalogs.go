package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"greatwood.gg/internal/sim/world"
)

// Catalogs holds the static material and face property tables the structural
// solver reads. Loaded once at startup and shared read-only by every
// validation call.
type Catalogs struct {
	Materials MaterialCatalog
	Faces     FaceCatalog
}

type MaterialCatalog struct {
	Palette []string
	Index   map[string]uint16
	Defs    map[world.VoxelKind]MaterialDef
	Digest  string
}

// MaterialDef gives the structural scalars of one voxel material. All values
// are unitless and relative: only the ratios between materials matter.
// Zero stiffness and strength means the material carries nothing and the
// network builder emits no spring for it.
type MaterialDef struct {
	ID        string  `json:"id"`
	Density   float32 `json:"density"`
	Stiffness float32 `json:"stiffness"`
	Strength  float32 `json:"strength"`
	// Anchor materials represent ground contact: their nodes are pinned and
	// absorb unlimited force.
	Anchor bool `json:"anchor,omitempty"`
}

type FaceCatalog struct {
	Palette []string
	Index   map[string]uint16
	Defs    map[world.FaceKind]FaceDef
	Digest  string
}

// FaceDef gives the structural scalars of one face kind on an interior cell.
type FaceDef struct {
	ID        string  `json:"id"`
	Weight    float32 `json:"weight"`
	Stiffness float32 `json:"stiffness"`
	Strength  float32 `json:"strength"`
}

// Load reads materials.json and faces.json from configDir.
func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadMaterials(filepath.Join(configDir, "materials.json"), &c.Materials); err != nil {
		return nil, err
	}
	if err := loadFaces(filepath.Join(configDir, "faces.json"), &c.Faces); err != nil {
		return nil, err
	}
	return &c, nil
}

// Material returns the properties of a material kind. The second result is
// false for kinds with no catalog entry (Air, BuildingInterior).
func (c *Catalogs) Material(k world.VoxelKind) (MaterialDef, bool) {
	d, ok := c.Materials.Defs[k]
	return d, ok
}

// Face returns the properties of a face kind.
func (c *Catalogs) Face(k world.FaceKind) (FaceDef, bool) {
	d, ok := c.Faces.Defs[k]
	return d, ok
}

// Anchor reports whether cells of this material are pinned ground contact.
func (c *Catalogs) Anchor(k world.VoxelKind) bool {
	d, ok := c.Materials.Defs[k]
	return ok && d.Anchor
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadMaterials(path string, out *MaterialCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []MaterialDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("materials.json: %w", err)
	}
	out.Defs = map[world.VoxelKind]MaterialDef{}
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("materials.json: empty id")
		}
		kind, err := world.ParseVoxelKind(d.ID)
		if err != nil {
			return fmt.Errorf("materials.json: %w", err)
		}
		if _, dup := out.Defs[kind]; dup {
			return fmt.Errorf("materials.json: duplicate id %q", d.ID)
		}
		if d.Density < 0 || d.Stiffness < 0 || d.Strength < 0 {
			return fmt.Errorf("materials.json: %s: negative property", d.ID)
		}
		out.Defs[kind] = d
		ids = append(ids, d.ID)
	}

	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	return nil
}

func loadFaces(path string, out *FaceCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []FaceDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("faces.json: %w", err)
	}
	out.Defs = map[world.FaceKind]FaceDef{}
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("faces.json: empty id")
		}
		kind, err := world.ParseFaceKind(d.ID)
		if err != nil {
			return fmt.Errorf("faces.json: %w", err)
		}
		if _, dup := out.Defs[kind]; dup {
			return fmt.Errorf("faces.json: duplicate id %q", d.ID)
		}
		if d.Weight < 0 || d.Stiffness < 0 || d.Strength < 0 {
			return fmt.Errorf("faces.json: %s: negative property", d.ID)
		}
		out.Defs[kind] = d
		ids = append(ids, d.ID)
	}

	// OPEN must exist so designation code can always fall back to it.
	if _, ok := out.Defs[world.FaceOpen]; !ok {
		return fmt.Errorf("faces.json: missing OPEN")
	}

	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	return nil
}
