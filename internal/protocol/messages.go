package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	Size [3]int `json:"size"`
	Seed int64  `json:"seed"`
}

// CatalogDigests lets clients detect config drift: a client that cached
// material tables under a different digest must refetch before trusting any
// stress numbers it renders.
type CatalogDigests struct {
	Materials DigestRef `json:"materials"`
	Faces     DigestRef `json:"faces"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// VALIDATE (client -> server): check one proposal against the standing
// structure. Non-authoritative requests get the cheap preview path;
// authoritative ones run the full solver.
type ValidateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id"`
	Mode            string `json:"mode"`
	Authoritative   bool   `json:"authoritative,omitempty"`
	// Material is the catalog id applied to every proposed cell. Unused in
	// carve mode.
	Material string           `json:"material,omitempty"`
	Cells    [][3]int         `json:"cells"`
	Faces    []FaceAssignment `json:"faces,omitempty"`
}

// FaceAssignment sets the six faces of one interior cell, ordered
// +X, -X, +Y, -Y, +Z, -Z. Empty strings mean OPEN.
type FaceAssignment struct {
	Cell  [3]int    `json:"cell"`
	Faces [6]string `json:"faces"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	RequestID       string        `json:"request_id"`
	Tier            string        `json:"tier"`
	Message         string        `json:"message,omitempty"`
	Stress          []StressEntry `json:"stress"`
	ElapsedMs       float64       `json:"elapsed_ms"`
}

// StressEntry reports the worst spring stress ratio touching one cell.
// Entries are sorted by coordinate so identical requests produce identical
// payloads.
type StressEntry struct {
	Cell  [3]int  `json:"cell"`
	Ratio float32 `json:"ratio"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
