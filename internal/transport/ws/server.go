// Package ws serves the interactive stress-preview endpoint. Clients
// handshake with HELLO/WELCOME, then send VALIDATE requests against the
// standing structure; the grid and catalogs are shared read-only, so any
// number of sessions can validate concurrently.
package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	vlog "greatwood.gg/internal/persistence/log"
	"greatwood.gg/internal/protocol"
	"greatwood.gg/internal/sim/catalogs"
	"greatwood.gg/internal/sim/structural"
	"greatwood.gg/internal/sim/tuning"
	"greatwood.gg/internal/sim/world"
)

// Recorder receives authoritative validation outcomes for durable audit.
// Preview (non-authoritative) traffic is never recorded.
type Recorder interface {
	RecordValidation(vlog.ValidationRecord)
}

type Server struct {
	snap  world.Snapshot
	faces map[world.Vec3i]world.FaceSet
	cats  *catalogs.Catalogs
	tun   tuning.Tuning
	seed  int64
	log   *log.Logger

	recorders []Recorder

	sessionSeq atomic.Uint64
	upgrader   websocket.Upgrader
}

func NewServer(snap world.Snapshot, faces map[world.Vec3i]world.FaceSet,
	cats *catalogs.Catalogs, tun tuning.Tuning, seed int64, logger *log.Logger,
	recorders ...Recorder) *Server {
	return &Server{
		snap:      snap,
		faces:     faces,
		cats:      cats,
		tun:       tun,
		seed:      seed,
		log:       logger,
		recorders: recorders,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID := s.handshake(conn)
		if sessionID == "" {
			return
		}

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.writeError(conn, "", protocol.ErrProtoBadRequest, "malformed JSON")
				continue
			}
			if base.Type != protocol.TypeValidate {
				s.writeError(conn, "", protocol.ErrProtoBadRequest,
					fmt.Sprintf("unexpected message type %q", base.Type))
				continue
			}
			var req protocol.ValidateMsg
			if err := json.Unmarshal(msg, &req); err != nil {
				s.writeError(conn, "", protocol.ErrProtoBadRequest, "malformed VALIDATE")
				continue
			}
			if req.ProtocolVersion != protocol.Version {
				s.writeError(conn, req.RequestID, protocol.ErrProtoBadRequest, "bad protocol_version")
				continue
			}
			s.handleValidate(conn, sessionID, req)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"),
			time.Now().Add(time.Second))
		return ""
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"),
			time.Now().Add(time.Second))
		return ""
	}

	sessionID := fmt.Sprintf("S%d", s.sessionSeq.Add(1))
	sx, sy, sz := s.snap.Size()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		WorldParams: protocol.WorldParams{
			Size: [3]int{sx, sy, sz},
			Seed: s.seed,
		},
		Catalogs: protocol.CatalogDigests{
			Materials: protocol.DigestRef{
				Digest: s.cats.Materials.Digest,
				Count:  len(s.cats.Materials.Defs),
			},
			Faces: protocol.DigestRef{
				Digest: s.cats.Faces.Digest,
				Count:  len(s.cats.Faces.Defs),
			},
		},
	}
	if !s.write(conn, welcome) {
		return ""
	}
	if s.log != nil {
		s.log.Printf("session %s: %s connected", sessionID, hello.ClientName)
	}
	return sessionID
}

func (s *Server) handleValidate(conn *websocket.Conn, sessionID string, req protocol.ValidateMsg) {
	start := time.Now()

	var v structural.Validation
	switch req.Mode {
	case protocol.ModeBlueprint:
		prop, errMsg := s.proposalFrom(req)
		if errMsg != "" {
			s.writeError(conn, req.RequestID, protocol.ErrBadRequest, errMsg)
			return
		}
		if req.Authoritative {
			v = structural.ValidateBlueprint(s.snap, s.faces, prop, s.cats, s.tun)
		} else {
			v = structural.ValidateBlueprintFast(s.snap, s.faces, prop, s.cats, s.tun)
		}
	case protocol.ModeCarve:
		carved := cellsFrom(req.Cells)
		v = structural.ValidateCarveFast(s.snap, s.faces, carved, s.cats, s.tun)
	default:
		s.writeError(conn, req.RequestID, protocol.ErrBadRequest,
			fmt.Sprintf("unknown mode %q", req.Mode))
		return
	}

	elapsed := time.Since(start)
	res := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		RequestID:       req.RequestID,
		Tier:            v.Tier.String(),
		Message:         v.Message,
		Stress:          stressEntries(v.StressMap),
		ElapsedMs:       float64(elapsed) / float64(time.Millisecond),
	}
	s.write(conn, res)

	if req.Authoritative {
		rec := vlog.ValidationRecord{
			Time:       start.UTC(),
			SessionID:  sessionID,
			RequestID:  req.RequestID,
			Mode:       req.Mode,
			Tier:       v.Tier.String(),
			WorstRatio: worstRatio(v.StressMap),
			CellCount:  len(req.Cells),
			DurationMs: res.ElapsedMs,
		}
		for _, r := range s.recorders {
			r.RecordValidation(rec)
		}
	}
}

// proposalFrom converts the wire request, rejecting ids the catalogs do not
// know so a stale client cannot sneak unvalidated materials past the solver.
func (s *Server) proposalFrom(req protocol.ValidateMsg) (structural.Proposal, string) {
	var prop structural.Proposal
	if len(req.Cells) > 0 {
		kind, err := world.ParseVoxelKind(req.Material)
		if err != nil {
			return prop, fmt.Sprintf("unknown material %q", req.Material)
		}
		if _, ok := s.cats.Material(kind); !ok && kind != world.BuildingInterior {
			return prop, fmt.Sprintf("material %q has no catalog entry", req.Material)
		}
		prop.Material = kind
		prop.Cells = cellsFrom(req.Cells)
	}
	if len(req.Faces) > 0 {
		prop.Faces = make(map[world.Vec3i]world.FaceSet, len(req.Faces))
		for _, fa := range req.Faces {
			var fs world.FaceSet
			for i, d := range world.FaceDirs {
				name := fa.Faces[i]
				if name == "" {
					continue
				}
				k, err := world.ParseFaceKind(name)
				if err != nil {
					return prop, fmt.Sprintf("unknown face kind %q", name)
				}
				fs.Set(d, k)
			}
			prop.Faces[world.Vec3i{X: fa.Cell[0], Y: fa.Cell[1], Z: fa.Cell[2]}] = fs
		}
	}
	return prop, ""
}

func cellsFrom(raw [][3]int) []world.Vec3i {
	out := make([]world.Vec3i, len(raw))
	for i, c := range raw {
		out[i] = world.Vec3i{X: c[0], Y: c[1], Z: c[2]}
	}
	return out
}

func stressEntries(m map[world.Vec3i]float32) []protocol.StressEntry {
	cells := make([]world.Vec3i, 0, len(m))
	for c := range m {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(a, b int) bool { return cells[a].Less(cells[b]) })
	out := make([]protocol.StressEntry, len(cells))
	for i, c := range cells {
		out[i] = protocol.StressEntry{Cell: c.ToArray(), Ratio: m[c]}
	}
	return out
}

func worstRatio(m map[world.Vec3i]float32) float32 {
	var worst float32
	for _, r := range m {
		if r > worst {
			worst = r
		}
	}
	return worst
}

func (s *Server) write(conn *websocket.Conn, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b) == nil
}

func (s *Server) writeError(conn *websocket.Conn, requestID, code, message string) {
	s.write(conn, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		RequestID:       requestID,
		Code:            code,
		Message:         message,
	})
}
