// Package transport implements the Room Router: the HTTP surface that
// upgrades a websocket connection, resolves the caller's identity, and
// dispatches it into the room manager registry. Grounded on the teacher's
// cmd/gameserver GameServer (handleWebSocket/handleHealth/handleStats),
// generalized from one fixed room kind to the router-selected
// {room_type}/{room_id} path this spec requires.
package transport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomforge/server/internal/authz"
	"github.com/roomforge/server/internal/logging"
	"github.com/roomforge/server/internal/protocol"
	"github.com/roomforge/server/internal/rooms"
)

var log = logging.Component("transport")

const writeWait = 10 * time.Second

// Server is the HTTP/websocket front door. It owns the upgrader and the
// registry; everything about room logic lives behind rooms.Manager.
type Server struct {
	registry *rooms.Registry
	resolver *authz.Resolver
	upgrader websocket.Upgrader
}

// NewServer wires a Server against an already-populated registry (every
// room type factory must be registered before serving traffic).
func NewServer(registry *rooms.Registry, resolver *authz.Resolver, enableCORS bool) *Server {
	return &Server{
		registry: registry,
		resolver: resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return enableCORS
			},
		},
	}
}

// Routes registers the handler set on mux, mirroring the teacher's flat
// http.HandleFunc registration in cmd/gameserver.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/room/ws/", s.handleRoomWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
}

// handleRoomWS implements GET /room/ws/{room_type}/{room_id}. A malformed
// path or non-numeric id is answered with HTTP 400 and no upgrade; an
// unknown room type is upgraded and then closed at once with close code
// 1008 (policy violation) and reason "Invalid room type".
func (s *Server) handleRoomWS(w http.ResponseWriter, r *http.Request) {
	roomType, roomID, ok := parseRoomPath(r.URL.Path)
	if !ok {
		http.Error(w, "invalid room path", http.StatusBadRequest)
		return
	}

	key := rooms.Key{Type: rooms.RoomType(roomType), ID: roomID}
	manager, err := s.registry.GetOrCreate(key)
	if err != nil {
		ws, upErr := s.upgrader.Upgrade(w, r, nil)
		if upErr != nil {
			log.Debug().Err(upErr).Msg("upgrade failed before we could reject the room type")
			return
		}
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Invalid room type"),
			time.Now().Add(writeWait))
		ws.Close()
		return
	}

	identity := rooms.ResolveIdentity(s.resolver, r.URL.Query().Get("token"))

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := rooms.NewConn(ws, identity)
	manager.Join(conn)
	log.Info().Str("room", key.String()).Str("user", identity.Username).Msg("connection joined")

	go conn.WritePump()
	conn.ReadPump(func(data []byte) {
		env, decErr := protocol.Decode(data)
		if decErr != nil {
			log.Debug().Err(decErr).Str("room", key.String()).Msg("dropping malformed frame")
			return
		}
		manager.HandleEnvelope(conn, env)
	})

	manager.Leave(conn)
	log.Info().Str("room", key.String()).Str("user", identity.Username).Msg("connection left")
}

// parseRoomPath extracts {room_type} and {room_id} from a
// /room/ws/{room_type}/{room_id} path.
func parseRoomPath(path string) (roomType string, roomID int64, ok bool) {
	trimmed := strings.TrimPrefix(path, "/room/ws/")
	if trimmed == path {
		return "", 0, false
	}
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return parts[0], id, true
}

// handleHealth responds to load-balancer/orchestrator health probes
// (teacher: handleHealth).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleStats reports live room counts per type (teacher: handleStats,
// generalized from a single room kind's player/room counts to a
// per-type breakdown since this router serves four room kinds).
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.Stats()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}
