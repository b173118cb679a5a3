// Package gobangroom implements the Gobang (five-in-a-row) room: one
// two-seat match at a time (board, seats and queue reset after each
// result so a fresh match can start), random colour assignment, win
// detection and a disconnect-forfeit timer (spec.md §4.5).
package gobangroom

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/roomforge/server/internal/chatroom"
	"github.com/roomforge/server/internal/config"
	"github.com/roomforge/server/internal/protocol"
	"github.com/roomforge/server/internal/rooms"
)

// Manager implements the Gobang state machine on top of chatroom.Base.
type Manager struct {
	*chatroom.Base

	mu sync.Mutex

	board       Board
	blackUserID int64
	whiteUserID int64
	hasBlack    bool
	hasWhite    bool
	joined      []int64
	started     bool
	finished    bool
	currentTurn Cell
	winner      Cell

	seatConns      map[int64]*rooms.Conn
	forfeitCancels map[int64]context.CancelFunc
}

// NewManager satisfies rooms.Factory for rooms.TypeGobang.
func NewManager(ctx context.Context, key rooms.Key) rooms.Manager {
	return &Manager{
		Base:           chatroom.NewBase(ctx, key),
		seatConns:      make(map[int64]*rooms.Conn),
		forfeitCancels: make(map[int64]context.CancelFunc),
	}
}

func (m *Manager) IsEmpty() bool { return m.Base.IsEmpty() }

func (m *Manager) Join(conn *rooms.Conn) {
	m.Base.Join(conn)

	if conn.Identity.Authenticated {
		m.mu.Lock()
		uid := conn.Identity.UserID
		reconnected := m.seatColour(uid) != CellEmpty
		if reconnected {
			m.seatConns[uid] = conn
		}
		m.mu.Unlock()

		if reconnected {
			m.cancelForfeitTimer(uid)
		}
	}

	m.sendStateTo(conn)
}

func (m *Manager) Leave(conn *rooms.Conn) {
	m.mu.Lock()
	userID, wasSeated := m.seatHolderFor(conn)
	canForfeit := wasSeated && m.started && !m.finished
	if wasSeated {
		m.seatConns[userID] = nil
	}
	m.mu.Unlock()

	m.Base.Leave(conn)

	if canForfeit {
		m.startForfeitTimer(userID)
	}
}

func (m *Manager) HandleEnvelope(conn *rooms.Conn, env *protocol.Envelope) {
	if env.Chat == nil {
		return
	}
	msg := env.Chat
	if m.HandleCommonChat(conn, msg) {
		return
	}

	switch msg.Type {
	case protocol.ChatGobangJoin:
		m.handleSeatJoin(conn)
	case protocol.ChatGobangLeave:
		m.handleSeatLeave(conn)
	case protocol.ChatGobangMove:
		m.handleMove(conn, msg.Content)
	}
}

func (m *Manager) handleSeatJoin(conn *rooms.Conn) {
	if !conn.Identity.Authenticated {
		m.sendError(conn, "must be signed in to take a seat")
		return
	}
	uid := conn.Identity.UserID

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		m.sendError(conn, "a match is already in progress")
		return
	}
	for _, j := range m.joined {
		if j == uid {
			m.mu.Unlock()
			m.sendError(conn, "already joined")
			return
		}
	}
	if len(m.joined) >= 2 {
		m.mu.Unlock()
		m.sendError(conn, "room is full")
		return
	}

	m.joined = append(m.joined, uid)
	m.seatConns[uid] = conn

	if len(m.joined) < 2 {
		m.mu.Unlock()
		m.broadcastState()
		return
	}

	// Exactly two joined: assign colours by uniform random permutation.
	a, b := m.joined[0], m.joined[1]
	if rand.Intn(2) == 1 {
		a, b = b, a
	}
	m.blackUserID, m.hasBlack = a, true
	m.whiteUserID, m.hasWhite = b, true
	m.started = true
	m.finished = false
	m.currentTurn = CellBlack
	m.board = Board{}
	m.mu.Unlock()

	m.broadcastState()
}

func (m *Manager) handleSeatLeave(conn *rooms.Conn) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		m.sendError(conn, "cannot leave a seat while a match is in progress")
		return
	}
	uid := conn.Identity.UserID
	idx := -1
	for i, j := range m.joined {
		if j == uid {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return
	}
	m.joined = append(m.joined[:idx], m.joined[idx+1:]...)
	delete(m.seatConns, uid)
	m.mu.Unlock()

	m.broadcastState()
}

type movePayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (m *Manager) handleMove(conn *rooms.Conn, content string) {
	if !conn.Identity.Authenticated {
		m.sendError(conn, "must be signed in to move")
		return
	}
	var move movePayload
	if err := json.Unmarshal([]byte(content), &move); err != nil {
		m.sendError(conn, "malformed move")
		return
	}

	m.mu.Lock()
	if !m.started || m.finished {
		m.mu.Unlock()
		m.sendError(conn, "no match in progress")
		return
	}
	seat := m.seatColour(conn.Identity.UserID)
	if seat == CellEmpty || seat != m.currentTurn {
		m.mu.Unlock()
		m.sendError(conn, "not your turn")
		return
	}
	if !inBounds(move.X, move.Y) || m.board[move.X][move.Y] != CellEmpty {
		m.mu.Unlock()
		m.sendError(conn, "invalid move")
		return
	}

	m.board.Place(move.X, move.Y, seat)
	won := m.board.CheckWin(move.X, move.Y, seat)
	if won {
		m.winner = seat
		m.finished = true
	} else if m.currentTurn == CellBlack {
		m.currentTurn = CellWhite
	} else {
		m.currentTurn = CellBlack
	}
	m.mu.Unlock()

	m.broadcastState()

	if won {
		m.announceGameOver(seat)
		m.resetMatch()
	}
}

// seatColour returns the colour held by userID, or CellEmpty if none.
// Caller must hold m.mu.
func (m *Manager) seatColour(userID int64) Cell {
	if m.hasBlack && m.blackUserID == userID {
		return CellBlack
	}
	if m.hasWhite && m.whiteUserID == userID {
		return CellWhite
	}
	return CellEmpty
}

// seatHolderFor reports the user id a connection holds a seat as, if any.
// Caller must hold m.mu.
func (m *Manager) seatHolderFor(conn *rooms.Conn) (int64, bool) {
	if !conn.Identity.Authenticated {
		return 0, false
	}
	c := m.seatColour(conn.Identity.UserID)
	return conn.Identity.UserID, c != CellEmpty
}

func (m *Manager) startForfeitTimer(userID int64) {
	ctx, cancel := context.WithCancel(m.Tasks.Context())

	m.mu.Lock()
	if old, ok := m.forfeitCancels[userID]; ok {
		old()
	}
	m.forfeitCancels[userID] = cancel
	m.mu.Unlock()

	m.Tasks.Go(func(parent context.Context) error {
		timer := time.NewTimer(config.GobangForfeitTimeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			m.forfeitForDisconnect(userID)
			return nil
		}
	})
}

func (m *Manager) cancelForfeitTimer(userID int64) {
	m.mu.Lock()
	cancel, ok := m.forfeitCancels[userID]
	if ok {
		delete(m.forfeitCancels, userID)
	}
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

func (m *Manager) forfeitForDisconnect(userID int64) {
	m.mu.Lock()
	if !m.started || m.finished {
		m.mu.Unlock()
		return
	}
	if m.seatConns[userID] != nil {
		// Reconnected before the timer fired; nothing to forfeit.
		m.mu.Unlock()
		return
	}
	loser := m.seatColour(userID)
	if loser == CellEmpty {
		m.mu.Unlock()
		return
	}
	winner := CellBlack
	if loser == CellBlack {
		winner = CellWhite
	}
	m.winner = winner
	m.finished = true
	m.mu.Unlock()

	m.announceGameOver(winner)
	m.resetMatch()
}

func (m *Manager) announceGameOver(winner Cell) {
	name := "black"
	if winner == CellWhite {
		name = "white"
	}
	msg := &protocol.ChatMessage{
		RoomID:  m.Key.ID,
		Content: name + " wins, game over",
		Type:    protocol.ChatSystem,
	}
	frame, err := protocol.EncodeChat(msg)
	if err == nil {
		m.Conns.Broadcast(frame)
	}

	msg2 := &protocol.ChatMessage{
		RoomID:  m.Key.ID,
		Content: "game over: " + name + " wins",
		Type:    protocol.ChatUserText,
	}
	frame2, err := protocol.EncodeChat(msg2)
	if err == nil {
		m.Conns.Broadcast(frame2)
	}
}

func (m *Manager) resetMatch() {
	m.mu.Lock()
	for uid, cancel := range m.forfeitCancels {
		cancel()
		delete(m.forfeitCancels, uid)
	}
	m.board = Board{}
	m.blackUserID, m.hasBlack = 0, false
	m.whiteUserID, m.hasWhite = 0, false
	m.joined = nil
	m.started = false
	m.finished = false
	m.currentTurn = CellEmpty
	m.winner = CellEmpty
	m.seatConns = make(map[int64]*rooms.Conn)
	m.mu.Unlock()

	m.broadcastState()
}

type stateView struct {
	Board       Board  `json:"board"`
	Role        string `json:"role"`
	CurrentTurn string `json:"current_turn"`
	Started     bool   `json:"started"`
	Finished    bool   `json:"finished"`
	Winner      string `json:"winner"`
}

func colourName(c Cell) string {
	switch c {
	case CellBlack:
		return "black"
	case CellWhite:
		return "white"
	default:
		return "none"
	}
}

// viewFor builds the per-recipient state view. Caller must hold m.mu.
func (m *Manager) viewFor(conn *rooms.Conn) stateView {
	role := "spectator"
	if conn.Identity.Authenticated {
		switch {
		case m.hasBlack && m.blackUserID == conn.Identity.UserID:
			role = "black"
		case m.hasWhite && m.whiteUserID == conn.Identity.UserID:
			role = "white"
		default:
			for _, j := range m.joined {
				if j == conn.Identity.UserID {
					role = "waiting_player"
					break
				}
			}
		}
	}

	return stateView{
		Board:       m.board,
		Role:        role,
		CurrentTurn: colourName(m.currentTurn),
		Started:     m.started,
		Finished:    m.finished,
		Winner:      colourName(m.winner),
	}
}

func (m *Manager) broadcastState() {
	for _, conn := range m.Conns.Snapshot() {
		m.sendStateTo(conn)
	}
}

func (m *Manager) sendStateTo(conn *rooms.Conn) {
	m.mu.Lock()
	view := m.viewFor(conn)
	m.mu.Unlock()

	payload, err := json.Marshal(view)
	if err != nil {
		return
	}
	m.SendTo(conn, &protocol.ChatMessage{Content: string(payload), Type: protocol.ChatGobangState})
}

func (m *Manager) sendError(conn *rooms.Conn, message string) {
	m.SendTo(conn, &protocol.ChatMessage{Content: message, Type: protocol.ChatSystem})
}
