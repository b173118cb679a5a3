// Package chatroom implements the Chat Room baseline behaviour
// (spec.md §4.3) and exposes Base, a building block that the Drawing and
// Gobang rooms embed to inherit text relay, music-cue relay and periodic
// occupancy announcements without duplicating that plumbing.
package chatroom

import (
	"context"
	"strconv"
	"time"

	"github.com/roomforge/server/internal/config"
	"github.com/roomforge/server/internal/logging"
	"github.com/roomforge/server/internal/protocol"
	"github.com/roomforge/server/internal/rooms"
)

var log = logging.Component("chatroom")

// Base bundles the connection registry, task group and common chat
// handling shared by every room type. It is not itself a rooms.Manager;
// callers embed it and delegate unhandled message types to
// HandleCommonChat.
type Base struct {
	Key   rooms.Key
	Conns *rooms.ConnSet
	Tasks *rooms.TaskGroup

	occupancyStarted bool
}

// NewBase wires up an empty registry and task group for key.
func NewBase(ctx context.Context, key rooms.Key) *Base {
	return &Base{
		Key:   key,
		Conns: rooms.NewConnSet(),
		Tasks: rooms.NewTaskGroup(ctx),
	}
}

// Join registers conn, announces it to the room, and lazily starts the
// 10s occupancy broadcaster on the first connection (spec.md §4.2:
// "Registration is the atomic act of accepting the websocket, inserting
// into the set, and (on first connection) launching the 10s occupancy
// task").
func (b *Base) Join(conn *rooms.Conn) {
	count := b.Conns.Add(conn)

	if count == 1 && !b.occupancyStarted {
		b.occupancyStarted = true
		b.startOccupancyTask()
	}

	b.announce(conn.Identity.Username + " joined room")
}

// Leave deregisters conn and announces the departure. The caller is
// responsible for deciding whether the room is now empty and should be
// torn down (room-type-specific: LiveWar applies a grace window before
// acting on emptiness, Chat/Drawing/Gobang act immediately).
func (b *Base) Leave(conn *rooms.Conn) {
	_, existed := b.Conns.Remove(conn)
	if existed {
		b.announce(conn.Identity.Username + " left room")
	}
}

// IsEmpty reports whether the room currently has no connections.
func (b *Base) IsEmpty() bool {
	return b.Conns.Count() == 0
}

func (b *Base) announce(content string) {
	msg := &protocol.ChatMessage{
		User:      "",
		RoomID:    b.Key.ID,
		Content:   content,
		Timestamp: nowMillis(),
		Type:      protocol.ChatSystem,
	}
	b.broadcastChat(msg)
}

func (b *Base) broadcastChat(msg *protocol.ChatMessage) {
	frame, err := protocol.EncodeChat(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode chat message")
		return
	}
	b.Conns.Broadcast(frame)
}

// SendTo delivers a targeted frame to a single connection only — used
// for authorization/validation errors that must never be broadcast
// (spec.md §6 "Error channel").
func (b *Base) SendTo(conn *rooms.Conn, msg *protocol.ChatMessage) {
	msg.RoomID = b.Key.ID
	msg.Timestamp = nowMillis()
	frame, err := protocol.EncodeChat(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode targeted chat message")
		return
	}
	if err := conn.Send(frame); err != nil {
		b.Conns.Remove(conn)
		conn.Close()
	}
}

func (b *Base) startOccupancyTask() {
	b.Tasks.Go(func(ctx context.Context) error {
		ticker := time.NewTicker(config.OccupancyBroadcastPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				b.broadcastOccupancy()
			}
		}
	})
}

func (b *Base) broadcastOccupancy() {
	msg := &protocol.ChatMessage{
		RoomID:    b.Key.ID,
		Content:   strconv.Itoa(b.Conns.Count()),
		Timestamp: nowMillis(),
		Type:      protocol.ChatRoomCount,
	}
	b.broadcastChat(msg)
}

// HandleCommonChat processes USER_TEXT and MUSIC, the two message types
// every room type shares (spec.md §4.3). It reports whether it handled
// the message so embedding room types can fall through to their own
// cases otherwise.
func (b *Base) HandleCommonChat(conn *rooms.Conn, msg *protocol.ChatMessage) bool {
	switch msg.Type {
	case protocol.ChatUserText:
		out := &protocol.ChatMessage{
			User:      conn.Identity.Username,
			RoomID:    b.Key.ID,
			Content:   msg.Content,
			Timestamp: nowMillis(),
			Type:      protocol.ChatUserText,
		}
		b.broadcastChat(out)
		return true

	case protocol.ChatMusic:
		out := &protocol.ChatMessage{
			User:      conn.Identity.Username,
			RoomID:    b.Key.ID,
			Content:   msg.Content,
			Timestamp: nowMillis() + config.MusicPlaybackDelay.Milliseconds(),
			Type:      protocol.ChatMusic,
		}
		b.broadcastChat(out)
		return true
	}

	return false
}

// Teardown cancels every background task owned by this room.
func (b *Base) Teardown() {
	b.Tasks.Stop()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
