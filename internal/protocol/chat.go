package protocol

// ChatType enumerates the ChatMessage.Type tag space, including the
// Gobang extension codes from spec.md §4.1.
type ChatType int

const (
	ChatSystem      ChatType = 0
	ChatUserText    ChatType = 1
	ChatMusic       ChatType = 2
	ChatRoomCount   ChatType = 3

	ChatDrawingState           ChatType = 4
	ChatDrawingRequest         ChatType = 5
	ChatDrawingRequestApprove  ChatType = 6
	ChatDrawing                ChatType = 7
	ChatDrawingClear           ChatType = 8
	ChatDrawingStop            ChatType = 9

	ChatGobangState ChatType = 20
	ChatGobangMove  ChatType = 21
	ChatGobangJoin  ChatType = 22
	ChatGobangLeave ChatType = 23
)

// ChatMessage is the inner payload shared by Chat/Drawing/Gobang rooms.
// Content is overloaded by Type: free text for USER_TEXT/SYSTEM, a
// base64 canvas blob for DRAWING, a username for DRAWING_STATE/REQUEST*,
// a JSON-encoded move for GOBANG_MOVE.
type ChatMessage struct {
	User      string   `json:"user"`
	RoomID    int64    `json:"room_id"`
	Content   string   `json:"content"`
	Timestamp int64    `json:"timestamp"`
	Type      ChatType `json:"type"`
}
