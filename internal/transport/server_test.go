package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoomPathAcceptsTypeAndID(t *testing.T) {
	roomType, roomID, ok := parseRoomPath("/room/ws/chat/42")
	assert.True(t, ok)
	assert.Equal(t, "chat", roomType)
	assert.Equal(t, int64(42), roomID)
}

func TestParseRoomPathRejectsMissingSegments(t *testing.T) {
	_, _, ok := parseRoomPath("/room/ws/chat")
	assert.False(t, ok)
}

func TestParseRoomPathRejectsNonNumericID(t *testing.T) {
	_, _, ok := parseRoomPath("/room/ws/chat/not-a-number")
	assert.False(t, ok)
}

func TestParseRoomPathRejectsWrongPrefix(t *testing.T) {
	_, _, ok := parseRoomPath("/other/chat/1")
	assert.False(t, ok)
}

func TestParseRoomPathToleratesTrailingSlash(t *testing.T) {
	roomType, roomID, ok := parseRoomPath("/room/ws/gobang/7/")
	assert.True(t, ok)
	assert.Equal(t, "gobang", roomType)
	assert.Equal(t, int64(7), roomID)
}
