package rooms

import "errors"

var (
	errClosed       = errors.New("rooms: connection closed")
	errSlowConsumer = errors.New("rooms: send buffer full")
)
