package pubsub

import "errors"

// Pub/sub transport errors.
var (
	ErrNotConnected = errors.New("pubsub: client not connected")
	ErrConnectFailed = errors.New("pubsub: connect failed")
)
