package queue

import "errors"

// Durable-queue transport errors.
var (
	ErrNotConnected = errors.New("queue: client not connected")
	ErrConnectFailed = errors.New("queue: connect failed")
)
