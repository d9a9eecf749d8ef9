package service

import "errors"

// Service errors.
var (
	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("semandoc: client is closed")

	// ErrChatUnavailable indicates no chat model is configured.
	ErrChatUnavailable = errors.New("chat model is not configured")
)
