package queueaccess

import (
	"errors"
	"fmt"

	"turnstile/internal/desk"
	"turnstile/internal/ipc"
	"turnstile/internal/queue"
)

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	// Remote reports whether calls go to a running daemon.
	Remote bool
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries IPC-backed access first, then falls back to a store
// and desk opened in this process.
func OpenWithFallback(
	dial func() (*ipc.Client, error),
	openLocal func() (*queue.Store, *desk.Desk, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{
				Access: NewIPCAccess(client),
				Remote: true,
				close:  client.Close,
			}, nil
		}
	}

	if openLocal == nil {
		return Session{}, errors.New("open token store: no store opener configured")
	}
	store, d, err := openLocal()
	if err != nil {
		return Session{}, fmt.Errorf("open token store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(store, d),
		close:  store.Close,
	}, nil
}
