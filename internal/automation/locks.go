package automation

import (
	"context"
	"sync"
)

// chatLocks serializes turns per chat. Entries are dropped once no turn holds
// or waits for them.
type chatLocks struct {
	mu    sync.Mutex
	chats map[string]*chatLock
}

type chatLock struct {
	sem  chan struct{}
	refs int
}

func newChatLocks() *chatLocks {
	return &chatLocks{chats: make(map[string]*chatLock)}
}

// lock blocks until the chat is free or ctx is done.
func (l *chatLocks) lock(ctx context.Context, chatID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.chats[chatID]
	if !ok {
		entry = &chatLock{sem: make(chan struct{}, 1)}
		l.chats[chatID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(chatID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(chatID, entry)
		})
	}, nil
}

func (l *chatLocks) release(chatID string, entry *chatLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.chats, chatID)
	}
}

func (l *chatLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chats)
}
