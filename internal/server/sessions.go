package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/livetemplate/signup/internal/runtime"
	"github.com/zekroTJA/timedmap"
)

const sessionCleanupInterval = time.Minute

// Sessions holds mounted pages by session id until their websocket claims
// them or they expire. Pages driven by the form-post fallback stay here for
// their whole life, their TTL refreshed on every post.
type Sessions struct {
	// mu makes Claim atomic; timedmap only locks single operations.
	mu    sync.Mutex
	pages *timedmap.TimedMap
	ttl   time.Duration

	closeOnce sync.Once
}

// NewSessions creates a store whose entries live for ttl.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		pages: timedmap.New(sessionCleanupInterval),
		ttl:   ttl,
	}
}

// session is a stored page. claimed is set before the entry is removed so
// the expiry callback never closes a page the store no longer owns.
type session struct {
	page    *runtime.Controller
	claimed atomic.Bool
}

// Put stores page under a new session id.
func (s *Sessions) Put(page *runtime.Controller) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages.Set(id, &session{page: page}, s.ttl, func(v interface{}) {
		if sess, ok := v.(*session); ok && !sess.claimed.Load() {
			sess.page.Close()
		}
	})
	return id
}

// Get returns the page for id and extends its life.
func (s *Sessions) Get(id string) (*runtime.Controller, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.pages.GetValue(id).(*session)
	if !ok {
		return nil, false
	}
	_ = s.pages.Refresh(id, s.ttl)
	return sess.page, true
}

// Claim removes the page for id and hands ownership to the caller, who must
// Close it.
func (s *Sessions) Claim(id string) (*runtime.Controller, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.pages.GetValue(id).(*session)
	if !ok {
		return nil, false
	}
	sess.claimed.Store(true)
	s.pages.Remove(id)
	return sess.page, true
}

// Len returns the number of stored pages, expired ones not yet swept
// included.
func (s *Sessions) Len() int {
	return s.pages.Size()
}

// Close stops the expiry sweeper and drops every stored page.
func (s *Sessions) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.pages.StopCleaner()
		s.pages.Flush()
	})
}
