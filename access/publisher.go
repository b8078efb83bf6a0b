/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package access

import (
	"fmt"
	"time"
)

// Publisher is the single broadcaster slot.
type Publisher struct {
	Status       PublisherStatus
	Secret       string
	Token        string // viewer session bound via VerifyPublisher
	Locator      string
	Label        string
	Remote       string
	LastActivity time.Time
}

func newPublisher(now time.Time) Publisher {
	return Publisher{Status: PublisherIdle, LastActivity: now}
}

func locator(app, stream string) string {
	return fmt.Sprintf("app=%s&stream=%s", app, stream)
}

// PublishResult is the outcome of a media-server publish request.
type PublishResult int

const (
	PublishRefused PublishResult = iota
	PublishRegistered
	PublishResumed
)

func (r PublishResult) String() string {
	switch r {
	case PublishRegistered:
		return "registered"
	case PublishResumed:
		return "resumed"
	default:
		return "refused"
	}
}

// Publisher returns a copy of the slot.
func (s *Store) Publisher() Publisher {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.publisher
}

// Publish starts a new broadcast from an idle slot, or resumes the current
// one when the slot is taken.
func (s *Store) Publish(secret, app, stream, remote string, public bool) PublishResult {
	s.mu.RLock()
	idle := s.publisher.Status == PublisherIdle
	s.mu.RUnlock()

	if !idle {
		if s.Resume(secret, app, stream, remote) {
			return PublishResumed
		}
		return PublishRefused
	}

	if !s.register(secret, app, stream, remote, public) {
		return PublishRefused
	}

	return PublishRegistered
}

// Register claims an idle slot for a secret listed in the secret file. A new
// broadcast invalidates every earlier grant, so the store is reset first.
func (s *Store) Register(secret, app, stream, remote string) bool {
	return s.register(secret, app, stream, remote, false)
}

func (s *Store) register(secret, app, stream, remote string, public bool) bool {
	s.mu.RLock()
	idle := s.publisher.Status == PublisherIdle
	s.mu.RUnlock()

	if !idle || !s.verifier.Verify(secret) {
		return false
	}

	s.mu.Lock()
	if s.publisher.Status != PublisherIdle {
		s.mu.Unlock()
		return false
	}

	s.resetLocked()
	s.publisher = Publisher{
		Status:       PublisherLive,
		Secret:       secret,
		Locator:      locator(app, stream),
		Remote:       remote,
		LastActivity: s.now(),
	}
	s.public = public
	s.mu.Unlock()

	s.runResetHooks()

	return true
}

// Resume puts an existing broadcast back on air. Only the stored secret is
// accepted; the secret file is not consulted again.
func (s *Store) Resume(secret, app, stream, remote string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &s.publisher
	if p.Status == PublisherIdle || p.Secret == "" || secret != p.Secret {
		return false
	}

	p.Status = PublisherLive
	p.Locator = locator(app, stream)
	p.Remote = remote
	p.LastActivity = s.now()

	return true
}

// Interrupt marks a live broadcast as interrupted, starting its resume window.
func (s *Store) Interrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.publisher.Status != PublisherLive {
		return false
	}

	s.publisher.Status = PublisherInterrupted
	s.publisher.LastActivity = s.now()

	return true
}

// End stops the broadcast on behalf of the session bound to it and resets
// the whole store.
func (s *Store) End(token string) error {
	s.mu.Lock()
	if token == "" || s.publisher.Token == "" || token != s.publisher.Token {
		s.mu.Unlock()
		return ErrForbidden
	}
	s.resetLocked()
	s.mu.Unlock()

	s.runResetHooks()

	return nil
}

// SetPublicMode toggles embedding answers in new challenges. Only a live
// broadcast may change it; the flag lasts until the next reset.
func (s *Store) SetPublicMode(public bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.publisher.Status != PublisherLive {
		return ErrInvalidState
	}

	s.public = public

	return nil
}

func (s *Store) PublicMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.public
}

// SetLabel changes the broadcast label. Only the publisher's own session may.
func (s *Store) SetLabel(identity, token, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.viewerLocked(identity, token)
	if v == nil {
		return ErrNotFound
	}
	if !v.Publisher {
		return ErrForbidden
	}

	s.publisher.Label = label

	return nil
}

// CurrentLabel returns the broadcast label, if one was set.
func (s *Store) CurrentLabel() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.publisher.Label, s.publisher.Label != ""
}

// IsBroadcastLive reports whether a broadcast is live or awaiting resume.
func (s *Store) IsBroadcastLive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.publisher.Status != PublisherIdle
}
