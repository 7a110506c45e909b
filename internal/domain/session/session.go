package session

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Purpose identifies the duty a session performs.
type Purpose string

const (
	PurposeBroadcast  Purpose = "broadcast"
	PurposeDMListener Purpose = "dm-listener"
)

// UnknownIdentity is reported until the gateway resolves the account.
const UnknownIdentity = "Unknown"

const fingerprintShortLen = 12

func (p Purpose) Valid() bool {
	return p == PurposeBroadcast || p == PurposeDMListener
}

// Status represents session lifecycle status.
type Status string

const (
	StatusStarting Status = "STARTING"
	StatusRunning  Status = "RUNNING"
	StatusStopping Status = "STOPPING"
	StatusStopped  Status = "STOPPED"
)

// Fingerprint is a stable, non-reversible identifier for an identity token.
type Fingerprint string

// FingerprintOf hashes a token so the raw credential never has to be kept as a key or logged.
func FingerprintOf(token string) Fingerprint {
	sum := blake2b.Sum256([]byte(token))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Short returns a prefix suitable for logs and directory names.
func (f Fingerprint) Short() string {
	if len(f) <= fingerprintShortLen {
		return string(f)
	}
	return string(f[:fingerprintShortLen])
}

// Key identifies at most one live session.
type Key struct {
	Identity Fingerprint `json:"identity"`
	Purpose  Purpose     `json:"purpose"`
}

// Session represents one running connection performing a duty.
type Session struct {
	SessionID       uuid.UUID  `json:"sessionId"`
	Key             Key        `json:"key"`
	Status          Status     `json:"status"`
	DisplayIdentity string     `json:"displayIdentity"`
	StartedAt       time.Time  `json:"startedAt"`
	ReadyAt         *time.Time `json:"readyAt,omitempty"`
	StoppedAt       *time.Time `json:"stoppedAt,omitempty"`
}

// New creates a session in the starting state.
func New(key Key, now time.Time) *Session {
	return &Session{
		SessionID:       uuid.New(),
		Key:             key,
		Status:          StatusStarting,
		DisplayIdentity: UnknownIdentity,
		StartedAt:       now,
	}
}

// CanTransitionTo validates session status transition.
func (s *Session) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusStarting: {StatusRunning, StatusStopping},
		StatusRunning:  {StatusStopping},
		StatusStopping: {StatusStopped},
		StatusStopped:  {},
	}
	for _, st := range transitions[s.Status] {
		if st == target {
			return true
		}
	}
	return false
}

// MarkReady records the resolved display identity. It does not change status.
func (s *Session) MarkReady(displayIdentity string, now time.Time) {
	if displayIdentity != "" {
		s.DisplayIdentity = displayIdentity
	}
	if s.ReadyAt == nil {
		s.ReadyAt = &now
	}
}

// Run sets session to running.
func (s *Session) Run() error {
	if !s.CanTransitionTo(StatusRunning) {
		return ErrInvalidTransition
	}
	s.Status = StatusRunning
	return nil
}

// BeginStop sets session to stopping. Stopping an already stopping session is a no-op.
func (s *Session) BeginStop() error {
	if s.Status == StatusStopping {
		return nil
	}
	if !s.CanTransitionTo(StatusStopping) {
		return ErrInvalidTransition
	}
	s.Status = StatusStopping
	return nil
}

// Finish sets session to stopped.
func (s *Session) Finish(now time.Time) error {
	if !s.CanTransitionTo(StatusStopped) {
		return ErrInvalidTransition
	}
	s.Status = StatusStopped
	s.StoppedAt = &now
	return nil
}

// Live reports whether the session still owns its key.
func (s *Session) Live() bool {
	return s.Status != StatusStopped
}

// Observer is told about every status change. Implementations must not block.
type Observer interface {
	SessionChanged(s Session)
}
