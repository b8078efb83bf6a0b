/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package access

import "time"

// ViewerStatus is the position of a viewer session in its state machine.
type ViewerStatus int

const (
	StatusPending ViewerStatus = iota
	StatusAuthorized
	StatusDenied
	StatusActive
	StatusDormant
)

var viewerStatusNames = [...]string{
	StatusPending:    "pending",
	StatusAuthorized: "authorized",
	StatusDenied:     "denied",
	StatusActive:     "active",
	StatusDormant:    "dormant",
}

func (s ViewerStatus) String() string {
	if int(s) < len(viewerStatusNames) {
		return viewerStatusNames[s]
	}
	return "unknown"
}

// TTL is how long a session may stay idle in this status. Zero means never.
func (s ViewerStatus) TTL() time.Duration {
	switch s {
	case StatusPending, StatusDenied:
		return 60 * time.Second
	case StatusAuthorized:
		return time.Hour
	case StatusDormant:
		return 2 * time.Hour
	default:
		return 0
	}
}

// Authorized reports whether the status grants access to the stream and chat.
func (s ViewerStatus) Authorized() bool {
	return s == StatusAuthorized || s == StatusActive || s == StatusDormant
}

// PublisherStatus is the state of the single publisher slot.
type PublisherStatus int

const (
	PublisherIdle PublisherStatus = iota
	PublisherLive
	PublisherInterrupted
)

func (s PublisherStatus) String() string {
	switch s {
	case PublisherIdle:
		return "idle"
	case PublisherLive:
		return "live"
	case PublisherInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

func (s PublisherStatus) TTL() time.Duration {
	switch s {
	case PublisherIdle:
		return 3 * time.Minute
	case PublisherInterrupted:
		return 10 * time.Minute
	default:
		return 0
	}
}

// StreamState is the coarse status reported to a viewer polling for updates.
type StreamState string

const (
	StateUnregistered StreamState = "unregistered"
	StateBanned       StreamState = "banned"
	StatePending      StreamState = "pending"
	StateLive         StreamState = "live"
	StatePaused       StreamState = "paused"
	StateEnded        StreamState = "ended"
)

func expired(ttl time.Duration, last, now time.Time) bool {
	return ttl > 0 && now.Sub(last) > ttl
}
