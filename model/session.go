package model

import "time"

// Status is the lifecycle state of an acquisition session.
type Status int

const (
	StatusIdle Status = iota
	StatusAcquiring
	StatusWatching
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusAcquiring:
		return "acquiring"
	case StatusWatching:
		return "watching"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets snapshots serialise the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Live reports whether a session in this status may hold a sensor subscription.
func (s Status) Live() bool {
	return s == StatusAcquiring || s == StatusWatching
}

// Terminal reports whether the status ends a session.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrorKind is the engine's error taxonomy. Every kind is terminal for the
// session it occurs in.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	ErrorPermissionDenied
	ErrorPositionUnavailable
	ErrorTimeout
	ErrorUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorPermissionDenied:
		return "permission_denied"
	case ErrorPositionUnavailable:
		return "position_unavailable"
	case ErrorTimeout:
		return "timeout"
	case ErrorUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// MarshalText lets snapshots serialise the error kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AccuracyGrade buckets an accuracy radius for display.
type AccuracyGrade string

const (
	AccuracyUnknown AccuracyGrade = ""
	AccuracyHigh    AccuracyGrade = "high"
	AccuracyMedium  AccuracyGrade = "medium"
	AccuracyLow     AccuracyGrade = "low"
)

// GradeAccuracy returns High up to 50 m, Medium up to 100 m and Low beyond.
func GradeAccuracy(meters float64) AccuracyGrade {
	switch {
	case meters <= 50:
		return AccuracyHigh
	case meters <= 100:
		return AccuracyMedium
	default:
		return AccuracyLow
	}
}

// Snapshot is the read-only view of a session handed to the host. A snapshot
// is never modified after publication; pointer fields must be treated as
// read-only.
type Snapshot struct {
	// Version increases with every publication by a given store.
	Version   uint64 `json:"version"`
	SessionID string `json:"session_id,omitempty"`

	Status         Status          `json:"status"`
	Attempts       int             `json:"attempts"`
	Coordinates    *Coordinates    `json:"coordinates,omitempty"`
	AccuracyMeters *float64        `json:"accuracy_meters,omitempty"`
	CapturedAt     *time.Time      `json:"captured_at,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Error          *ErrorKind      `json:"error,omitempty"`

	Loading  bool `json:"loading"`
	Watching bool `json:"watching"`
}

// AccuracyGrade grades the snapshot's accuracy, or AccuracyUnknown without one.
func (s Snapshot) AccuracyGrade() AccuracyGrade {
	if s.AccuracyMeters == nil {
		return AccuracyUnknown
	}
	return GradeAccuracy(*s.AccuracyMeters)
}

// LocationString renders the coordinates for a report, or "" without a fix.
func (s Snapshot) LocationString() string {
	if s.Coordinates == nil {
		return ""
	}
	return s.Coordinates.String()
}
