package alert

import (
	"errors"
	"strings"
)

// ErrInvalidKey is returned when a report is missing its entity or subject.
var ErrInvalidKey = errors.New("alert: entity and subject are required")

// State is the last known health of a key.
type State int

const (
	StateUp State = iota + 1
	StateDown
)

func (s State) String() string {
	switch s {
	case StateUp:
		return "up"
	case StateDown:
		return "down"
	default:
		return "unknown"
	}
}

// Key identifies one independently debounced alert stream.
// It is comparable, so two keys with equal fields hit the same map entry.
type Key struct {
	Entity  string
	Subject string
}

func NewKey(entity, subject string) (Key, error) {
	entity = strings.TrimSpace(entity)
	subject = strings.TrimSpace(subject)
	if entity == "" || subject == "" {
		return Key{}, ErrInvalidKey
	}
	return Key{Entity: entity, Subject: subject}, nil
}

func (k Key) String() string { return k.Entity + "/" + k.Subject }
