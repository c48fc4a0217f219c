// Package mail fetches messages from a mailbox and normalises them into types.Message values.
package mail

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/application-tracker/internal/types"
)

// FetchMode selects which messages a fetch returns
type FetchMode string

// Fetch modes
const (
	// ModeRecent returns messages received within the lookback window
	ModeRecent FetchMode = "recent"
	// ModeUnread returns messages without the \Seen flag
	ModeUnread FetchMode = "unread"
	// ModeAll returns every message, capped by MaxMessages
	ModeAll FetchMode = "all"
)

// ParseFetchMode validates a mode name
func ParseFetchMode(s string) (FetchMode, error) {
	switch m := FetchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRecent, ModeUnread, ModeAll:
		return m, nil
	case "":
		return ModeRecent, nil
	default:
		return "", fmt.Errorf("unknown email mode %q (want recent, unread or all)", s)
	}
}

// FetchQuery describes one fetch
type FetchQuery struct {
	Mode        FetchMode
	Days        int      // lookback window for ModeRecent
	Keywords    []string // optional full-text filter; any keyword matches
	MaxMessages int      // 0 means unlimited
	Now         time.Time
}

// Since returns the start of the lookback window
func (q FetchQuery) Since() time.Time {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	days := q.Days
	if days < 0 {
		days = 0
	}
	return now.AddDate(0, 0, -days)
}

// Source is a mailbox that can be connected to and queried
type Source interface {
	// Connect opens the mailbox; Fetch must not be called before it succeeds
	Connect(ctx context.Context) error
	// Fetch returns the messages matching q, de-duplicated by ID
	Fetch(ctx context.Context, q FetchQuery) ([]types.Message, error)
	// Disconnect releases the connection; safe to call more than once
	Disconnect() error
}

// FetchError wraps a failure talking to the mailbox
type FetchError struct {
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch failed: %s", e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Dedupe drops messages whose ID was already seen, keeping the first occurrence
func Dedupe(msgs []types.Message) []types.Message {
	seen := make(map[string]bool, len(msgs))
	out := msgs[:0:0]
	for _, m := range msgs {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out
}

// newest orders msgs oldest first and keeps the last n when n > 0
func newest(msgs []types.Message, n int) []types.Message {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Date.Before(msgs[j].Date)
	})
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
