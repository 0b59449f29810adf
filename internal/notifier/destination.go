package notifier

import (
	"context"
	"errors"
	"strings"
)

// ErrDisabled is returned by a destination that is not configured.
var ErrDisabled = errors.New("notifier: destination disabled")

// Embed colours.
const (
	ColorDisclaimer   = 0xFFA500
	ColorAnnouncement = 0x007ACC
)

// Embed is a rich attachment. Destinations without rich messages render the
// description as trailing text.
type Embed struct {
	Description string
	Color       int
}

// Destination is a chat surface that can receive and delete messages.
type Destination interface {
	// ID is unique across destinations and keys the status-message handle.
	ID() string
	// Name is for logs and metrics only; it need not be unique.
	Name() string
	Markup() Markup
	Send(ctx context.Context, text string) (messageID string, err error)
	SendRich(ctx context.Context, text string, embed Embed) (messageID string, err error)
	// Delete removes a message. Deleting a message that is already gone succeeds.
	Delete(ctx context.Context, messageID string) error
}

// Directory discovers the currently configured destinations.
type Directory interface {
	Destinations(ctx context.Context) ([]Destination, error)
}

// Directories merges several directories. Destinations found before an error
// are still returned alongside it.
type Directories []Directory

func (ds Directories) Destinations(ctx context.Context) ([]Destination, error) {
	var (
		out  []Destination
		errs []error
	)
	for _, d := range ds {
		found, err := d.Destinations(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, found...)
	}
	return out, errors.Join(errs...)
}

func joinParts(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
