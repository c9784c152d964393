package actions

import (
	"context"

	"github.com/entrhq/booker/pkg/types"
)

// Device synthesises low-level input. Implementations need not be safe for
// concurrent use; the pipeline goroutine is the only caller.
type Device interface {
	// Position returns the current pointer location.
	Position() types.Location

	MoveTo(ctx context.Context, loc types.Location) error
	Click(ctx context.Context) error
	TypeRune(ctx context.Context, r rune) error
	Press(ctx context.Context, key string) error
	Scroll(ctx context.Context, dy int) error
	Upload(ctx context.Context, reference, path string) error
	Reload(ctx context.Context) error
}

// Paster is implemented by devices that can paste text in one step.
// The Humanizer pastes secrets through it when Options.PasteSecrets is set.
type Paster interface {
	Paste(ctx context.Context, text []byte) error
}
