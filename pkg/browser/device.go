package browser

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/entrhq/booker/pkg/types"
)

// Device synthesises input on the page through Playwright's mouse and
// keyboard. It also implements actions.Paster through the system clipboard.
type Device struct {
	page *pageDriver
	pos  types.Location
}

// Position returns the last pointer location.
func (d *Device) Position() types.Location {
	return d.pos
}

func (d *Device) MoveTo(ctx context.Context, loc types.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.page.page.Mouse().Move(loc.X, loc.Y); err != nil {
		return fmt.Errorf("mouse move failed: %w", err)
	}
	d.pos = loc
	return nil
}

func (d *Device) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.page.page.Mouse().Click(d.pos.X, d.pos.Y); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (d *Device) TypeRune(ctx context.Context, r rune) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.page.page.Keyboard().Type(string(r)); err != nil {
		return fmt.Errorf("typing failed: %w", err)
	}
	return nil
}

func (d *Device) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.page.page.Keyboard().Press(key); err != nil {
		return fmt.Errorf("key press %s failed: %w", key, err)
	}
	return nil
}

func (d *Device) Scroll(ctx context.Context, dy int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.page.page.Mouse().Wheel(0, float64(dy)); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

// Upload attaches path to the file input behind reference.
func (d *Device) Upload(ctx context.Context, reference, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sel, err := d.page.catalog.Selector(reference)
	if err != nil {
		return err
	}
	if err := d.page.page.Locator(sel).First().SetInputFiles(path); err != nil {
		return fmt.Errorf("upload to %s failed: %w", reference, err)
	}
	return nil
}

func (d *Device) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.page.page.Reload(); err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	return nil
}

// Paste puts text on the clipboard, pastes it into the focused field and
// clears the clipboard again.
func (d *Device) Paste(ctx context.Context, text []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := clipboard.WriteAll(string(text)); err != nil {
		return fmt.Errorf("clipboard write failed: %w", err)
	}
	defer func() { _ = clipboard.WriteAll("") }()

	if err := d.page.page.Keyboard().Press("ControlOrMeta+V"); err != nil {
		return fmt.Errorf("paste failed: %w", err)
	}
	return nil
}
