// Package actions describes input sequences and plays them on a Device with
// human-like timing.
package actions

import (
	"fmt"
	"time"

	"github.com/entrhq/booker/pkg/types"
)

// Kind is the kind of an input primitive.
type Kind string

const (
	KindClick   Kind = "click"    // KindClick moves to an observed reference and clicks it.
	KindClickAt Kind = "click_at" // KindClickAt moves to an explicit location and clicks it.
	KindType    Kind = "type"     // KindType types Text (or Secret) into the focused field.
	KindPress   Kind = "press"    // KindPress presses a named key such as Enter or Tab.
	KindScroll  Kind = "scroll"   // KindScroll scrolls the page vertically.
	KindUpload  Kind = "upload"   // KindUpload attaches a local file to a file input reference.
	KindReload  Kind = "reload"   // KindReload reloads the current page.
	KindWait    Kind = "wait"     // KindWait idles for Wait.
)

// Action is one input primitive.
type Action struct {
	Kind Kind

	// Reference is the observed target of click and upload actions.
	Reference string

	// At is the explicit target of click_at actions.
	At types.Location

	// Text is typed by type actions, or the file path of upload actions.
	Text string

	// Secret is typed instead of Text when set. The slice is wiped after the
	// action runs, whether it succeeded or not.
	Secret []byte

	Key    string
	Scroll int
	Wait   time.Duration
}

// String describes the action without revealing secrets.
func (a Action) String() string {
	switch a.Kind {
	case KindClick:
		return fmt.Sprintf("click(%s)", a.Reference)
	case KindClickAt:
		return fmt.Sprintf("click_at(%.0f,%.0f)", a.At.X, a.At.Y)
	case KindType:
		if a.Secret != nil {
			return "type(<secret>)"
		}
		return fmt.Sprintf("type(%d chars)", len([]rune(a.Text)))
	case KindPress:
		return fmt.Sprintf("press(%s)", a.Key)
	case KindScroll:
		return fmt.Sprintf("scroll(%d)", a.Scroll)
	case KindUpload:
		return fmt.Sprintf("upload(%s)", a.Reference)
	case KindWait:
		return fmt.Sprintf("wait(%s)", a.Wait)
	default:
		return string(a.Kind)
	}
}

// Click targets an observed reference.
func Click(reference string) Action {
	return Action{Kind: KindClick, Reference: reference}
}

// ClickAt targets an explicit location.
func ClickAt(loc types.Location) Action {
	return Action{Kind: KindClickAt, At: loc}
}

// Type types text into the focused field.
func Type(text string) Action {
	return Action{Kind: KindType, Text: text}
}

// TypeSecret types a secret. The slice is owned by the action from now on.
func TypeSecret(secret []byte) Action {
	return Action{Kind: KindType, Secret: secret}
}

// Press presses a named key.
func Press(key string) Action {
	return Action{Kind: KindPress, Key: key}
}

// ScrollBy scrolls vertically by dy pixels.
func ScrollBy(dy int) Action {
	return Action{Kind: KindScroll, Scroll: dy}
}

// Upload attaches the file at path to the file input reference.
func Upload(reference, path string) Action {
	return Action{Kind: KindUpload, Reference: reference, Text: path}
}

// Reload reloads the page.
func Reload() Action {
	return Action{Kind: KindReload}
}

// Wait idles for d.
func Wait(d time.Duration) Action {
	return Action{Kind: KindWait, Wait: d}
}

// Sequence is an ordered list of actions executed without interruption.
type Sequence []Action

// Wipe zeroes every secret carried by the sequence.
func (s Sequence) Wipe() {
	for i := range s {
		wipe(s[i].Secret)
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ActionError reports which action of a sequence failed.
type ActionError struct {
	Index  int
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s) failed: %v", e.Index, e.Action, e.Err)
}

// Unwrap returns the device error.
func (e *ActionError) Unwrap() error {
	return e.Err
}
