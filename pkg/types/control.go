package types

import "strings"

// ControlCommand is the process-wide operator command.
type ControlCommand int32

const (
	CommandResume ControlCommand = iota // CommandResume lets the pipeline run. It is the initial value.
	CommandPause                        // CommandPause holds the pipeline at the next checkpoint.
	CommandStop                         // CommandStop unwinds the pipeline at the next checkpoint.
)

// ParseCommand parses a control token. Matching is case-insensitive and
// ignores surrounding whitespace.
func ParseCommand(s string) (ControlCommand, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pause":
		return CommandPause, true
	case "resume":
		return CommandResume, true
	case "stop":
		return CommandStop, true
	}
	return CommandResume, false
}

func (c ControlCommand) String() string {
	switch c {
	case CommandPause:
		return "pause"
	case CommandStop:
		return "stop"
	default:
		return "resume"
	}
}

// Ack is the reply the control listener sends for a recognised command.
func (c ControlCommand) Ack() string {
	switch c {
	case CommandPause:
		return "PAUSED"
	case CommandStop:
		return "STOPPING"
	default:
		return "RESUMED"
	}
}
