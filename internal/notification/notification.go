package notification

// Status is the visual state of the status line.
type Status int

// Numbering matches the status values the page styles on.
const (
	Hidden Status = iota
	Ok
	Loading
	Error
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Ok:
		return "ok"
	case Loading:
		return "loading"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Class returns the CSS class the status line uses for this status.
func (s Status) Class() string {
	switch s {
	case Ok:
		return "completed"
	case Loading:
		return "loading"
	case Error:
		return "error"
	default:
		return "none"
	}
}

// State is the message shown in the status line together with its status.
type State struct {
	Message string `json:"message"`
	Status  Status `json:"status"`
}

// Cleared is the state after an auto-clear.
var Cleared = State{Message: "", Status: Hidden}

// Visible reports whether the status line should be shown.
func (s State) Visible() bool {
	return s.Status != Hidden
}
