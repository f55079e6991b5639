// Package ipc carries control commands from short-lived CLI invocations to
// the process that owns the running recording. Each connection holds one
// newline-terminated JSON request and one JSON response.
package ipc

// Commands accepted by the recording owner.
const (
	CommandStatus = "status"
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandStop   = "stop"
	CommandReset  = "reset"
)

// KnownCommand reports whether command is one the owner understands.
func KnownCommand(command string) bool {
	switch command {
	case CommandStatus, CommandPause, CommandResume, CommandStop, CommandReset:
		return true
	default:
		return false
	}
}

type Request struct {
	Command string `json:"command"`
}

// Response mirrors a session snapshot. ErrorCode and Error describe the
// session's failure; Error alone describes a rejected command.
type Response struct {
	OK         bool   `json:"ok"`
	State      string `json:"state,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	ElapsedMS  int64  `json:"elapsed_ms,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

func failure(format string, err error) Response {
	return Response{OK: false, Error: format + ": " + err.Error()}
}
