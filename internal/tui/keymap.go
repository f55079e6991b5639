package tui

// Key bindings handled in handleKey.
const (
	KeyToggle  = " "
	KeyFinish  = "f"
	KeyDiscard = "d"
	KeyQuit    = "q"
	KeyCtrlC   = "ctrl+c"
)
