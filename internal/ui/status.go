package ui

// Checkbox renders a todo's completion state.
func Checkbox(completed bool) string {
	if completed {
		return "[x]"
	}
	return "[ ]"
}

// Marker flags entries whose change is not confirmed yet.
func Marker(provisional, pending bool) string {
	switch {
	case provisional:
		return "+"
	case pending:
		return "~"
	default:
		return ""
	}
}
