package util

// MaskToken hides all but a trailing fragment of a credential so logs and
// API listings never expose a usable token.
func MaskToken(t string) string {
	if t == "" {
		return ""
	}
	if len(t) < 20 {
		return "..."
	}
	return "..." + t[len(t)-12:]
}
