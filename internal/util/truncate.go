package util

// Truncate shortens s to at most n runes for event payloads, appending an
// ellipsis marker when content was cut. Event records keep a bounded
// excerpt of message and tool content; the full text still flows through
// the conversation itself.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
