// Package textutil provides rune-aware text shaping helpers: head and tail
// clipping for prompt budgets and length-bounded splitting for chat
// transports. All limits count runes, not bytes, so multi-byte text clips
// at the same visible width as ASCII.
package textutil

// Ellipsis marks text that Clip shortened.
const Ellipsis = "..."

// Clip returns at most max leading runes of s, appending Ellipsis when
// anything was removed. Non-positive max returns s unchanged.
func Clip(s string, max int) string {
	if max <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max]) + Ellipsis
}

// ClipTail returns at most max trailing runes of s. The head is dropped
// silently: callers use it for diff hunks, where the last lines carry the
// context. Non-positive max returns s unchanged.
func ClipTail(s string, max int) string {
	if max <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[len(runes)-max:])
}

// SplitByLength cuts s into consecutive pieces of at most max runes each.
// An empty string yields no pieces; non-positive max yields s whole.
func SplitByLength(s string, max int) []string {
	if s == "" {
		return nil
	}

	if max <= 0 {
		return []string{s}
	}

	runes := []rune(s)
	pieces := make([]string, 0, (len(runes)+max-1)/max)

	for start := 0; start < len(runes); start += max {
		end := start + max
		if end > len(runes) {
			end = len(runes)
		}

		pieces = append(pieces, string(runes[start:end]))
	}

	return pieces
}
