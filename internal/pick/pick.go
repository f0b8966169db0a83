// Package pick resolves fields for which a provider returns several
// candidate values.
package pick

import "strings"

// Preferred returns the first candidate whose discriminator contains one of
// the keywords (case-insensitive), falling back to the last candidate.
// The boolean is false only when candidates is empty.
func Preferred[T any](candidates []T, discriminator func(T) string, keywords ...string) (T, bool) {
	var zero T
	if len(candidates) == 0 {
		return zero, false
	}

	for _, c := range candidates {
		label := strings.ToLower(strings.TrimSpace(discriminator(c)))
		if label == "" {
			continue
		}
		for _, kw := range keywords {
			if kw != "" && strings.Contains(label, strings.ToLower(kw)) {
				return c, true
			}
		}
	}

	return candidates[len(candidates)-1], true
}
