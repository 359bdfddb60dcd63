// Package extract pulls Solana mint address candidates out of post text.
package extract

import "regexp"

// Solana mints are 44 characters of the base58 alphabet, which excludes
// the ambiguous glyphs 0, O, I and l. The \b anchors reject 43- and
// 45-character look-alikes: an address embedded in a longer base58 run
// is not a valid candidate.
var mintPattern = regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{44}\b`)

// Mints returns every mint-shaped candidate in text, in order of
// appearance, de-duplicated. False positives waste budget on the liquidity
// check; false negatives miss real launches, so the pattern mirrors the
// chain's address syntax exactly.
func Mints(text string) []string {
	matches := mintPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
