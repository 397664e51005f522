package inventory

import (
	"fmt"
	"regexp"
	"strconv"
)

// =============================================================================
// DISPLAY-NAME SEQUENCE - "New Note", "New Note (2)", ...
// =============================================================================

// nextSequencedName picks the next default display name for base given
// the names already in use: an unsuffixed "Base" counts as 1, "Base (N)"
// counts as N, and the result is max+1 (or plain "Base" when the base is
// unused).
//
// The scan-then-increment cycle is not linearizable: two concurrent
// creates can both observe the same maximum and suggest the same name.
// Display names are not identifiers, so duplicates are tolerated.
func nextSequencedName(existing []string, base string) string {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `(?: \((\d+)\))?$`)

	max := 0
	for _, name := range existing {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n := 1
		if m[1] != "" {
			if parsed, err := strconv.Atoi(m[1]); err == nil {
				n = parsed
			}
		}
		if n > max {
			max = n
		}
	}

	if max == 0 {
		return base
	}
	return fmt.Sprintf("%s (%d)", base, max+1)
}
