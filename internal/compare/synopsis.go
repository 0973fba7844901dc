package compare

import "strings"

// Fixed synopsis literals. DIFF dominates: when any real difference is
// present the other flags are suppressed entirely, since that is what the
// user cares about. The combined message deliberately avoids the FIELDLIST
// and BFAIL keywords so a grep -v on either still shows it.
const (
	SynopsisDiff           = "DIFF"
	SynopsisFieldLists     = "FIELDLIST field lists differ (otherwise bit-for-bit)"
	SynopsisMissing        = "ERROR " + NoBaselinesComment + " some baseline files were missing"
	SynopsisMultipleIssues = "MULTIPLE ISSUES: field lists differ and some baseline files were missing"
)

// NoBaselinesComment is the distinguished token for absent-baseline
// conditions, shared with the baseline operations.
const NoBaselinesComment = "BFAIL"

// Synopsize reduces a multi-line comment blob to a single categorical status
// line. Empty input stays empty; a single line passes through trimmed.
func Synopsize(comments string) string {
	if comments == "" {
		return ""
	}
	trimmed := strings.TrimSpace(comments)
	if !strings.Contains(trimmed, "\n") {
		return trimmed
	}

	hasFieldListDiffs := false
	hasMissingBaselines := false
	hasRealFails := false
	for _, line := range strings.Split(comments, "\n") {
		if strings.Contains(line, FieldListsComment) {
			hasFieldListDiffs = true
		}
		if strings.Contains(line, NoCompareComment) {
			hasMissingBaselines = true
		}
		for _, marker := range realFailureComments {
			if strings.Contains(line, marker) {
				hasRealFails = true
			}
		}
	}

	switch {
	case hasRealFails:
		return SynopsisDiff
	case hasFieldListDiffs && hasMissingBaselines:
		return SynopsisMultipleIssues
	case hasFieldListDiffs:
		return SynopsisFieldLists
	case hasMissingBaselines:
		return SynopsisMissing
	default:
		return ""
	}
}
