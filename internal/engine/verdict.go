package engine

import "fmt"

// Outcome is the classification outcome for one input name.
type Outcome string

const (
	OutcomeConfirmed     Outcome = "confirmed"
	OutcomeAutoCorrected Outcome = "auto-corrected"
	OutcomeSuggested     Outcome = "suggested"
	OutcomeNotAVirus     Outcome = "not-a-virus"
	OutcomeUnresolved    Outcome = "unresolved"
)

// Comment texts attached to verdicts. CommentNotAVirus and
// CommentUnresolved are fixed; the other two are templates over the input
// and resolved names.
const (
	CommentNotAVirus  = "Not the name of a virus"
	CommentUnresolved = "Not found in NCBI Taxonomy"
)

// Verdict is the validation result for one name. Comment is empty for a
// confirmed exact match. CorrectedName is set only for auto-corrected
// verdicts, where the resolved scientific name can replace the input
// downstream.
type Verdict struct {
	Outcome       Outcome `json:"outcome"`
	Comment       string  `json:"comment,omitempty"`
	CorrectedName string  `json:"corrected_name,omitempty"`
}

// PairVerdict bundles the verdicts for a (reported, preferred) name pair.
// CommentsMatch is true when the two comments are equal; two confirmed
// verdicts both carry no comment and therefore match.
type PairVerdict struct {
	Reported      Verdict `json:"reported"`
	Preferred     Verdict `json:"preferred"`
	CommentsMatch bool    `json:"comments_match"`
}

func autoCorrectedComment(input, resolved string) string {
	return fmt.Sprintf(`Automatically replaced "%s" with "%s".`, input, resolved)
}

func suggestedComment(resolved string) string {
	return "Suggestion: " + resolved
}
