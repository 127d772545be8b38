package adjudication

import (
	"github.com/hayat-his/hcx-app/hcx/fhir"
)

// MatchConfig controls the matching heuristics.
type MatchConfig struct {
	// AllowLoneResponseFallback enables the legacy "exactly one response in
	// the batch, assume it's ours" heuristic. It silently misattributes
	// responses when one unrelated response happens to be in the batch, so
	// it is off by default and is never consulted when a strict identifier
	// match exists anywhere in the batch.
	AllowLoneResponseFallback bool
}

// Matcher resolves inbound responses to the submission they answer by
// identifier system+value equality. Comparison is exact byte equality: a
// response whose identifier differs even by system case is unmatched.
type Matcher struct {
	cfg MatchConfig
}

func NewMatcher(cfg MatchConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// AnswersTo returns the identifier the response declares it answers, or nil.
func AnswersTo(cr *fhir.ClaimResponse) *fhir.Identifier {
	if cr.Request == nil || cr.Request.Identifier == nil {
		return nil
	}
	return cr.Request.Identifier
}

// Matches reports whether the response answers the given identifier.
func (m *Matcher) Matches(cr *fhir.ClaimResponse, system, value string) bool {
	id := AnswersTo(cr)
	if id == nil {
		return false
	}
	return id.System == system && id.Value == value
}

// Resolve splits a poll batch into the responses answering the given
// submission identifier and the rest. One poll call can return traffic
// belonging to other submissions on the same provider/insurer channel, so
// everything unmatched is reported back for diagnostics, never applied.
func (m *Matcher) Resolve(batch []*fhir.ClaimResponse, system, value string) (matched, unmatched []*fhir.ClaimResponse) {
	for _, cr := range batch {
		if m.Matches(cr, system, value) {
			matched = append(matched, cr)
		} else {
			unmatched = append(unmatched, cr)
		}
	}

	if len(matched) > 0 || !m.cfg.AllowLoneResponseFallback {
		return matched, unmatched
	}

	// Legacy escape hatch: a batch of exactly one response with no declared
	// answers-to identifier is attributed to the polled submission. A lone
	// response that declares a different identifier stays unmatched.
	if len(batch) == 1 && AnswersTo(batch[0]) == nil {
		return batch, nil
	}

	return matched, unmatched
}
