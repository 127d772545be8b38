package adjudication

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hayat-his/hcx-app/hcx/fhir"
)

const (
	matchSystem = "http://provider.hayat-his.sa/authorization"
	matchValue  = "req-1001"
)

func answering(system, value string) *fhir.ClaimResponse {
	return &fhir.ClaimResponse{
		ResourceType: fhir.ResourceTypeClaimResponse,
		Request:      &fhir.Reference{Identifier: &fhir.Identifier{System: system, Value: value}},
	}
}

func TestMatcherResolve(t *testing.T) {
	m := NewMatcher(MatchConfig{})

	ours := answering(matchSystem, matchValue)
	other := answering(matchSystem, "req-9999")
	anonymous := &fhir.ClaimResponse{ResourceType: fhir.ResourceTypeClaimResponse}

	matched, unmatched := m.Resolve([]*fhir.ClaimResponse{other, ours, anonymous}, matchSystem, matchValue)
	assert.Equal(t, []*fhir.ClaimResponse{ours}, matched)
	assert.Equal(t, []*fhir.ClaimResponse{other, anonymous}, unmatched)
}

func TestMatcherIdentifierComparisonIsExact(t *testing.T) {
	m := NewMatcher(MatchConfig{})

	// A system differing only in case is a different identifier. The loose
	// comparison this replaces misattributed responses across submitters.
	tests := []struct {
		name   string
		cr     *fhir.ClaimResponse
		system string
		value  string
		want   bool
	}{
		{"exact match", answering(matchSystem, matchValue), matchSystem, matchValue, true},
		{"system case differs", answering("HTTP://PROVIDER.HAYAT-HIS.SA/authorization", matchValue), matchSystem, matchValue, false},
		{"value case differs", answering(matchSystem, "REQ-1001"), matchSystem, matchValue, false},
		{"trailing space", answering(matchSystem, matchValue+" "), matchSystem, matchValue, false},
		{"no answers-to identifier", &fhir.ClaimResponse{}, matchSystem, matchValue, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Matches(tt.cr, tt.system, tt.value))
		})
	}
}

func TestLoneResponseFallbackOffByDefault(t *testing.T) {
	m := NewMatcher(MatchConfig{})

	anonymous := &fhir.ClaimResponse{ResourceType: fhir.ResourceTypeClaimResponse}
	matched, unmatched := m.Resolve([]*fhir.ClaimResponse{anonymous}, matchSystem, matchValue)
	assert.Empty(t, matched)
	assert.Len(t, unmatched, 1)
}

func TestLoneResponseFallbackWhenEnabled(t *testing.T) {
	m := NewMatcher(MatchConfig{AllowLoneResponseFallback: true})

	// One anonymous response in the batch is attributed to the polled
	// submission.
	anonymous := &fhir.ClaimResponse{ResourceType: fhir.ResourceTypeClaimResponse}
	matched, unmatched := m.Resolve([]*fhir.ClaimResponse{anonymous}, matchSystem, matchValue)
	assert.Equal(t, []*fhir.ClaimResponse{anonymous}, matched)
	assert.Empty(t, unmatched)

	// A lone response that declares a different identifier stays unmatched.
	other := answering(matchSystem, "req-9999")
	matched, unmatched = m.Resolve([]*fhir.ClaimResponse{other}, matchSystem, matchValue)
	assert.Empty(t, matched)
	assert.Len(t, unmatched, 1)

	// Two anonymous responses are ambiguous; neither is attributed.
	matched, _ = m.Resolve([]*fhir.ClaimResponse{anonymous, anonymous}, matchSystem, matchValue)
	assert.Empty(t, matched)

	// The fallback is never consulted when a strict match exists.
	ours := answering(matchSystem, matchValue)
	matched, unmatched = m.Resolve([]*fhir.ClaimResponse{ours, anonymous}, matchSystem, matchValue)
	assert.Equal(t, []*fhir.ClaimResponse{ours}, matched)
	assert.Equal(t, []*fhir.ClaimResponse{anonymous}, unmatched)
}
