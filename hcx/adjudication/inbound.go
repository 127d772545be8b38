package adjudication

import (
	goerrors "errors"

	"github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
)

// Inbound is a poll batch sorted by resource kind. Categorization is by the
// kind of each entry, not by a single discriminant field; a poll response may
// carry zero, one, or many of each.
type Inbound struct {
	// Adjudications are final or interim ClaimResponses for some submission
	// on this channel, not necessarily ours.
	Adjudications []*fhir.ClaimResponse

	// InformationRequests are inbound asks for more data.
	InformationRequests []*fhir.CommunicationRequest

	// CommunicationAcks acknowledge communications we sent earlier.
	CommunicationAcks []*fhir.Communication

	// Outcomes carry exchange-level diagnostics (poll empty, errors).
	Outcomes []*fhir.OperationOutcome

	// Malformed retains entries that could not be decoded. One malformed
	// message never blocks the rest of the batch.
	Malformed []*errors.ParseError
}

// Categorize walks a poll response envelope and buckets every entry. Nested
// message bundles (the exchange wraps each pending message in its own
// envelope) are walked recursively.
func Categorize(b *fhir.Bundle) *Inbound {
	in := &Inbound{}
	categorizeEntries(b, in)
	return in
}

func categorizeEntries(b *fhir.Bundle, in *Inbound) {
	for i := range b.Entries {
		entry := &b.Entries[i]
		switch entry.ResourceType() {
		case fhir.ResourceTypeClaimResponse:
			var cr fhir.ClaimResponse
			if err := entry.Decode(&cr); err != nil {
				in.Malformed = append(in.Malformed, &errors.ParseError{Err: err, Raw: entry.Resource})
				continue
			}
			in.Adjudications = append(in.Adjudications, &cr)
		case fhir.ResourceTypeCommunicationRequest:
			var req fhir.CommunicationRequest
			if err := entry.Decode(&req); err != nil {
				in.Malformed = append(in.Malformed, &errors.ParseError{Err: err, Raw: entry.Resource})
				continue
			}
			in.InformationRequests = append(in.InformationRequests, &req)
		case fhir.ResourceTypeCommunication:
			var comm fhir.Communication
			if err := entry.Decode(&comm); err != nil {
				in.Malformed = append(in.Malformed, &errors.ParseError{Err: err, Raw: entry.Resource})
				continue
			}
			in.CommunicationAcks = append(in.CommunicationAcks, &comm)
		case fhir.ResourceTypeOperationOutcome:
			var oo fhir.OperationOutcome
			if err := entry.Decode(&oo); err != nil {
				in.Malformed = append(in.Malformed, &errors.ParseError{Err: err, Raw: entry.Resource})
				continue
			}
			in.Outcomes = append(in.Outcomes, &oo)
		case fhir.ResourceTypeBundle:
			var inner fhir.Bundle
			if err := entry.Decode(&inner); err != nil {
				in.Malformed = append(in.Malformed, &errors.ParseError{Err: err, Raw: entry.Resource})
				continue
			}
			categorizeEntries(&inner, in)
		case fhir.ResourceTypeMessageHeader, fhir.ResourceTypeTask:
			// envelope plumbing, nothing to apply
		case "":
			in.Malformed = append(in.Malformed, &errors.ParseError{
				Err: errUnknownResource, Raw: entry.Resource})
		}
	}
}

var errUnknownResource = goerrors.New("entry resource has no resourceType")
