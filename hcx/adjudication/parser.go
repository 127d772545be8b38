// Package adjudication normalizes inbound response envelopes and matches them
// back to the submissions they answer.
package adjudication

import (
	goerrors "errors"
	"strings"
	"time"

	"github.com/hayat-his/hcx-app/hcx/constants"
	"github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/models"
)

// Parse extracts the normalized adjudication result from an inbound envelope.
// It errors only when the envelope carries no ClaimResponse at all; a
// semantically sparse response maps absent fields to zero values, never to an
// error.
func Parse(b *fhir.Bundle) (*models.AdjudicationResult, error) {
	entry := b.EntryOfType(fhir.ResourceTypeClaimResponse)
	if entry == nil {
		return nil, &errors.ParseError{Err: goerrors.New("envelope contains no ClaimResponse")}
	}

	var cr fhir.ClaimResponse
	if err := entry.Decode(&cr); err != nil {
		return nil, &errors.ParseError{Err: err, Raw: entry.Resource}
	}

	return ParseResponse(&cr), nil
}

// ParseResponse normalizes one ClaimResponse. Total function.
func ParseResponse(cr *fhir.ClaimResponse) *models.AdjudicationResult {
	result := &models.AdjudicationResult{
		Outcome:          models.AdjudicationOutcome(strings.ToLower(cr.Outcome)),
		Disposition:      cr.Disposition,
		AuthorizationRef: cr.PreAuthRef,
		Currency:         constants.DefaultCurrency,
	}

	result.Decision = deriveDecision(cr)

	if cr.PreAuthPeriod != nil {
		result.PeriodStart = parseDate(cr.PreAuthPeriod.Start)
		result.PeriodEnd = parseDate(cr.PreAuthPeriod.End)
	}

	for _, total := range cr.Total {
		if total.Amount == nil {
			continue
		}
		if total.Amount.Currency != "" {
			result.Currency = total.Amount.Currency
		}
		switch total.Category.Code() {
		case "eligible":
			result.TotalEligible = total.Amount.Value
		case "benefit":
			result.TotalBenefit = total.Amount.Value
		case "copay":
			result.TotalCopay = total.Amount.Value
		}
	}

	for _, item := range cr.Item {
		result.Items = append(result.Items, parseItem(item, result.Currency))
	}

	return result
}

// deriveDecision reduces the exchange's finer-grained vocabulary to a single
// decision. The ordering is load-bearing and relied on by downstream status
// displays: an explicit adjudication-outcome extension wins; otherwise
// case-insensitive substring matches on outcome+disposition; otherwise a
// complete outcome defaults to approved.
func deriveDecision(cr *fhir.ClaimResponse) models.AdjudicationDecision {
	if ext := fhir.FindExtension(cr.Extension, constants.ExtAdjudicationOutcome); ext != nil {
		if d, ok := decisionFromCode(extensionCode(ext)); ok {
			return d
		}
	}

	text := strings.ToLower(cr.Outcome + " " + cr.Disposition)
	switch {
	case strings.Contains(text, "approve"), strings.Contains(text, "accept"):
		return models.DecisionApproved
	case strings.Contains(text, "den"), strings.Contains(text, "reject"):
		return models.DecisionRejected
	}

	switch strings.ToLower(cr.Outcome) {
	case string(models.OutcomeComplete):
		return models.DecisionApproved
	case string(models.OutcomePartial):
		return models.DecisionPartial
	default:
		return models.DecisionPending
	}
}

func decisionFromCode(code string) (models.AdjudicationDecision, bool) {
	switch strings.ToLower(code) {
	case "approved":
		return models.DecisionApproved, true
	case "rejected", "denied":
		return models.DecisionRejected, true
	case "partial":
		return models.DecisionPartial, true
	case "pending":
		return models.DecisionPending, true
	}
	return "", false
}

func extensionCode(ext *fhir.Extension) string {
	if ext.ValueCode != "" {
		return ext.ValueCode
	}
	return ext.ValueCodeableConcept.Code()
}

func parseItem(item fhir.ClaimResponseItem, currency string) models.LineAdjudication {
	line := models.LineAdjudication{
		ItemSequence: item.ItemSequence,
		Currency:     currency,
	}

	if ext := fhir.FindExtension(item.Extension, constants.ExtAdjudicationOutcome); ext != nil {
		line.Status = extensionCode(ext)
	}

	for _, adj := range item.Adjudication {
		category := adj.Category.Code()
		if adj.Amount != nil && (category == "benefit" || (category == "eligible" && line.Amount == 0)) {
			line.Amount = adj.Amount.Value
			if adj.Amount.Currency != "" {
				line.Currency = adj.Amount.Currency
			}
		}
		if adj.Reason != nil && line.ReasonCode == "" {
			line.ReasonCode = adj.Reason.Code()
			line.ReasonText = adj.Reason.Text
		}
	}

	return line
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
