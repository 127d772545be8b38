package mapper

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/hayat-his/hcx-app/hcx/constants"
)

// Rules holds the operator-tunable pieces of bundle construction: the billing
// currency and the default texts used to satisfy supporting-information
// categories the exchange mandates but the submitter left empty.
//
// Example rules file:
//
//	currency = "SAR"
//
//	[supporting_info_defaults]
//	chief-complaint = "Not provided"
//	patient-history = "No significant history reported"
type Rules struct {
	Currency string `toml:"currency"`

	SupportingInfoDefaults map[string]string `toml:"supporting_info_defaults"`
}

// DefaultRules returns the built-in rule set used when no rules file is
// configured.
func DefaultRules() *Rules {
	return &Rules{
		Currency: constants.DefaultCurrency,
		SupportingInfoDefaults: map[string]string{
			constants.InfoChiefComplaint:   constants.DefaultSupportingInfoText,
			constants.InfoPatientHistory:   constants.DefaultSupportingInfoText,
			constants.InfoInvestigation:    constants.DefaultSupportingInfoText,
			constants.InfoTreatmentPlan:    constants.DefaultSupportingInfoText,
			constants.InfoPhysicalExam:     constants.DefaultSupportingInfoText,
			constants.InfoHistoryOfPresent: constants.DefaultSupportingInfoText,
		},
	}
}

// LoadRules reads a TOML rules file. Values missing from the file fall back
// to the built-in defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	var loaded Rules
	if _, err := toml.DecodeFile(path, &loaded); err != nil {
		return nil, errors.Wrapf(err, "failed to parse rules file %s", path)
	}

	if loaded.Currency != "" {
		rules.Currency = loaded.Currency
	}
	for category, text := range loaded.SupportingInfoDefaults {
		rules.SupportingInfoDefaults[category] = text
	}

	return rules, nil
}

// defaultText returns the configured default for a mandatory category.
func (r *Rules) defaultText(category string) string {
	if text, ok := r.SupportingInfoDefaults[category]; ok && text != "" {
		return text
	}
	return constants.DefaultSupportingInfoText
}
