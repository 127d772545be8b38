package mapper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hayat-his/hcx-app/hcx/constants"
)

func TestLoadRulesEmptyPathUsesDefaults(t *testing.T) {
	rules, err := LoadRules("")
	assert.NoError(t, err)
	assert.Equal(t, constants.DefaultCurrency, rules.Currency)
	assert.Equal(t, constants.DefaultSupportingInfoText, rules.defaultText(constants.InfoChiefComplaint))
}

func TestLoadRulesOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	content := `
currency = "USD"

[supporting_info_defaults]
chief-complaint = "Not documented at intake"
`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0600))

	rules, err := LoadRules(path)
	assert.NoError(t, err)
	assert.Equal(t, "USD", rules.Currency)
	assert.Equal(t, "Not documented at intake", rules.defaultText(constants.InfoChiefComplaint))

	// Categories the file does not mention keep their built-in text.
	assert.Equal(t, constants.DefaultSupportingInfoText, rules.defaultText(constants.InfoTreatmentPlan))
}

func TestLoadRulesBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	assert.NoError(t, os.WriteFile(path, []byte("currency = ["), 0600))

	_, err := LoadRules(path)
	assert.Error(t, err)
}

func TestDefaultTextUnknownCategory(t *testing.T) {
	rules := DefaultRules()
	assert.Equal(t, constants.DefaultSupportingInfoText, rules.defaultText("no-such-category"))
}
