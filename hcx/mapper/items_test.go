package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hayat-his/hcx-app/hcx/constants"
	"github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/models"
)

func TestItemNetRecomputed(t *testing.T) {
	tests := []struct {
		name string
		in   models.ItemInput
		net  float64
	}{
		{"unit quantity", models.ItemInput{Quantity: 1, UnitPrice: 150}, 150},
		{"quantity and tax", models.ItemInput{Quantity: 3, UnitPrice: 33.33, Tax: 15}, 114.99},
		{"discount factor", models.ItemInput{Quantity: 2, UnitPrice: 100, Factor: 0.85}, 170},
		{"rounding to the penny", models.ItemInput{Quantity: 3, UnitPrice: 0.10, Factor: 0.333}, 0.10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.net, itemNet(tt.in))
		})
	}
}

func TestBuildItemsTotalIsSumOfRoundedNets(t *testing.T) {
	// Each line rounds to 33.33; a total computed from the unrounded values
	// would differ at the penny and be rejected by the exchange.
	items := []models.ItemInput{
		{ServiceCode: "A", Quantity: 1, UnitPrice: 33.333},
		{ServiceCode: "B", Quantity: 1, UnitPrice: 33.333},
		{ServiceCode: "C", Quantity: 1, UnitPrice: 33.333},
	}

	out, total, err := buildItems(items, "SAR", itemRules{})
	assert.NoError(t, err)
	assert.Len(t, out, 3)
	for _, item := range out {
		assert.Equal(t, 33.33, item.Net.Value)
	}
	assert.Equal(t, 99.99, total.Value)
	assert.Equal(t, "SAR", total.Currency)
}

func TestBuildItemsRequiresLines(t *testing.T) {
	_, _, err := buildItems(nil, "SAR", itemRules{})
	var buildErr *errors.BuildError
	assert.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "items", buildErr.Field)
}

func TestBuildItemsRequiresServiceCode(t *testing.T) {
	_, _, err := buildItems([]models.ItemInput{{Quantity: 1, UnitPrice: 10}}, "SAR", itemRules{})
	var buildErr *errors.BuildError
	assert.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "items.serviceCode", buildErr.Field)
}

func TestBuildItemsInvoiceOnlyForClaims(t *testing.T) {
	items := []models.ItemInput{{ServiceCode: "A", Quantity: 1, UnitPrice: 10, InvoiceNumber: "INV-1"}}

	out, _, err := buildItems(items, "SAR", itemRules{requireInvoice: true})
	assert.NoError(t, err)
	ext := fhir.FindExtension(out[0].Extension, constants.ExtPatientInvoice)
	assert.NotNil(t, ext)
	assert.Equal(t, "INV-1", ext.ValueIdentifier.Value)

	// Prior authorizations never carry the invoice extension even when an
	// invoice number happens to be captured upstream.
	out, _, err = buildItems(items, "SAR", itemRules{requireInvoice: false})
	assert.NoError(t, err)
	assert.Nil(t, fhir.FindExtension(out[0].Extension, constants.ExtPatientInvoice))

	items[0].InvoiceNumber = ""
	_, _, err = buildItems(items, "SAR", itemRules{requireInvoice: true})
	var buildErr *errors.BuildError
	assert.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "items.invoiceNumber", buildErr.Field)
}

func TestBuildItemsMoneyExtensionsAlwaysPresent(t *testing.T) {
	items := []models.ItemInput{{ServiceCode: "A", Quantity: 1, UnitPrice: 10, PatientShare: 2.5, Tax: 1.5}}

	out, _, err := buildItems(items, "SAR", itemRules{})
	assert.NoError(t, err)

	share := fhir.FindExtension(out[0].Extension, constants.ExtPatientShare)
	assert.NotNil(t, share)
	assert.Equal(t, 2.5, share.ValueMoney.Value)

	tax := fhir.FindExtension(out[0].Extension, constants.ExtTax)
	assert.NotNil(t, tax)
	assert.Equal(t, 1.5, tax.ValueMoney.Value)
}

func TestBuildItemsDefaultsSequenceAndFactor(t *testing.T) {
	items := []models.ItemInput{
		{ServiceCode: "A", Quantity: 1, UnitPrice: 10},
		{ServiceCode: "B", Quantity: 1, UnitPrice: 10, Sequence: 9},
	}

	out, _, err := buildItems(items, "SAR", itemRules{})
	assert.NoError(t, err)
	assert.Equal(t, 1, out[0].Sequence)
	assert.Equal(t, 9, out[1].Sequence)
	assert.Equal(t, float64(1), out[0].Factor)
}
