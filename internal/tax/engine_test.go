package tax

import (
	"testing"

	"github.com/smallbiznis/telbill/internal/config"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine() *Engine {
	return NewEngine(config.DefaultBillingConfig().Tax)
}

func TestComputeIntraState(t *testing.T) {
	res, err := newEngine().Compute(34900, "Karnataka", "Karnataka", "India")
	require.NoError(t, err)

	assert.Equal(t, RegimeIntraState, res.Regime)
	assert.Equal(t, int64(3141), res.CGST)
	assert.Equal(t, int64(3141), res.SGST)
	assert.Equal(t, int64(0), res.IGST)
	assert.Equal(t, int64(6282), res.TaxAmount)
	assert.Equal(t, int64(41182), res.Total())

	lines := res.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, CodeCGST, lines[0].Code)
	assert.Equal(t, int64(900), lines[0].RateBps)
	assert.Equal(t, CodeSGST, lines[1].Code)
}

func TestComputeInterState(t *testing.T) {
	res, err := newEngine().Compute(34900, "Maharashtra", "Karnataka", "IN")
	require.NoError(t, err)

	assert.Equal(t, RegimeInterState, res.Regime)
	assert.Equal(t, int64(6282), res.IGST)
	assert.Equal(t, int64(6282), res.TaxAmount)
	require.Len(t, res.Lines(), 1)
	assert.Equal(t, CodeIGST, res.Lines()[0].Code)
}

func TestComputeRoundsComponentsIndependently(t *testing.T) {
	// 9% of 5 paise is 0.45 each; 18% is 0.9.
	intra, err := newEngine().Compute(5, "karnataka ", " Karnataka", "india")
	require.NoError(t, err)
	assert.Equal(t, int64(0), intra.CGST)
	assert.Equal(t, int64(0), intra.SGST)

	inter, err := newEngine().Compute(5, "Goa", "Karnataka", "IND")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inter.IGST)
	assert.LessOrEqual(t, inter.TaxAmount-intra.TaxAmount, int64(1))
}

func TestComputeExport(t *testing.T) {
	for _, country := range []string{"US", "United States", "sg", "Germany"} {
		res, err := newEngine().Compute(34900, "California", "Karnataka", country)
		require.NoError(t, err, country)
		assert.Equal(t, int64(0), res.TaxAmount, country)
		assert.Empty(t, res.Lines(), country)
		assert.Equal(t, int64(34900), res.Total(), country)
	}
}

func TestComputeZeroSubtotal(t *testing.T) {
	res, err := newEngine().Compute(0, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.TaxAmount)
	assert.Empty(t, res.Lines())
}

func TestComputeJurisdictionErrors(t *testing.T) {
	e := newEngine()

	_, err := e.Compute(100, "Karnataka", "Karnataka", "")
	assert.ErrorIs(t, err, billingerr.ErrTaxJurisdiction)
	assert.ErrorIs(t, err, ErrUnknownCountry)

	_, err = e.Compute(100, "Karnataka", "Karnataka", "Atlantis")
	assert.ErrorIs(t, err, ErrUnknownCountry)

	_, err = e.Compute(100, "", "Karnataka", "India")
	assert.ErrorIs(t, err, billingerr.ErrTaxJurisdiction)
	assert.ErrorIs(t, err, ErrMissingState)

	_, err = e.Compute(-1, "Karnataka", "Karnataka", "India")
	assert.ErrorIs(t, err, ErrNegativeSubtotal)
	assert.ErrorIs(t, err, billingerr.ErrTaxJurisdiction)
	assert.Equal(t, "tax_jurisdiction_error", billingerr.KindOf(err))
}

func TestComputeUsesConfiguredRates(t *testing.T) {
	e := NewEngine(config.TaxRates{CGSTBps: 250, SGSTBps: 250, IGSTBps: 500})

	res, err := e.Compute(10000, "Kerala", "Kerala", "India")
	require.NoError(t, err)
	assert.Equal(t, int64(250), res.CGST)
	assert.Equal(t, int64(500), res.TaxAmount)
}
