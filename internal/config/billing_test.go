package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBillingConfigIsValid(t *testing.T) {
	cfg := DefaultBillingConfig()
	require.NoError(t, validateBillingConfig(cfg))
	assert.Equal(t, int64(900), cfg.Tax.CGSTBps)
	assert.Equal(t, int64(1800), cfg.Tax.IGSTBps)
}

func TestValidateBillingConfigRejectsMissingCountry(t *testing.T) {
	cfg := DefaultBillingConfig()
	cfg.Company.Country = " "
	assert.Error(t, validateBillingConfig(cfg))
}

func TestStaticBillingConfigHolder(t *testing.T) {
	cfg := DefaultBillingConfig()
	cfg.PaymentTermDays = 30
	holder := NewStaticBillingConfig(cfg)
	assert.Equal(t, 30, holder.Get().PaymentTermDays)
}

func TestNewBillingConfigHolderFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	holder, err := NewBillingConfigHolder()
	require.NoError(t, err)
	assert.Equal(t, "Karnataka", holder.Get().Company.State)
	assert.Equal(t, []string{"80"}, holder.Get().Dialing.HomeAreaCodes)
}
