package format

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInvoiceNumber(t *testing.T) {
	issued := time.Date(2026, 4, 7, 0, 0, 0, 0, time.UTC)

	got, err := FormatInvoiceNumber(DefaultInvoiceNumberTemplate, issued, snowflake.ID(46655))
	require.NoError(t, err)
	assert.Equal(t, "INV-202604-ZZZ", got)

	got, err = FormatInvoiceNumber("{YY}{MM}{DD}/{ID}", issued, snowflake.ID(36))
	require.NoError(t, err)
	assert.Equal(t, "260407/10", got)
}

func TestFormatInvoiceNumberErrors(t *testing.T) {
	issued := time.Now()

	_, err := FormatInvoiceNumber("", issued, 1)
	assert.Error(t, err)

	_, err = FormatInvoiceNumber("INV-{SEQ}", issued, 1)
	assert.Error(t, err)

	_, err = FormatInvoiceNumber(DefaultInvoiceNumberTemplate, issued, 0)
	assert.Error(t, err)
}
