package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const DefaultInvoiceNumberTemplate = "INV-{YYYY}{MM}-{ID}"

// FormatInvoiceNumber renders a human-readable invoice number from template,
// the issue date and the invoice id. Supported tokens are {YYYY}, {YY}, {MM},
// {DD} and {ID}, the id in upper-case base36.
func FormatInvoiceNumber(template string, issuedAt time.Time, id snowflake.ID) (string, error) {
	if template == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}
	if id <= 0 {
		return "", fmt.Errorf("invalid invoice id: %d", id)
	}

	out := template
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))
	out = strings.ReplaceAll(out, "{ID}", strings.ToUpper(id.Base36()))

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}
	return out, nil
}
