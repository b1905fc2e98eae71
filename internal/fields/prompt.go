package fields

import "github.com/jackzampolin/invoicex/internal/providers"

// Decoding bounds for the extraction call.
const (
	Temperature = 0.0
	MaxTokens   = 512
)

const systemPrompt = `You extract data from invoices. Reply with a single JSON object and nothing else.

The object must have exactly these keys:
- "invoiceDate": the invoice issue date as "YYYY-MM-DD", or null
- "invoiceReference": the invoice number or reference as a string, or null
- "netAmount": {"amount": number, "currency": "ISO 4217 code or null"}, or null
- "vatAmount": {"amount": number, "currency": "ISO 4217 code or null"}, or null
- "totalAmount": {"amount": number, "currency": "ISO 4217 code or null"}, or null

If you are not certain about a value, use null. Do not guess.`

const userDirective = "Extract the invoice fields from the following document text:\n\n"

// Messages builds the chat messages for one document. The text is passed
// through verbatim.
func Messages(text string) []providers.Message {
	return []providers.Message{
		{Role: providers.RoleSystem, Content: systemPrompt},
		{Role: providers.RoleUser, Content: userDirective + text},
	}
}
