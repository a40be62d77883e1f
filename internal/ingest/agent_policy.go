package ingest

import (
	"context"
	"regexp"
	"strings"
)

// PolicyAgent applies content policies to chunks, masking PII in place.
// Masking runs in a fixed order: emails, phones, national ID numbers,
// credit cards, IBANs. Duplicate chunks are left untouched since they are
// never indexed.
type PolicyAgent struct {
	maskEmails bool
	maskPhones bool
	maskIDs    bool
	maskCards  bool
}

// NewPolicyAgent creates the policy agent with all masks enabled.
func NewPolicyAgent() *PolicyAgent {
	return &PolicyAgent{
		maskEmails: true,
		maskPhones: true,
		maskIDs:    true,
		maskCards:  true,
	}
}

func (a *PolicyAgent) Name() string           { return "policy" }
func (a *PolicyAgent) Dependencies() []string { return []string{"dedup"} }
func (a *PolicyAgent) Required() []string     { return nil }

// Process masks PII across all non-duplicate chunks.
func (a *PolicyAgent) Process(ctx context.Context, ic *Context) error {
	if len(ic.Chunks) == 0 {
		return nil
	}

	maskedChunks := 0
	stats := map[string]int{
		"emails":       0,
		"phones":       0,
		"ids":          0,
		"credit_cards": 0,
		"iban":         0,
	}

	for i := range ic.Chunks {
		chunk := &ic.Chunks[i]
		if chunk.IsDuplicate {
			continue
		}

		original := chunk.Text
		masked := original
		var n int

		if a.maskEmails {
			masked, n = MaskEmails(masked)
			stats["emails"] += n
		}
		if a.maskPhones {
			masked, n = MaskPhones(masked)
			stats["phones"] += n
		}
		if a.maskIDs {
			masked, n = MaskIDNumbers(masked)
			stats["ids"] += n
		}
		if a.maskCards {
			masked, n = MaskCreditCards(masked)
			stats["credit_cards"] += n

			masked, n = MaskIBANs(masked)
			stats["iban"] += n
		}

		if masked != original {
			chunk.Text = masked
			if chunk.Meta == nil {
				chunk.Meta = make(map[string]interface{})
			}
			chunk.Meta["pii_masked"] = true
			maskedChunks++
		}
	}

	total := 0
	for _, n := range stats {
		total += n
	}

	ic.SetMetadata("pii_masked", stats)
	ic.SetMetric("chunks_with_pii", maskedChunks)
	ic.SetMetric("total_pii_masked", total)
	return nil
}

var (
	piiEmailRE = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	piiPhoneREs = []*regexp.Regexp{
		regexp.MustCompile(`\+387\s?\d{2}\s?\d{3}\s?\d{3,4}`),
		regexp.MustCompile(`\b06[0-9]\s?\d{3}\s?\d{3,4}\b`),
		regexp.MustCompile(`\+\d{1,4}[-.\s]?\(?\d{1,3}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}`),
	}

	piiIDNumberRE = regexp.MustCompile(`\b\d{13}\b`)
	piiCardRE     = regexp.MustCompile(`\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`)
	piiIBANRE     = regexp.MustCompile(`(?i)\b[A-Z]{2}\d{2}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`)

	separatorRE = regexp.MustCompile(`[\s\-.]`)
)

// MaskEmails keeps the first character of the local part and the full domain.
func MaskEmails(text string) (string, int) {
	count := 0
	masked := piiEmailRE.ReplaceAllStringFunc(text, func(email string) string {
		count++
		at := strings.Index(email, "@")
		if at > 0 {
			return email[:1] + "***@" + email[at+1:]
		}
		return "[EMAIL_MASKED]"
	})
	return masked, count
}

// MaskPhones replaces phone numbers with a tag keeping the last three
// characters. Matches with fewer than eight digits are left alone.
func MaskPhones(text string) (string, int) {
	count := 0
	for _, re := range piiPhoneREs {
		text = re.ReplaceAllStringFunc(text, func(phone string) string {
			if len(separatorRE.ReplaceAllString(phone, "")) >= 8 {
				count++
				return "[PHONE_XXX" + phone[len(phone)-3:] + "]"
			}
			return phone
		})
	}
	return text, count
}

// MaskIDNumbers masks 13-digit national ID numbers whose leading digits form
// a plausible birth date, keeping the first two digits.
func MaskIDNumbers(text string) (string, int) {
	count := 0
	masked := piiIDNumberRE.ReplaceAllStringFunc(text, func(id string) string {
		day := int(id[0]-'0')*10 + int(id[1]-'0')
		month := int(id[2]-'0')*10 + int(id[3]-'0')
		if day >= 1 && day <= 31 && month >= 1 && month <= 12 {
			count++
			return id[:2] + strings.Repeat("*", 11)
		}
		return id
	})
	return masked, count
}

// MaskCreditCards masks 16-digit card numbers that pass the Luhn check,
// keeping the last four digits.
func MaskCreditCards(text string) (string, int) {
	count := 0
	masked := piiCardRE.ReplaceAllStringFunc(text, func(card string) string {
		digits := separatorRE.ReplaceAllString(card, "")
		if len(digits) == 16 && luhnCheck(digits) {
			count++
			return "****-****-****-" + digits[len(digits)-4:]
		}
		return card
	})
	return masked, count
}

// MaskIBANs keeps the country code and the last four digits.
func MaskIBANs(text string) (string, int) {
	count := 0
	masked := piiIBANRE.ReplaceAllStringFunc(text, func(iban string) string {
		count++
		country := iban[:2]
		digits := separatorRE.ReplaceAllString(iban, "")[2:]
		return country + "** **** **** **** " + digits[len(digits)-4:]
	})
	return masked, count
}

// luhnCheck validates a card number with the Luhn algorithm.
func luhnCheck(digits string) bool {
	sum := 0
	for i := 0; i < len(digits); i++ {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		// Double every second digit counted from the right, checksum digit
		// excluded.
		if (len(digits)-1-i)%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}
