package pii

import "unicode"

// DefaultRules returns the built-in detectors. When two rules match the
// same span, the earlier rule's replacement is used.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "email",
			Description: "Email address",
			Pattern:     `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
			Replacement: "[EMAIL]",
		},

		// National identifiers
		{
			ID:          "us-ssn",
			Description: "US Social Security Number",
			Pattern:     `\b\d{3}-\d{2}-\d{4}\b`,
			Replacement: "[ID]",
		},
		{
			ID:          "ca-sin",
			Description: "Canadian Social Insurance Number",
			Pattern:     `\b\d{3}[ \-]\d{3}[ \-]\d{3}\b`,
			Keywords:    []string{"sin", "social insurance"},
			Replacement: "[ID]",
			Check:       luhn,
		},
		{
			ID:          "in-aadhaar",
			Description: "Indian Aadhaar number",
			Pattern:     `\b[2-9]\d{3}[ \-]?\d{4}[ \-]?\d{4}\b`,
			Replacement: "[ID]",
		},
		{
			ID:          "in-pan",
			Description: "Indian Permanent Account Number",
			Pattern:     `\b[A-Z]{5}\d{4}[A-Z]\b`,
			Replacement: "[ID]",
		},

		// Financial
		{
			ID:          "payment-card",
			Description: "Payment card number",
			Pattern:     `\b(?:\d[ \-]?){12,18}\d\b`,
			Replacement: "[CARD]",
			Check:       luhn,
		},
		{
			ID:          "iban",
			Description: "International Bank Account Number",
			Pattern:     `\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,3})?\b`,
			Replacement: "[ACCOUNT]",
		},

		// Phone numbers come after the identifiers so an identical span
		// is labelled as the more specific kind.
		{
			ID:          "phone",
			Description: "Phone number",
			Pattern:     `(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{2,4}\)[\s.\-]?)?\d{3,5}[\s.\-]\d{3,4}[\s.\-]?\d{0,4}\b`,
			Replacement: "[PHONE]",
			Check:       digitsBetween(10, 15),
		},

		// Credentials
		{
			ID:          "api-key",
			Description: "API key assignment",
			Pattern:     `(?i)(?:api[_-]?key|token|secret|password)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords:    []string{"key", "token", "secret", "password"},
			Replacement: "[SECRET]",
		},
		{
			ID:          "bearer-token",
			Description: "HTTP bearer token",
			Pattern:     `(?i)bearer\s+[A-Za-z0-9._\-]{16,}`,
			Replacement: "[SECRET]",
		},
		{
			ID:          "private-key",
			Description: "Private key block header",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`,
			Replacement: "[SECRET]",
		},
	}
}

// digitsBetween accepts matches with a digit count in [lo, hi].
func digitsBetween(lo, hi int) func(string) bool {
	return func(s string) bool {
		n := 0
		for _, r := range s {
			if unicode.IsDigit(r) {
				n++
			}
		}
		return n >= lo && n <= hi
	}
}

// luhn reports whether the digits of s pass the Luhn checksum.
func luhn(s string) bool {
	sum, n := 0, 0
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if n%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		n++
	}
	return n > 1 && sum%10 == 0
}
