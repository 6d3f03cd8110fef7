package security

import (
	"regexp"
	"strings"
)

var (
	emailPattern   = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern   = regexp.MustCompile(`\+?[0-9]{10,15}`)
	jwtPattern     = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`)
	secretPattern  = regexp.MustCompile(`(?i)(private[_-]?key|api[_-]?key|secret|token|password)(["\s:=]+["']?)([a-zA-Z0-9_-]{16,})`)
	privKeyPattern = regexp.MustCompile(`\b(0x)?[a-fA-F0-9]{64}\b`)
	addressPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)

	sensitiveQueryKeys = []string{"token", "key", "secret", "password", "signature"}
)

const redacted = "***REDACTED***"

// MaskString masks emails, phone numbers, bearer tokens and key material in s.
// Wallet addresses are shortened rather than removed.
func MaskString(s string) string {
	s = jwtPattern.ReplaceAllString(s, "eyJ"+redacted)
	s = secretPattern.ReplaceAllString(s, "$1$2"+redacted)
	// 32-byte hex values are private keys or tx hashes; hashes are public
	// but indistinguishable here.
	s = privKeyPattern.ReplaceAllString(s, redacted)
	s = emailPattern.ReplaceAllStringFunc(s, MaskEmail)
	s = addressPattern.ReplaceAllStringFunc(s, MaskAddress)
	s = phonePattern.ReplaceAllStringFunc(s, MaskPhoneNumber)
	return s
}

// MaskEmail keeps the first two characters of the local part and the TLD
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***@***.***"
	}

	maskedLocal := maskPartial(local, 2)
	if i := strings.LastIndex(domain, "."); i > 0 {
		return maskedLocal + "@" + maskPartial(domain[:i], 1) + domain[i:]
	}
	return maskedLocal + "@" + maskPartial(domain, 2)
}

// MaskPhoneNumber masks a phone number
func MaskPhoneNumber(phone string) string {
	if len(phone) < 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// MaskAddress shortens a wallet address to its first 6 and last 4 characters
func MaskAddress(addr string) string {
	if len(addr) < 10 {
		return "0x****"
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// MaskQuery redacts values of credential-like query parameters and masks
// personal data in the rest.
func MaskQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	for i, part := range parts {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if isSensitiveKey(key) {
			parts[i] = key + "=" + redacted
			continue
		}
		parts[i] = key + "=" + MaskString(value)
	}
	return strings.Join(parts, "&")
}

func maskPartial(s string, showChars int) string {
	if len(s) <= showChars {
		return strings.Repeat("*", len(s))
	}
	return s[:showChars] + strings.Repeat("*", len(s)-showChars)
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sensitive := range sensitiveQueryKeys {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}
