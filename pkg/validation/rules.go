package validation

import (
	"strings"
)

// NormalizePlate uppercases and strips whitespace and dashes so that
// "abc-123" and "ABC 123" compare equal to "ABC123".
func NormalizePlate(plate string) string {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	plate = strings.ReplaceAll(plate, "-", "")
	plate = strings.ReplaceAll(plate, " ", "")
	return plate
}

// ValidPlate reports whether a normalized plate matches the car or
// motorcycle format.
func ValidPlate(plate string) bool {
	return carPlateRegex.MatchString(plate) || motoPlateRegex.MatchString(plate)
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// InstitutionalEmail reports whether the normalized email belongs to the
// given institutional domain, either exactly or as a subdomain.
func InstitutionalEmail(email, domain string) bool {
	email = NormalizeEmail(email)
	if !ValidateEmail(email) {
		return false
	}

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	host := email[at+1:]
	domain = strings.ToLower(strings.TrimSpace(domain))

	return host == domain || strings.HasSuffix(host, "."+domain)
}
