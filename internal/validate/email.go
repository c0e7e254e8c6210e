// Package validate implements the signup form rules for email addresses and passwords.
package validate

import (
	"regexp"
	"strings"

	"pkt.systems/hipposync/schema"
)

const (
	ErrEmailRequired   = "Email is required"
	ErrEmailFormat     = "Please enter a valid email address"
	ErrEmailDisposable = "Disposable or temporary email addresses are not allowed"
	ErrEmailTestDomain = "Please use a real email domain, not a test or temporary one"
	ErrEmailDomainDot  = "Email domain must contain a dot (e.g. gmail.com)"
)

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var disposableDomains = map[string]struct{}{
	"tempmail.com":           {},
	"throwaway.email":        {},
	"guerrillamail.com":      {},
	"mailinator.com":         {},
	"10minutemail.com":       {},
	"trashmail.com":          {},
	"fakeinbox.com":          {},
	"temp-mail.org":          {},
	"yopmail.com":            {},
	"maildrop.cc":            {},
	"getnada.com":            {},
	"guerrillamailblock.com": {},
	"sharklasers.com":        {},
	"spam4.me":               {},
	"grr.la":                 {},
	"getairmail.com":         {},
}

var testDomainMarkers = []string{"test", "example", "temp"}

// IsDisposableDomain reports whether the domain is a known throwaway provider.
func IsDisposableDomain(domain string) bool {
	_, ok := disposableDomains[strings.ToLower(strings.TrimSpace(domain))]
	return ok
}

// DisposableDomains returns the blocked domains.
func DisposableDomains() []string {
	out := make([]string, 0, len(disposableDomains))
	for domain := range disposableDomains {
		out = append(out, domain)
	}
	return out
}

// ValidateEmail checks the address shape and domain. Domain checks all run, so
// one address may collect several errors; a shape failure stops early.
func ValidateEmail(email string) schema.ValidationResult {
	if email == "" {
		return invalid(ErrEmailRequired)
	}
	if !emailShape.MatchString(email) {
		return invalid(ErrEmailFormat)
	}
	domain := strings.ToLower(email[strings.LastIndex(email, "@")+1:])
	var errs []string
	if IsDisposableDomain(domain) {
		errs = append(errs, ErrEmailDisposable)
	}
	for _, marker := range testDomainMarkers {
		if strings.Contains(domain, marker) {
			errs = append(errs, ErrEmailTestDomain)
			break
		}
	}
	if !strings.Contains(domain, ".") {
		errs = append(errs, ErrEmailDomainDot)
	}
	return schema.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func invalid(msg string) schema.ValidationResult {
	return schema.ValidationResult{Valid: false, Errors: []string{msg}}
}
