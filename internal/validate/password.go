package validate

import (
	"strings"
	"unicode"

	"pkt.systems/hipposync/schema"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// SpecialCharacters is the set satisfying the special-character rule.
const SpecialCharacters = "!@#$%^&*(),.?\":{}|<>_-+=[]\\/;`~"

var commonPasswords = map[string]struct{}{
	"password": {}, "123456": {}, "12345678": {}, "qwerty": {}, "abc123": {},
	"monkey": {}, "letmein": {}, "trustno1": {}, "dragon": {}, "baseball": {},
	"iloveyou": {}, "master": {}, "sunshine": {}, "ashley": {}, "bailey": {},
	"shadow": {}, "superman": {}, "password1": {}, "123456789": {}, "12345": {},
	"1234567": {}, "password123": {}, "admin": {}, "welcome": {},
}

// Runs starting at 1, 2, 3 or a are left out so that digit-heavy passwords
// such as abc12345 only fail the class checks.
var sequentialRuns = []string{
	"456", "567", "678", "789",
	"bcd", "cde", "def", "efg", "fgh",
}

type passwordRule struct {
	name  schema.PasswordCheckName
	label string
	err   string
	check func(string) bool
}

var passwordRules = []passwordRule{
	{
		name:  schema.CheckLength,
		label: "At least 8 characters",
		err:   "Password must be at least 8 characters long",
		check: func(p string) bool { return len([]rune(p)) >= MinPasswordLength },
	},
	{
		name:  schema.CheckUppercase,
		label: "One uppercase letter",
		err:   "Password must contain at least one uppercase letter",
		check: func(p string) bool { return containsFunc(p, isASCIIUpper) },
	},
	{
		name:  schema.CheckLowercase,
		label: "One lowercase letter",
		err:   "Password must contain at least one lowercase letter",
		check: func(p string) bool { return containsFunc(p, isASCIILower) },
	},
	{
		name:  schema.CheckNumber,
		label: "One number",
		err:   "Password must contain at least one number",
		check: func(p string) bool { return containsFunc(p, unicode.IsDigit) },
	},
	{
		name:  schema.CheckSpecial,
		label: "One special character (!@#$%^&*...)",
		err:   "Password must contain at least one special character",
		check: func(p string) bool { return strings.ContainsAny(p, SpecialCharacters) },
	},
	{
		name:  schema.CheckCommon,
		label: "Not a common password",
		err:   "Password is too common, please choose a stronger one",
		check: func(p string) bool { return !IsCommonPassword(p) },
	},
	{
		name:  schema.CheckSequential,
		label: "No sequential characters (456, def)",
		err:   "Password must not contain sequential characters",
		check: func(p string) bool { return !hasSequentialRun(p) },
	},
	{
		name:  schema.CheckRepeated,
		label: "No repeated characters (aaa, 111)",
		err:   "Password must not repeat a character 3 or more times in a row",
		check: func(p string) bool { return !hasRepeatedRun(p, 3) },
	},
}

// ValidatePassword evaluates every rule independently. The password is valid
// only when all rules pass.
func ValidatePassword(password string) schema.PasswordResult {
	result := schema.PasswordResult{Checks: make([]schema.PasswordCheck, 0, len(passwordRules))}
	for _, rule := range passwordRules {
		passed := rule.check(password)
		result.Checks = append(result.Checks, schema.PasswordCheck{
			Name:   rule.name,
			Passed: passed,
			Label:  rule.label,
			Error:  rule.err,
		})
		if !passed {
			result.Errors = append(result.Errors, rule.err)
		}
	}
	result.Valid = len(result.Errors) == 0
	return result
}

// IsCommonPassword reports whether the password is on the common list, ignoring case.
func IsCommonPassword(password string) bool {
	_, ok := commonPasswords[strings.ToLower(password)]
	return ok
}

func hasSequentialRun(password string) bool {
	lower := strings.ToLower(password)
	for _, run := range sequentialRuns {
		if strings.Contains(lower, run) {
			return true
		}
	}
	return false
}

func hasRepeatedRun(password string, n int) bool {
	var prev rune
	count := 0
	for i, r := range password {
		if i > 0 && r == prev {
			count++
		} else {
			count = 1
		}
		if count >= n {
			return true
		}
		prev = r
	}
	return false
}

func containsFunc(s string, fn func(rune) bool) bool {
	return strings.IndexFunc(s, fn) >= 0
}

func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }
