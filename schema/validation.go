package schema

// ValidationResult is the outcome of a form field validation.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// PasswordCheckName identifies one rule of the password checklist.
type PasswordCheckName string

const (
	CheckLength     PasswordCheckName = "length"
	CheckUppercase  PasswordCheckName = "uppercase"
	CheckLowercase  PasswordCheckName = "lowercase"
	CheckNumber     PasswordCheckName = "number"
	CheckSpecial    PasswordCheckName = "special"
	CheckCommon     PasswordCheckName = "notCommon"
	CheckSequential PasswordCheckName = "noSequential"
	CheckRepeated   PasswordCheckName = "noRepeated"
)

// PasswordCheck is the state of one checklist rule.
type PasswordCheck struct {
	Name   PasswordCheckName
	Passed bool
	Label  string
	Error  string
}

// PasswordResult is the aggregate password verdict plus the per-rule checklist.
type PasswordResult struct {
	ValidationResult
	// Checks are ordered for display.
	Checks []PasswordCheck
}

// Check returns the named rule.
func (r PasswordResult) Check(name PasswordCheckName) (PasswordCheck, bool) {
	for _, check := range r.Checks {
		if check.Name == name {
			return check, true
		}
	}
	return PasswordCheck{}, false
}
