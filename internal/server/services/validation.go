package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/tubekeeper/internal/common"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MinPasswordLength is the shortest password accepted on registration and
// password change.
const MinPasswordLength = 6

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	emailRules = []validation.Rule{
		is.Email,
		validation.Match(emailShape).Error("must be a valid email address"),
	}
	passwordRules = []validation.Rule{validation.Length(MinPasswordLength, 0)}
)

type field struct {
	name  string
	value string
	rules []validation.Rule
}

// validateFields checks fields in order and reports the first violation.
func validateFields(fields ...field) error {
	for _, f := range fields {
		if err := validation.Validate(f.value, f.rules...); err != nil {
			return fmt.Errorf("%w: %s %s", common.ErrValidation, f.name, err.Error())
		}
	}
	return nil
}

func required(name, value string, rules ...validation.Rule) field {
	return field{name: name, value: value, rules: append([]validation.Rule{validation.Required}, rules...)}
}

// password checks blankness on the trimmed value and length on the raw one.
func password(name, value string) []field {
	return []field{
		required(name, strings.TrimSpace(value)),
		optional(name, value, passwordRules...),
	}
}

func optional(name, value string, rules ...validation.Rule) field {
	return field{name: name, value: value, rules: rules}
}

// normalizeIdentifier trims and lower-cases usernames and emails so lookups
// and the uniqueness constraint see one canonical form.
func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
