package services

import (
	"errors"
	"sort"
	"strings"

	"github.com/dmitrijs2005/docsync/internal/common"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	maxNameLength     = 255
	maxCategoryLength = 100
	maxContentBytes   = 4 << 20
	minPasswordLength = 6
)

var errSlash = errors.New("must not contain '/'")

func noSlash(value any) error {
	s, _ := value.(string)
	if strings.Contains(s, "/") {
		return errSlash
	}
	return nil
}

var categoryRules = []validation.Rule{
	validation.Required, validation.RuneLength(1, maxCategoryLength), validation.By(noSlash),
}

func validateCategory(name string) error {
	if err := validation.Validate(name, categoryRules...); err != nil {
		return common.NewValidationError("category", err)
	}
	return nil
}

// toValidationError picks the first failing field by name so messages are
// stable.
func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return common.NewValidationError("", err)
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return common.NewValidationError(fields[0], errs[fields[0]])
}
