package store

import (
	"errors"
	"sort"
	"strings"

	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/common"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	maxNameLength     = 255
	maxCategoryLength = 100
)

var errSlash = errors.New("must not contain '/'")

func noSlash(value any) error {
	s, _ := value.(string)
	if strings.Contains(s, "/") {
		return errSlash
	}
	return nil
}

func validateDocument(d *models.Document) error {
	err := validation.ValidateStruct(d,
		validation.Field(&d.Name, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&d.Category, validation.Required, validation.RuneLength(1, maxCategoryLength),
			validation.By(noSlash)),
	)
	return toValidationError(err)
}

func validateCategory(name string) error {
	err := validation.Validate(name, validation.Required, validation.RuneLength(1, maxCategoryLength),
		validation.By(noSlash))
	if err != nil {
		return common.NewValidationError("category", err)
	}
	return nil
}

// toValidationError picks the first failing field (by name) so messages are
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
