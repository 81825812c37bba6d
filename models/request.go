package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest wraps every ScrapeRequest validation failure.
var ErrInvalidRequest = errors.New("invalid scrape request")

var validate = validator.New()

// ScrapeRequest describes one scrape run. It is passed by value and never
// mutated once validated.
type ScrapeRequest struct {
	Platform             Platform      `validate:"required,oneof=jobs_ge cv_ge hr_ge"`
	TargetCount          int           `validate:"gt=0"`
	Locale               string        `validate:"required,oneof=ge en"`
	LocationID           string
	CategoryID           string
	Query                string
	RequireSalary        bool
	MaxListConcurrency   int           `validate:"min=1"`
	MaxDetailConcurrency int           `validate:"min=1"`
	MaxRetries           int           `validate:"min=1"`
	BaseDelay            time.Duration `validate:"min=0"`
}

// Validate checks the request invariants.
func (r ScrapeRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (got %v)", ErrInvalidRequest, fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
