package profile

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/cognify/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Form is the onboarding submission as sent by the page.
type Form struct {
	Name       string `json:"name" validate:"required,max=120"`
	Age        int    `json:"age" validate:"required,gte=1,lte=120"`
	Occupation string `json:"occupation" validate:"required,max=120"`
	Gender     string `json:"gender" validate:"required,max=60"`
	Goal       string `json:"goal" validate:"required,max=500"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Normalize trims surrounding whitespace from every text field.
func (f Form) Normalize() Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Occupation = strings.TrimSpace(f.Occupation)
	f.Gender = strings.TrimSpace(f.Gender)
	f.Goal = strings.TrimSpace(f.Goal)
	return f
}

// Validate returns the names of the fields that are missing or invalid.
func (f Form) Validate() []string {
	err := formValidator().Struct(f.Normalize())
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return fields
}

// Record converts a valid form into a profile record stamped at now.
func (f Form) Record(now time.Time) domain.ProfileRecord {
	f = f.Normalize()
	return domain.ProfileRecord{
		Name:       f.Name,
		Age:        f.Age,
		Occupation: f.Occupation,
		Gender:     f.Gender,
		Goal:       f.Goal,
		Timestamp:  now.UTC(),
	}
}
