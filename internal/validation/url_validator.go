package validation

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/veranemoloko/dubbing-sync/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("download_url", validateDownloadURL)
}

// ValidateDownloadURLs checks that every non-empty location in a grant is ready to hand to a user agent.
func ValidateDownloadURLs(urls ...string) error {
	for _, u := range urls {
		if err := validate.Var(u, "required,download_url"); err != nil {
			return fmt.Errorf("invalid download URL %q: %w", u, err)
		}
	}
	return nil
}

// ValidateCreateTask checks the form fields of a create request.
func ValidateCreateTask(req *domain.CreateTaskRequest) error {
	return validate.Struct(req)
}

func validateDownloadURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	return u.Host != "" && u.User == nil
}
