package validation

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "go-medreport-scanner/internal/errors"
)

// EndpointValidator checks the URLs the scanner talks to: the camera
// snapshot source and the summary backend.
type EndpointValidator struct {
	allowedSchemes []string
}

// NewEndpointValidator allows http and https
func NewEndpointValidator() *EndpointValidator {
	return &EndpointValidator{allowedSchemes: []string{"http", "https"}}
}

// NewEndpointValidatorWithSchemes restricts endpoints to the given schemes
func NewEndpointValidatorWithSchemes(schemes ...string) *EndpointValidator {
	return &EndpointValidator{allowedSchemes: schemes}
}

// Validate returns a validation error naming the setting when raw is not a
// usable endpoint. An empty value is allowed and means "not configured".
func (v *EndpointValidator) Validate(name, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("%s is not a valid URL", name), err)
	}
	if !v.isSchemeAllowed(u.Scheme) {
		return apperrors.NewValidationError(fmt.Sprintf("%s scheme %q not allowed", name, u.Scheme), nil)
	}
	if u.Host == "" {
		return apperrors.NewValidationError(fmt.Sprintf("%s must have a host", name), nil)
	}
	if u.User != nil {
		return apperrors.NewValidationError(fmt.Sprintf("%s must not embed credentials", name), nil)
	}
	return nil
}

func (v *EndpointValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}
