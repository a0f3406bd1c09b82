package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/automaton/internal/actionservice"
)

// CreateActionRequest is the request body for creating an action.
type CreateActionRequest struct {
	Key string `json:"key" example:"phone" validate:"required"`
	URL string `json:"url" example:"tel:12345"`
}

// Validate checks the request fields.
func (r CreateActionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Key, validation.Required, validation.Length(1, 256)),
	)
}

// UpdateActionRequest is the request body for changing an action's URL.
// An empty URL is allowed; such actions are kept out of persistence.
type UpdateActionRequest struct {
	URL string `json:"url" example:"https://example.com"`
}

// ActionDetail is the action response type (aliased from the domain layer).
type ActionDetail = actionservice.ActionDetail

// ActionListResponse wraps the action list.
type ActionListResponse struct {
	Actions []ActionDetail `json:"actions" validate:"required"`
}

// CheckResponse is returned by the check and follow endpoints.
type CheckResponse struct {
	Key   string `json:"key" example:"phone" validate:"required"`
	OK    bool   `json:"ok" validate:"required"`
	URL   string `json:"url,omitempty" example:"tel:12345"`
	Error string `json:"error,omitempty" example:"Can't Follow This URL"`
}

// SchemesResponse lists the whitelisted schemes.
type SchemesResponse struct {
	Schemes []string `json:"schemes" validate:"required"`
}

// ImportResponse is the result of an import.
type ImportResponse = actionservice.ImportResult
