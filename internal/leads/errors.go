package leads

import "errors"

var (
	// ErrInvalidName is returned when neither first nor last name is given
	ErrInvalidName = errors.New("name is required")

	// ErrMissingContact is returned when both email and phone are missing
	ErrMissingContact = errors.New("either email or phone is required")

	// ErrMissingCompanyID is returned when a request is not scoped to a company
	ErrMissingCompanyID = errors.New("company id is required")

	// ErrInvalidEmail is returned for malformed email addresses
	ErrInvalidEmail = errors.New("email address is invalid")

	// ErrInvalidSource is returned for unknown or reserved sources
	ErrInvalidSource = errors.New("lead source is invalid")

	// ErrInvalidStatus is returned for unknown statuses
	ErrInvalidStatus = errors.New("lead status is invalid")

	// ErrInvalidField wraps other field validation failures
	ErrInvalidField = errors.New("invalid field")

	// ErrEmptyNote is returned when a note has no text
	ErrEmptyNote = errors.New("note text is required")

	// ErrMissingConversationID is returned when upserting a call lead without its key
	ErrMissingConversationID = errors.New("conversation id is required")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrInsightsUnavailable is returned when no insight generator is configured
	ErrInsightsUnavailable = errors.New("insight generation is not configured")
)

// IsValidationError reports whether err was caused by bad client input.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidName, ErrMissingContact, ErrMissingCompanyID, ErrInvalidEmail,
		ErrInvalidSource, ErrInvalidStatus, ErrInvalidField, ErrEmptyNote, ErrMissingConversationID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
