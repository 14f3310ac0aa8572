package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrPermissionDeny = errors.New("permission denied")

	ErrAuthRequired       = errors.New("authentication required")
	ErrMissingContactInfo = errors.New("missing contact info: application has neither email nor contact_email")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrEmptySelection     = errors.New("selection is empty")
	ErrTransitionInFlight = errors.New("transition already in flight for application")
)

// RemoteError is the only error shape crossing the gateway boundary. Status
// is zero when the request never produced an HTTP response.
type RemoteError struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

var duplicateMarkers = []string{"already exists", "duplicate", "user_already_exists", "23505"}

// IsDuplicateAccount reports whether err signals that the account being
// created already exists.
func IsDuplicateAccount(err error) bool {
	var remote *RemoteError
	if !errors.As(err, &remote) {
		return false
	}
	msg := strings.ToLower(remote.Message)
	for _, marker := range duplicateMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ProvisioningError reports that the approval itself succeeded but the
// chained account creation did not.
type ProvisioningError struct {
	ApplicationID string
	Email         string
	Err           error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("application %s was approved but account creation for %s failed: %v; provision the account manually",
		e.ApplicationID, e.Email, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

type ItemFailure struct {
	ApplicationID string `json:"id"`
	Message       string `json:"message"`
}

// BulkError is returned when at least one item of a bulk transition failed.
// Items that succeeded are not rolled back.
type BulkError struct {
	Kind      TransitionKind
	Attempted int
	Failed    []ItemFailure
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("bulk %s failed for %d of %d applications", e.Kind, len(e.Failed), e.Attempted)
}
