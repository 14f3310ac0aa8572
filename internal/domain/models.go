package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryBrand     Category = "brand"
	CategoryInvestor  Category = "investor"
	CategoryWholesale Category = "wholesale"
	CategoryAffiliate Category = "affiliate"
	CategoryPartner   Category = "partner"
)

// Categories lists the five categories accepted by the submission forms.
var Categories = []Category{CategoryBrand, CategoryInvestor, CategoryWholesale, CategoryAffiliate, CategoryPartner}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusApproved, StatusRejected:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
}

type Role string

const (
	RoleVendor   Role = "vendor"
	RoleInvestor Role = "investor"
	RoleUser     Role = "user"
)

type TransitionKind string

const (
	TransitionApprove TransitionKind = "approve"
	TransitionReject  TransitionKind = "reject"
)

func ParseTransitionKind(raw string) (TransitionKind, error) {
	switch k := TransitionKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case TransitionApprove, TransitionReject:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown transition %q", ErrInvalidInput, raw)
	}
}

// Target is the status an application lands in after the transition succeeds.
func (k TransitionKind) Target() Status {
	if k == TransitionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// Opposite is the compensating transition used by undo.
func (k TransitionKind) Opposite() TransitionKind {
	if k == TransitionApprove {
		return TransitionReject
	}
	return TransitionApprove
}

// Application is the shared envelope of a submission. Category specific
// attributes live in Details, one variant per category.
type Application struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	Details     Details    `json:"-"`
}

func (a Application) Category() Category {
	if a.Details == nil {
		return ""
	}
	return a.Details.Category()
}

func (a Application) Contact() Contact {
	if a.Details == nil {
		return Contact{}
	}
	return a.Details.ContactInfo()
}

func (a Application) DisplayName() string {
	if a.Details == nil {
		return notAvailable
	}
	return DisplayName(a.Details)
}

// CheckInvariant verifies that exactly the timestamp matching a terminal
// status is set, and that pending applications carry neither.
func (a Application) CheckInvariant() error {
	switch a.Status {
	case StatusPending:
		if a.ApprovedAt != nil || a.RejectedAt != nil {
			return fmt.Errorf("%w: pending application %s has a decision timestamp", ErrInvalidInput, a.ID)
		}
	case StatusApproved:
		if a.ApprovedAt == nil || a.RejectedAt != nil {
			return fmt.Errorf("%w: approved application %s must carry only approved_at", ErrInvalidInput, a.ID)
		}
	case StatusRejected:
		if a.RejectedAt == nil || a.ApprovedAt != nil {
			return fmt.Errorf("%w: rejected application %s must carry only rejected_at", ErrInvalidInput, a.ID)
		}
	default:
		return fmt.Errorf("%w: application %s has unknown status %q", ErrInvalidInput, a.ID, a.Status)
	}
	return nil
}

// Account is the payload sent to the account service when an approval is
// provisioned. Ownership passes to that service once created.
type Account struct {
	Email       string `json:"email"`
	Credential  string `json:"credential"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// Credential is the operator's bearer token, passed explicitly into every
// gateway call.
type Credential struct {
	Token   string
	Subject string
}

func (c Credential) Present() bool {
	return strings.TrimSpace(c.Token) != ""
}

type DecisionSource string

const (
	SourceSingle DecisionSource = "single"
	SourceBulk   DecisionSource = "bulk"
	SourceUndo   DecisionSource = "undo"
)

type DecisionOutcome string

const (
	OutcomeSucceeded DecisionOutcome = "succeeded"
	OutcomeFailed    DecisionOutcome = "failed"
)

// Decision is one journaled transition attempt.
type Decision struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Kind          TransitionKind  `json:"kind"`
	Source        DecisionSource  `json:"source"`
	Operator      string          `json:"operator"`
	Outcome       DecisionOutcome `json:"outcome"`
	Message       string          `json:"message,omitempty"`
	At            time.Time       `json:"at"`
}

// ReverseAction undoes a completed transition using the invoking operator's
// credential.
type ReverseAction func(ctx context.Context, cred Credential) error

type CompensationEntry struct {
	ID        string
	Subject   Application
	Reverses  TransitionKind
	Reverse   ReverseAction
	CreatedAt time.Time
}
