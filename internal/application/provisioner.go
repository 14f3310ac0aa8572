package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

const (
	ProvisionCreated   = "created"
	ProvisionDuplicate = "duplicate"
	ProvisionFailed    = "failed"
)

// ProvisionResult is the outcome of the account step of an approval.
// Created is false when the account already existed.
type ProvisionResult struct {
	Account  domain.Account
	Created  bool
	Warnings []string
}

type AccountProvisioner struct {
	accounts ports.AccountGateway
	notifier ports.Notifier
	metrics  ports.Metrics
	logger   ports.Logger
	newCred  func() string
}

func NewAccountProvisioner(accounts ports.AccountGateway, notifier ports.Notifier, metrics ports.Metrics, logger ports.Logger) *AccountProvisioner {
	return &AccountProvisioner{
		accounts: accounts,
		notifier: notifier,
		metrics:  orMetrics(metrics),
		logger:   orLogger(logger),
		newCred:  temporaryCredential,
	}
}

// temporaryCredential is superseded by the user's first login, so it only
// needs to be unpredictable and satisfy the usual complexity rules.
func temporaryCredential() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:1]) + raw[1:12] + "a1!"
}

// Prepare builds the account payload for app without touching the network.
func (p *AccountProvisioner) Prepare(app domain.Application) (domain.Account, error) {
	email := app.Contact().PreferredEmail()
	if email == "" {
		return domain.Account{}, fmt.Errorf("application %s: %w", app.ID, domain.ErrMissingContactInfo)
	}
	return domain.Account{
		Email:       email,
		Credential:  p.newCred(),
		DisplayName: app.DisplayName(),
		Role:        ResolveRole(app.Category()),
	}, nil
}

// Create requests the account. A duplicate account is a warning, any other
// failure is a *domain.ProvisioningError.
func (p *AccountProvisioner) Create(ctx context.Context, cred domain.Credential, app domain.Application, account domain.Account) (ProvisionResult, error) {
	result := ProvisionResult{Account: account}

	err := p.accounts.CreateAccount(ctx, cred, account)
	switch {
	case err == nil:
		result.Created = true
	case domain.IsDuplicateAccount(err):
		p.metrics.AccountProvisioned(ProvisionDuplicate)
		p.logger.Warn(ctx, "account already exists", "application_id", app.ID, "email", account.Email)
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("an account for %s already exists; the application was approved without creating a new one", account.Email))
		return result, nil
	default:
		p.metrics.AccountProvisioned(ProvisionFailed)
		p.logger.Error(ctx, "account creation failed", "application_id", app.ID, "email", account.Email, "error", err)
		return result, &domain.ProvisioningError{ApplicationID: app.ID, Email: account.Email, Err: err}
	}

	p.metrics.AccountProvisioned(ProvisionCreated)
	p.logger.Info(ctx, "account created", "application_id", app.ID, "email", account.Email, "role", account.Role)

	if p.notifier != nil {
		if err := p.notifier.NotifyApproved(ctx, app, account); err != nil {
			p.logger.Warn(ctx, "approval notice not sent", "application_id", app.ID, "error", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("approval notice to %s was not sent: %v", account.Email, err))
		}
	}
	return result, nil
}

// Provision runs Prepare then Create.
func (p *AccountProvisioner) Provision(ctx context.Context, cred domain.Credential, app domain.Application) (ProvisionResult, error) {
	account, err := p.Prepare(app)
	if err != nil {
		return ProvisionResult{}, err
	}
	return p.Create(ctx, cred, app, account)
}
