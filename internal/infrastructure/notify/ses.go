package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	awsv2xray "github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

// SendEmailAPI is the part of the SES client the notifier needs.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESNotifier struct {
	client SendEmailAPI
	from   string
}

func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	awsv2xray.AWSV2Instrumentor(&cfg.APIOptions)
	return ses.NewFromConfig(cfg), nil
}

func NewSESNotifier(client SendEmailAPI, from string) (*SESNotifier, error) {
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("%w: sender address is required", domain.ErrInvalidInput)
	}
	return &SESNotifier{client: client, from: from}, nil
}

// NotifyApproved mails the applicant their sign-in details.
func (n *SESNotifier) NotifyApproved(ctx context.Context, app domain.Application, account domain.Account) error {
	subject := "Your marketplace application has been approved"
	body := fmt.Sprintf(
		"Hello %s,\n\nYour %s application has been approved and an account was created for you.\n\n"+
			"Email: %s\nTemporary password: %s\nRole: %s\n\nYou will be asked to choose a new password when you first sign in.\n",
		account.DisplayName, app.Category(), account.Email, account.Credential, account.Role)

	_, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.from),
		Destination: &types.Destination{ToAddresses: []string{account.Email}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send approval notice to %s: %w", account.Email, err)
	}
	return nil
}

var _ ports.Notifier = (*SESNotifier)(nil)
