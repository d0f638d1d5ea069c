package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/config"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/logger"
)

// EmailMessage is the payload accepted by the email service.
type EmailMessage struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// EmailResponse is the email service reply.
type EmailResponse struct {
	Status    int    `json:"status"`
	Msg       string `json:"msg"`
	MessageID string `json:"messageId"`
}

// EmailClient calls the HTTP email service.
type EmailClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewEmailClient(cfg *config.EmailConfig, log *zap.Logger) *EmailClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.ServiceURL, "/")).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIToken != "" {
		client.SetAuthToken(cfg.APIToken)
	}
	return &EmailClient{httpClient: client, logger: log}
}

// Send posts one message and returns the service's message id.
func (c *EmailClient) Send(ctx context.Context, msg EmailMessage) (string, error) {
	var out EmailResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(msg).
		SetResult(&out).
		Post("/api/v1/send")
	if err != nil {
		return "", fmt.Errorf("failed to call email service: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("email service returned HTTP %d", resp.StatusCode())
	}
	if out.Status != 0 {
		return "", fmt.Errorf("email service error: %s (status: %d)", out.Msg, out.Status)
	}
	return out.MessageID, nil
}

// Emailer turns workflow events into review team emails.
type Emailer struct {
	client  *EmailClient
	from    string
	to      []string
	baseURL string
	logger  *zap.Logger
}

func NewEmailer(client *EmailClient, cfg *config.EmailConfig, log *zap.Logger) *Emailer {
	return &Emailer{
		client:  client,
		from:    cfg.FromAddress,
		to:      append([]string(nil), cfg.ReviewTeamEmails...),
		baseURL: strings.TrimRight(cfg.ApplicationBaseURL, "/"),
		logger:  log,
	}
}

func (e *Emailer) Notify(ctx context.Context, evt domain.Event) {
	log := logger.FromContext(ctx, e.logger)
	if len(e.to) == 0 {
		return
	}
	msg, ok := e.message(evt)
	if !ok {
		return
	}
	id, err := e.client.Send(ctx, msg)
	if err != nil {
		log.Error("failed to send notification email",
			zap.String("event", string(evt.Type)), zap.String("name", evt.Name), zap.Error(err))
		return
	}
	log.Info("notification email sent", zap.String("event", string(evt.Type)), zap.String("message_id", id))
}

func (e *Emailer) message(evt domain.Event) (EmailMessage, bool) {
	var verb string
	switch evt.Type {
	case domain.EventContractSubmitted:
		verb = "was submitted"
		if evt.Status == domain.StatusResubmitted {
			verb = "was resubmitted"
		}
	case domain.EventContractUnlocked:
		verb = "was unlocked"
	case domain.EventContractApproved:
		verb = "was approved"
	case domain.EventContractWithdrawn:
		verb = "was withdrawn"
	case domain.EventContractRestored:
		verb = "withdrawal was undone"
	case domain.EventRateWithdrawn:
		verb = "rate was withdrawn"
	case domain.EventRateRestored:
		verb = "rate withdrawal was undone"
	case domain.EventRateSubmitted:
		verb = "rate was resubmitted"
	default:
		return EmailMessage{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s by %s on %s.\n", evt.Name, verb, evt.UpdatedBy.Email, evt.At.UTC().Format("01/02/2006"))
	if evt.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", evt.Reason)
	}
	if evt.ContractID != "" {
		fmt.Fprintf(&b, "View submission: %s/submissions/%s\n", e.baseURL, evt.ContractID)
	}
	if evt.RateID != "" {
		fmt.Fprintf(&b, "View rate: %s/rates/%s\n", e.baseURL, evt.RateID)
	}
	if len(evt.RelatedContractIDs) > 0 {
		fmt.Fprintf(&b, "Also affected: %s\n", strings.Join(evt.RelatedContractIDs, ", "))
	}
	return EmailMessage{
		From:    e.from,
		To:      e.to,
		Subject: fmt.Sprintf("[%s] %s %s", evt.StateCode, evt.Name, verb),
		Body:    b.String(),
	}, true
}
