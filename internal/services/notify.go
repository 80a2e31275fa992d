package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio-backend/internal/platform/apierr"
	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/platform/sendgrid"
	"github.com/gigfolio/gigfolio-backend/internal/render"
	"github.com/gigfolio/gigfolio-backend/internal/repos"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

// ConfirmationOutcome is the aggregate result of the post-sign fan-out.
// Each leg succeeds or fails independently.
type ConfirmationOutcome struct {
	ClientErr    error
	PerformerErr error
}

func (o ConfirmationOutcome) AllFailed() bool {
	return o.ClientErr != nil && o.PerformerErr != nil
}

// NotificationService owns all outbound contract mail. Every send is
// recorded in the email audit log; failures never mutate contract state.
type NotificationService interface {
	// SendSigningRequest emails the client the signing link with the
	// unsigned PDF attached. Refused for signed contracts.
	SendSigningRequest(ctx context.Context, contract *types.Contract, settings *types.BusinessSettings, signingURL, customMessage string) error

	// SendSignedConfirmations fans out the signed copies: one to the
	// client, one to the performer's notification address when a distinct
	// one is configured. The legs are independent.
	SendSignedConfirmations(ctx context.Context, contract *types.Contract, settings *types.BusinessSettings) ConfirmationOutcome
}

type notificationService struct {
	db           *gorm.DB
	log          *logger.Logger
	mailer       sendgrid.Client
	renderer     render.Renderer
	emailLogRepo repos.EmailLogRepo
	now          func() time.Time
}

func NewNotificationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	mailer sendgrid.Client,
	renderer render.Renderer,
	emailLogRepo repos.EmailLogRepo,
) NotificationService {
	return &notificationService{
		db:           db,
		log:          baseLog.With("service", "NotificationService"),
		mailer:       mailer,
		renderer:     renderer,
		emailLogRepo: emailLogRepo,
		now:          time.Now,
	}
}

func (n *notificationService) SendSigningRequest(ctx context.Context, contract *types.Contract, settings *types.BusinessSettings, signingURL, customMessage string) error {
	if contract == nil || settings == nil {
		return fmt.Errorf("notify: contract and settings required")
	}
	if contract.IsSigned() {
		return apierr.New(http.StatusConflict, apierr.CodeInvalidState,
			fmt.Errorf("contract %d is already signed; signing request refused", contract.ID))
	}
	if strings.TrimSpace(contract.ClientEmail) == "" {
		return apierr.New(http.StatusUnprocessableEntity, apierr.CodeValidation,
			fmt.Errorf("contract %d has no client email", contract.ID))
	}

	message := strings.TrimSpace(customMessage)
	if message == "" {
		message = strings.TrimSpace(settings.DefaultEmailMessage)
	}

	var attachments []sendgrid.Attachment
	pdfBytes, err := n.renderer.ContractPDF(contract, settings, nil, n.now())
	if err != nil {
		// The link still works without the attachment.
		n.log.Warn("Signing-request PDF attachment skipped",
			"contract_id", contract.ID, "error", err)
	} else {
		attachments = append(attachments, sendgrid.Attachment{
			Filename: fmt.Sprintf("contract-%s.pdf", contract.ContractNumber),
			MIMEType: "application/pdf",
			Content:  pdfBytes,
		})
	}

	subject := fmt.Sprintf("Performance contract %s from %s", contract.ContractNumber, settings.BusinessName)
	sendErr := n.send(ctx, types.EmailKindSigningRequest, contract, sendgrid.SendEmailRequest{
		From:        sendgrid.EmailAddress{Email: settings.BusinessEmail, Name: settings.BusinessName},
		To:          []sendgrid.EmailAddress{{Email: contract.ClientEmail, Name: contract.ClientName}},
		Subject:     subject,
		HTML:        signingRequestHTML(contract, settings, signingURL, message),
		Text:        signingRequestText(contract, settings, signingURL, message),
		Categories:  []string{"signing-request"},
		Attachments: attachments,
	})
	return sendErr
}

func (n *notificationService) SendSignedConfirmations(ctx context.Context, contract *types.Contract, settings *types.BusinessSettings) ConfirmationOutcome {
	var out ConfirmationOutcome
	if contract == nil || settings == nil {
		err := fmt.Errorf("notify: contract and settings required")
		out.ClientErr, out.PerformerErr = err, err
		return out
	}
	if !contract.IsSigned() {
		err := apierr.New(http.StatusConflict, apierr.CodeInvalidState,
			fmt.Errorf("contract %d is not signed; confirmations refused", contract.ID))
		out.ClientErr, out.PerformerErr = err, err
		return out
	}

	// One render shared by both legs; attachment failure degrades both
	// emails to link-only.
	var attachments []sendgrid.Attachment
	pdfBytes, err := n.renderer.ContractPDF(contract, settings, contract.Signature(), n.now())
	if err != nil {
		n.log.Warn("Signed-copy PDF attachment skipped",
			"contract_id", contract.ID, "error", err)
	} else {
		attachments = append(attachments, sendgrid.Attachment{
			Filename: fmt.Sprintf("contract-%s-signed.pdf", contract.ContractNumber),
			MIMEType: "application/pdf",
			Content:  pdfBytes,
		})
	}

	performerTo := strings.TrimSpace(settings.NotificationEmail)
	if strings.EqualFold(performerTo, strings.TrimSpace(settings.BusinessEmail)) {
		performerTo = ""
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))

	g.Go(func() error {
		out.ClientErr = n.send(gctx, types.EmailKindSignedClientCopy, contract, sendgrid.SendEmailRequest{
			From:        sendgrid.EmailAddress{Email: settings.BusinessEmail, Name: settings.BusinessName},
			To:          []sendgrid.EmailAddress{{Email: contract.ClientEmail, Name: contract.ClientName}},
			Subject:     fmt.Sprintf("Your signed contract %s", contract.ContractNumber),
			HTML:        signedClientHTML(contract, settings),
			Text:        signedClientText(contract, settings),
			Categories:  []string{"signed-confirmation"},
			Attachments: attachments,
		})
		return nil
	})

	if performerTo != "" {
		g.Go(func() error {
			out.PerformerErr = n.send(gctx, types.EmailKindSignedPerformerNotice, contract, sendgrid.SendEmailRequest{
				From:        sendgrid.EmailAddress{Email: settings.BusinessEmail, Name: settings.BusinessName},
				To:          []sendgrid.EmailAddress{{Email: performerTo}},
				Subject:     fmt.Sprintf("Contract %s signed by %s", contract.ContractNumber, contract.SignatureName),
				HTML:        signedPerformerHTML(contract),
				Text:        signedPerformerText(contract),
				Categories:  []string{"signed-notice"},
				Attachments: attachments,
			})
			return nil
		})
	}

	_ = g.Wait()

	if out.AllFailed() {
		n.log.Error("All signed-confirmation emails failed",
			"contract_id", contract.ID,
			"client_error", out.ClientErr,
			"performer_error", out.PerformerErr,
		)
	}
	return out
}

// send performs one mail send and writes the audit row. The audit write
// itself is best-effort.
func (n *notificationService) send(ctx context.Context, kind string, contract *types.Contract, req sendgrid.SendEmailRequest) error {
	_, sendErr := n.mailer.Send(ctx, req)

	entry := &types.EmailLog{
		ContractID: contract.ID,
		Kind:       kind,
		Recipient:  req.To[0].Email,
		Status:     types.EmailStatusSent,
	}
	if sendErr != nil {
		entry.Status = types.EmailStatusFailed
		entry.Error = sendErr.Error()
	}
	if payload, err := json.Marshal(map[string]any{
		"subject":     req.Subject,
		"categories":  req.Categories,
		"attachments": len(req.Attachments),
	}); err == nil {
		entry.Payload = datatypes.JSON(payload)
	}
	if err := n.emailLogRepo.Create(ctx, nil, entry); err != nil {
		n.log.Warn("Email audit write failed",
			"contract_id", contract.ID, "kind", kind, "error", err)
	}

	if sendErr != nil {
		n.log.Error("Email send failed",
			"contract_id", contract.ID, "kind", kind, "error", sendErr)
		return fmt.Errorf("send %s for contract %d: %w", kind, contract.ID, sendErr)
	}
	n.log.Info("Email sent", "contract_id", contract.ID, "kind", kind)
	return nil
}

// ---------- bodies ----------

func signingRequestHTML(contract *types.Contract, settings *types.BusinessSettings, signingURL, message string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<p>Hello %s,</p>", html.EscapeString(contract.ClientName)))
	if message != "" {
		b.WriteString(fmt.Sprintf("<p>%s</p>", html.EscapeString(message)))
	}
	b.WriteString(fmt.Sprintf(
		"<p>%s has prepared performance contract <strong>%s</strong> for your event on %s.</p>",
		html.EscapeString(settings.BusinessName),
		html.EscapeString(contract.ContractNumber),
		contract.EventDate.Format("Monday, 2 January 2006")))
	b.WriteString(fmt.Sprintf(
		`<p><a href="%s">Review and sign the contract</a></p>`, signingURL))
	b.WriteString("<p>A copy of the contract is attached for your records.</p>")
	return b.String()
}

func signingRequestText(contract *types.Contract, settings *types.BusinessSettings, signingURL, message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", contract.ClientName)
	if message != "" {
		b.WriteString(message + "\n\n")
	}
	fmt.Fprintf(&b, "%s has prepared performance contract %s for your event on %s.\n\n",
		settings.BusinessName, contract.ContractNumber, contract.EventDate.Format("Monday, 2 January 2006"))
	fmt.Fprintf(&b, "Review and sign the contract: %s\n", signingURL)
	return b.String()
}

func signedClientHTML(contract *types.Contract, settings *types.BusinessSettings) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<p>Hello %s,</p>", html.EscapeString(contract.ClientName)))
	b.WriteString(fmt.Sprintf(
		"<p>Thank you for signing contract <strong>%s</strong> with %s. Your signed copy is attached.</p>",
		html.EscapeString(contract.ContractNumber), html.EscapeString(settings.BusinessName)))
	if contract.ContractPDFURL != "" {
		b.WriteString(fmt.Sprintf(`<p>You can also <a href="%s">download it here</a>.</p>`, contract.ContractPDFURL))
	}
	return b.String()
}

func signedClientText(contract *types.Contract, settings *types.BusinessSettings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nThank you for signing contract %s with %s. Your signed copy is attached.\n",
		contract.ClientName, contract.ContractNumber, settings.BusinessName)
	if contract.ContractPDFURL != "" {
		fmt.Fprintf(&b, "Download: %s\n", contract.ContractPDFURL)
	}
	return b.String()
}

func signedPerformerHTML(contract *types.Contract) string {
	signedAt := ""
	if contract.SignedAt != nil {
		signedAt = contract.SignedAt.Format("2 January 2006 at 15:04 MST")
	}
	return fmt.Sprintf(
		"<p>Contract <strong>%s</strong> was signed by %s on %s.</p><p>The signed copy is attached.</p>",
		html.EscapeString(contract.ContractNumber),
		html.EscapeString(contract.SignatureName),
		signedAt)
}

func signedPerformerText(contract *types.Contract) string {
	signedAt := ""
	if contract.SignedAt != nil {
		signedAt = contract.SignedAt.Format("2 January 2006 at 15:04 MST")
	}
	return fmt.Sprintf("Contract %s was signed by %s on %s.\n", contract.ContractNumber, contract.SignatureName, signedAt)
}
