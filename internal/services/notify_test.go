package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gigfolio/gigfolio-backend/internal/platform/apierr"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

type notifyFixture struct {
	mailer   *fakeMailer
	emailLog *fakeEmailLogRepo
	notify   NotificationService
}

func newNotifyFixture(t *testing.T) *notifyFixture {
	t.Helper()
	f := &notifyFixture{
		mailer:   newFakeMailer(),
		emailLog: &fakeEmailLogRepo{},
	}
	f.notify = NewNotificationService(nil, testLogger(t), f.mailer, &fakeRenderer{}, f.emailLog)
	return f
}

func notifyContract(status string) *types.Contract {
	signedAt := time.Date(2026, 5, 2, 14, 30, 0, 0, time.UTC)
	c := &types.Contract{
		ID:             7,
		UserID:         uuid.New(),
		ContractNumber: "CN-0007",
		ClientName:     "Casey Client",
		ClientEmail:    "casey@example.com",
		EventDate:      time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		Status:         status,
	}
	if status == types.ContractStatusSigned {
		c.SignedAt = &signedAt
		c.SignatureName = "Casey Client"
	}
	return c
}

func notifySettings() *types.BusinessSettings {
	return &types.BusinessSettings{
		BusinessName:      "Midnight Quartet",
		BusinessEmail:     "bookings@midnightquartet.example",
		NotificationEmail: "alerts@midnightquartet.example",
	}
}

func TestSendSigningRequestRefusesSignedContract(t *testing.T) {
	f := newNotifyFixture(t)

	err := f.notify.SendSigningRequest(context.Background(), notifyContract(types.ContractStatusSigned), notifySettings(), "https://x/sign", "")
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Code != apierr.CodeInvalidState {
		t.Fatalf("want INVALID_STATE, got %v", err)
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("no mail may leave for a signed contract")
	}
}

func TestSendSigningRequestAttachesPDFAndLogsAudit(t *testing.T) {
	f := newNotifyFixture(t)

	err := f.notify.SendSigningRequest(context.Background(), notifyContract(types.ContractStatusSent), notifySettings(), "https://cdn.test/page.html", "See you at the gig")
	if err != nil {
		t.Fatalf("SendSigningRequest: %v", err)
	}
	if len(f.mailer.sent) != 1 {
		t.Fatalf("sends: want=1 got=%d", len(f.mailer.sent))
	}
	req := f.mailer.sent[0]
	if len(req.Attachments) != 1 || req.Attachments[0].MIMEType != "application/pdf" {
		t.Fatalf("unsigned PDF attachment missing: %+v", req.Attachments)
	}

	entries, _ := f.emailLog.ListByContract(context.Background(), nil, 7)
	if len(entries) != 1 || entries[0].Kind != types.EmailKindSigningRequest || entries[0].Status != types.EmailStatusSent {
		t.Fatalf("audit entry wrong: %+v", entries)
	}
}

func TestSendSignedConfirmationsLegsAreIndependent(t *testing.T) {
	f := newNotifyFixture(t)
	f.mailer.failTo["casey@example.com"] = true

	outcome := f.notify.SendSignedConfirmations(context.Background(), notifyContract(types.ContractStatusSigned), notifySettings())
	if outcome.ClientErr == nil {
		t.Fatalf("client leg should have failed")
	}
	if outcome.PerformerErr != nil {
		t.Fatalf("performer leg must survive the client failure: %v", outcome.PerformerErr)
	}
	if got := f.mailer.sentTo("alerts@midnightquartet.example"); got != 1 {
		t.Fatalf("performer sends: want=1 got=%d", got)
	}

	entries, _ := f.emailLog.ListByContract(context.Background(), nil, 7)
	statuses := map[string]string{}
	for _, e := range entries {
		statuses[e.Kind] = e.Status
	}
	if statuses[types.EmailKindSignedClientCopy] != types.EmailStatusFailed {
		t.Fatalf("client failure must be audited: %+v", statuses)
	}
	if statuses[types.EmailKindSignedPerformerNotice] != types.EmailStatusSent {
		t.Fatalf("performer success must be audited: %+v", statuses)
	}
}

func TestSendSignedConfirmationsSkipsDuplicatePerformerAddress(t *testing.T) {
	f := newNotifyFixture(t)
	settings := notifySettings()
	settings.NotificationEmail = settings.BusinessEmail

	outcome := f.notify.SendSignedConfirmations(context.Background(), notifyContract(types.ContractStatusSigned), settings)
	if outcome.ClientErr != nil || outcome.PerformerErr != nil {
		t.Fatalf("unexpected errors: %+v", outcome)
	}
	if got := f.mailer.sentTo(settings.BusinessEmail); got != 0 {
		t.Fatalf("performer leg must be skipped when no distinct address is configured, got %d sends", got)
	}
	if got := f.mailer.sentTo("casey@example.com"); got != 1 {
		t.Fatalf("client sends: want=1 got=%d", got)
	}
}

func TestSendSignedConfirmationsRequiresSignedContract(t *testing.T) {
	f := newNotifyFixture(t)

	outcome := f.notify.SendSignedConfirmations(context.Background(), notifyContract(types.ContractStatusSent), notifySettings())
	if !outcome.AllFailed() {
		t.Fatalf("unsigned contract must fail both legs: %+v", outcome)
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("no mail may leave for an unsigned contract")
	}
}
