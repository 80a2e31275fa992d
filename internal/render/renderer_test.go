package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

func testRenderer(t *testing.T) Renderer {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	r, err := New(log, Config{})
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	return r
}

func testContract(status string) *types.Contract {
	return &types.Contract{
		ID:             253,
		ContractNumber: "CN-0253",
		ClientName:     "Casey Client",
		ClientEmail:    "casey@example.com",
		EventDate:      time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		StartTime:      "19:00",
		EndTime:        "23:00",
		Venue:          "The Old Hall",
		Fee:            450,
		Deposit:        100,
		Status:         status,
	}
}

func testSettings() *types.BusinessSettings {
	return &types.BusinessSettings{
		BusinessName:  "Midnight Quartet",
		BusinessEmail: "bookings@midnightquartet.example",
	}
}

func TestSigningPageContainsForm(t *testing.T) {
	r := testRenderer(t)
	now := time.Now()

	out, err := r.SigningPage(testContract(types.ContractStatusSent), testSettings(), "https://app.example.com/contracts/sign/253", now)
	if err != nil {
		t.Fatalf("SigningPage: %v", err)
	}
	page := string(out)
	if !strings.Contains(page, `id="signing-form"`) {
		t.Fatalf("signing page missing submission form")
	}
	if !strings.Contains(page, "https://app.example.com/contracts/sign/253") {
		t.Fatalf("signing page missing sign endpoint")
	}
	if !strings.Contains(page, "CN-0253") {
		t.Fatalf("signing page missing contract number")
	}
}

func TestSigningPageRequiredFieldsFollowBlankContractFields(t *testing.T) {
	r := testRenderer(t)
	now := time.Now()

	// Venue address blank on the contract: client must supply it.
	blank := testContract(types.ContractStatusSent)
	out, err := r.SigningPage(blank, testSettings(), "https://x/sign", now)
	if err != nil {
		t.Fatalf("SigningPage: %v", err)
	}
	if !strings.Contains(string(out), `name="venueAddress"`) {
		t.Fatalf("expected venue address input when contract has none")
	}

	// Pre-filled venue address: input is not offered at all.
	filled := testContract(types.ContractStatusSent)
	filled.VenueAddress = "1 Main Street"
	out, err = r.SigningPage(filled, testSettings(), "https://x/sign", now)
	if err != nil {
		t.Fatalf("SigningPage: %v", err)
	}
	if strings.Contains(string(out), `name="venueAddress"`) {
		t.Fatalf("venue address input must be absent when the contract already has a value")
	}
}

func TestSigningPageForSignedContractIsReadOnly(t *testing.T) {
	r := testRenderer(t)
	now := time.Now()

	contract := testContract(types.ContractStatusSigned)
	signedAt := time.Date(2026, 5, 2, 14, 30, 0, 0, time.UTC)
	contract.SignedAt = &signedAt
	contract.SignatureName = "Casey Client"

	out, err := r.SigningPage(contract, testSettings(), "https://x/sign", now)
	if err != nil {
		t.Fatalf("SigningPage: %v", err)
	}
	page := string(out)
	if strings.Contains(page, `id="signing-form"`) {
		t.Fatalf("signed contract must never render the submission form")
	}
	if !strings.Contains(page, "Casey Client") {
		t.Fatalf("signed page must carry the recorded signature name")
	}
}

func TestSignedPageShowsSignatureFacts(t *testing.T) {
	r := testRenderer(t)

	contract := testContract(types.ContractStatusSigned)
	signedAt := time.Date(2026, 5, 2, 14, 30, 0, 0, time.UTC)
	contract.SignedAt = &signedAt
	contract.SignatureName = "Casey Client"

	out, err := r.SignedPage(contract, testSettings(), time.Now())
	if err != nil {
		t.Fatalf("SignedPage: %v", err)
	}
	page := string(out)
	if !strings.Contains(page, "Casey Client") {
		t.Fatalf("signed page missing signature name")
	}
	if !strings.Contains(page, "2 May 2026") {
		t.Fatalf("signed page missing signed date, got page without it")
	}
	if strings.Contains(page, `id="signing-form"`) {
		t.Fatalf("signed page must not contain signing form markup")
	}
}

func TestContractPDFBranchesOnSignatureFacts(t *testing.T) {
	r := testRenderer(t)
	now := time.Now()

	unsigned, err := r.ContractPDF(testContract(types.ContractStatusSent), testSettings(), nil, now)
	if err != nil {
		t.Fatalf("ContractPDF unsigned: %v", err)
	}
	if !bytes.HasPrefix(unsigned, []byte("%PDF")) {
		t.Fatalf("unsigned output is not a PDF")
	}

	facts := &types.SignatureFacts{
		SignatureName: "Casey Client",
		SignedAt:      time.Date(2026, 5, 2, 14, 30, 0, 0, time.UTC),
	}
	signed, err := r.ContractPDF(testContract(types.ContractStatusSent), testSettings(), facts, now)
	if err != nil {
		t.Fatalf("ContractPDF signed: %v", err)
	}
	if !bytes.HasPrefix(signed, []byte("%PDF")) {
		t.Fatalf("signed output is not a PDF")
	}
	if bytes.Equal(unsigned, signed) {
		t.Fatalf("signed and unsigned PDFs must differ")
	}
}

func TestContractPDFSignedStatusForcesSignedVariant(t *testing.T) {
	r := testRenderer(t)

	contract := testContract(types.ContractStatusSigned)
	signedAt := time.Date(2026, 5, 2, 14, 30, 0, 0, time.UTC)
	contract.SignedAt = &signedAt
	contract.SignatureName = "Casey Client"

	// Caller passes nil facts; status wins.
	withNil, err := r.ContractPDF(contract, testSettings(), nil, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("ContractPDF: %v", err)
	}
	withFacts, err := r.ContractPDF(contract, testSettings(), contract.Signature(), time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("ContractPDF: %v", err)
	}
	if !bytes.Equal(withNil, withFacts) {
		t.Fatalf("signed contract must render the signed variant regardless of the facts argument")
	}
}
