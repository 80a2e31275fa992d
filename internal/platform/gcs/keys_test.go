package gcs

import (
	"strings"
	"testing"
	"time"
)

func TestArtifactKeyFormat(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	key := ArtifactKey(ArtifactSigningPage, "CN-0042", 17, now)
	if !strings.HasPrefix(key, "signing-pages/2026-03-14/CN-0042-17-") {
		t.Fatalf("key prefix: got=%q", key)
	}
	if !strings.HasSuffix(key, ".html") {
		t.Fatalf("key ext: got=%q", key)
	}

	pdfKey := ArtifactKey(ArtifactContractPDF, "CN-0042", 17, now)
	if !strings.HasPrefix(pdfKey, "contracts/2026-03-14/CN-0042-17-") {
		t.Fatalf("pdf key prefix: got=%q", pdfKey)
	}
	if !strings.HasSuffix(pdfKey, ".pdf") {
		t.Fatalf("pdf key ext: got=%q", pdfKey)
	}
}

func TestArtifactKeyUniquePerPublish(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	a := ArtifactKey(ArtifactSigningPage, "CN-0042", 17, now)
	b := ArtifactKey(ArtifactSigningPage, "CN-0042", 17, now)
	if a == b {
		t.Fatalf("expected distinct keys for repeated publish, got %q twice", a)
	}
}

func TestSanitizeContractNumber(t *testing.T) {
	got := SanitizeContractNumber("CN 0042/2026#x")
	want := "CN-0042-2026-x"
	if got != want {
		t.Fatalf("sanitize: want=%q got=%q", want, got)
	}
	if SanitizeContractNumber("   ") != "contract" {
		t.Fatalf("empty number should fall back to %q", "contract")
	}
}

func TestPublicURLPrecedence(t *testing.T) {
	s := &store{bucket: "gigfolio-contracts", cdnDomain: "cdn.example.com"}
	if got, want := s.PublicURL("signing-pages/2026-03-14/a.html"), "https://cdn.example.com/signing-pages/2026-03-14/a.html"; got != want {
		t.Fatalf("cdn url: want=%q got=%q", want, got)
	}

	s = &store{bucket: "gigfolio-contracts", publicBaseURL: "http://localhost:4443"}
	if got, want := s.PublicURL("/signing-pages/a.html"), "http://localhost:4443/gigfolio-contracts/signing-pages/a.html"; got != want {
		t.Fatalf("base url: want=%q got=%q", want, got)
	}

	s = &store{bucket: "gigfolio-contracts"}
	if got, want := s.PublicURL("contracts/b.pdf"), "https://storage.googleapis.com/gigfolio-contracts/contracts/b.pdf"; got != want {
		t.Fatalf("gcs default url: want=%q got=%q", want, got)
	}
}

func TestContentTypeForKey(t *testing.T) {
	if got := contentTypeForKey("signing-pages/x.html"); got != "text/html; charset=utf-8" {
		t.Fatalf("html content type: got=%q", got)
	}
	if got := contentTypeForKey("contracts/x.pdf"); got != "application/pdf" {
		t.Fatalf("pdf content type: got=%q", got)
	}
	if got := contentTypeForKey("x.bin"); got != "" {
		t.Fatalf("unknown ext should be empty, got=%q", got)
	}
}
