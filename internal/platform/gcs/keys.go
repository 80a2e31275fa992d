package gcs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ArtifactKey builds a collision-resistant, chronologically sortable
// object key: {kind}/{yyyy-mm-dd}/{sanitizedContractNumber}-{id}-{suffix}.{ext}.
// The random suffix guarantees every republish of the same contract gets
// a fresh key, so an in-flight link never serves half-written content.
func ArtifactKey(kind ArtifactKind, contractNumber string, contractID uint, now time.Time) string {
	ext := "html"
	if kind == ArtifactContractPDF {
		ext = "pdf"
	}
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%s/%s/%s-%d-%s.%s",
		kind,
		now.UTC().Format("2006-01-02"),
		SanitizeContractNumber(contractNumber),
		contractID,
		suffix,
		ext,
	)
}

// SanitizeContractNumber keeps keys URL- and filesystem-safe.
func SanitizeContractNumber(number string) string {
	number = strings.TrimSpace(number)
	if number == "" {
		return "contract"
	}
	var b strings.Builder
	for _, r := range number {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
