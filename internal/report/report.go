// Package report renders escalation documents to the local filesystem.
// Formal notices are legal correspondence: the rendered artifact is
// referenced from the audit ledger, so paths are deterministic per claim and
// generation is write-once.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vietddude/recourse/internal/core/domain"
)

// FileGenerator writes documents under a base directory.
type FileGenerator struct {
	dir string
	log *slog.Logger
	now func() time.Time
}

func NewFileGenerator(dir string, log *slog.Logger) *FileGenerator {
	if log == nil {
		log = slog.Default()
	}
	return &FileGenerator{dir: dir, log: log, now: time.Now}
}

// FormalNotice renders the mise en demeure for a claim and returns the file
// path. Regenerating for the same claim and language overwrites in place, so
// task redelivery converges on one artifact instead of piling up copies.
func (g *FileGenerator) FormalNotice(ctx context.Context, claim *domain.Claim, lang string) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	name := fmt.Sprintf("formal_notice_%s_%s.txt", sanitize(claim.Reference), lang)
	path := filepath.Join(g.dir, name)

	body := g.renderFormalNotice(claim, lang)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write formal notice: %w", err)
	}

	g.log.Info("formal notice generated",
		"claim_id", claim.ID, "claim_reference", claim.Reference, "path", path)
	return path, nil
}

func (g *FileGenerator) renderFormalNotice(claim *domain.Claim, lang string) string {
	date := g.now().UTC().Format("02/01/2006")

	if lang == "fr" {
		return fmt.Sprintf(`MISE EN DEMEURE

Date : %s
Référence réclamation : %s
Transporteur : %s
Numéro de suivi : %s
Montant réclamé : %.2f EUR

Madame, Monsieur,

Malgré nos relances successives, la réclamation référencée ci-dessus est
restée sans règlement. Par la présente, nous vous mettons en demeure de
procéder au paiement de la somme de %.2f EUR sous huit jours à compter de la
réception de ce courrier.

À défaut de règlement dans ce délai, nous saisirons la juridiction
compétente sans nouvel avis.

Cordialement
`, date, claim.Reference, claim.Carrier, claim.TrackingNumber, claim.Amount, claim.Amount)
	}

	return fmt.Sprintf(`FORMAL NOTICE

Date: %s
Claim reference: %s
Carrier: %s
Tracking number: %s
Amount claimed: %.2f EUR

Dear Sir or Madam,

Despite our repeated reminders, the claim referenced above remains unsettled.
You are hereby given formal notice to pay the sum of %.2f EUR within eight
days of receipt of this letter.

Failing settlement within this period, we will bring the matter before the
competent court without further notice.

Kind regards
`, date, claim.Reference, claim.Carrier, claim.TrackingNumber, claim.Amount, claim.Amount)
}

// sanitize keeps references filesystem-safe.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
