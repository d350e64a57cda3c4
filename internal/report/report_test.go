package report

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vietddude/recourse/internal/core/domain"
)

func testClaim() *domain.Claim {
	return &domain.Claim{
		ID:             "claim-1",
		Reference:      "CLM-2026-0042",
		Carrier:        "Colissimo",
		TrackingNumber: "6A12345",
		Amount:         128.40,
		Country:        "FR",
	}
}

func newGenerator(t *testing.T) *FileGenerator {
	t.Helper()
	return NewFileGenerator(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFormalNoticeWritesFile(t *testing.T) {
	g := newGenerator(t)

	path, err := g.FormalNotice(context.Background(), testClaim(), "fr")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if filepath.Base(path) != "formal_notice_CLM-2026-0042_fr.txt" {
		t.Errorf("path = %q, want deterministic name", path)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	content := string(body)
	if !strings.Contains(content, "MISE EN DEMEURE") {
		t.Error("French notice should carry the mise en demeure heading")
	}
	if !strings.Contains(content, "CLM-2026-0042") || !strings.Contains(content, "128.40") {
		t.Error("notice should carry the claim reference and amount")
	}
}

func TestFormalNoticeEnglish(t *testing.T) {
	g := newGenerator(t)

	path, err := g.FormalNotice(context.Background(), testClaim(), "en")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	body, _ := os.ReadFile(path)
	if !strings.Contains(string(body), "FORMAL NOTICE") {
		t.Error("English notice should carry the formal notice heading")
	}
}

func TestFormalNoticeRegenerationOverwrites(t *testing.T) {
	g := newGenerator(t)
	claim := testClaim()
	ctx := context.Background()

	first, err := g.FormalNotice(ctx, claim, "fr")
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	second, err := g.FormalNotice(ctx, claim, "fr")
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if first != second {
		t.Errorf("paths differ: %q vs %q, redelivery must converge", first, second)
	}

	entries, err := os.ReadDir(filepath.Dir(first))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("artifacts = %d, want 1", len(entries))
	}
}

func TestSanitizeReference(t *testing.T) {
	g := newGenerator(t)
	claim := testClaim()
	claim.Reference = "CLM/2026 #42"

	path, err := g.FormalNotice(context.Background(), claim, "fr")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	base := filepath.Base(path)
	if strings.ContainsAny(base, "/# ") {
		t.Errorf("artifact name %q should be filesystem-safe", base)
	}
}
