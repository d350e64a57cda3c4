package notify

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newNotifier(cfg Config) *SMTPNotifier {
	return NewSMTPNotifier(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRecipientFor(t *testing.T) {
	n := newNotifier(Config{
		Recipients: map[string]string{
			"colissimo":  "colissimo-litiges@example.test",
			"chronopost": "chronopost-reclamations@example.test",
		},
		DefaultRecipient: "disputes@example.test",
	})

	tests := []struct {
		carrier string
		want    string
	}{
		{"Colissimo", "colissimo-litiges@example.test"},
		{"La Poste - Colissimo Access", "colissimo-litiges@example.test"},
		{"CHRONOPOST", "chronopost-reclamations@example.test"},
		{"Some Regional Carrier", "disputes@example.test"},
	}
	for _, tt := range tests {
		if got := n.RecipientFor(tt.carrier); got != tt.want {
			t.Errorf("RecipientFor(%q) = %q, want %q", tt.carrier, got, tt.want)
		}
	}
}

func TestBuildMessagePlain(t *testing.T) {
	n := newNotifier(Config{From: "claims@example.test"})

	msg, err := n.buildMessage("dest@example.test", "Demande de statut", "Bonjour", nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	s := string(msg)
	if !strings.Contains(s, "From: claims@example.test") {
		t.Error("message should carry the From header")
	}
	if !strings.Contains(s, "To: dest@example.test") {
		t.Error("message should carry the To header")
	}
	if !strings.Contains(s, "Bonjour") {
		t.Error("message should carry the body")
	}
	if strings.Contains(s, "multipart/mixed") {
		t.Error("plain message should not be multipart")
	}
}

func TestBuildMessageWithAttachment(t *testing.T) {
	n := newNotifier(Config{From: "claims@example.test"})

	dir := t.TempDir()
	path := filepath.Join(dir, "formal_notice_CLM-1_fr.txt")
	if err := os.WriteFile(path, []byte("MISE EN DEMEURE"), 0o644); err != nil {
		t.Fatalf("write attachment: %v", err)
	}

	msg, err := n.buildMessage("dest@example.test", "Mise en demeure", "Ci-joint", []string{path})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	s := string(msg)
	if !strings.Contains(s, "multipart/mixed") {
		t.Error("message with attachment should be multipart")
	}
	if !strings.Contains(s, `filename="formal_notice_CLM-1_fr.txt"`) {
		t.Error("attachment should carry its filename")
	}
}

func TestBuildMessageMissingAttachmentFails(t *testing.T) {
	n := newNotifier(Config{From: "claims@example.test"})

	if _, err := n.buildMessage("dest@example.test", "s", "b", []string{"/nonexistent/file.pdf"}); err == nil {
		t.Fatal("missing attachment must fail the build")
	}
}

func TestSendWithoutRecipientFails(t *testing.T) {
	n := newNotifier(Config{From: "claims@example.test"})

	if err := n.Send(context.Background(), "", "s", "b", nil); err == nil {
		t.Fatal("send without recipient must fail")
	}
}
