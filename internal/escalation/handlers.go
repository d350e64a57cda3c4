package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/escalation/audit"
	"github.com/vietddude/recourse/internal/escalation/policy"
	"github.com/vietddude/recourse/internal/infra/storage"
	"github.com/vietddude/recourse/internal/queue"
)

// Notifier delivers an escalation message to a carrier contact.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string, attachments []string) error
	RecipientFor(carrierName string) string
}

// DocumentGenerator renders the formal notice document and returns its
// artifact reference (a file path or object key).
type DocumentGenerator interface {
	FormalNotice(ctx context.Context, claim *domain.Claim, lang string) (string, error)
}

// HandlerDeps carries everything the escalation task handlers touch.
type HandlerDeps struct {
	Claims   storage.ClaimRepository
	Audit    *audit.Log
	Notifier Notifier
	Reports  DocumentGenerator
	Log      *slog.Logger
}

// RegisterHandlers binds the three escalation task types to reg. Handlers are
// idempotent under redelivery: the worst case of a duplicate task is a second
// follow-up message, never corrupted claim state.
func RegisterHandlers(reg *queue.Registry, deps HandlerDeps) {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	h := &handlers{deps: deps}
	reg.Register(policy.TaskStatusRequest, h.statusRequest)
	reg.Register(policy.TaskWarning, h.warning)
	reg.Register(policy.TaskFormalNotice, h.formalNotice)
}

type handlers struct {
	deps HandlerDeps
}

func (h *handlers) loadClaim(ctx context.Context, payload json.RawMessage) (*domain.Claim, error) {
	var p TaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	claim, err := h.deps.Claims.GetByID(ctx, p.ClaimID)
	if err != nil {
		return nil, fmt.Errorf("load claim %s: %w", p.ClaimID, err)
	}
	return claim, nil
}

// langFor picks the message language by destination country. French carriers
// get French correspondence; everything else falls back to English.
func langFor(claim *domain.Claim) string {
	if strings.EqualFold(claim.Country, "FR") || claim.Country == "" {
		return "fr"
	}
	return "en"
}

func (h *handlers) statusRequest(ctx context.Context, payload json.RawMessage) error {
	claim, err := h.loadClaim(ctx, payload)
	if err != nil {
		return err
	}

	subject, body := statusRequestMessage(claim, langFor(claim))
	return h.send(ctx, claim, domain.LevelStatusRequest, subject, body, nil)
}

func (h *handlers) warning(ctx context.Context, payload json.RawMessage) error {
	claim, err := h.loadClaim(ctx, payload)
	if err != nil {
		return err
	}

	subject, body := warningMessage(claim, langFor(claim))
	return h.send(ctx, claim, domain.LevelWarning, subject, body, nil)
}

// formalNotice is the heaviest stage: generate the notice document, record
// its generation, deliver it, then flag the claim for human follow-through.
func (h *handlers) formalNotice(ctx context.Context, payload json.RawMessage) error {
	claim, err := h.loadClaim(ctx, payload)
	if err != nil {
		return err
	}
	lang := langFor(claim)

	artifactRef, err := h.deps.Reports.FormalNotice(ctx, claim, lang)
	if err != nil {
		return fmt.Errorf("generate formal notice for claim %s: %w", claim.ID, err)
	}
	if _, err := h.deps.Audit.LogPDFGeneration(ctx, claim.ID, domain.LevelFormalNotice,
		artifactRef, map[string]any{"lang": lang}); err != nil {
		return err
	}

	subject, body := formalNoticeMessage(claim, lang)
	if err := h.send(ctx, claim, domain.LevelFormalNotice, subject, body, []string{artifactRef}); err != nil {
		return err
	}

	// Formal notice exhausts automated pressure; the rest is a human decision.
	if err := h.deps.Claims.UpdateAutomationStatus(ctx, claim.ID, domain.AutomationStatusActionRequired); err != nil {
		return fmt.Errorf("flag claim %s for manual action: %w", claim.ID, err)
	}
	return nil
}

// send delivers the message and records the outcome in the ledger. A failed
// delivery is recorded and returned, so the queue retries the task while the
// ledger keeps every attempt.
func (h *handlers) send(
	ctx context.Context,
	claim *domain.Claim,
	level domain.EscalationLevel,
	subject, body string,
	attachments []string,
) error {
	recipient := h.deps.Notifier.RecipientFor(claim.Carrier)

	sendErr := h.deps.Notifier.Send(ctx, recipient, subject, body, attachments)

	outcome := domain.AuditOutcomeSent
	details := map[string]any{"subject": subject}
	if sendErr != nil {
		outcome = domain.AuditOutcomeFailed
		details["error"] = sendErr.Error()
	}
	if _, err := h.deps.Audit.LogNotificationSent(ctx, claim.ID, level, recipient, outcome, details); err != nil {
		return err
	}

	if sendErr != nil {
		return fmt.Errorf("send %s notification for claim %s: %w", level, claim.ID, sendErr)
	}
	h.deps.Log.Info("escalation notification sent",
		"claim_id", claim.ID, "level", level.String(), "recipient", recipient)
	return nil
}

func statusRequestMessage(claim *domain.Claim, lang string) (subject, body string) {
	if lang == "fr" {
		subject = fmt.Sprintf("Demande de statut - réclamation %s", claim.Reference)
		body = fmt.Sprintf(
			"Madame, Monsieur,\n\nNotre réclamation %s concernant l'envoi %s (montant : %.2f EUR) est restée sans réponse.\nMerci de nous communiquer son statut sous 7 jours.\n\nCordialement",
			claim.Reference, claim.TrackingNumber, claim.Amount)
		return subject, body
	}
	subject = fmt.Sprintf("Status request - claim %s", claim.Reference)
	body = fmt.Sprintf(
		"Dear Sir or Madam,\n\nOur claim %s regarding shipment %s (amount: %.2f EUR) has received no response.\nPlease provide its status within 7 days.\n\nKind regards",
		claim.Reference, claim.TrackingNumber, claim.Amount)
	return subject, body
}

func warningMessage(claim *domain.Claim, lang string) (subject, body string) {
	if lang == "fr" {
		subject = fmt.Sprintf("Relance - réclamation %s restée sans réponse", claim.Reference)
		body = fmt.Sprintf(
			"Madame, Monsieur,\n\nMalgré notre précédente demande, la réclamation %s (envoi %s, montant : %.2f EUR) demeure sans réponse.\nSans retour sous 7 jours, nous engagerons une mise en demeure.\n\nCordialement",
			claim.Reference, claim.TrackingNumber, claim.Amount)
		return subject, body
	}
	subject = fmt.Sprintf("Reminder - claim %s still unanswered", claim.Reference)
	body = fmt.Sprintf(
		"Dear Sir or Madam,\n\nDespite our previous request, claim %s (shipment %s, amount: %.2f EUR) remains unanswered.\nWithout a reply within 7 days we will issue a formal notice.\n\nKind regards",
		claim.Reference, claim.TrackingNumber, claim.Amount)
	return subject, body
}

func formalNoticeMessage(claim *domain.Claim, lang string) (subject, body string) {
	if lang == "fr" {
		subject = fmt.Sprintf("Mise en demeure - réclamation %s", claim.Reference)
		body = fmt.Sprintf(
			"Madame, Monsieur,\n\nVous trouverez ci-joint une mise en demeure concernant la réclamation %s (envoi %s, montant : %.2f EUR).\nÀ défaut de règlement sous 8 jours, nous saisirons la juridiction compétente.\n\nCordialement",
			claim.Reference, claim.TrackingNumber, claim.Amount)
		return subject, body
	}
	subject = fmt.Sprintf("Formal notice - claim %s", claim.Reference)
	body = fmt.Sprintf(
		"Dear Sir or Madam,\n\nPlease find attached a formal notice regarding claim %s (shipment %s, amount: %.2f EUR).\nFailing settlement within 8 days we will bring the matter before the competent court.\n\nKind regards",
		claim.Reference, claim.TrackingNumber, claim.Amount)
	return subject, body
}
