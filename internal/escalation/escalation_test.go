package escalation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/escalation/audit"
	"github.com/vietddude/recourse/internal/escalation/policy"
	"github.com/vietddude/recourse/internal/infra/carrier"
	"github.com/vietddude/recourse/internal/infra/storage/memory"
	"github.com/vietddude/recourse/internal/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeNotifier struct {
	sent    []sentMessage
	failFor string
}

type sentMessage struct {
	recipient   string
	subject     string
	attachments []string
}

func (f *fakeNotifier) Send(ctx context.Context, recipient, subject, body string, attachments []string) error {
	if f.failFor != "" && strings.Contains(subject, f.failFor) {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, sentMessage{recipient: recipient, subject: subject, attachments: attachments})
	return nil
}

func (f *fakeNotifier) RecipientFor(carrierName string) string {
	return strings.ToLower(carrierName) + "-litiges@example.test"
}

type fakeGenerator struct {
	generated int
	fail      bool
}

func (f *fakeGenerator) FormalNotice(ctx context.Context, claim *domain.Claim, lang string) (string, error) {
	if f.fail {
		return "", errors.New("disk full")
	}
	f.generated++
	return fmt.Sprintf("/reports/formal_notice_%s_%s.pdf", claim.Reference, lang), nil
}

type fixture struct {
	store    *memory.MemoryStorage
	claims   *memory.ClaimRepo
	queue    *queue.Queue
	coord    *Coordinator
	notifier *fakeNotifier
	reports  *fakeGenerator
	auditLog *audit.Log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewMemoryStorage()
	claims := memory.NewClaimRepo(store)
	log := discardLogger()

	reg := queue.NewRegistry()
	q := queue.New(memory.NewTaskRepo(store), reg, log)
	auditLog := audit.NewLog(memory.NewAuditRepo(store), log)
	notifier := &fakeNotifier{}
	reports := &fakeGenerator{}

	RegisterHandlers(reg, HandlerDeps{
		Claims:   claims,
		Audit:    auditLog,
		Notifier: notifier,
		Reports:  reports,
		Log:      log,
	})

	coord := NewCoordinator(claims, q, policy.DefaultThresholds(), log)
	return &fixture{
		store:    store,
		claims:   claims,
		queue:    q,
		coord:    coord,
		notifier: notifier,
		reports:  reports,
		auditLog: auditLog,
	}
}

func seedClaim(f *fixture, id string, level domain.EscalationLevel, daysSinceSubmission int) *domain.Claim {
	submitted := time.Now().UTC().AddDate(0, 0, -daysSinceSubmission)
	c := &domain.Claim{
		ID:              id,
		Reference:       "REF-" + id,
		Carrier:         "Colissimo",
		TrackingNumber:  "6A" + id,
		Amount:          42.50,
		Country:         "FR",
		Status:          domain.ClaimStatusSubmitted,
		PaymentStatus:   domain.PaymentStatusUnpaid,
		EscalationLevel: level,
		SubmittedAt:     submitted,
	}
	if level > domain.LevelNone {
		// An old follow-up, so the claim still passes the scan's recency gate.
		t := submitted
		c.LastFollowUpAt = &t
	}
	f.store.SeedClaim(c)
	return c
}

func TestProcessFollowUpsEscalatesAndSendsStatusRequest(t *testing.T) {
	f := newFixture(t)
	seedClaim(f, "c1", domain.LevelNone, 8)
	ctx := context.Background()

	counts, err := f.coord.ProcessFollowUps(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if counts.Escalated != 1 {
		t.Fatalf("escalated = %d, want 1", counts.Escalated)
	}

	claim, _ := f.claims.GetByID(ctx, "c1")
	if claim.EscalationLevel != domain.LevelStatusRequest {
		t.Errorf("level = %d, want %d", claim.EscalationLevel, domain.LevelStatusRequest)
	}
	if claim.LastFollowUpAt == nil {
		t.Error("escalation must stamp last_follow_up_at")
	}

	if _, err := f.queue.ProcessPending(ctx, 10); err != nil {
		t.Fatalf("drain queue: %v", err)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(f.notifier.sent))
	}
	msg := f.notifier.sent[0]
	if !strings.Contains(msg.subject, "REF-c1") {
		t.Errorf("subject %q should reference the claim", msg.subject)
	}
	if !strings.HasPrefix(msg.subject, "Demande de statut") {
		t.Errorf("subject %q should be French for an FR claim", msg.subject)
	}
	if msg.recipient != "colissimo-litiges@example.test" {
		t.Errorf("recipient = %q", msg.recipient)
	}

	history := f.auditLog.History(ctx, "c1")
	if len(history) != 1 || history[0].ActionType != domain.AuditActionNotificationSent {
		t.Errorf("audit history = %+v, want one notification_sent entry", history)
	}
}

func TestProcessFollowUpsJumpsToStrongestStage(t *testing.T) {
	f := newFixture(t)
	seedClaim(f, "c2", domain.LevelNone, 30)
	ctx := context.Background()

	if _, err := f.coord.ProcessFollowUps(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}

	claim, _ := f.claims.GetByID(ctx, "c2")
	if claim.EscalationLevel != domain.LevelFormalNotice {
		t.Errorf("level = %d, want formal notice straight away", claim.EscalationLevel)
	}
}

func TestProcessFollowUpsMeasuresFromSubmission(t *testing.T) {
	f := newFixture(t)
	c := seedClaim(f, "c11", domain.LevelStatusRequest, 22)
	// A follow-up 8 days ago passes the recency gate but must not reset the
	// escalation clock: 22 days since submission means formal notice.
	followedUp := time.Now().UTC().AddDate(0, 0, -8)
	c.LastFollowUpAt = &followedUp
	f.store.SeedClaim(c)
	ctx := context.Background()

	counts, err := f.coord.ProcessFollowUps(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if counts.Escalated != 1 {
		t.Fatalf("escalated = %d, want 1 (22 days since submission, level 1)", counts.Escalated)
	}
	if counts.FormalNotices != 1 {
		t.Errorf("formal notices = %d, want 1", counts.FormalNotices)
	}

	claim, _ := f.claims.GetByID(ctx, "c11")
	if claim.EscalationLevel != domain.LevelFormalNotice {
		t.Errorf("level = %d, want formal notice", claim.EscalationLevel)
	}
}

func TestProcessFollowUpsSecondScanIsQuiet(t *testing.T) {
	f := newFixture(t)
	seedClaim(f, "c12", domain.LevelNone, 8)
	ctx := context.Background()

	counts, err := f.coord.ProcessFollowUps(ctx)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if counts.Escalated != 1 {
		t.Fatalf("first scan escalated = %d, want 1", counts.Escalated)
	}

	// The fresh follow-up stamp keeps the claim out of the next scan.
	counts, err = f.coord.ProcessFollowUps(ctx)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if counts.Escalated != 0 {
		t.Errorf("second scan escalated = %d, want 0", counts.Escalated)
	}

	stats, err := f.queue.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[domain.TaskStatusPending] != 1 {
		t.Errorf("pending tasks = %d, want 1 after two scans", stats[domain.TaskStatusPending])
	}
}

func TestProcessFollowUpsSkipsQuietClaims(t *testing.T) {
	f := newFixture(t)
	seedClaim(f, "c3", domain.LevelStatusRequest, 8)
	ctx := context.Background()

	counts, err := f.coord.ProcessFollowUps(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if counts.Escalated != 0 {
		t.Errorf("escalated = %d, want 0 (8 days at level 1 is below the warning threshold)", counts.Escalated)
	}
	if counts.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", counts.Skipped)
	}
}

func TestProcessFollowUpsPartialDayDoesNotTrigger(t *testing.T) {
	f := newFixture(t)
	c := seedClaim(f, "c4", domain.LevelNone, 7)
	// Pull submission forward a few hours: 6 days and change, not 7 full days.
	c.SubmittedAt = time.Now().UTC().AddDate(0, 0, -7).Add(5 * time.Hour)
	f.store.SeedClaim(c)
	ctx := context.Background()

	counts, err := f.coord.ProcessFollowUps(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if counts.Escalated != 0 {
		t.Errorf("escalated = %d, want 0 for a partially elapsed threshold", counts.Escalated)
	}
}

func TestFormalNoticeGeneratesDocumentAndFlagsClaim(t *testing.T) {
	f := newFixture(t)
	seedClaim(f, "c5", domain.LevelWarning, 25)
	ctx := context.Background()

	if _, err := f.coord.ProcessFollowUps(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := f.queue.ProcessPending(ctx, 10); err != nil {
		t.Fatalf("drain queue: %v", err)
	}

	if f.reports.generated != 1 {
		t.Errorf("documents generated = %d, want 1", f.reports.generated)
	}

	claim, _ := f.claims.GetByID(ctx, "c5")
	if claim.AutomationStatus != domain.AutomationStatusActionRequired {
		t.Errorf("automation status = %q, want %q", claim.AutomationStatus, domain.AutomationStatusActionRequired)
	}

	if len(f.notifier.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(f.notifier.sent))
	}
	if len(f.notifier.sent[0].attachments) != 1 {
		t.Errorf("formal notice should attach the generated document, got %v", f.notifier.sent[0].attachments)
	}

	history := f.auditLog.History(ctx, "c5")
	if len(history) != 2 {
		t.Fatalf("audit history = %d entries, want pdf_generated + notification_sent", len(history))
	}
	if history[1].ActionType != domain.AuditActionPDFGenerated {
		t.Errorf("older entry = %s, want pdf_generated", history[1].ActionType)
	}
}

func TestFailedSendIsRecordedAndRetried(t *testing.T) {
	f := newFixture(t)
	f.notifier.failFor = "Demande de statut"
	seedClaim(f, "c6", domain.LevelNone, 8)
	ctx := context.Background()

	if _, err := f.coord.ProcessFollowUps(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := f.queue.ProcessPending(ctx, 10); err != nil {
		t.Fatalf("drain queue: %v", err)
	}

	history := f.auditLog.History(ctx, "c6")
	if len(history) != 1 || history[0].Outcome != domain.AuditOutcomeFailed {
		t.Fatalf("audit history = %+v, want one failed notification entry", history)
	}

	// Delivery recovers: the requeued task succeeds on the next pass.
	f.notifier.failFor = ""
	if _, err := f.queue.ProcessPending(ctx, 10); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	history = f.auditLog.History(ctx, "c6")
	if len(history) != 2 || history[0].Outcome != domain.AuditOutcomeSent {
		t.Fatalf("audit history = %+v, want failed then sent", history)
	}
}

func TestEnglishCorrespondenceForNonFrenchClaims(t *testing.T) {
	f := newFixture(t)
	c := seedClaim(f, "c7", domain.LevelNone, 8)
	c.Country = "DE"
	f.store.SeedClaim(c)
	ctx := context.Background()

	if _, err := f.coord.ProcessFollowUps(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := f.queue.ProcessPending(ctx, 10); err != nil {
		t.Fatalf("drain queue: %v", err)
	}

	if len(f.notifier.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(f.notifier.sent))
	}
	if !strings.HasPrefix(f.notifier.sent[0].subject, "Status request") {
		t.Errorf("subject %q should be English for a DE claim", f.notifier.sent[0].subject)
	}
}

func TestProcessFollowUpsMultipleClaims(t *testing.T) {
	f := newFixture(t)
	seedClaim(f, "c8", domain.LevelNone, 8)
	seedClaim(f, "c9", domain.LevelNone, 16)
	ctx := context.Background()

	counts, err := f.coord.ProcessFollowUps(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if counts.Escalated != 2 {
		t.Fatalf("escalated = %d, want 2", counts.Escalated)
	}
	if counts.StatusRequests != 1 || counts.Warnings != 1 || counts.FormalNotices != 0 {
		t.Errorf("per-action counts = %+v, want one status request and one warning", counts)
	}

	first, _ := f.claims.GetByID(ctx, "c8")
	second, _ := f.claims.GetByID(ctx, "c9")
	if first.EscalationLevel != domain.LevelStatusRequest {
		t.Errorf("c8 level = %d, want status request", first.EscalationLevel)
	}
	if second.EscalationLevel != domain.LevelWarning {
		t.Errorf("c9 level = %d, want warning", second.EscalationLevel)
	}
}

func TestProcessFollowUpsEnqueueBeforeUpdate(t *testing.T) {
	f := newFixture(t)
	seedClaim(f, "c10", domain.LevelNone, 8)
	ctx := context.Background()

	if _, err := f.coord.ProcessFollowUps(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}

	// The task realizing the new level must exist once the level advanced.
	counts, err := f.queue.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if counts[domain.TaskStatusPending] != 1 {
		t.Errorf("pending tasks = %d, want 1", counts[domain.TaskStatusPending])
	}
}

type fakeCompensation struct {
	issued map[string]bool
	err    error
}

func (f *fakeCompensation) CompensationIssued(ctx context.Context, carrierName, trackingNumber string, overrides carrier.Credentials) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.issued[trackingNumber], nil
}

func TestDetectPotentialBypassCreatesOneAlert(t *testing.T) {
	f := newFixture(t)
	c := seedClaim(f, "b1", domain.LevelNone, 3)
	ctx := context.Background()

	source := &fakeCompensation{issued: map[string]bool{c.TrackingNumber: true}}
	det := NewBypassDetector(f.claims, memory.NewAlertRepo(f.store), source, discardLogger())

	counts, err := det.DetectPotentialBypass(ctx)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if counts.Detected != 1 {
		t.Fatalf("detected = %d, want 1", counts.Detected)
	}

	alerts := f.store.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Type != domain.AlertTypeBypassDetected || alerts[0].RelatedResourceID != "b1" {
		t.Errorf("alert = %+v", alerts[0])
	}

	// A second scan must not duplicate the alert.
	counts, err = det.DetectPotentialBypass(ctx)
	if err != nil {
		t.Fatalf("second detect: %v", err)
	}
	if counts.Detected != 0 {
		t.Errorf("second scan detected = %d, want 0", counts.Detected)
	}
	if got := len(f.store.Alerts()); got != 1 {
		t.Errorf("alerts after second scan = %d, want 1", got)
	}
}

func TestDetectPotentialBypassLeavesClaimUntouched(t *testing.T) {
	f := newFixture(t)
	c := seedClaim(f, "b2", domain.LevelStatusRequest, 3)
	ctx := context.Background()

	source := &fakeCompensation{issued: map[string]bool{c.TrackingNumber: true}}
	det := NewBypassDetector(f.claims, memory.NewAlertRepo(f.store), source, discardLogger())

	if _, err := det.DetectPotentialBypass(ctx); err != nil {
		t.Fatalf("detect: %v", err)
	}

	after, _ := f.claims.GetByID(ctx, "b2")
	if after.PaymentStatus != domain.PaymentStatusUnpaid || after.EscalationLevel != domain.LevelStatusRequest {
		t.Errorf("detection must not mutate the claim, got %+v", after)
	}
}

func TestDetectPotentialBypassIgnoresPaidClaims(t *testing.T) {
	f := newFixture(t)
	c := seedClaim(f, "b4", domain.LevelNone, 3)
	c.PaymentStatus = domain.PaymentStatusPaid
	f.store.SeedClaim(c)
	ctx := context.Background()

	source := &fakeCompensation{issued: map[string]bool{c.TrackingNumber: true}}
	det := NewBypassDetector(f.claims, memory.NewAlertRepo(f.store), source, discardLogger())

	counts, err := det.DetectPotentialBypass(ctx)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if counts.Scanned != 0 || counts.Detected != 0 {
		t.Errorf("counts = %+v, want paid claims excluded from the scan", counts)
	}
	if got := len(f.store.Alerts()); got != 0 {
		t.Errorf("alerts = %d, want 0 for a paid claim", got)
	}
}

func TestDetectPotentialBypassCountsSourceErrors(t *testing.T) {
	f := newFixture(t)
	seedClaim(f, "b3", domain.LevelNone, 3)
	ctx := context.Background()

	det := NewBypassDetector(f.claims, memory.NewAlertRepo(f.store),
		&fakeCompensation{err: errors.New("carrier api down")}, discardLogger())

	counts, err := det.DetectPotentialBypass(ctx)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if counts.Errors != 1 || counts.Detected != 0 {
		t.Errorf("counts = %+v, want one error, zero detections", counts)
	}
}
