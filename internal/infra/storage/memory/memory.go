package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/infra/storage"
)

// MemoryStorage backs all repositories with maps, for development runs without
// Postgres and for tests.
type MemoryStorage struct {
	claims  map[string]*domain.Claim
	tasks   map[string]*domain.Task
	entries []*domain.AuditEntry
	alerts  []*domain.Alert
	nextID  int64
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		claims: make(map[string]*domain.Claim),
		tasks:  make(map[string]*domain.Task),
	}
}

// SeedClaim inserts or replaces a claim. Test/dev helper: the claim store is
// owned outside this engine, so there is no production write path for it.
func (s *MemoryStorage) SeedClaim(c *domain.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.claims[c.ID] = &cp
}

// -----------------------------------------------------------------------------
// Claim Repository
// -----------------------------------------------------------------------------

type ClaimRepo struct {
	store *MemoryStorage
}

func NewClaimRepo(store *MemoryStorage) *ClaimRepo {
	return &ClaimRepo{store: store}
}

func (r *ClaimRepo) GetByID(ctx context.Context, id string) (*domain.Claim, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.claims[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *ClaimRepo) GetStagnant(ctx context.Context, minDays int) ([]*domain.Claim, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -minDays)
	var out []*domain.Claim
	for _, c := range r.store.claims {
		if c.Status != domain.ClaimStatusSubmitted {
			continue
		}
		if c.LastFollowUpAt != nil && !c.LastFollowUpAt.Before(cutoff) {
			continue
		}
		if !c.SubmittedAt.Before(cutoff) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (r *ClaimRepo) GetUnpaidSubmitted(ctx context.Context) ([]*domain.Claim, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Claim
	for _, c := range r.store.claims {
		if c.Status == domain.ClaimStatusSubmitted && c.PaymentStatus == domain.PaymentStatusUnpaid {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (r *ClaimRepo) UpdateEscalation(
	ctx context.Context,
	id string,
	fromLevel, toLevel domain.EscalationLevel,
	followUpAt time.Time,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	c, ok := r.store.claims[id]
	if !ok {
		return storage.ErrNotFound
	}
	if c.EscalationLevel != fromLevel {
		return storage.ErrStaleClaim
	}
	c.EscalationLevel = toLevel
	t := followUpAt
	c.LastFollowUpAt = &t
	return nil
}

func (r *ClaimRepo) UpdateAutomationStatus(ctx context.Context, id string, status string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	c, ok := r.store.claims[id]
	if !ok {
		return storage.ErrNotFound
	}
	c.AutomationStatus = status
	return nil
}

// -----------------------------------------------------------------------------
// Task Repository
// -----------------------------------------------------------------------------

type TaskRepo struct {
	store *MemoryStorage
}

func NewTaskRepo(store *MemoryStorage) *TaskRepo {
	return &TaskRepo{store: store}
}

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *t
	cp.Status = domain.TaskStatusPending
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.store.tasks[t.ID] = &cp
	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	t, ok := r.store.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *TaskRepo) pendingLocked() []*domain.Task {
	var out []*domain.Task
	for _, t := range r.store.tasks {
		if t.Status == domain.TaskStatusPending {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *TaskRepo) DequeueBatch(ctx context.Context, limit int) ([]*domain.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	pending := r.pendingLocked()
	if len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]*domain.Task, 0, len(pending))
	for _, t := range pending {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (r *TaskRepo) ClaimNext(ctx context.Context) (*domain.Task, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	pending := r.pendingLocked()
	if len(pending) == 0 {
		return nil, nil
	}
	t := pending[0]
	t.Status = domain.TaskStatusProcessing
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, nil
}

func (r *TaskRepo) setStatus(id string, status domain.TaskStatus, attempts int, lastError string, keepAttempts bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, ok := r.store.tasks[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.Status = status
	if !keepAttempts {
		t.Attempts = attempts
		t.LastError = lastError
	}
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *TaskRepo) MarkProcessing(ctx context.Context, id string) error {
	return r.setStatus(id, domain.TaskStatusProcessing, 0, "", true)
}

func (r *TaskRepo) MarkCompleted(ctx context.Context, id string) error {
	return r.setStatus(id, domain.TaskStatusCompleted, 0, "", true)
}

func (r *TaskRepo) Requeue(ctx context.Context, id string, attempts int, lastError string) error {
	return r.setStatus(id, domain.TaskStatusPending, attempts, lastError, false)
}

func (r *TaskRepo) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	return r.setStatus(id, domain.TaskStatusFailed, attempts, lastError, false)
}

func (r *TaskRepo) ReclaimStale(ctx context.Context, lease time.Duration) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cutoff := time.Now().UTC().Add(-lease)
	count := 0
	for _, t := range r.store.tasks {
		if t.Status == domain.TaskStatusProcessing && t.UpdatedAt.Before(cutoff) {
			t.Status = domain.TaskStatusPending
			t.UpdatedAt = time.Now().UTC()
			count++
		}
	}
	return count, nil
}

func (r *TaskRepo) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	counts := make(map[domain.TaskStatus]int)
	for _, t := range r.store.tasks {
		counts[t.Status]++
	}
	return counts, nil
}

// -----------------------------------------------------------------------------
// Audit Repository
// -----------------------------------------------------------------------------

type AuditRepo struct {
	store *MemoryStorage
}

func NewAuditRepo(store *MemoryStorage) *AuditRepo {
	return &AuditRepo{store: store}
}

func (r *AuditRepo) Append(ctx context.Context, e *domain.AuditEntry) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextID++
	cp := *e
	cp.ID = r.store.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.store.entries = append(r.store.entries, &cp)
	return cp.ID, nil
}

func (r *AuditRepo) ListByClaim(ctx context.Context, claimID string) ([]*domain.AuditEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.AuditEntry
	for i := len(r.store.entries) - 1; i >= 0; i-- {
		if r.store.entries[i].ClaimID == claimID {
			cp := *r.store.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *AuditRepo) ListRecent(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.AuditEntry
	for i := len(r.store.entries) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.store.entries[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *AuditRepo) Statistics(ctx context.Context) (*domain.AuditStatistics, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stats := domain.EmptyAuditStatistics()
	stats.Total = len(r.store.entries)
	for _, e := range r.store.entries {
		stats.ByLevel[e.EscalationLevel]++
		if e.ActionType == domain.AuditActionNotificationSent && e.Outcome != "" {
			stats.ByOutcome[e.Outcome]++
		}
	}

	sent := stats.ByOutcome[domain.AuditOutcomeSent]
	failed := stats.ByOutcome[domain.AuditOutcomeFailed]
	if sent+failed > 0 {
		stats.SuccessRate = float64(sent) / float64(sent+failed) * 100
	}
	return stats, nil
}

// -----------------------------------------------------------------------------
// Alert Repository
// -----------------------------------------------------------------------------

type AlertRepo struct {
	store *MemoryStorage
}

func NewAlertRepo(store *MemoryStorage) *AlertRepo {
	return &AlertRepo{store: store}
}

func (r *AlertRepo) Create(ctx context.Context, a *domain.Alert) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextID++
	cp := *a
	cp.ID = r.store.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.store.alerts = append(r.store.alerts, &cp)
	a.ID = cp.ID
	return nil
}

func (r *AlertRepo) ExistsForResource(
	ctx context.Context,
	alertType, resourceType, resourceID string,
) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, a := range r.store.alerts {
		if a.Type == alertType && a.RelatedResourceType == resourceType && a.RelatedResourceID == resourceID {
			return true, nil
		}
	}
	return false, nil
}

// Alerts returns a snapshot of all alerts, newest last. Test helper.
func (s *MemoryStorage) Alerts() []*domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		cp := *a
		out = append(out, &cp)
	}
	return out
}
