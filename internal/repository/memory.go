package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PollyDrive/estate/internal/models"
)

// MemoryStore implements every repository interface against process-local
// maps. It backs the pipeline tests and the dry-run mode; behavior matches
// the Postgres implementations including the compare-and-set semantics.
type MemoryStore struct {
	mu       sync.Mutex
	listings map[string]*models.Listing
	archived map[string]*models.Listing
	results  map[string]*models.ListingProfileResult
	feedback map[string]*models.Feedback
	runs     []*models.BatchRun
	seq      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[string]*models.Listing),
		archived: make(map[string]*models.Listing),
		results:  make(map[string]*models.ListingProfileResult),
		feedback: make(map[string]*models.Feedback),
	}
}

func resultKey(externalID string, chatID int64) string {
	return externalID + "|" + strconv.FormatInt(chatID, 10)
}

func feedbackKey(messageID, chatID int64, kind string) string {
	return strconv.FormatInt(messageID, 10) + "|" + strconv.FormatInt(chatID, 10) + "|" + kind
}

func (s *MemoryStore) SaveListing(_ context.Context, raw *models.RawListing) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[raw.ExternalID]; ok {
		return false, nil
	}
	s.seq++
	now := time.Now()
	s.listings[raw.ExternalID] = &models.Listing{
		ID:          s.seq,
		ExternalID:  raw.ExternalID,
		Source:      raw.Source,
		GroupID:     raw.GroupID,
		Title:       raw.Title,
		Description: raw.Description,
		RawPrice:    raw.RawPrice,
		RawLocation: raw.RawLocation,
		URL:         raw.URL,
		Kitchen:     models.KitchenUnknown,
		Utilities:   models.UtilitiesUnspecified,
		Furniture:   models.FurnitureUnspecified,
		RentalTerm:  models.TermUnspecified,
		Status:      models.StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return true, nil
}

func (s *MemoryStore) GetByExternalID(_ context.Context, externalID string) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status models.Status, limit int) ([]*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Listing
	for _, l := range s.listings {
		if l.Status == status {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ExternalID < out[j].ExternalID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SaveExtraction(_ context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.listings[l.ExternalID]
	if !ok || cur.Status != models.StatusNew {
		return ErrStatusChanged
	}
	cur.Bedrooms = l.Bedrooms
	cur.PriceExtracted = l.PriceExtracted
	cur.PriceAmbiguous = l.PriceAmbiguous
	cur.Kitchen = l.Kitchen
	cur.HasAC = l.HasAC
	cur.HasWifi = l.HasWifi
	cur.HasPool = l.HasPool
	cur.HasParking = l.HasParking
	cur.Utilities = l.Utilities
	cur.Furniture = l.Furniture
	cur.RentalTerm = l.RentalTerm
	cur.Location = l.Location
	cur.Phone = l.Phone
	cur.Status = models.StatusCollected
	cur.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Transition(_ context.Context, externalID string, from, to models.Status, reason, llmModel *string) error {
	if err := models.CheckTransition(from, to); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.listings[externalID]
	if !ok || cur.Status != from {
		return ErrStatusChanged
	}
	cur.Status = to
	if reason != nil {
		cur.RejectionReason = reason
	}
	if llmModel != nil {
		cur.LLMModel = llmModel
	}
	cur.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) MarkDuplicate(_ context.Context, externalID, canonicalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.listings[externalID]
	if !ok || cur.Status != models.StatusSemanticallyFiltered {
		return ErrStatusChanged
	}
	cur.Status = models.StatusDuplicateOfCanonical
	cur.DuplicateOf = &canonicalID
	cur.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Archive(_ context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[externalID]
	if !ok {
		return nil
	}
	s.archived[externalID] = l
	delete(s.listings, externalID)
	return nil
}

func (s *MemoryStore) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.Status]int)
	for _, l := range s.listings {
		counts[l.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) RejectionBreakdown(_ context.Context) ([]ReasonCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg := make(map[string]*ReasonCount)
	for _, l := range s.listings {
		if l.RejectionReason == nil {
			continue
		}
		reason, _, _ := strings.Cut(*l.RejectionReason, ":")
		key := string(l.Status) + "|" + reason
		if rc, ok := agg[key]; ok {
			rc.Count++
		} else {
			agg[key] = &ReasonCount{Status: l.Status, Reason: reason, Count: 1}
		}
	}
	out := make([]ReasonCount, 0, len(agg))
	for _, rc := range agg {
		out = append(out, *rc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}

func (s *MemoryStore) UpsertResult(_ context.Context, res *models.ListingProfileResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := resultKey(res.ExternalID, res.ChatID)
	if cur, ok := s.results[key]; ok {
		if cur.MessageID == nil {
			cur.Passed = res.Passed
			cur.Reason = res.Reason
		}
		return nil
	}
	cp := *res
	cp.CreatedAt = time.Now()
	s.results[key] = &cp
	return nil
}

func (s *MemoryStore) ListUnsent(_ context.Context, chatID int64, limit int) ([]*PendingNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PendingNotification
	for _, res := range s.results {
		if res.ChatID != chatID || !res.Passed || res.MessageID != nil {
			continue
		}
		l, ok := s.listings[res.ExternalID]
		if !ok || l.Status != models.StatusMatchedToProfile {
			continue
		}
		out = append(out, &PendingNotification{Listing: *l, Result: *res})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Listing.CreatedAt.Equal(out[j].Listing.CreatedAt) {
			return out[i].Listing.ExternalID < out[j].Listing.ExternalID
		}
		return out[i].Listing.CreatedAt.Before(out[j].Listing.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, externalID string, chatID int64, messageID int64, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.results[resultKey(externalID, chatID)]
	if !ok || cur.MessageID != nil {
		return ErrStatusChanged
	}
	cur.MessageID = &messageID
	cur.SentAt = &sentAt
	return nil
}

func (s *MemoryStore) UnsentPassedCount(_ context.Context, externalID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, res := range s.results {
		if res.ExternalID == externalID && res.Passed && res.MessageID == nil {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) AlreadySent(_ context.Context, externalID string, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.results[resultKey(externalID, chatID)]
	return ok && cur.MessageID != nil, nil
}

func (s *MemoryStore) DeliveryCounts(_ context.Context) ([]DeliveryCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg := make(map[int64]*DeliveryCount)
	for _, res := range s.results {
		dc, ok := agg[res.ChatID]
		if !ok {
			dc = &DeliveryCount{ChatID: res.ChatID}
			agg[res.ChatID] = dc
		}
		if res.Passed {
			dc.Passed++
		}
		if res.MessageID != nil {
			dc.Sent++
		} else if res.Passed {
			dc.Pending++
		}
	}
	out := make([]DeliveryCount, 0, len(agg))
	for _, dc := range agg {
		out = append(out, *dc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (s *MemoryStore) RecordFeedback(_ context.Context, messageID, chatID int64, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := feedbackKey(messageID, chatID, kind)
	now := time.Now()
	if cur, ok := s.feedback[key]; ok {
		cur.Count++
		cur.LastSeen = now
		return nil
	}
	s.feedback[key] = &models.Feedback{
		MessageID: messageID,
		ChatID:    chatID,
		Kind:      kind,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	return nil
}

func (s *MemoryStore) StartRun(_ context.Context, chatID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.runs = append(s.runs, &models.BatchRun{ID: s.seq, ChatID: chatID, StartedAt: time.Now(), Status: "running"})
	return s.seq, nil
}

func (s *MemoryStore) FinishRun(_ context.Context, id int64, sent, blocked, errors int, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.runs {
		if run.ID == id {
			now := time.Now()
			run.FinishedAt = &now
			run.Sent = sent
			run.Blocked = blocked
			run.Errors = errors
			run.Status = status
			return nil
		}
	}
	return ErrNotFound
}

// Archived reports whether a listing was moved to the non-relevant archive.
// Test helper, no Postgres counterpart.
func (s *MemoryStore) Archived(externalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.archived[externalID]
	return ok
}

// FeedbackCount returns the recorded count for one reaction. Test helper.
func (s *MemoryStore) FeedbackCount(messageID, chatID int64, kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.feedback[feedbackKey(messageID, chatID, kind)]; ok {
		return cur.Count
	}
	return 0
}
