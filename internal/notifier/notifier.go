// Package notifier delivers matched listings to their profile chats. It is
// the only stage that talks to the outside world, so it is also the most
// defensive one: quiet hours, batch caps, a final re-check right before the
// send, and the unique (listing, chat) delivery row as the last line against
// double sends.
package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/config"
	"github.com/PollyDrive/estate/internal/models"
	"github.com/PollyDrive/estate/internal/parser"
	"github.com/PollyDrive/estate/internal/repository"
)

// Sender delivers one formatted message and returns the platform message id.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) (int64, error)
}

// Store is the persistence surface the gate needs.
type Store interface {
	ListUnsent(ctx context.Context, chatID int64, limit int) ([]*repository.PendingNotification, error)
	AlreadySent(ctx context.Context, externalID string, chatID int64) (bool, error)
	MarkSent(ctx context.Context, externalID string, chatID int64, messageID int64, sentAt time.Time) error
	UnsentPassedCount(ctx context.Context, externalID string) (int, error)
	UpsertResult(ctx context.Context, res *models.ListingProfileResult) error
	Transition(ctx context.Context, externalID string, from, to models.Status, reason, llmModel *string) error
	StartRun(ctx context.Context, chatID int64) (int64, error)
	FinishRun(ctx context.Context, id int64, sent, blocked, errors int, status string) error
}

// Summary is the per-run outcome tally.
type Summary struct {
	Sent    int
	Blocked int
	Errors  int
	Skipped bool // quiet hours
}

type Gate struct {
	store    Store
	sender   Sender
	profiles []models.ChatProfile
	cfg      config.TelegramConfig
	logger   *zap.Logger
	now      func() time.Time
}

func New(store Store, sender Sender, profiles []models.ChatProfile, cfg config.TelegramConfig, logger *zap.Logger) *Gate {
	return &Gate{
		store:    store,
		sender:   sender,
		profiles: profiles,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sends pending notifications for every enabled profile. Inside the
// quiet-hours window it does nothing and reports Skipped.
func (g *Gate) Run(ctx context.Context) (Summary, error) {
	var total Summary
	if g.inQuietHours(g.now()) {
		g.logger.Info("quiet hours, skipping notification run")
		total.Skipped = true
		return total, nil
	}

	for i := range g.profiles {
		prof := &g.profiles[i]
		if !prof.Enabled {
			continue
		}
		s, err := g.runProfile(ctx, prof)
		total.Sent += s.Sent
		total.Blocked += s.Blocked
		total.Errors += s.Errors
		if err != nil {
			return total, err
		}
	}
	if total.Errors > 0 {
		return total, fmt.Errorf("notify: %d sends failed", total.Errors)
	}
	return total, nil
}

func (g *Gate) runProfile(ctx context.Context, prof *models.ChatProfile) (Summary, error) {
	var s Summary
	pending, err := g.store.ListUnsent(ctx, prof.ChatID, g.cfg.BatchSize)
	if err != nil {
		return s, err
	}
	if len(pending) == 0 {
		return s, nil
	}

	runID, err := g.store.StartRun(ctx, prof.ChatID)
	if err != nil {
		return s, err
	}

	for i, p := range pending {
		if i > 0 && g.cfg.SendDelay > 0 {
			select {
			case <-time.After(g.cfg.SendDelay):
			case <-ctx.Done():
				g.finishRun(ctx, runID, s, "aborted")
				return s, ctx.Err()
			}
		}
		switch g.sendOne(ctx, prof, p) {
		case outcomeSent:
			s.Sent++
		case outcomeBlocked:
			s.Blocked++
		case outcomeError:
			s.Errors++
		}
	}

	status := "done"
	if s.Errors > 0 {
		status = "partial"
	}
	g.finishRun(ctx, runID, s, status)
	return s, nil
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeBlocked
	outcomeError
)

// sendOne applies the final guard, sends, then records. Send-then-record
// means a crash between the two can leave an unrecorded send; the unique
// delivery row plus AlreadySent keeps the retry from sending twice only when
// the record landed, which is the accepted trade-off against never sending.
func (g *Gate) sendOne(ctx context.Context, prof *models.ChatProfile, p *repository.PendingNotification) outcome {
	if reason := g.finalGuard(&p.Listing, prof); reason != "" {
		if err := g.store.UpsertResult(ctx, &models.ListingProfileResult{
			ExternalID: p.Listing.ExternalID,
			ChatID:     prof.ChatID,
			Passed:     false,
			Reason:     reason,
		}); err != nil {
			g.logger.Error("recording guard rejection failed", zap.Error(err))
			return outcomeError
		}
		g.logger.Info("blocked by final guard",
			zap.String("external_id", p.Listing.ExternalID), zap.String("reason", reason))
		return outcomeBlocked
	}

	sent, err := g.store.AlreadySent(ctx, p.Listing.ExternalID, prof.ChatID)
	if err != nil {
		g.logger.Error("delivery check failed", zap.Error(err))
		return outcomeError
	}
	if sent {
		return outcomeBlocked
	}

	msgID, err := g.sender.Send(ctx, prof.ChatID, FormatMessage(&p.Listing))
	if err != nil {
		g.logger.Error("send failed",
			zap.String("external_id", p.Listing.ExternalID),
			zap.Int64("chat_id", prof.ChatID), zap.Error(err))
		return outcomeError
	}

	if err := g.store.MarkSent(ctx, p.Listing.ExternalID, prof.ChatID, msgID, g.now()); err != nil {
		g.logger.Error("recording delivery failed",
			zap.String("external_id", p.Listing.ExternalID), zap.Error(err))
		return outcomeError
	}

	remaining, err := g.store.UnsentPassedCount(ctx, p.Listing.ExternalID)
	if err == nil && remaining == 0 {
		err = g.store.Transition(ctx, p.Listing.ExternalID,
			models.StatusMatchedToProfile, models.StatusNotified, nil, nil)
		if err != nil && err != repository.ErrStatusChanged {
			g.logger.Warn("status transition to notified failed", zap.Error(err))
		}
	}
	return outcomeSent
}

// finalGuard re-checks the mutable profile constraints right before the
// send, covering config edits made between match and notify runs.
func (g *Gate) finalGuard(l *models.Listing, prof *models.ChatProfile) string {
	if l.PriceExtracted != nil && *l.PriceExtracted > prof.PriceMax {
		return fmt.Sprintf("REJECT_GUARD:price:%.0f>%.0f", *l.PriceExtracted, prof.PriceMax)
	}
	if l.Bedrooms != nil {
		if *l.Bedrooms < prof.BedroomsMin {
			return fmt.Sprintf("REJECT_GUARD:bedrooms:%d<%d", *l.Bedrooms, prof.BedroomsMin)
		}
		if prof.BedroomsMax != nil && *l.Bedrooms > *prof.BedroomsMax {
			return fmt.Sprintf("REJECT_GUARD:bedrooms:%d>%d", *l.Bedrooms, *prof.BedroomsMax)
		}
	}
	text := l.Title + "\n" + l.Description
	if l.Location != nil {
		text = *l.Location + "\n" + text
	}
	for _, s := range prof.StopLocations {
		if parser.MentionsLocation(text, s) {
			return "REJECT_GUARD:stop_location:" + strings.ToLower(s)
		}
	}
	return ""
}

func (g *Gate) finishRun(ctx context.Context, runID int64, s Summary, status string) {
	if err := g.store.FinishRun(ctx, runID, s.Sent, s.Blocked, s.Errors, status); err != nil {
		g.logger.Warn("finishing batch run record failed", zap.Error(err))
	}
}

// inQuietHours reports whether local time (configured UTC offset) falls in
// the [QuietStart, QuietEnd) window. The window may wrap past midnight.
func (g *Gate) inQuietHours(t time.Time) bool {
	if g.cfg.QuietDisabled || g.cfg.QuietStart == g.cfg.QuietEnd {
		return false
	}
	h := t.UTC().Add(time.Duration(g.cfg.UTCOffset) * time.Hour).Hour()
	if g.cfg.QuietStart < g.cfg.QuietEnd {
		return h >= g.cfg.QuietStart && h < g.cfg.QuietEnd
	}
	return h >= g.cfg.QuietStart || h < g.cfg.QuietEnd
}
