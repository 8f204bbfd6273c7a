package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PollyDrive/estate/internal/dedup"
	"github.com/PollyDrive/estate/internal/llm"
	"github.com/PollyDrive/estate/internal/models"
	"github.com/PollyDrive/estate/internal/profile"
	"github.com/PollyDrive/estate/internal/repository"
)

// Collect runs the extractor over listings in status "new". Listings
// breaching the hard caps never enter the pipeline proper: they go straight
// to the non-relevant archive.
func (p *Pipeline) Collect(ctx context.Context) (Counts, error) {
	var counts Counts
	listings, err := p.store.ListByStatus(ctx, models.StatusNew, p.cfg.Pipeline.BatchLimit)
	if err != nil {
		return counts, err
	}

	for _, l := range listings {
		counts.Processed++
		text := strings.Join([]string{l.Title, l.Description, l.RawPrice, l.RawLocation}, "\n")
		ext := p.parser.Parse(text)

		if p.breachesHardCap(ext.Price, ext.Bedrooms) {
			if err := p.store.Archive(ctx, l.ExternalID); err != nil {
				return counts, err
			}
			counts.Archived++
			continue
		}

		l.Bedrooms = ext.Bedrooms
		l.PriceExtracted = ext.Price
		l.PriceAmbiguous = ext.PriceAmbiguous
		l.Kitchen = ext.Kitchen
		l.HasAC = ext.HasAC
		l.HasWifi = ext.HasWifi
		l.HasPool = ext.HasPool
		l.HasParking = ext.HasParking
		l.Utilities = ext.Utilities
		l.Furniture = ext.Furniture
		l.RentalTerm = ext.RentalTerm
		l.Location = ext.Location
		l.Phone = ext.Phone

		if err := p.store.SaveExtraction(ctx, l); err != nil {
			if errors.Is(err, repository.ErrStatusChanged) {
				continue
			}
			return counts, err
		}
		counts.Passed++
	}
	return counts, nil
}

func (p *Pipeline) breachesHardCap(price *float64, bedrooms *int) bool {
	if p.cfg.Filters.PriceMaxHard > 0 && price != nil && *price > p.cfg.Filters.PriceMaxHard {
		return true
	}
	if p.cfg.Filters.BedroomsMaxHard > 0 && bedrooms != nil && *bedrooms > p.cfg.Filters.BedroomsMaxHard {
		return true
	}
	return false
}

// Filter applies the rule engine to collected listings.
func (p *Pipeline) Filter(ctx context.Context) (Counts, error) {
	var counts Counts
	listings, err := p.store.ListByStatus(ctx, models.StatusCollected, p.cfg.Pipeline.BatchLimit)
	if err != nil {
		return counts, err
	}

	for _, l := range listings {
		counts.Processed++
		res := p.rules.Evaluate(l)

		var to models.Status
		var reason *string
		if res.Passed {
			to = models.StatusStructurallyFiltered
		} else {
			to = models.StatusStructurallyRejected
			reason = &res.Reason
		}
		if err := p.store.Transition(ctx, l.ExternalID, models.StatusCollected, to, reason, nil); err != nil {
			if errors.Is(err, repository.ErrStatusChanged) {
				continue
			}
			return counts, err
		}
		if res.Passed {
			counts.Passed++
		} else {
			counts.Rejected++
		}
	}
	return counts, nil
}

// Classify asks the LLM gateway for a semantic verdict on each structurally
// filtered listing. Transient failures leave the listing untouched so the
// next run retries it; the run itself reports failure when any occurred.
func (p *Pipeline) Classify(ctx context.Context) (Counts, error) {
	var counts Counts
	if p.classifier == nil {
		return counts, errors.New("no classifier configured")
	}

	listings, err := p.store.ListByStatus(ctx, models.StatusStructurallyFiltered, p.cfg.Pipeline.BatchLimit)
	if err != nil {
		return counts, err
	}

	var mu sync.Mutex
	var firstErr error
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.Concurrency)

	for _, l := range listings {
		l := l
		g.Go(func() error {
			decision, err := p.classifier.Classify(gctx, l.Title, l.Description)

			mu.Lock()
			defer mu.Unlock()
			counts.Processed++
			if err != nil {
				counts.Errors++
				if firstErr == nil {
					firstErr = err
				}
				p.logger.Warn("classification failed, will retry next run",
					zap.String("external_id", l.ExternalID), zap.Error(err))
				return nil
			}

			var to models.Status
			var reason *string
			if decision.Code == llm.CodePass {
				to = models.StatusSemanticallyFiltered
			} else {
				to = models.StatusSemanticallyRejected
				reason = &decision.Code
			}
			err = p.store.Transition(gctx, l.ExternalID, models.StatusStructurallyFiltered, to, reason, &decision.Model)
			if err != nil {
				if errors.Is(err, repository.ErrStatusChanged) {
					return nil
				}
				counts.Errors++
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			if decision.Code == llm.CodePass {
				counts.Passed++
			} else {
				counts.Rejected++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return counts, err
	}
	if counts.Errors > 0 {
		return counts, fmt.Errorf("classify: %d of %d listings failed: %w", counts.Errors, counts.Processed, firstErr)
	}
	return counts, nil
}

// Dedup buckets semantically filtered listings by the exact content key.
// Already deduplicated listings participate in grouping so a late repost of
// an old listing still lands on the original canonical.
func (p *Pipeline) Dedup(ctx context.Context) (Counts, error) {
	var counts Counts
	pending, err := p.store.ListByStatus(ctx, models.StatusSemanticallyFiltered, p.cfg.Pipeline.BatchLimit)
	if err != nil {
		return counts, err
	}
	prior, err := p.store.ListByStatus(ctx, models.StatusDeduplicated, 0)
	if err != nil {
		return counts, err
	}

	byID := make(map[string]*models.Listing, len(pending)+len(prior))
	records := make([]dedup.Record, 0, len(pending)+len(prior))
	for _, l := range append(prior, pending...) {
		byID[l.ExternalID] = l
		records = append(records, listingRecord(l))
	}

	for _, bucket := range dedup.Group(records) {
		canonical := byID[bucket.Canonical.ExternalID]
		if canonical.Status == models.StatusSemanticallyFiltered {
			counts.Processed++
			err := p.store.Transition(ctx, canonical.ExternalID,
				models.StatusSemanticallyFiltered, models.StatusDeduplicated, nil, nil)
			if err != nil && !errors.Is(err, repository.ErrStatusChanged) {
				return counts, err
			}
			counts.Passed++
		}
		for _, dup := range bucket.Duplicates {
			if byID[dup.ExternalID].Status != models.StatusSemanticallyFiltered {
				continue
			}
			counts.Processed++
			if err := p.store.MarkDuplicate(ctx, dup.ExternalID, canonical.ExternalID); err != nil {
				if errors.Is(err, repository.ErrStatusChanged) {
					continue
				}
				return counts, err
			}
			counts.Duplicates++
		}
	}
	return counts, nil
}

func listingRecord(l *models.Listing) dedup.Record {
	r := dedup.Record{
		ExternalID:  l.ExternalID,
		Description: l.Description,
		CreatedAt:   l.CreatedAt.UnixNano(),
	}
	if l.Location != nil {
		r.Location = *l.Location
	}
	if l.PriceExtracted != nil {
		r.Price = *l.PriceExtracted
	}
	return r
}

// Match evaluates canonical listings against every enabled profile, writing
// one decision row per pair. Profiles are independent: one decided profile
// advances the listing so its deliveries are not held hostage by a profile
// that deferred. Only a listing every profile deferred on stays in
// "deduplicated". Listings already matched are re-checked on every run,
// which fills the gaps left by earlier deferrals and by profiles added
// since.
func (p *Pipeline) Match(ctx context.Context) (Counts, error) {
	var counts Counts

	// Snapshot both lists first so listings advanced below are not seen twice.
	fresh, err := p.store.ListByStatus(ctx, models.StatusDeduplicated, p.cfg.Pipeline.BatchLimit)
	if err != nil {
		return counts, err
	}
	matched, err := p.store.ListByStatus(ctx, models.StatusMatchedToProfile, p.cfg.Pipeline.BatchLimit)
	if err != nil {
		return counts, err
	}

	for _, batch := range []struct {
		listings []*models.Listing
		status   models.Status
	}{
		{fresh, models.StatusDeduplicated},
		{matched, models.StatusMatchedToProfile},
	} {
		for _, l := range batch.listings {
			counts.Processed++
			anyDecided, anyPassed, err := p.matchOne(ctx, l)
			if err != nil {
				return counts, err
			}

			if !anyDecided {
				counts.Deferred++
				continue
			}
			if batch.status == models.StatusDeduplicated {
				err := p.store.Transition(ctx, l.ExternalID,
					models.StatusDeduplicated, models.StatusMatchedToProfile, nil, nil)
				if err != nil && !errors.Is(err, repository.ErrStatusChanged) {
					return counts, err
				}
			}
			if anyPassed {
				counts.Passed++
			} else {
				counts.Rejected++
			}
		}
	}
	return counts, nil
}

func (p *Pipeline) matchOne(ctx context.Context, l *models.Listing) (anyDecided, anyPassed bool, err error) {
	for i := range p.profiles {
		prof := &p.profiles[i]
		if !prof.Enabled {
			continue
		}
		d := profile.Evaluate(l, prof)
		if d.Outcome == profile.Deferred {
			continue
		}
		anyDecided = true
		res := &models.ListingProfileResult{
			ExternalID: l.ExternalID,
			ChatID:     prof.ChatID,
			Passed:     d.Outcome == profile.Passed,
			Reason:     d.Reason,
		}
		if err := p.store.UpsertResult(ctx, res); err != nil {
			return false, false, err
		}
		if res.Passed {
			anyPassed = true
		}
	}
	return anyDecided, anyPassed, nil
}
