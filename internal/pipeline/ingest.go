package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/models"
)

// Ingest reads newline-delimited JSON records from the scraping collaborator
// and inserts them at status "new". Records missing required fields are
// counted as rejected; external ids already present count as duplicates.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader) (Counts, error) {
	var counts Counts
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		counts.Processed++

		var raw models.RawListing
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			p.logger.Warn("skipping malformed ingest line", zap.Error(err))
			counts.Rejected++
			continue
		}
		if err := validateRaw(&raw); err != nil {
			p.logger.Warn("skipping invalid listing",
				zap.String("external_id", raw.ExternalID), zap.Error(err))
			counts.Rejected++
			continue
		}

		created, err := p.store.SaveListing(ctx, &raw)
		if err != nil {
			return counts, err
		}
		if created {
			counts.Passed++
		} else {
			counts.Duplicates++
		}
	}
	if err := scanner.Err(); err != nil {
		return counts, err
	}
	return counts, nil
}

func validateRaw(raw *models.RawListing) error {
	switch {
	case raw.ExternalID == "":
		return errMissingField("external_id")
	case raw.Source != models.SourceMarketplace && raw.Source != models.SourceGroup:
		return errMissingField("source")
	case raw.Description == "" && raw.Title == "":
		return errMissingField("description")
	case raw.URL == "":
		return errMissingField("url")
	}
	return nil
}

type errMissingField string

func (e errMissingField) Error() string { return "missing or invalid field " + string(e) }
