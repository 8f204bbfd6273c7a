package models

import "time"

// Source tags for ingested listings.
const (
	SourceMarketplace = "marketplace"
	SourceGroup       = "group"
)

// Kitchen categories extracted from listing text.
const (
	KitchenEnclosed    = "enclosed"
	KitchenOutdoor     = "outdoor"
	KitchenShared      = "shared"
	KitchenKitchenette = "kitchenette"
	KitchenNone        = "none"
	KitchenUnknown     = "unknown"
)

// Utilities categories.
const (
	UtilitiesIncluded    = "included"
	UtilitiesExcluded    = "excluded"
	UtilitiesUnspecified = "unspecified"
)

// Furniture categories.
const (
	FurnitureFully       = "fully"
	FurniturePartially   = "partially"
	FurnitureUnfurnished = "unfurnished"
	FurnitureUnspecified = "unspecified"
)

// Rental terms.
const (
	TermMonthly     = "monthly"
	TermYearly      = "yearly"
	TermDaily       = "daily"
	TermWeekly      = "weekly"
	TermUnspecified = "unspecified"
)

// Listing is the unit of work moving through the pipeline. Raw fields come
// from the scraping collaborator; extracted fields are filled by the collect
// stage and are nil until it runs.
type Listing struct {
	ID         int64   `db:"id"`
	ExternalID string  `db:"external_id"` // stable source id, globally unique
	Source     string  `db:"source"`      // "marketplace" or "group"
	GroupID    *string `db:"group_id"`

	Title       string `db:"title"`
	Description string `db:"description"`
	RawPrice    string `db:"raw_price"`
	RawLocation string `db:"raw_location"`
	URL         string `db:"url"`

	Bedrooms       *int     `db:"bedrooms"`        // nil = unknown, 0 = confirmed studio
	PriceExtracted *float64 `db:"price_extracted"` // IDR per month
	PriceAmbiguous bool     `db:"price_ambiguous"` // more than one monetary mention in text
	Kitchen        string   `db:"kitchen"`
	HasAC          bool     `db:"has_ac"`
	HasWifi        bool     `db:"has_wifi"`
	HasPool        bool     `db:"has_pool"`
	HasParking     bool     `db:"has_parking"`
	Utilities      string   `db:"utilities"`
	Furniture      string   `db:"furniture"`
	RentalTerm     string   `db:"rental_term"`
	Location       *string  `db:"location"` // gazetteer name, nil when not extracted
	Phone          *string  `db:"phone"`    // normalized +62 form

	Status          Status    `db:"status"`
	RejectionReason *string   `db:"rejection_reason"` // required whenever a failure status is set
	LLMModel        *string   `db:"llm_model"`        // model that produced the semantic decision
	DuplicateOf     *string   `db:"duplicate_of"`     // canonical external_id for duplicates
	CreatedAt       time.Time `db:"created_at"`       // immutable; dedup tie-breaker
	UpdatedAt       time.Time `db:"updated_at"`
}

// RawListing is the ingestion contract from the scraping collaborator.
type RawListing struct {
	ExternalID  string  `json:"external_id"`
	Source      string  `json:"source"`
	GroupID     *string `json:"group_id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	RawPrice    string  `json:"price"`
	RawLocation string  `json:"location"`
	URL         string  `json:"url"`
}

// ChatProfile is one audience with its own acceptance criteria and
// delivery channel.
type ChatProfile struct {
	ChatID           int64    `db:"chat_id" yaml:"chat_id"`
	Name             string   `db:"name" yaml:"name"`
	BedroomsMin      int      `db:"bedrooms_min" yaml:"bedrooms_min"`
	BedroomsMax      *int     `db:"bedrooms_max" yaml:"bedrooms_max"` // nil = no upper limit
	PriceMax         float64  `db:"price_max" yaml:"price_max"`
	AllowedLocations []string `db:"-" yaml:"allowed_locations"`
	StopLocations    []string `db:"-" yaml:"stop_locations"`
	Enabled          bool     `db:"enabled" yaml:"enabled"`
}

// ListingProfileResult is the join of Listing x ChatProfile. Unique per
// (listing, profile) pair; that constraint is the exactly-once boundary
// for both matching and delivery.
type ListingProfileResult struct {
	ID         int64      `db:"id"`
	ExternalID string     `db:"external_id"`
	ChatID     int64      `db:"chat_id"`
	Passed     bool       `db:"passed"`
	Reason     string     `db:"reason"`
	MessageID  *int64     `db:"message_id"` // telegram message id once sent
	SentAt     *time.Time `db:"sent_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

// Feedback reaction kinds.
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
	FeedbackFlag     = "flag"
)

// Feedback is a reaction attached to a delivered message, many-to-one
// with ListingProfileResult via the delivery message id.
type Feedback struct {
	ID        int64     `db:"id"`
	MessageID int64     `db:"message_id"`
	ChatID    int64     `db:"chat_id"`
	Kind      string    `db:"kind"`
	Count     int       `db:"count"`
	FirstSeen time.Time `db:"first_seen"`
	LastSeen  time.Time `db:"last_seen"`
}

// BatchRun records one notify-stage run for a profile.
type BatchRun struct {
	ID         int64      `db:"id"`
	ChatID     int64      `db:"chat_id"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
	Sent       int        `db:"sent"`
	Blocked    int        `db:"blocked"`
	Errors     int        `db:"errors"`
	Status     string     `db:"status"`
}
