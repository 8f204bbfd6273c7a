// Package dedup groups listings that passed semantic filtering into
// equivalence buckets and picks one canonical record per bucket. Bucketing
// is exact-tuple equality — precision over recall, no fuzzy similarity.
package dedup

import (
	"fmt"
	"sort"
	"strings"
)

// Record is the projection of a listing the engine needs.
type Record struct {
	ExternalID  string
	Description string
	Location    string  // extracted gazetteer name, empty when unknown
	Price       float64 // extracted monthly price, 0 when unknown
	CreatedAt   int64   // unix nanos; earliest wins as canonical
}

// Bucket is one group of equivalent listings.
type Bucket struct {
	Canonical  Record
	Duplicates []Record
}

var whitespaceRe = strings.NewReplacer("\n", " ", "\t", " ", "\r", " ")

// NormalizeDescription lowercases and collapses runs of whitespace so that
// trivial formatting differences do not split a bucket.
func NormalizeDescription(s string) string {
	s = strings.ToLower(whitespaceRe.Replace(s))
	return strings.Join(strings.Fields(s), " ")
}

// key is the exact bucket tuple.
func key(r Record) string {
	return fmt.Sprintf("%s|%s|%.2f", NormalizeDescription(r.Description), strings.ToLower(r.Location), r.Price)
}

// Group buckets the records and picks the canonical per bucket: earliest
// CreatedAt, with ExternalID breaking ties for determinism. Buckets of
// size one pass through with no duplicates.
func Group(records []Record) []Bucket {
	byKey := make(map[string][]Record)
	order := make([]string, 0)
	for _, r := range records {
		k := key(r)
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], r)
	}

	buckets := make([]Bucket, 0, len(order))
	for _, k := range order {
		group := byKey[k]
		sort.Slice(group, func(i, j int) bool {
			if group[i].CreatedAt != group[j].CreatedAt {
				return group[i].CreatedAt < group[j].CreatedAt
			}
			return group[i].ExternalID < group[j].ExternalID
		})
		buckets = append(buckets, Bucket{
			Canonical:  group[0],
			Duplicates: group[1:],
		})
	}
	return buckets
}
