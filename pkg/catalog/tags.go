package catalog

import (
	"sort"
	"strings"

	"github.com/mwantia/promptgallery/pkg/db/models"
)

// CleanTags normalizes a comma separated tag list: tokens are trimmed,
// lower-cased and have inner whitespace collapsed; empty tokens and
// repeats are dropped.
func CleanTags(raw string) string {
	return strings.Join(SplitTags(raw), ",")
}

// SplitTags returns the normalized tokens of raw in their original order.
func SplitTags(raw string) []string {
	seen := make(map[string]struct{})
	tags := []string{}

	for _, token := range strings.Split(raw, ",") {
		tag := normalizeTag(token)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func normalizeTag(token string) string {
	return strings.ToLower(strings.Join(strings.Fields(token), " "))
}

// countValues tallies every non-empty token of the comma separated values.
func countValues(values []string, skip ...string) []models.ValueCount {
	ignored := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		ignored[s] = struct{}{}
	}

	counts := make(map[string]int64)
	for _, value := range values {
		for _, token := range strings.Split(value, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			if _, ok := ignored[token]; ok {
				continue
			}
			counts[token]++
		}
	}

	result := make([]models.ValueCount, 0, len(counts))
	for value, count := range counts {
		result = append(result, models.ValueCount{Value: value, Count: count})
	}
	sortCounts(result)
	return result
}

// sortCounts orders by count descending, then by value ascending.
func sortCounts(counts []models.ValueCount) {
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Value < counts[j].Value
	})
}
