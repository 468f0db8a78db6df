package pipeline

import (
	"encoding/json"
	"strings"
)

// Partition splits records into contiguous groups of at most maxBatch
// elements, preserving order. Empty input yields zero groups. A maxBatch of
// zero or less yields a single group holding everything, keeping the
// concat(Partition(xs, k)) == xs law for every k.
func Partition[T any](records []T, maxBatch int) [][]T {
	if len(records) == 0 {
		return nil
	}
	if maxBatch <= 0 {
		return [][]T{records}
	}
	groups := make([][]T, 0, (len(records)+maxBatch-1)/maxBatch)
	for start := 0; start < len(records); start += maxBatch {
		end := start + maxBatch
		if end > len(records) {
			end = len(records)
		}
		groups = append(groups, records[start:end])
	}
	return groups
}

// TruncateByBudget greedily accumulates records until the next one would push
// the cumulative estimated token cost past tokenLimit. The first over-budget
// record and everything after it are dropped. Boundary-exact cutoff, not
// best-fit packing.
func TruncateByBudget[T any](records []T, tokenLimit int) []T {
	kept := make([]T, 0, len(records))
	total := 0
	for _, rec := range records {
		cost := EstimateTokens(rec)
		if total+cost > tokenLimit {
			break
		}
		kept = append(kept, rec)
		total += cost
	}
	return kept
}

// EstimateTokens approximates a record's prompt cost as the whitespace-token
// count of its serialized form. Crude, but it only has to keep prompts under
// the model's context window with margin.
func EstimateTokens(v any) int {
	data, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return 0
	}
	return len(strings.Fields(string(data)))
}
