package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

func makeAttacks(n int) []types.AttackRecord {
	attacks := make([]types.AttackRecord, n)
	for i := range attacks {
		attacks[i] = types.AttackRecord{
			FlowID: fmt.Sprintf("f%d", i),
			SrcIP:  "10.0.0.5",
			DestIP: "10.0.0.2",
			Class:  "DoS",
		}
	}
	return attacks
}

func TestPartition_ConcatLaw(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 7, 10} {
		for _, k := range []int{0, 1, 2, 3, 5, 100} {
			attacks := makeAttacks(n)
			groups := Partition(attacks, k)

			flat := make([]types.AttackRecord, 0, n)
			for _, g := range groups {
				assert.NotEmpty(t, g, "n=%d k=%d", n, k)
				flat = append(flat, g...)
			}
			assert.Equal(t, attacks, flat, "n=%d k=%d", n, k)
		}
	}
}

func TestPartition_GroupSizes(t *testing.T) {
	groups := Partition(makeAttacks(7), 3)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0], 3)
	assert.Len(t, groups[1], 3)
	assert.Len(t, groups[2], 1)
}

func TestPartition_EmptyInput(t *testing.T) {
	assert.Empty(t, Partition([]types.AttackRecord{}, 3))
}

func TestTruncateByBudget_BoundaryExact(t *testing.T) {
	// Each record serializes to exactly three whitespace tokens. With a
	// budget of 5 only the first fits: 3 <= 5, but 3+3 = 6 > 5.
	records := []string{"a b c", "d e f", "g h i"}
	for _, r := range records {
		require.Equal(t, 3, EstimateTokens(r))
	}

	kept := TruncateByBudget(records, 5)
	assert.Equal(t, []string{"a b c"}, kept)
}

func TestTruncateByBudget_FirstRecordOverBudget(t *testing.T) {
	kept := TruncateByBudget([]string{"a b c d e f", "g h"}, 3)
	assert.Empty(t, kept)
}

func TestTruncateByBudget_AllFit(t *testing.T) {
	records := []string{"a b c", "d e f"}
	assert.Equal(t, records, TruncateByBudget(records, 100))
}

func TestTruncateByBudget_DropsEverythingAfterCutoff(t *testing.T) {
	// The third record fits the remaining budget on its own, but the cutoff
	// is boundary-exact: once a record goes over, nothing after it is taken.
	records := []string{"a b c", "d e f g h i j k l m", "n o p"}
	kept := TruncateByBudget(records, 7)
	assert.Equal(t, []string{"a b c"}, kept)
}

func TestEstimateTokens_AttackRecord(t *testing.T) {
	cost := EstimateTokens(types.AttackRecord{FlowID: "f1", Class: "DoS"})
	assert.Greater(t, cost, 16, "every field contributes at least one token")
}
