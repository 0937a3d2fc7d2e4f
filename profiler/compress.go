package profiler

import (
	"github.com/qw4990/online_index_advisor/utils"
)

// CompressByDigest merges queries sharing a digest into the first of them,
// summing their frequencies. The order of first appearance is kept.
func CompressByDigest(queries []utils.Query) []utils.Query {
	var compressed []utils.Query
	pos := make(map[string]int)
	for _, q := range queries {
		_, digest := utils.NormalizeDigest(q.Text)
		if i, ok := pos[digest]; ok {
			compressed[i].Frequency += q.Frequency
			continue
		}
		pos[digest] = len(compressed)
		compressed = append(compressed, q)
	}
	return compressed
}
