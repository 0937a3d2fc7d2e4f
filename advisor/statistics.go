package advisor

import (
	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/ibg"
	"github.com/qw4990/online_index_advisor/profiler"
)

type measurement struct {
	seq     int // sequence number of the query
	benefit float64
}

// IndexStatistics keeps a window of benefit measurements per index.
type IndexStatistics struct {
	window  int
	seq     int
	history map[int][]measurement
	bias    map[int]float64
}

// NewIndexStatistics creates statistics keeping the last window measurements of each index.
func NewIndexStatistics(window int) *IndexStatistics {
	if window < 1 {
		window = 1
	}
	return &IndexStatistics{
		window:  window,
		history: make(map[int][]measurement),
		bias:    make(map[int]float64),
	}
}

// queryWeight is the number of executions a profiled query stands for.
func queryWeight(q *profiler.ProfiledQuery) float64 {
	if q.Query.Frequency > 1 {
		return float64(q.Query.Frequency)
	}
	return 1
}

// AddQuery records the benefit of every candidate of the query on top of the current configuration.
func (s *IndexStatistics) AddQuery(q *profiler.ProfiledQuery, current candidate.BitSet) error {
	s.seq++
	weight := queryWeight(q)
	for _, idx := range q.Candidates.Indexes() {
		benefit, err := ibg.BenefitOf(q.Graph, current, idx.ID)
		if err != nil {
			return err
		}
		benefit *= weight
		if benefit <= 0 {
			continue
		}
		h := append(s.history[idx.ID], measurement{seq: s.seq, benefit: benefit})
		if len(h) > s.window {
			h = h[len(h)-s.window:]
		}
		s.history[idx.ID] = h
	}
	return nil
}

// NumQueries returns the number of recorded queries.
func (s *IndexStatistics) NumQueries() int {
	return s.seq
}

// Benefit returns the best average benefit per query of the index over any
// suffix of its window, plus its vote bias.
func (s *IndexStatistics) Benefit(id int) float64 {
	h := s.history[id]
	best, sum := 0.0, 0.0
	for k := len(h) - 1; k >= 0; k-- {
		sum += h[k].benefit
		if avg := sum / float64(s.seq-h[k].seq+1); avg > best {
			best = avg
		}
	}
	return best + s.bias[id]
}

// Bias shifts the benefit of an index, used by user votes.
func (s *IndexStatistics) Bias(id int, amount float64) {
	s.bias[id] += amount
}
