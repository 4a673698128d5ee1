package dissect

import "sort"

// Stats accumulates per-classification counts over dissected frames.
// It is not safe for concurrent use.
type Stats struct {
	Frames      int            `json:"frames"`
	Bytes       int            `json:"bytes"`
	Truncated   int            `json:"truncated"`
	Unsupported int            `json:"unsupported"`
	Problems    int            `json:"problems"`
	ByFinal     map[string]int `json:"by_final"`
}

// NewStats creates empty statistics.
func NewStats() *Stats {
	return &Stats{ByFinal: make(map[string]int)}
}

// Add records the result of one dissection.
func (s *Stats) Add(ch *Chain, err error) {
	s.Frames++
	if ch != nil {
		s.Bytes += ch.Length
		if len(ch.Problems) > 0 {
			s.Problems++
		}
	}

	switch {
	case IsTruncated(err):
		s.Truncated++
		s.ByFinal["Truncated"]++
		return
	case IsUnsupportedLinkType(err):
		s.Unsupported++
	}

	if ch != nil && len(ch.Layers) > 0 {
		s.ByFinal[ch.Final().String()]++
	}
}

// Count is one row of a sorted classification summary.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Sorted returns classification counts ordered by count, then name.
func (s *Stats) Sorted() []Count {
	counts := make([]Count, 0, len(s.ByFinal))
	for name, n := range s.ByFinal {
		counts = append(counts, Count{Name: name, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Name < counts[j].Name
	})
	return counts
}
