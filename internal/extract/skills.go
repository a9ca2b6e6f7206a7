package extract

import "sort"

// Skills returns the vocabulary entries found in title and description,
// ordered by first occurrence with the title scanned first. Ties keep
// vocabulary order. The result never holds two entries that differ only
// by case.
func (e *Extractor) Skills(title, description string) []string {
	text := title + "\n" + description

	type hit struct {
		name string
		pos  int
		rank int
	}
	var hits []hit
	for i, m := range e.skills {
		if pos := firstIndex(m.patterns, text); pos >= 0 {
			hits = append(hits, hit{name: m.name, pos: pos, rank: i})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].pos != hits[b].pos {
			return hits[a].pos < hits[b].pos
		}
		return hits[a].rank < hits[b].rank
	})

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}
