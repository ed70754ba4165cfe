package trace

import "sort"

// topK is a bounded most-common summary: it counts every observed value but
// reports only the k highest-count entries, each with its fractional share of
// a caller-supplied total. The long tail is deliberately excluded, so the
// reported fractions need not sum to 1.
type topK[V comparable] struct {
	k      int
	counts map[V]uint64
}

func newTopK[V comparable](k int) *topK[V] {
	return &topK[V]{k: k, counts: make(map[V]uint64)}
}

// observe adds n occurrences of v.
func (t *topK[V]) observe(v V, n uint64) {
	t.counts[v] += n
}

type topKEntry[V comparable] struct {
	value V
	count uint64
}

// entries returns at most k entries ordered by descending count. Ties break
// on insertion-independent map order, so callers needing full determinism
// should not rely on tie positions.
func (t *topK[V]) entries() []topKEntry[V] {
	all := make([]topKEntry[V], 0, len(t.counts))
	for v, c := range t.counts {
		all = append(all, topKEntry[V]{value: v, count: c})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].count > all[j].count })
	if len(all) > t.k {
		all = all[:t.k]
	}
	return all
}

// table renders the top entries as a fixed-width MostCommon table, with
// fractions relative to total. Unused slots stay zero.
func (t *topK[V]) table(total uint64, value func(V) uint64) [TopKSlots]MostCommon {
	var out [TopKSlots]MostCommon
	if total == 0 {
		return out
	}
	for i, e := range t.entries() {
		if i >= TopKSlots {
			break
		}
		out[i] = MostCommon{
			Value:    value(e.value),
			Fraction: float64(e.count) / float64(total),
		}
	}
	return out
}
