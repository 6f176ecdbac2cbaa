package matching

import "github.com/tidwall/btree"

// ladder is an ordered map of price -> level arena index, replacing the
// AVL-tree-keyed ladders of the original engine (spec §9: "any balanced-BST
// or ordered-map abstraction suffices; operations needed are find-exact,
// insert, remove, predecessor and successor").
//
// descending controls iteration order for Best/Next: bids and
// sell-stop ladders are descending (best = highest price), asks and
// buy-stop ladders are ascending (best = lowest price).
type ladder struct {
	tree       *btree.Map[uint64, int]
	descending bool
}

func newLadder(descending bool) *ladder {
	return &ladder{
		tree:       btree.NewMap[uint64, int](32),
		descending: descending,
	}
}

func (l *ladder) Get(price uint64) (int, bool) {
	return l.tree.Get(price)
}

func (l *ladder) Set(price uint64, levelIndex int) {
	l.tree.Set(price, levelIndex)
}

func (l *ladder) Delete(price uint64) {
	l.tree.Delete(price)
}

func (l *ladder) Len() int {
	return l.tree.Len()
}

// Best returns the price/index at the front of the ladder (best bid/ask),
// or ok=false if the ladder is empty.
func (l *ladder) Best() (price uint64, levelIndex int, ok bool) {
	if l.descending {
		price, levelIndex, ok = l.tree.Max()
		return
	}
	price, levelIndex, ok = l.tree.Min()
	return
}

// Next returns the entry that would become the new best if the entry at
// price were removed: the predecessor for a descending ladder (bids,
// sell-stop), the successor for an ascending ladder (asks, buy-stop).
func (l *ladder) Next(price uint64) (nextPrice uint64, levelIndex int, ok bool) {
	found := false
	if l.descending {
		l.tree.Descend(price, func(k uint64, v int) bool {
			if !found {
				found = true
				return true // first hit is price itself (or its position)
			}
			nextPrice, levelIndex, ok = k, v, true
			return false
		})
	} else {
		l.tree.Ascend(price, func(k uint64, v int) bool {
			if !found {
				found = true
				return true
			}
			nextPrice, levelIndex, ok = k, v, true
			return false
		})
	}
	return
}

// Ascend visits entries from lo upward (increasing price).
func (l *ladder) Ascend(lo uint64, fn func(price uint64, levelIndex int) bool) {
	l.tree.Ascend(lo, fn)
}

// Descend visits entries from hi downward (decreasing price).
func (l *ladder) Descend(hi uint64, fn func(price uint64, levelIndex int) bool) {
	l.tree.Descend(hi, fn)
}
