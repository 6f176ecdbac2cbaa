package matching

import "github.com/nexustrade/lobengine/pkg/lob"

// orderNode is an arena-resident order: the order's own fields, plus the
// index links needed to keep it in a level's FIFO list without raw
// pointers (spec §9: "model the order pool as an arena with stable
// indices; each level stores a doubly-linked list of order indices").
type orderNode struct {
	order lob.Order
	prev  int // arena index, -1 if head of list
	next  int // arena index, -1 if tail of list
	live  bool
}

// orderArena is a slice-backed pool of orderNode with O(1) allocate/release
// via a free list, replacing the intrusive pointer pool of the original.
type orderArena struct {
	nodes []orderNode
	free  []int
}

func newOrderArena() *orderArena {
	return &orderArena{}
}

func (a *orderArena) Alloc(o lob.Order) int {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.nodes[idx] = orderNode{order: o, prev: -1, next: -1, live: true}
		return idx
	}
	a.nodes = append(a.nodes, orderNode{order: o, prev: -1, next: -1, live: true})
	return len(a.nodes) - 1
}

func (a *orderArena) Release(idx int) {
	a.nodes[idx].live = false
	a.nodes[idx].order = lob.Order{}
	a.free = append(a.free, idx)
}

func (a *orderArena) Get(idx int) *lob.Order {
	return &a.nodes[idx].order
}

func (a *orderArena) node(idx int) *orderNode {
	return &a.nodes[idx]
}

// levelNode is an arena-resident price level: the public snapshot fields
// plus the head/tail of its order FIFO list.
type levelNode struct {
	level lob.Level
	head  int // order arena index, -1 if empty
	tail  int // order arena index, -1 if empty
	live  bool
}

type levelArena struct {
	nodes []levelNode
	free  []int
}

func newLevelArena() *levelArena {
	return &levelArena{}
}

func (a *levelArena) Alloc(kind lob.LevelKind, price uint64) int {
	lv := lob.Level{Kind: kind, Price: price}
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.nodes[idx] = levelNode{level: lv, head: -1, tail: -1, live: true}
		return idx
	}
	a.nodes = append(a.nodes, levelNode{level: lv, head: -1, tail: -1, live: true})
	return len(a.nodes) - 1
}

func (a *levelArena) Release(idx int) {
	a.nodes[idx].live = false
	a.free = append(a.free, idx)
}

func (a *levelArena) Get(idx int) *lob.Level {
	return &a.nodes[idx].level
}

func (a *levelArena) node(idx int) *levelNode {
	return &a.nodes[idx]
}

// pushBack appends order orderIdx to the FIFO list owned by level levelIdx.
func (ob *Book) pushBack(levelIdx, orderIdx int) {
	lv := ob.levels.node(levelIdx)
	on := ob.orders.node(orderIdx)
	on.prev = lv.tail
	on.next = -1
	if lv.tail != -1 {
		ob.orders.node(lv.tail).next = orderIdx
	} else {
		lv.head = orderIdx
	}
	lv.tail = orderIdx
}

// unlink removes order orderIdx from its level's FIFO list.
func (ob *Book) unlink(levelIdx, orderIdx int) {
	lv := ob.levels.node(levelIdx)
	on := ob.orders.node(orderIdx)
	if on.prev != -1 {
		ob.orders.node(on.prev).next = on.next
	} else {
		lv.head = on.next
	}
	if on.next != -1 {
		ob.orders.node(on.next).prev = on.prev
	} else {
		lv.tail = on.prev
	}
	on.prev, on.next = -1, -1
}
