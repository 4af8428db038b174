// Package tree implements the broadcast and reduction trees that couple
// the L- and U-solve engines across processes: a broadcast tree fans a
// solved X[K] out to every process owning a block in column K; a
// reduction tree fans partial lsum[I] contributions in toward I's
// diagonal process. Trees carry no business data — internal/solvecore owns
// the payloads, asks the tree that matches the supernode being processed
// for its Destinations, and sends to them over the transport itself.
package tree

import "fmt"

// Shape selects how a tree's interior fan-out/fan-in is laid out.
type Shape int

const (
	// Flat makes the root talk directly to every other member.
	Flat Shape = iota
	// Binary gives every interior node at most two children.
	Binary
	// KAry gives every interior node up to K children, K being the kary
	// argument of NewBcast/NewReduce.
	KAry
)

// Tree is the capability set every broadcast or reduction tree exposes to
// the solve engines, per spec §4.C/§9.
type Tree interface {
	// IsRoot reports whether this process is the tree's root (the
	// diagonal process of the column/row this tree serves).
	IsRoot() bool
	// MsgSize is the payload word count, excluding the header word.
	MsgSize() int
	// Destinations returns the ranks this process must forward a message
	// to: children for a broadcast tree, the single parent for a
	// reduction tree (empty at the root).
	Destinations() []int
	// AllocateRequest primes any internal send-tracking state; called
	// once before a tree is first used in a solve.
	AllocateRequest()
	// AwaitSend blocks until this tree's outstanding sends for the
	// current message have completed. Must not be called concurrently
	// with Destinations-driven sends on the same tree.
	AwaitSend() error
}

// node is the shared bookkeeping for both tree kinds.
type node struct {
	myRank    int
	root      int
	children  []int
	parent    int // -1 if this node is the root
	msgSize   int
	pending   int // outstanding unacknowledged sends, for AwaitSend bookkeeping
}

func (n *node) IsRoot() bool    { return n.myRank == n.root }
func (n *node) MsgSize() int    { return n.msgSize }

// ChildCount is this node's fan-out degree in the tree topology,
// regardless of tree kind: for a BcastTree this equals len(Destinations());
// for a ReduceTree, whose Destinations only reports the parent, it is the
// number of reduce-tree children feeding this node (frecv/brecv per spec §3).
func (n *node) ChildCount() int { return len(n.children) }
func (n *node) AllocateRequest() { n.pending = 0 }
func (n *node) AwaitSend() error {
	n.pending = 0
	return nil
}

// BcastTree fans a message out from its root to every member, following
// the column-wise broadcast structure §3/§4.F describes: an interior node
// relays to its children before applying the message locally, so
// bandwidth is not blocked on compute.
type BcastTree struct {
	*node
}

// Destinations returns this node's children in the broadcast tree.
func (t *BcastTree) Destinations() []int { return t.children }

// ReduceTree folds partial sums from its leaves up toward its root (the
// row's diagonal process), one parent forward per node.
type ReduceTree struct {
	*node
}

// Destinations returns this node's single parent, or nil at the root.
func (t *ReduceTree) Destinations() []int {
	if t.parent < 0 {
		return nil
	}
	return []int{t.parent}
}

// build constructs the fan-out (children) and fan-in (parent) topology
// for `members` (mesh ranks participating in this column/row, with
// `root` — the diagonal process — always included) according to shape.
// myRank must be a member.
func build(members []int, root, myRank, msgSize int, shape Shape, kary int) (*node, error) {
	idx := -1
	for i, r := range members {
		if r == root {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("tree: root %d is not a member", root)
	}
	// Rotate members so root is first; tree structure is then defined
	// over positions in this rotated order.
	ordered := make([]int, len(members))
	for i := range members {
		ordered[i] = members[(idx+i)%len(members)]
	}
	myPos := -1
	for i, r := range ordered {
		if r == myRank {
			myPos = i
		}
	}
	if myPos < 0 {
		return nil, fmt.Errorf("tree: rank %d is not a member", myRank)
	}

	fanout := kary
	switch shape {
	case Flat:
		fanout = len(ordered)
	case Binary:
		fanout = 2
	case KAry:
		if fanout <= 0 {
			return nil, fmt.Errorf("tree: k-ary fanout must be positive")
		}
	}

	parent := -1
	if myPos != 0 {
		parent = ordered[(myPos-1)/fanout]
	}
	var children []int
	for c := myPos*fanout + 1; c <= myPos*fanout+fanout && c < len(ordered); c++ {
		children = append(children, ordered[c])
	}

	return &node{
		myRank:   myRank,
		root:     root,
		children: children,
		parent:   parent,
		msgSize:  msgSize,
	}, nil
}

// NewBcast builds a broadcast tree rooted at `root` over `members`.
func NewBcast(members []int, root, myRank, msgSize int, shape Shape, kary int) (*BcastTree, error) {
	n, err := build(members, root, myRank, msgSize, shape, kary)
	if err != nil {
		return nil, err
	}
	return &BcastTree{node: n}, nil
}

// NewReduce builds a reduction tree rooted at `root` over `members`.
func NewReduce(members []int, root, myRank, msgSize int, shape Shape, kary int) (*ReduceTree, error) {
	n, err := build(members, root, myRank, msgSize, shape, kary)
	if err != nil {
		return nil, err
	}
	return &ReduceTree{node: n}, nil
}
