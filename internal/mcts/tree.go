package mcts

import (
	"errors"
	"fmt"

	"github.com/freeeve/othello/internal/bitboard"
	"github.com/freeeve/othello/internal/game"
)

// ErrInsufficientData is returned when the best move is requested before the
// root has been fully expanded.
var ErrInsufficientData = errors.New("insufficient search data")

// NodeID indexes a node in its tree's arena.
type NodeID int32

// NoNode marks the root's parent.
const NoNode NodeID = -1

// Node is one search-tree vertex. Parent is an index, not an owning pointer.
type Node struct {
	State    *game.State
	Move     bitboard.Move // move played at the parent to reach this node
	Parent   NodeID
	Children []NodeID
	Untried  []bitboard.Move

	Visits uint32
	Reward float64 // summed rewards from the root player's point of view

	// Pattern-biased search only.
	Strength    float64   // StrongOfAction of Move at the parent
	StrengthSum float64   // sum of strengths over this node's moves
	priors      []float64 // strengths aligned with Untried
	primed      bool
}

// FullyExpanded reports whether every move of the node has a child.
func (n *Node) FullyExpanded() bool {
	return len(n.Untried) == 0
}

// Selection chooses the move reported at the end of a search.
type Selection uint8

const (
	// SelectRobust picks the most visited root child.
	SelectRobust Selection = iota
	// SelectMax picks the root child with the best mean reward.
	SelectMax
)

func (s Selection) String() string {
	if s == SelectMax {
		return "max"
	}
	return "robust"
}

// ParseSelection accepts "robust" or "max".
func ParseSelection(s string) (Selection, error) {
	switch s {
	case "", "robust":
		return SelectRobust, nil
	case "max":
		return SelectMax, nil
	}
	return SelectRobust, fmt.Errorf("unknown selection %q", s)
}

// Tree stores nodes in a slice. Node pointers are invalidated by AddChild;
// hold NodeIDs across calls instead.
type Tree struct {
	nodes []Node
	side  bitboard.Side // root player
}

// NewTree creates a tree whose root is state.
func NewTree(state *game.State) *Tree {
	t := &Tree{side: state.Side}
	t.nodes = append(t.nodes, Node{
		State:   state,
		Move:    bitboard.Pass,
		Parent:  NoNode,
		Untried: state.Moves(),
	})
	return t
}

// Root returns the root id.
func (t *Tree) Root() NodeID {
	return 0
}

// Node returns the node for id.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// RootSide is the player to move at the root.
func (t *Tree) RootSide() bitboard.Side {
	return t.side
}

// AddChild appends a child reached by move and removes move from the parent's
// untried list.
func (t *Tree) AddChild(parent NodeID, move bitboard.Move, state *game.State) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		State:   state,
		Move:    move,
		Parent:  parent,
		Untried: state.Moves(),
	})
	p := &t.nodes[parent]
	p.Children = append(p.Children, id)
	for i, m := range p.Untried {
		if m == move {
			p.removeUntried(i)
			break
		}
	}
	return id
}

func (n *Node) removeUntried(i int) {
	last := len(n.Untried) - 1
	n.Untried[i] = n.Untried[last]
	n.Untried = n.Untried[:last]
	if n.priors != nil {
		n.priors[i] = n.priors[last]
		n.priors = n.priors[:last]
	}
}

// Value is the child's mean reward in [0,1] from the point of view of the
// player choosing at its parent.
func (t *Tree) Value(child NodeID) float64 {
	c := &t.nodes[child]
	if c.Visits == 0 {
		return 0
	}
	q := c.Reward / (game.RewardWin * float64(c.Visits))
	if c.Parent != NoNode && t.nodes[c.Parent].State.Side != t.side {
		return 1 - q
	}
	return q
}

// Backpropagate adds one visit and reward to id and every ancestor.
func (t *Tree) Backpropagate(id NodeID, reward float64) {
	for id != NoNode {
		n := &t.nodes[id]
		n.Visits++
		n.Reward += reward
		id = n.Parent
	}
}

// BestMove reports the chosen root move.
func (t *Tree) BestMove(sel Selection) (bitboard.Move, error) {
	root := &t.nodes[0]
	if !root.FullyExpanded() || len(root.Children) == 0 {
		return bitboard.Pass, fmt.Errorf("%w: %d of %d root moves expanded",
			ErrInsufficientData, len(root.Children), len(root.Children)+len(root.Untried))
	}
	best := root.Children[0]
	for _, id := range root.Children[1:] {
		if t.better(sel, id, best) {
			best = id
		}
	}
	return t.nodes[best].Move, nil
}

// better reports whether a strictly beats b, so ties keep the first child.
func (t *Tree) better(sel Selection, a, b NodeID) bool {
	na, nb := &t.nodes[a], &t.nodes[b]
	if sel == SelectMax {
		return t.Value(a) > t.Value(b)
	}
	return na.Visits > nb.Visits
}

// ChildStat summarises one root child.
type ChildStat struct {
	Move       bitboard.Move
	Visits     uint32
	WinPercent float64
	Prior      float64
}

// RootChildren summarises the root's children in expansion order.
func (t *Tree) RootChildren() []ChildStat {
	root := &t.nodes[0]
	out := make([]ChildStat, 0, len(root.Children))
	for _, id := range root.Children {
		c := &t.nodes[id]
		cs := ChildStat{Move: c.Move, Visits: c.Visits, WinPercent: 100 * t.Value(id)}
		if root.StrengthSum > 0 {
			cs.Prior = c.Strength / root.StrengthSum
		}
		out = append(out, cs)
	}
	return out
}
