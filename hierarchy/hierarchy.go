// Package hierarchy reorders a bone tree given in authoring order into the
// canonical parent-before-child order.
package hierarchy

import (
	"fmt"

	"github.com/binzume/rigconv/rig"
)

// NoParent marks the root in a parent table.
const NoParent = -1

type Order struct {
	// Canonical holds the authoring index of every canonical slot.
	Canonical []int
	// Remap maps an authoring index to its canonical index.
	Remap []int
}

// Parent returns the canonical parent of canonical bone i, or NoParent.
func (o *Order) Parent(parents []int, i int) int {
	p := parents[o.Canonical[i]]
	if p == NoParent {
		return NoParent
	}
	return o.Remap[p]
}

// Normalize computes the canonical order of a tree described by a parent
// table (parents[i] is the authoring index of bone i's parent).
//
// Bones are numbered by a pre-order depth-first walk from the root: a child
// receives the next free index as soon as it is reached, and its whole
// subtree is numbered before its next sibling. Siblings are visited in
// authoring order.
func Normalize(parents []int) (*Order, error) {
	n := len(parents)
	if n == 0 {
		return nil, fmt.Errorf("%w: no bones", rig.ErrMalformedHierarchy)
	}

	root := NoParent
	children := make([][]int, n)
	for i, p := range parents {
		switch {
		case p == NoParent:
			if root != NoParent {
				return nil, fmt.Errorf("%w: bones %d and %d are both roots", rig.ErrMalformedHierarchy, root, i)
			}
			root = i
		case p < 0 || p >= n:
			return nil, fmt.Errorf("%w: bone %d has unresolvable parent %d", rig.ErrMalformedHierarchy, i, p)
		case p == i:
			return nil, fmt.Errorf("%w: bone %d is its own parent", rig.ErrMalformedHierarchy, i)
		default:
			children[p] = append(children[p], i)
		}
	}
	if root == NoParent {
		return nil, fmt.Errorf("%w: no root bone", rig.ErrMalformedHierarchy)
	}

	order := &Order{
		Canonical: make([]int, 0, n),
		Remap:     make([]int, n),
	}
	for i := range order.Remap {
		order.Remap[i] = NoParent
	}

	stack := []int{root}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if order.Remap[b] != NoParent {
			return nil, fmt.Errorf("%w: bone %d reached twice", rig.ErrMalformedHierarchy, b)
		}
		order.Remap[b] = len(order.Canonical)
		order.Canonical = append(order.Canonical, b)
		for c := len(children[b]) - 1; c >= 0; c-- {
			stack = append(stack, children[b][c])
		}
	}

	if len(order.Canonical) != n {
		for i, r := range order.Remap {
			if r == NoParent {
				return nil, fmt.Errorf("%w: bone %d is part of a parent cycle", rig.ErrMalformedHierarchy, i)
			}
		}
	}
	return order, nil
}
