// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package unary

import (
	"github.com/gomlx/strided/pkg/support/xslices"
)

// loopPlan is the block descriptor of one traversal: shape and strides permuted to loop order
// (position 0 is the innermost loop) and the block size in elements.
//
// It owns its slices, all carved from one call-scoped allocation, and is never mutated after creation.
type loopPlan struct {
	shape, sx, sy []int

	// axes maps loop position to the original axis.
	axes []int

	blockSize int
}

// newLoopPlan normalizes shape and strides into loop order, sorting by increasing |input stride|.
// The given slices are not modified.
func newLoopPlan(shape, stridesIn, stridesOut []int, blockSize int) *loopPlan {
	rank := len(shape)
	arena := make([]int, 4*rank)
	p := &loopPlan{
		sx:        arena[0:rank:rank],
		axes:      arena[rank : 2*rank : 2*rank],
		shape:     arena[2*rank : 3*rank : 3*rank],
		sy:        arena[3*rank:],
		blockSize: blockSize,
	}
	copy(p.sx, stridesIn)
	xslices.IotaInto(p.axes, 0)
	sortByStrideMagnitude(p.sx, p.axes)
	permuteInto(p.shape, shape, p.axes)
	permuteInto(p.sy, stridesOut, p.axes)
	return p
}

// newFixedOrderPlan is like newLoopPlan, but with loop order given by axes instead of sorted by strides.
func newFixedOrderPlan(shape, stridesIn, stridesOut, axes []int) *loopPlan {
	rank := len(shape)
	arena := make([]int, 3*rank)
	p := &loopPlan{
		shape: arena[0:rank:rank],
		sx:    arena[rank : 2*rank : 2*rank],
		sy:    arena[2*rank:],
		axes:  axes,
	}
	permuteInto(p.shape, shape, axes)
	permuteInto(p.sx, stridesIn, axes)
	permuteInto(p.sy, stridesOut, axes)
	return p
}

// squeeze removes the axes of dimension 1: their index is always 0, so their strides never contribute
// to an offset. It returns new slices and leaves the given ones untouched.
func squeeze(shape, stridesIn, stridesOut []int) (newShape, newStridesIn, newStridesOut []int) {
	rank := 0
	for _, dim := range shape {
		if dim != 1 {
			rank++
		}
	}
	arena := make([]int, 3*rank)
	newShape = arena[0:0:rank]
	newStridesIn = arena[rank : rank : 2*rank]
	newStridesOut = arena[2*rank : 2*rank]
	for axis, dim := range shape {
		if dim == 1 {
			continue
		}
		newShape = append(newShape, dim)
		newStridesIn = append(newStridesIn, stridesIn[axis])
		newStridesOut = append(newStridesOut, stridesOut[axis])
	}
	return
}
