// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package unary

// walkNested visits every element with plain nested loops (no blocking), in the loop order of the plan.
func walkNested[TIn, TOut any](fn func(TIn) TOut, x []TIn, ox int, y []TOut, oy int, p *loopPlan) {
	rank := len(p.shape)
	scratch := make([]int, 3*rank)
	walkElements(fn, x, ox, y, oy, p.shape, p.sx, p.sy, scratch[:rank], scratch[rank:2*rank], scratch[2*rank:])
}

// walkGeneric visits every element in row-major order of the given axes, keeping a vector of indices.
// It works for any rank >= 1 and needs no loop reordering nor blocking.
func walkGeneric[TIn, TOut any](fn func(TIn) TOut, x []TIn, ox int, y []TOut, oy int, shape, sx, sy []int) {
	rank := len(shape)
	indices := make([]int, rank)
	ix, iy := ox, oy
next:
	for {
		y[iy] = fn(x[ix])
		for axis := rank - 1; axis >= 0; axis-- {
			indices[axis]++
			ix += sx[axis]
			iy += sy[axis]
			if indices[axis] < shape[axis] {
				continue next
			}
			// Carry: rewind this axis to index 0.
			ix -= shape[axis] * sx[axis]
			iy -= shape[axis] * sy[axis]
			indices[axis] = 0
		}
		return
	}
}
