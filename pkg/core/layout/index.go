// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layout

import (
	"iter"

	"github.com/gomlx/exceptions"
)

// Sub2Ind converts per-axis indices (subscripts) to the linear buffer index: offset + Σ indices[i]*strides[i].
//
// No bounds checking is done.
func Sub2Ind(strides []int, offset int, indices []int) int {
	idx := offset
	for axis, i := range indices {
		idx += i * strides[axis]
	}
	return idx
}

// Ind2Sub converts a linear view index in [0, Size(shape)) into per-axis indices, enumerating
// the view in the given order: for RowMajor the last axis changes fastest, for ColumnMajor the first.
//
// The result is written to indices, that must have length len(shape).
func Ind2Sub(shape []int, order Order, linear int, indices []int) {
	if len(indices) != len(shape) {
		exceptions.Panicf("layout.Ind2Sub: len(indices)=%d, but rank is %d", len(indices), len(shape))
	}
	switch order {
	case RowMajor:
		for axis := len(shape) - 1; axis >= 0; axis-- {
			indices[axis] = linear % shape[axis]
			linear /= shape[axis]
		}
	case ColumnMajor:
		for axis := range shape {
			indices[axis] = linear % shape[axis]
			linear /= shape[axis]
		}
	default:
		exceptions.Panicf("layout.Ind2Sub: invalid order %d", int(order))
	}
}

// ViewToBufferIndex converts a linear view index (enumerating the view in the given order)
// to the index of the corresponding element in the underlying buffer.
//
// It is the composition of Ind2Sub and Sub2Ind, without allocating the intermediary indices.
func ViewToBufferIndex(shape, strides []int, offset int, order Order, linear int) int {
	idx := offset
	switch order {
	case RowMajor:
		for axis := len(shape) - 1; axis >= 0; axis-- {
			idx += (linear % shape[axis]) * strides[axis]
			linear /= shape[axis]
		}
	case ColumnMajor:
		for axis := range shape {
			idx += (linear % shape[axis]) * strides[axis]
			linear /= shape[axis]
		}
	default:
		exceptions.Panicf("layout.ViewToBufferIndex: invalid order %d", int(order))
	}
	return idx
}

// Iter iterates sequentially over all possible indices of the given shape, in the given order.
//
// It yields the flat (view) index and a slice of indices for each axis.
//
// To avoid allocating the slice of indices, the yielded indices is owned by Iter:
// don't change it inside the loop.
func Iter(shape []int, order Order) iter.Seq2[int, []int] {
	if !order.IsValid() {
		exceptions.Panicf("layout.Iter: invalid order %d", int(order))
	}
	return func(yield func(int, []int) bool) {
		rank := len(shape)
		indices := make([]int, rank)
		if rank == 0 {
			// Scalar: yield one empty index slice.
			_ = yield(0, indices)
			return
		}
		if IsEmpty(shape) {
			return
		}

		// Axes from fastest to slowest changing.
		axes := make([]int, rank)
		for ii := range axes {
			if order == RowMajor {
				axes[ii] = rank - 1 - ii
			} else {
				axes[ii] = ii
			}
		}

		flatIdx := 0
	yielder:
		for {
			if !yield(flatIdx, indices) {
				return // Consumer requested to stop iteration.
			}
			flatIdx++

			for _, axis := range axes {
				indices[axis]++
				if indices[axis] < shape[axis] {
					// No carry-over needed.
					continue yielder
				}
				// The current axis overflowed: reset it and carry over to the next axis.
				indices[axis] = 0
			}

			// All axes overflowed: iteration is complete.
			return
		}
	}
}
