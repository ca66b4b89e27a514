// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package layout describes how a multidimensional array view maps onto a linear data buffer:
// memory order, strides, offsets and the derived properties used to pick a traversal strategy.
//
// Strides and offsets are always measured in elements, never in bytes.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a view.
//   - Shape: the extent (number of indices) of each axis.
//   - Stride: per-axis step, in elements, between consecutive indices along that axis.
//     It can be negative (reverse traversal) or zero (repeats the same element).
//   - Offset: buffer index of the element with all indices equal to zero.
//   - Order: the natural storage layout (RowMajor or ColumnMajor). It documents the layout,
//     but addressing only depends on shape, strides and offset.
package layout

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/strided/pkg/support/xslices"
)

// Order is the memory layout of a view: RowMajor or ColumnMajor.
type Order int

const (
	// RowMajor (C order): the last axis has the fastest changing index. It is the zero value.
	RowMajor Order = iota

	// ColumnMajor (Fortran order): the first axis has the fastest changing index.
	ColumnMajor
)

// String implements fmt.Stringer.
func (o Order) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case ColumnMajor:
		return "column-major"
	default:
		return "invalid-order"
	}
}

// IsValid returns whether o is one of RowMajor or ColumnMajor.
func (o Order) IsValid() bool {
	return o == RowMajor || o == ColumnMajor
}

// Size returns the number of elements of a view with the given shape: the product of all dimensions.
// A scalar (empty shape) has size 1, and any zero dimension makes it 0.
func Size(shape []int) int {
	return xslices.Product(shape)
}

// IsEmpty returns whether any of the dimensions is zero.
func IsEmpty(shape []int) bool {
	for _, dim := range shape {
		if dim == 0 {
			return true
		}
	}
	return false
}

// Strides returns the strides of a contiguous (packed) buffer with the given shape and order.
//
// Notice the strides are **not in bytes**, but in elements.
// Axes of zero dimension don't change the stride of the following axes, so strides are
// still well-defined for empty shapes.
func Strides(shape []int, order Order) (strides []int) {
	rank := len(shape)
	if rank == 0 {
		return
	}
	strides = make([]int, rank)
	currentStride := 1
	switch order {
	case RowMajor:
		for axis := rank - 1; axis >= 0; axis-- {
			strides[axis] = currentStride
			currentStride *= max(shape[axis], 1)
		}
	case ColumnMajor:
		for axis := 0; axis < rank; axis++ {
			strides[axis] = currentStride
			currentStride *= max(shape[axis], 1)
		}
	default:
		exceptions.Panicf("layout.Strides: invalid order %d", int(order))
	}
	return
}

// IterationOrder returns the direction in which a buffer is traversed when stepping through
// the given strides:
//
//   - +1 if all strides are non-negative;
//   - -1 if all strides are negative;
//   - 0 if strides have mixed signs.
//
// Zero strides count as non-negative.
func IterationOrder(strides []int) int {
	numNegative := 0
	for _, s := range strides {
		if s < 0 {
			numNegative++
		}
	}
	if numNegative == 0 {
		return 1
	}
	if numNegative == len(strides) {
		return -1
	}
	return 0
}

// MinMaxIndex returns the smallest and the largest buffer index reachable by a view.
//
// It assumes the view is not empty (see IsEmpty): for empty views no index is ever accessed.
func MinMaxIndex(shape, strides []int, offset int) (minIdx, maxIdx int) {
	minIdx, maxIdx = offset, offset
	for axis, dim := range shape {
		s := strides[axis]
		if s > 0 {
			maxIdx += s * (dim - 1)
		} else if s < 0 {
			minIdx += s * (dim - 1)
		}
	}
	return
}

// IsContiguous returns whether the view addresses a single packed block of memory, visiting
// every buffer position between its min and max index exactly once.
//
// It is true when, ignoring axes with dimension 1 and sorting the remaining axes by increasing
// |stride|, the |strides| are exactly 1, d₀, d₀·d₁, ... Empty views are not contiguous.
func IsContiguous(shape, strides []int) bool {
	if IsEmpty(shape) {
		return false
	}
	// Selection over the (small) set of non-trivial axes: find the next smallest |stride|
	// among the axes not yet used.
	rank := len(shape)
	used := make([]bool, rank)
	expected := 1
	for {
		best := -1
		for axis := 0; axis < rank; axis++ {
			if used[axis] || shape[axis] == 1 {
				continue
			}
			if best == -1 || absInt(strides[axis]) < absInt(strides[best]) {
				best = axis
			}
		}
		if best == -1 {
			return true
		}
		if absInt(strides[best]) != expected {
			return false
		}
		used[best] = true
		expected *= shape[best]
	}
}

// absInt returns the absolute value of x.
func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
