// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package unary

import (
	"github.com/gomlx/strided/pkg/core/layout"
	"github.com/gomlx/strided/pkg/core/ndview"
	"github.com/pkg/errors"
)

// traversal enumerates the strategies used to visit the elements.
type traversal int

const (
	traversalScalar traversal = iota
	traversalEmpty
	traversal1D
	traversalFlat
	traversalNested
	traversalBlocked
	traversalBlocked2D
	traversalBlocked3D
	traversalGeneric
)

var traversalNames = []string{"scalar", "empty", "1d", "flat", "nested", "blocked", "blocked-2d", "blocked-3d", "generic"}

// String implements fmt.Stringer.
func (t traversal) String() string {
	if t < 0 || int(t) >= len(traversalNames) {
		return "invalid-traversal"
	}
	return traversalNames[t]
}

func (t traversal) isBlocked() bool {
	return t == traversalBlocked || t == traversalBlocked2D || t == traversalBlocked3D
}

// dispatch picks the traversal for the pair of views and runs it.
// It returns the traversal used and the block size, if a blocked one.
func (e *Exec[TIn, TOut]) dispatch(in ndview.View[TIn], out ndview.View[TOut]) (traversal, int) {
	fn, x, y := e.fn, in.Data, out.Data
	ox, oy := in.Offset, out.Offset
	if len(in.Shape) == 0 {
		y[oy] = fn(x[ox])
		return traversalScalar, 0
	}
	if layout.IsEmpty(in.Shape) {
		return traversalEmpty, 0
	}

	shape, sx, sy := squeeze(in.Shape, in.Strides, out.Strides)
	rank := len(shape)
	switch rank {
	case 0:
		y[oy] = fn(x[ox])
		return traversalScalar, 0
	case 1:
		walk1D(fn, x, ox, sx[0], y, oy, sy[0], shape[0])
		return traversal1D, 0
	}

	if e.forceGeneric {
		walkGeneric(fn, x, ox, y, oy, shape, sx, sy)
		return traversalGeneric, 0
	}

	if !e.forceBlocking {
		dirX, dirY := layout.IterationOrder(sx), layout.IterationOrder(sy)
		if dirX != 0 && dirY != 0 {
			if sameMagnitudes(sx, sy) && layout.IsContiguous(shape, sx) {
				// Both views are the same packed block, possibly reversed.
				walk1D(fn, x, ox, dirX, y, oy, dirY, layout.Size(shape))
				return traversalFlat, 0
			}
			if in.Order == out.Order && rank <= e.maxNestedRank {
				walkNested(fn, x, ox, y, oy, newFixedOrderPlan(shape, sx, sy, naturalLoopOrder(rank, in.Order)))
				return traversalNested, 0
			}
		}
	}

	if rank <= e.maxBlockedRank {
		p := newLoopPlan(shape, sx, sy, e.blockSize(in.DType, out.DType))
		if !e.noSpecializations {
			switch rank {
			case 2:
				walkBlocked2(fn, x, ox, y, oy, p)
				return traversalBlocked2D, p.blockSize
			case 3:
				walkBlocked3(fn, x, ox, y, oy, p)
				return traversalBlocked3D, p.blockSize
			}
		}
		walkBlocked(fn, x, ox, y, oy, p)
		return traversalBlocked, p.blockSize
	}

	walkGeneric(fn, x, ox, y, oy, shape, sx, sy)
	return traversalGeneric, 0
}

// naturalLoopOrder returns the loop order (innermost first) that follows the memory order:
// for RowMajor the last axis is the innermost loop, for ColumnMajor the first.
func naturalLoopOrder(rank int, order layout.Order) []int {
	axes := make([]int, rank)
	for ii := range axes {
		if order == layout.RowMajor {
			axes[ii] = rank - 1 - ii
		} else {
			axes[ii] = ii
		}
	}
	return axes
}

// sameMagnitudes returns whether |a[i]| == |b[i]| for every axis.
func sameMagnitudes(a, b []int) bool {
	for axis := range a {
		if absInt(a[axis]) != absInt(b[axis]) {
			return false
		}
	}
	return true
}

// validate checks both views are valid and have the same shape.
func validate[TIn, TOut any](in ndview.View[TIn], out ndview.View[TOut]) error {
	if err := in.Check(); err != nil {
		return errors.WithMessage(err, "unary: invalid input")
	}
	if err := out.Check(); err != nil {
		return errors.WithMessage(err, "unary: invalid output")
	}
	if in.Rank() != out.Rank() {
		return errors.Errorf("unary: input rank %d doesn't match output rank %d (input shape %v, output shape %v)",
			in.Rank(), out.Rank(), in.Shape, out.Shape)
	}
	for axis, dim := range in.Shape {
		if dim != out.Shape[axis] {
			return errors.Errorf("unary: input shape %v doesn't match output shape %v on axis %d",
				in.Shape, out.Shape, axis)
		}
	}
	return nil
}
