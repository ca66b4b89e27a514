// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package unary

import (
	"context"
	"slices"
	"sync"

	"github.com/gomlx/strided/pkg/core/layout"
	"github.com/gomlx/strided/pkg/core/ndview"
)

// CallChunked is like Call, but splits the views into slabs along the axis with the largest input stride
// magnitude (the outermost loop), each slab being traversed like Call.
//
// The context is checked before each slab: once it is done no new slabs are started, and it returns
// ctx.Err(). Slabs already finished stay written.
//
// Slabs run sequentially, unless configured with WithParallelism, in which case they run concurrently.
// The output view must then not address the same buffer element twice.
func (e *Exec[TIn, TOut]) CallChunked(ctx context.Context, in ndview.View[TIn], out ndview.View[TOut]) error {
	if !e.unchecked {
		if err := validate(in, out); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if in.Rank() == 0 || layout.IsEmpty(in.Shape) {
		return e.exec(in, out)
	}

	axis := slabAxis(in.Shape, in.Strides)
	numSlabs := in.Shape[axis]
	if e.pool == nil {
		for slabIdx := range numSlabs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.exec(slab(in, axis, slabIdx), slab(out, axis, slabIdx)); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		mu       sync.Mutex
		firstErr error
	)
	err := e.pool.Run(ctx, numSlabs, func(slabIdx int) {
		if err := e.exec(slab(in, axis, slabIdx), slab(out, axis, slabIdx)); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
				cancel()
			}
			mu.Unlock()
		}
	})
	if firstErr != nil {
		return firstErr
	}
	return err
}

// slabAxis returns the axis of the outermost loop: the one with the largest |stride| among the axes
// with dimension > 1. If all axes have dimension 1, it returns the last one in loop order.
func slabAxis(shape, strides []int) int {
	order := LoopOrder(strides)
	for _, axis := range slices.Backward(order) {
		if shape[axis] > 1 {
			return axis
		}
	}
	return order[len(order)-1]
}

// slab returns the sub-view with index slabIdx on the given axis, keeping the axis with dimension 1.
func slab[T any](v ndview.View[T], axis, slabIdx int) ndview.View[T] {
	v.Shape = slices.Clone(v.Shape)
	v.Shape[axis] = 1
	v.Offset += slabIdx * v.Strides[axis]
	return v
}
