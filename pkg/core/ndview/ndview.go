// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ndview defines View, the descriptor of a multidimensional strided view over a data buffer.
//
// A View doesn't own its buffer: many views can share one Data slice (e.g. a transposed or a
// reversed view of the same array), and writing through one is visible through all others.
//
// Example: the transpose of a 2x3 row-major array, without copying the data:
//
//	data := []float32{0, 1, 2, 3, 4, 5}
//	x := ndview.FromSlice(data, layout.RowMajor, 2, 3)          // strides [3, 1]
//	xT := ndview.New(data, []int{3, 2}, []int{1, 3}, 0, layout.ColumnMajor)
package ndview

import (
	"fmt"
	"iter"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/strided/pkg/core/dtypes"
	"github.com/gomlx/strided/pkg/core/layout"
	"github.com/gomlx/strided/pkg/support/xslices"
	"github.com/pkg/errors"
)

// View describes how to interpret a region of Data as a multidimensional array.
//
// Strides and Offset are measured in elements. The element with indices (i₀, i₁, ...) is
// Data[Offset + Σ iₖ·Strides[k]].
type View[T any] struct {
	// DType of the elements. It defines the byte width used to size cache blocks.
	DType dtypes.DType

	// Data is the (shared) buffer. Never owned by the view.
	Data []T

	// Shape holds the extent of each axis; its length is the rank.
	Shape []int

	// Strides holds the step, in elements, between consecutive indices of each axis.
	// They can be negative or zero.
	Strides []int

	// Offset is the buffer index of the first element (all indices zero).
	Offset int

	// Order documents the natural storage layout. Addressing doesn't depend on it.
	Order layout.Order
}

// New creates a View over data with the given shape, strides, offset and order.
// The DType is inferred from T (see dtypes.FromType).
//
// The shape and strides slices are copied. It panics if len(strides) != len(shape):
// use Check to validate the rest (bounds, non-negative dimensions).
func New[T any](data []T, shape, strides []int, offset int, order layout.Order) View[T] {
	if len(shape) != len(strides) {
		exceptions.Panicf("ndview.New: shape %v and strides %v have different ranks", shape, strides)
	}
	return View[T]{
		DType:   dtypes.FromType[T](),
		Data:    data,
		Shape:   xslices.Copy(shape),
		Strides: xslices.Copy(strides),
		Offset:  offset,
		Order:   order,
	}
}

// FromSlice creates a packed View over data, with strides derived from the shape and order,
// and offset 0.
//
// It panics if len(data) doesn't match the size of the shape.
func FromSlice[T any](data []T, order layout.Order, shape ...int) View[T] {
	if size := layout.Size(shape); size != len(data) {
		exceptions.Panicf("ndview.FromSlice: shape %v has %d elements, but len(data)=%d", shape, size, len(data))
	}
	return New(data, shape, layout.Strides(shape, order), 0, order)
}

// Zeros allocates a new buffer for the given shape and returns a packed View over it.
func Zeros[T any](order layout.Order, shape ...int) View[T] {
	return FromSlice(make([]T, layout.Size(shape)), order, shape...)
}

// Full allocates a new buffer for the given shape filled with value, and returns a packed View over it.
func Full[T any](value T, order layout.Order, shape ...int) View[T] {
	return FromSlice(xslices.SliceWithValue(layout.Size(shape), value), order, shape...)
}

// WithDType returns a shallow copy of the view with the DType overwritten.
// Useful for views of Generic elements (e.g. []any) whose values have a known width.
func (v View[T]) WithDType(dtype dtypes.DType) View[T] {
	v.DType = dtype
	return v
}

// Rank returns the number of axes.
func (v View[T]) Rank() int { return len(v.Shape) }

// Size returns the number of elements in the view: the product of its dimensions.
func (v View[T]) Size() int { return layout.Size(v.Shape) }

// IsScalar returns whether the view has rank 0 (a single element).
func (v View[T]) IsScalar() bool { return len(v.Shape) == 0 }

// String implements fmt.Stringer.
func (v View[T]) String() string {
	return fmt.Sprintf("(%s)%v{strides=%v, offset=%d, %s, len(data)=%d}",
		v.DType, v.Shape, v.Strides, v.Offset, v.Order, len(v.Data))
}

// Index returns the buffer index of the element at the given indices.
// No bounds checking is done.
func (v View[T]) Index(indices ...int) int {
	return layout.Sub2Ind(v.Strides, v.Offset, indices)
}

// At returns the element at the given indices.
func (v View[T]) At(indices ...int) T {
	if len(indices) != len(v.Shape) {
		exceptions.Panicf("View.At: %d indices given for a view of rank %d", len(indices), len(v.Shape))
	}
	return v.Data[v.Index(indices...)]
}

// Set sets the element at the given indices.
func (v View[T]) Set(value T, indices ...int) {
	if len(indices) != len(v.Shape) {
		exceptions.Panicf("View.Set: %d indices given for a view of rank %d", len(indices), len(v.Shape))
	}
	v.Data[v.Index(indices...)] = value
}

// All iterates over the elements of the view in its Order, yielding the per-axis indices and the value.
// The yielded indices slice is owned by the iterator: don't change it.
//
// It addresses each element from scratch and is meant for inspection and tests, not for speed.
func (v View[T]) All() iter.Seq2[[]int, T] {
	return func(yield func([]int, T) bool) {
		for _, indices := range layout.Iter(v.Shape, v.Order) {
			if !yield(indices, v.Data[v.Index(indices...)]) {
				return
			}
		}
	}
}

// Values returns a packed copy of the view's elements, enumerated in the view's Order.
func (v View[T]) Values() []T {
	values := make([]T, 0, v.Size())
	for _, value := range v.All() {
		values = append(values, value)
	}
	return values
}

// Check validates the view: ranks of shape and strides match, dimensions and offset are
// non-negative, the order is valid, and every reachable element is within Data.
func (v View[T]) Check() error {
	if len(v.Shape) != len(v.Strides) {
		return errors.Errorf("view %s: shape has rank %d, but strides has length %d", v, len(v.Shape), len(v.Strides))
	}
	if !v.Order.IsValid() {
		return errors.Errorf("view %s: invalid order %d", v, int(v.Order))
	}
	if v.Offset < 0 {
		return errors.Errorf("view %s: negative offset", v)
	}
	for axis, dim := range v.Shape {
		if dim < 0 {
			return errors.Errorf("view %s: axis %d has negative dimension %d", v, axis, dim)
		}
	}
	if layout.IsEmpty(v.Shape) {
		// No element is ever accessed.
		return nil
	}
	minIdx, maxIdx := layout.MinMaxIndex(v.Shape, v.Strides, v.Offset)
	if minIdx < 0 || maxIdx >= len(v.Data) {
		return errors.Errorf("view %s reaches buffer indices [%d, %d], out of bounds of data with %d elements",
			v, minIdx, maxIdx, len(v.Data))
	}
	return nil
}
