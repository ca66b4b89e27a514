// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package unary

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/strided/pkg/support/xslices"
)

// sortByStrideMagnitude sorts strides in place by increasing absolute value, moving idx along with it.
//
// It is a paired insertion sort: stable (axes with equal |stride| keep their relative order) and
// linear on the already (or almost) sorted strides typical of array layouts.
func sortByStrideMagnitude(strides, idx []int) {
	for i := 1; i < len(strides); i++ {
		stride, axis := strides[i], idx[i]
		magnitude := absInt(stride)
		j := i - 1
		for ; j >= 0 && absInt(strides[j]) > magnitude; j-- {
			strides[j+1] = strides[j]
			idx[j+1] = idx[j]
		}
		strides[j+1] = stride
		idx[j+1] = axis
	}
}

// LoopOrder returns the loop interchange permutation for the given (input) strides: the axes sorted
// by increasing |stride|, ties kept in their original order.
//
// Position 0 is the innermost loop. The strides slice is not modified.
func LoopOrder(strides []int) []int {
	sorted := xslices.Copy(strides)
	idx := xslices.Iota(0, len(strides))
	sortByStrideMagnitude(sorted, idx)
	return idx
}

// Permute returns a new slice with out[i] = values[idx[i]].
//
// It panics if len(values) != len(idx).
func Permute[T any](values []T, idx []int) []T {
	if len(values) != len(idx) {
		exceptions.Panicf("unary.Permute: %d values for a permutation of length %d", len(values), len(idx))
	}
	out := make([]T, len(idx))
	permuteInto(out, values, idx)
	return out
}

// permuteInto sets dst[i] = src[idx[i]]. dst and src must not overlap.
func permuteInto[T any](dst, src []T, idx []int) {
	for i, axis := range idx {
		dst[i] = src[axis]
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
