// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide small generic slice helpers missing from the standard slices package,
// used when handling shapes, strides and permutations.
package xslices

import (
	"golang.org/x/exp/constraints"
)

// Copy creates a new (shallow) copy of slice. A short cut to a call to `make` and then `copy`.
//
// Differently from slices.Clone, it always returns a non-nil slice when len(slice) > 0, and nil otherwise.
func Copy[T any](slice []T) []T {
	if len(slice) == 0 {
		return nil
	}
	slice2 := make([]T, len(slice))
	copy(slice2, slice)
	return slice2
}

// Iota returns a slice of incremental values, starting with start and of length len.
// Eg: Iota(3, 2) -> []int{3, 4}
func Iota[T interface {
	constraints.Integer | constraints.Float
}](start T, len int) (slice []T) {
	slice = make([]T, len)
	IotaInto(slice, start)
	return
}

// IotaInto fills slice with incremental values starting with start.
func IotaInto[T interface {
	constraints.Integer | constraints.Float
}](slice []T, start T) {
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
}

// Product returns the product of all values. The product of an empty slice is 1.
func Product[T constraints.Integer | constraints.Float](values []T) T {
	p := T(1)
	for _, v := range values {
		p *= v
	}
	return p
}

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// FillSlice fills a slice with the given value.
func FillSlice[T any](slice []T, value T) {
	for ii := range slice {
		slice[ii] = value
	}
}

// SliceWithValue creates a slice of given size filled with given value.
func SliceWithValue[T any](size int, value T) []T {
	s := make([]T, size)
	FillSlice(s, value)
	return s
}
