// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package unary applies a function elementwise from one strided view (ndview.View) to another of the same
// shape, visiting every element exactly once, without copying the data.
//
// It is the traversal engine for any elementwise unary operation: it normalizes the views (drops axes of
// dimension 1, flattens contiguous views), reorders the loops by increasing input stride magnitude, and walks
// the arrays in cache-sized blocks, updating buffer offsets incrementally.
//
// Example:
//
//	in := ndview.FromSlice([]float64{1, 2, 3, 4, 5, 6}, layout.RowMajor, 2, 3)
//	out := ndview.Zeros[float64](layout.ColumnMajor, 2, 3)
//	err := unary.Apply(in, out, func(x float64) float64 { return 10 * x })
//
// Use New or NewWithError to create an Exec for reuse and further configuration.
// An Exec is immutable once configured, and can be called concurrently, as long as the concurrent calls
// don't write to overlapping regions of the same output buffer.
package unary

import (
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/strided/internal/workerspool"
	"github.com/gomlx/strided/pkg/core/dtypes"
	"github.com/gomlx/strided/pkg/core/ndview"
	"k8s.io/klog/v2"
)

const (
	// DefaultMaxBlockedRank is the highest rank traversed with blocking. Views of higher rank use
	// the generic (index vector) traversal.
	DefaultMaxBlockedRank = 10

	// DefaultMaxNestedRank is the highest rank traversed with plain nested loops, when both views
	// move in a single direction and have the same order.
	DefaultMaxNestedRank = 10
)

// Exec applies a function fn from the elements of an input view to the elements of an output view.
//
// Create it with New or NewWithError, optionally configure it with the With... methods, and
// call it with Call or CallChunked.
type Exec[TIn, TOut any] struct {
	fn        func(TIn) TOut
	withError bool

	blockSizeBytes  int
	bytesPerElement func(dtypes.DType) (int, bool)
	maxBlockedRank  int
	maxNestedRank   int

	forceBlocking, forceGeneric bool
	noSpecializations           bool
	unchecked                   bool

	pool *workerspool.Pool
}

// New creates an Exec that applies fn to each element.
//
// A panic raised by fn propagates out of Call unchanged. Use NewWithError for functions that can fail.
func New[TIn, TOut any](fn func(TIn) TOut) *Exec[TIn, TOut] {
	if fn == nil {
		exceptions.Panicf("unary.New: nil function")
	}
	return &Exec[TIn, TOut]{
		fn:              fn,
		blockSizeBytes:  BlockSizeInBytes,
		bytesPerElement: dtypes.BytesPerElement,
		maxBlockedRank:  DefaultMaxBlockedRank,
		maxNestedRank:   DefaultMaxNestedRank,
	}
}

// NewWithError creates an Exec that applies fn to each element, stopping at the first error.
//
// The error is returned by Call as is (not wrapped). Output elements written before the error stay written.
func NewWithError[TIn, TOut any](fn func(TIn) (TOut, error)) *Exec[TIn, TOut] {
	if fn == nil {
		exceptions.Panicf("unary.NewWithError: nil function")
	}
	e := New(func(x TIn) TOut {
		y, err := fn(x)
		if err != nil {
			panic(&callbackError{err: err})
		}
		return y
	})
	e.withError = true
	return e
}

// Apply is a shortcut to New(fn).Call(in, out).
func Apply[TIn, TOut any](in ndview.View[TIn], out ndview.View[TOut], fn func(TIn) TOut) error {
	return New(fn).Call(in, out)
}

// callbackError carries an error returned by a NewWithError function out of the traversal loops.
type callbackError struct {
	err error
}

// WithBlockSizeBytes sets the target working set of one block, per array, in bytes.
// The default is BlockSizeInBytes. Elements of unknown width are assumed to take 8 bytes.
//
// It panics if bytes <= 0.
func (e *Exec[TIn, TOut]) WithBlockSizeBytes(bytes int) *Exec[TIn, TOut] {
	if bytes <= 0 {
		exceptions.Panicf("unary.Exec.WithBlockSizeBytes(%d): block size must be > 0", bytes)
	}
	if bytes < maxBytesPerElement {
		klog.Warningf("unary.Exec.WithBlockSizeBytes(%d): smaller than elements of up to %d bytes, "+
			"blocks of those will be clamped to 1 element", bytes, maxBytesPerElement)
	}
	e.blockSizeBytes = bytes
	return e
}

// maxBytesPerElement is the width of the largest fixed-width DType (Complex128).
const maxBytesPerElement = 16

// WithBytesPerElement replaces the lookup of the byte width of the dtypes of the views,
// used to compute the block size. It should return ok=false for dtypes of unknown width.
// The default is dtypes.BytesPerElement.
func (e *Exec[TIn, TOut]) WithBytesPerElement(fn func(dtypes.DType) (bytes int, ok bool)) *Exec[TIn, TOut] {
	if fn == nil {
		fn = dtypes.BytesPerElement
	}
	e.bytesPerElement = fn
	return e
}

// WithMaxBlockedRank sets the highest rank traversed with blocking. Default is DefaultMaxBlockedRank.
func (e *Exec[TIn, TOut]) WithMaxBlockedRank(rank int) *Exec[TIn, TOut] {
	e.maxBlockedRank = rank
	return e
}

// WithMaxNestedRank sets the highest rank traversed with plain nested loops. Default is DefaultMaxNestedRank.
func (e *Exec[TIn, TOut]) WithMaxNestedRank(rank int) *Exec[TIn, TOut] {
	e.maxNestedRank = rank
	return e
}

// WithBlocking forces blocked traversal for all views of rank >= 2 (after dropping axes of dimension 1)
// and up to the max blocked rank, skipping the flattened and the nested loops traversals.
func (e *Exec[TIn, TOut]) WithBlocking() *Exec[TIn, TOut] {
	e.forceBlocking = true
	return e
}

// WithGenericFallback forces the generic index vector traversal for all views of rank >= 2
// (after dropping axes of dimension 1).
func (e *Exec[TIn, TOut]) WithGenericFallback() *Exec[TIn, TOut] {
	e.forceGeneric = true
	return e
}

// WithoutSpecializations disables the unrolled blocked traversals for ranks 2 and 3,
// so the rank-generic one is used instead.
func (e *Exec[TIn, TOut]) WithoutSpecializations() *Exec[TIn, TOut] {
	e.noSpecializations = true
	return e
}

// Unchecked disables the validation of the views in Call and CallChunked.
//
// The caller then guarantees that both views have the same shape and that all their elements are
// within their buffers. Otherwise, the traversal panics with an index out of range, after having
// possibly written some of the output.
func (e *Exec[TIn, TOut]) Unchecked() *Exec[TIn, TOut] {
	e.unchecked = true
	return e
}

// WithParallelism sets the number of slabs CallChunked runs in parallel.
// 0 (the default) runs them sequentially in the calling goroutine, and -1 means unlimited.
func (e *Exec[TIn, TOut]) WithParallelism(parallelism int) *Exec[TIn, TOut] {
	if parallelism == 0 {
		e.pool = nil
		return e
	}
	e.pool = workerspool.New().SetMaxParallelism(parallelism)
	return e
}

// Call applies the function to every element of in, writing the results to the corresponding elements
// of out. Both views must have the same shape. The input buffer is never written.
//
// It returns an error if the views are invalid (see ndview.View.Check) or their shapes differ,
// before any element is visited, or the first error returned by a NewWithError function.
func (e *Exec[TIn, TOut]) Call(in ndview.View[TIn], out ndview.View[TOut]) error {
	if !e.unchecked {
		if err := validate(in, out); err != nil {
			return err
		}
	}
	return e.exec(in, out)
}

// exec runs the traversal, converting callback errors back to a returned error.
func (e *Exec[TIn, TOut]) exec(in ndview.View[TIn], out ndview.View[TOut]) error {
	if !e.withError {
		e.dispatchAndLog(in, out)
		return nil
	}
	if cbErr := exceptions.TryCatch[*callbackError](func() { e.dispatchAndLog(in, out) }); cbErr != nil {
		return cbErr.err
	}
	return nil
}

func (e *Exec[TIn, TOut]) dispatchAndLog(in ndview.View[TIn], out ndview.View[TOut]) {
	p, blockSize := e.dispatch(in, out)
	if klog.V(2).Enabled() {
		n := in.Size()
		if p.isBlocked() {
			blockBytes, _ := e.bytesPerElement(in.DType)
			klog.Infof("unary: %s traversal of %v (%s elements), blocks of %d elements per axis (%s of input per block row)",
				p, in.Shape, humanize.Comma(int64(n)), blockSize, humanize.Bytes(uint64(blockSize*blockBytes)))
		} else {
			klog.Infof("unary: %s traversal of %v (%s elements)", p, in.Shape, humanize.Comma(int64(n)))
		}
	}
}

// blockSize returns the block size in elements for the given dtypes.
func (e *Exec[TIn, TOut]) blockSize(dtypeIn, dtypeOut dtypes.DType) int {
	bytesIn, okIn := e.bytesPerElement(dtypeIn)
	bytesOut, okOut := e.bytesPerElement(dtypeOut)
	if !okIn {
		bytesIn = 0
	}
	if !okOut {
		bytesOut = 0
	}
	return blockSizeForBudget(e.blockSizeBytes, bytesIn, bytesOut)
}
