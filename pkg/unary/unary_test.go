// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package unary

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/strided/pkg/core/dtypes"
	"github.com/gomlx/strided/pkg/core/layout"
	"github.com/gomlx/strided/pkg/core/ndview"
	"github.com/gomlx/strided/pkg/support/xslices"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

type namedExec[TIn, TOut any] struct {
	name string
	exec *Exec[TIn, TOut]
}

// allExecs returns Exec configurations that exercise every traversal, all expected to produce the same results.
func allExecs[TIn, TOut any](fn func(TIn) TOut) []namedExec[TIn, TOut] {
	return []namedExec[TIn, TOut]{
		{"default", New(fn)},
		{"small-blocks", New(fn).WithBlockSizeBytes(16)},
		{"blocking", New(fn).WithBlocking()},
		{"blocking-small-blocks", New(fn).WithBlocking().WithBlockSizeBytes(16)},
		{"blocking-rank-generic", New(fn).WithBlocking().WithoutSpecializations().WithBlockSizeBytes(24)},
		{"no-nested", New(fn).WithMaxNestedRank(0).WithBlockSizeBytes(32)},
		{"generic", New(fn).WithGenericFallback()},
		{"generic-by-rank", New(fn).WithMaxBlockedRank(1).WithMaxNestedRank(1)},
		{"unchecked", New(fn).Unchecked()},
	}
}

// naiveApply is the reference traversal: it addresses each element from its indices.
func naiveApply[TIn, TOut any](in ndview.View[TIn], out ndview.View[TOut], fn func(TIn) TOut) {
	for _, indices := range layout.Iter(in.Shape, layout.RowMajor) {
		out.Data[layout.Sub2Ind(out.Strides, out.Offset, indices)] = fn(in.Data[layout.Sub2Ind(in.Strides, in.Offset, indices)])
	}
}

// randomLayout returns random strides (permuted axes, gaps and signs) and offset for shape, and the
// length of a buffer that fits the view with some random padding.
// Without zero strides, no two elements share a buffer position.
func randomLayout(rng *rand.Rand, shape []int, allowZeroStrides bool) (strides []int, offset, bufferLen int) {
	strides = make([]int, len(shape))
	step := 1
	for _, axis := range rng.Perm(len(shape)) {
		if allowZeroStrides && rng.IntN(6) == 0 {
			continue
		}
		strides[axis] = step * (1 + rng.IntN(2))
		step = strides[axis] * shape[axis]
		if rng.IntN(3) == 0 {
			strides[axis] = -strides[axis]
		}
	}
	minIdx, maxIdx := layout.MinMaxIndex(shape, strides, 0)
	offset = -minIdx + rng.IntN(3)
	bufferLen = offset + maxIdx + 1 + rng.IntN(3)
	return
}

// randomViews returns a random pair of non-empty views of the same shape with rank in [minRank, maxRank].
func randomViews(rng *rand.Rand, minRank, maxRank int) (ndview.View[float64], ndview.View[float64]) {
	rank := minRank + rng.IntN(maxRank-minRank+1)
	maxDim := 9
	if rank > 3 {
		maxDim = 4
	}
	shape := make([]int, rank)
	for axis := range shape {
		shape[axis] = 1 + rng.IntN(maxDim)
	}
	orders := []layout.Order{layout.RowMajor, layout.ColumnMajor}

	strides, offset, n := randomLayout(rng, shape, true)
	in := ndview.New(xslices.Iota(0.5, n), shape, strides, offset, orders[rng.IntN(2)])
	strides, offset, n = randomLayout(rng, shape, false)
	out := ndview.New(xslices.SliceWithValue(n, -1.0), shape, strides, offset, orders[rng.IntN(2)])
	return in, out
}

// resetOutput returns a copy of the view with a fresh buffer filled with -1.
func resetOutput[T float32 | float64](v ndview.View[T]) ndview.View[T] {
	v.Data = xslices.SliceWithValue(len(v.Data), T(-1))
	return v
}

func TestConcreteExample(t *testing.T) {
	shape := []int{1, 1, 1, 3, 2}
	in := ndview.New([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, shape, []int{12, 12, 4, 4, 1}, 1, layout.RowMajor)
	out := ndview.New(make([]float64, 6), shape, []int{6, 6, 2, 2, 1}, 0, layout.RowMajor)
	want := []float64{20, 30, 60, 70, 100, 110}
	for _, ne := range allExecs(func(x float64) float64 { return x * 10.0 }) {
		out = resetOutput(out)
		require.NoError(t, ne.exec.Call(in, out), ne.name)
		assert.Equal(t, want, out.Data, ne.name)
	}
	require.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, in.Data, "input must not be modified")
}

func TestElementCount(t *testing.T) {
	shapes := [][]int{nil, {0}, {7}, {3, 0, 2}, {2, 3, 4}, {1, 1}, {5, 1, 3}, {2, 1, 3, 1, 2, 2}, {0, 0}}
	for _, shape := range shapes {
		in := ndview.Zeros[int32](layout.RowMajor, shape...)
		out := ndview.Zeros[int64](layout.ColumnMajor, shape...)
		var count int
		for _, ne := range allExecs(func(x int32) int64 { count++; return int64(x) }) {
			count = 0
			require.NoError(t, ne.exec.Call(in, out))
			assert.Equal(t, layout.Size(shape), count, "shape=%v, exec=%s", shape, ne.name)
		}
	}
}

func TestDifferential(t *testing.T) {
	rng := rand.New(rand.NewPCG(0, 42))
	fn := func(x float64) float64 { return 3*x + 1 }
	for trial := range 300 {
		in, out := randomViews(rng, 1, 6)
		want := resetOutput(out)
		naiveApply(in, want, fn)
		for _, ne := range allExecs(fn) {
			got := resetOutput(out)
			require.NoError(t, ne.exec.Call(in, got))
			require.Equal(t, want.Data, got.Data, "trial=%d, exec=%s, in=%s, out=%s", trial, ne.name, in, got)
		}
	}
}

func TestDifferentialHighRank(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 42))
	fn := func(x float64) float64 { return x - 7 }
	for trial := range 20 {
		rank := 11 + rng.IntN(2)
		shape := make([]int, rank)
		for axis := range shape {
			shape[axis] = 1 + rng.IntN(2)
		}
		strides, offset, n := randomLayout(rng, shape, true)
		in := ndview.New(xslices.Iota(0.0, n), shape, strides, offset, layout.RowMajor)
		strides, offset, n = randomLayout(rng, shape, false)
		out := ndview.New(xslices.SliceWithValue(n, -1.0), shape, strides, offset, layout.ColumnMajor)
		want := resetOutput(out)
		naiveApply(in, want, fn)
		for _, ne := range allExecs(fn) {
			got := resetOutput(out)
			require.NoError(t, ne.exec.Call(in, got))
			require.Equal(t, want.Data, got.Data, "trial=%d, exec=%s", trial, ne.name)
		}
	}
}

func TestNegativeStrides(t *testing.T) {
	for n := 1; n <= 20; n++ {
		data := xslices.Iota(0, n)
		var visited []int
		record := New(func(x int) int { visited = append(visited, x); return x })

		forward := ndview.New(data, []int{n}, []int{1}, 0, layout.RowMajor)
		require.NoError(t, record.Call(forward, ndview.Zeros[int](layout.RowMajor, n)))
		forwardVisits := visited

		visited = nil
		reversed := ndview.New(data, []int{n}, []int{-1}, n-1, layout.RowMajor)
		out := ndview.Zeros[int](layout.RowMajor, n)
		require.NoError(t, record.Call(reversed, out))
		for ii := range n {
			require.Equal(t, forwardVisits[n-1-ii], visited[ii], "n=%d", n)
		}
		for ii := range n {
			require.Equal(t, n-1-ii, out.Data[ii])
		}
	}
}

func TestScalar(t *testing.T) {
	in := ndview.New([]float32{1, 2, 3}, nil, nil, 2, layout.RowMajor)
	out := ndview.New([]float64{-1, -1}, nil, nil, 1, layout.ColumnMajor)
	for _, ne := range allExecs(func(x float32) float64 { return float64(x) / 2 }) {
		out = resetOutput(out)
		require.NoError(t, ne.exec.Call(in, out))
		assert.Equal(t, []float64{-1, 1.5}, out.Data, ne.name)
	}
}

func TestDTypes(t *testing.T) {
	t.Run("Float16", func(t *testing.T) {
		data := xslices.Map(xslices.Iota(float32(0), 12), float16.Fromfloat32)
		in := ndview.New(data, []int{3, 4}, []int{1, 3}, 0, layout.ColumnMajor)
		require.Equal(t, dtypes.Float16, in.DType)
		out := ndview.Zeros[float32](layout.RowMajor, 3, 4)
		for _, ne := range allExecs(func(x float16.Float16) float32 { return x.Float32() }) {
			out = resetOutput(out)
			require.NoError(t, ne.exec.Call(in, out))
			assert.Equal(t, []float32{0, 3, 6, 9, 1, 4, 7, 10, 2, 5, 8, 11}, out.Data, ne.name)
		}
	})

	t.Run("Generic", func(t *testing.T) {
		in := ndview.FromSlice([]any{1, "a", 2.5, true, nil, 'x'}, layout.RowMajor, 2, 3)
		require.Equal(t, dtypes.Generic, in.DType)
		// Transposed output.
		out := ndview.New(make([]string, 6), []int{2, 3}, []int{1, 2}, 0, layout.ColumnMajor)
		require.Equal(t, dtypes.Generic, out.DType)
		for _, ne := range allExecs(func(x any) string { return fmt.Sprint(x) }) {
			clear(out.Data)
			require.NoError(t, ne.exec.Call(in, out))
			assert.Equal(t, []string{"1", "true", "a", "<nil>", "2.5", "120"}, out.Data, ne.name)
		}
	})
}

func TestTraversalSelection(t *testing.T) {
	fn := func(x float64) float64 { return x }
	rowMajor := func(shape ...int) ndview.View[float64] { return ndview.Zeros[float64](layout.RowMajor, shape...) }
	colMajor := func(shape ...int) ndview.View[float64] { return ndview.Zeros[float64](layout.ColumnMajor, shape...) }
	reversed := func(shape ...int) ndview.View[float64] {
		v := rowMajor(shape...)
		for axis := range v.Strides {
			v.Offset += v.Strides[axis] * (shape[axis] - 1)
			v.Strides[axis] = -v.Strides[axis]
		}
		return v
	}
	// Every other element along the last axis.
	spaced := func(shape ...int) ndview.View[float64] {
		v := rowMajor(shape...)
		v.Data = make([]float64, 2*len(v.Data))
		for axis := range v.Strides {
			v.Strides[axis] *= 2
		}
		return v
	}
	// Mixed signs.
	mixed := func(shape ...int) ndview.View[float64] {
		v := rowMajor(shape...)
		last := len(shape) - 1
		v.Offset += shape[last] - 1
		v.Strides[last] = -1
		return v
	}
	twos := func(rank int) []int { return xslices.SliceWithValue(rank, 2) }

	testCases := []struct {
		name    string
		exec    *Exec[float64, float64]
		in, out ndview.View[float64]
		want    traversal
	}{
		{"scalar", New(fn), rowMajor(), rowMajor(), traversalScalar},
		{"empty", New(fn), rowMajor(2, 0), colMajor(2, 0), traversalEmpty},
		{"squeezed-scalar", New(fn), rowMajor(1, 1, 1), colMajor(1, 1, 1), traversalScalar},
		{"1d", New(fn), rowMajor(5, 1), colMajor(5, 1), traversal1D},
		{"flat", New(fn), rowMajor(3, 4), rowMajor(3, 4), traversalFlat},
		{"flat-reversed", New(fn), reversed(3, 4), rowMajor(3, 4), traversalFlat},
		{"flat-column-major", New(fn), colMajor(2, 3, 4), colMajor(2, 3, 4), traversalFlat},
		{"nested", New(fn), rowMajor(3, 4), spaced(3, 4), traversalNested},
		{"blocked-2d-orders", New(fn), colMajor(3, 4), rowMajor(3, 4), traversalBlocked2D},
		{"blocked-2d-mixed-signs", New(fn), mixed(3, 4), rowMajor(3, 4), traversalBlocked2D},
		{"blocked-3d", New(fn), colMajor(3, 4, 5), rowMajor(3, 4, 5), traversalBlocked3D},
		{"blocked-3d-unspecialized", New(fn).WithoutSpecializations(), colMajor(3, 4, 5), rowMajor(3, 4, 5), traversalBlocked},
		{"blocked-4d", New(fn), colMajor(2, 3, 4, 5), rowMajor(2, 3, 4, 5), traversalBlocked},
		{"blocked-forced", New(fn).WithBlocking(), rowMajor(3, 4), rowMajor(3, 4), traversalBlocked2D},
		{"blocked-no-nested", New(fn).WithMaxNestedRank(2), rowMajor(3, 4, 5), spaced(3, 4, 5), traversalBlocked3D},
		{"generic-forced", New(fn).WithGenericFallback(), rowMajor(3, 4), rowMajor(3, 4), traversalGeneric},
		{"generic-high-rank", New(fn), colMajor(twos(11)...), rowMajor(twos(11)...), traversalGeneric},
		{"generic-high-rank-nested", New(fn), rowMajor(twos(11)...), spaced(twos(11)...), traversalGeneric},
		{"nested-high-rank", New(fn).WithMaxNestedRank(11), rowMajor(twos(11)...), spaced(twos(11)...), traversalNested},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, validate(tc.in, tc.out))
			got, _ := tc.exec.dispatch(tc.in, tc.out)
			assert.Equal(t, tc.want, got, "got %s traversal, wanted %s", got, tc.want)
		})
	}
}

func TestFlatReversedValues(t *testing.T) {
	in := ndview.New(xslices.Iota(0.0, 6), []int{2, 3}, []int{-3, -1}, 5, layout.RowMajor)
	out := ndview.Zeros[float64](layout.RowMajor, 2, 3)
	require.NoError(t, Apply(in, out, func(x float64) float64 { return x }))
	assert.Equal(t, []float64{5, 4, 3, 2, 1, 0}, out.Data)
}

func TestCallbackPanic(t *testing.T) {
	in := ndview.FromSlice(xslices.Iota(0, 10), layout.RowMajor, 2, 5)
	out := ndview.Zeros[int](layout.ColumnMajor, 2, 5)
	for _, ne := range allExecs(func(x int) int {
		if x == 3 {
			panic("three")
		}
		return x
	}) {
		require.PanicsWithValue(t, "three", func() { _ = ne.exec.Call(in, out) }, ne.name)
	}

	// Panics other than errors are not caught by NewWithError either.
	e := NewWithError(func(x int) (int, error) {
		if x == 3 {
			panic("three")
		}
		return x, nil
	})
	require.PanicsWithValue(t, "three", func() { _ = e.Call(in, out) })
}

func TestNewWithError(t *testing.T) {
	errFive := errors.New("five is not allowed")
	e := NewWithError(func(x int) (int, error) {
		if x == 5 {
			return 0, errFive
		}
		return 2 * x, nil
	})
	in := ndview.FromSlice(xslices.Iota(0, 8), layout.RowMajor, 8)
	out := ndview.Full(-1, layout.RowMajor, 8)
	err := e.Call(in, out)
	require.ErrorIs(t, err, errFive)
	assert.Same(t, errFive, err)
	assert.Equal(t, []int{0, 2, 4, 6, 8, -1, -1, -1}, out.Data)

	// Without errors it behaves like New.
	in = ndview.FromSlice(xslices.Iota(10, 6), layout.RowMajor, 2, 3)
	out = ndview.Zeros[int](layout.ColumnMajor, 2, 3)
	require.NoError(t, e.Call(in, out))
	assert.Equal(t, []int{20, 26, 22, 28, 24, 30}, out.Data)

	// Nil functions.
	require.Panics(t, func() { _ = New[int, int](nil) })
	require.Panics(t, func() { _ = NewWithError[int, int](nil) })
}

func TestValidation(t *testing.T) {
	e := New(func(x float32) float32 { return x })
	data := make([]float32, 12)
	good := ndview.FromSlice(data, layout.RowMajor, 3, 4)

	testCases := []struct {
		name    string
		in, out ndview.View[float32]
		errMsg  string
	}{
		{"rank", good, ndview.FromSlice(data, layout.RowMajor, 12), "rank"},
		{"shape", good, ndview.FromSlice(data, layout.RowMajor, 4, 3), "doesn't match output shape"},
		{"out-of-bounds-input", ndview.New(data, []int{4, 4}, []int{4, 1}, 0, layout.RowMajor),
			ndview.Zeros[float32](layout.RowMajor, 4, 4), "invalid input"},
		{"out-of-bounds-output", good, ndview.New(data, []int{3, 4}, []int{4, 1}, 1, layout.RowMajor), "invalid output"},
		{"negative-offset", ndview.New(data, []int{3, 4}, []int{-4, 1}, -1, layout.RowMajor), good, "negative offset"},
		{"negative-dim", ndview.New(data, []int{-3, 4}, []int{4, 1}, 0, layout.RowMajor),
			ndview.New(data, []int{-3, 4}, []int{4, 1}, 0, layout.RowMajor), "negative dimension"},
		{"strides-length", good, ndview.View[float32]{Data: data, Shape: []int{3, 4}, Strides: []int{1}}, "strides has length"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var count int
			counting := New(func(x float32) float32 { count++; return x })
			require.ErrorContains(t, counting.Call(tc.in, tc.out), tc.errMsg)
			assert.Zero(t, count, "no elements should be visited on invalid arguments")
			require.Error(t, e.Call(tc.in, tc.out))
		})
	}

	// Unchecked: out-of-range accesses panic.
	outOfBounds := ndview.New(data, []int{4, 4}, []int{4, 1}, 0, layout.RowMajor)
	require.Panics(t, func() {
		_ = e.Unchecked().Call(outOfBounds, ndview.Zeros[float32](layout.RowMajor, 4, 4))
	})
}

func TestInPlace(t *testing.T) {
	// Input and output are the same view: each element is read once before it is written.
	data := xslices.Iota(1.0, 24)
	v := ndview.New(data, []int{2, 3, 4}, []int{1, 8, 2}, 0, layout.ColumnMajor)
	for _, ne := range allExecs(func(x float64) float64 { return -x }) {
		require.NoError(t, ne.exec.Call(v, v))
	}
	// An odd number of negations.
	want := xslices.Map(xslices.Iota(1.0, 24), func(x float64) float64 { return -x })
	assert.Equal(t, want, data)
}
