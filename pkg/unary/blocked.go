// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package unary

// The walkers below implement the traversal kernels. They do no validation: the caller guarantees
// matching shapes and in-bounds views, and in Go an out-of-range index panics rather than corrupting memory.
//
// Offsets are tracked incrementally: the innermost loop adds the innermost strides, and each outer level
// adds a carry delta that accounts for the extent just consumed by the level below it.

// walk1D visits n elements with fixed steps.
func walk1D[TIn, TOut any](fn func(TIn) TOut, x []TIn, ix, dx int, y []TOut, iy, dy, n int) {
	for range n {
		y[iy] = fn(x[ix])
		ix += dx
		iy += dy
	}
}

// walkElements visits every element of a box of extents ext (in loop order, position 0 innermost),
// starting at the buffer offsets ix and iy.
//
// dx, dy and cnt are scratch space of length len(ext). All extents must be > 0.
func walkElements[TIn, TOut any](fn func(TIn) TOut, x []TIn, ix int, y []TOut, iy int,
	ext, sx, sy, dx, dy, cnt []int) {
	rank := len(ext)
	for k := 1; k < rank; k++ {
		dx[k] = sx[k] - ext[k-1]*sx[k-1]
		dy[k] = sy[k] - ext[k-1]*sy[k-1]
		cnt[k] = 0
	}
	n0, dx0, dy0 := ext[0], sx[0], sy[0]
	for {
		for range n0 {
			y[iy] = fn(x[ix])
			ix += dx0
			iy += dy0
		}
		k := 1
		for ; k < rank; k++ {
			ix += dx[k]
			iy += dy[k]
			cnt[k]++
			if cnt[k] < ext[k] {
				break
			}
			cnt[k] = 0
		}
		if k == rank {
			return
		}
	}
}

// walkBlocked visits every element described by the plan, one block at a time, for any rank >= 1.
//
// Blocks form an odometer over the loop levels, the innermost level changing fastest. Each level consumes
// its extent from the end, in chunks of min(blockSize, remaining) indices.
func walkBlocked[TIn, TOut any](fn func(TIn) TOut, x []TIn, ox int, y []TOut, oy int, p *loopPlan) {
	rank := len(p.shape)
	shape, sx, sy, bs := p.shape, p.sx, p.sy, p.blockSize
	arena := make([]int, 7*rank)
	remaining := arena[0:rank]
	ext := arena[rank : 2*rank]
	bx := arena[2*rank : 3*rank]
	by := arena[3*rank : 4*rank]
	dx := arena[4*rank : 5*rank]
	dy := arena[5*rank : 6*rank]
	cnt := arena[6*rank : 7*rank]
	copy(remaining, shape)

	// level is the outermost loop level that takes its next block; all levels below it restart.
	level := rank - 1
	for {
		for k := level; k >= 0; k-- {
			if k < level {
				remaining[k] = shape[k]
			}
			s := min(bs, remaining[k])
			remaining[k] -= s
			ext[k] = s
			px, py := ox, oy
			if k < rank-1 {
				px, py = bx[k+1], by[k+1]
			}
			bx[k] = px + remaining[k]*sx[k]
			by[k] = py + remaining[k]*sy[k]
		}
		walkElements(fn, x, bx[0], y, by[0], ext, sx, sy, dx, dy, cnt)

		level = 0
		for level < rank && remaining[level] == 0 {
			level++
		}
		if level == rank {
			return
		}
	}
}

// walkBlocked2 is walkBlocked unrolled for rank 2.
func walkBlocked2[TIn, TOut any](fn func(TIn) TOut, x []TIn, ox int, y []TOut, oy int, p *loopPlan) {
	bs := p.blockSize
	sx0, sx1 := p.sx[0], p.sx[1]
	sy0, sy1 := p.sy[0], p.sy[1]
	for j1 := p.shape[1]; j1 > 0; {
		s1 := min(bs, j1)
		j1 -= s1
		o1x, o1y := ox+j1*sx1, oy+j1*sy1
		for j0 := p.shape[0]; j0 > 0; {
			s0 := min(bs, j0)
			j0 -= s0
			ix, iy := o1x+j0*sx0, o1y+j0*sy0
			dx1, dy1 := sx1-s0*sx0, sy1-s0*sy0
			for range s1 {
				for range s0 {
					y[iy] = fn(x[ix])
					ix += sx0
					iy += sy0
				}
				ix += dx1
				iy += dy1
			}
		}
	}
}

// walkBlocked3 is walkBlocked unrolled for rank 3.
func walkBlocked3[TIn, TOut any](fn func(TIn) TOut, x []TIn, ox int, y []TOut, oy int, p *loopPlan) {
	bs := p.blockSize
	sx0, sx1, sx2 := p.sx[0], p.sx[1], p.sx[2]
	sy0, sy1, sy2 := p.sy[0], p.sy[1], p.sy[2]
	for j2 := p.shape[2]; j2 > 0; {
		s2 := min(bs, j2)
		j2 -= s2
		o2x, o2y := ox+j2*sx2, oy+j2*sy2
		for j1 := p.shape[1]; j1 > 0; {
			s1 := min(bs, j1)
			j1 -= s1
			o1x, o1y := o2x+j1*sx1, o2y+j1*sy1
			dx2, dy2 := sx2-s1*sx1, sy2-s1*sy1
			for j0 := p.shape[0]; j0 > 0; {
				s0 := min(bs, j0)
				j0 -= s0
				ix, iy := o1x+j0*sx0, o1y+j0*sy0
				dx1, dy1 := sx1-s0*sx0, sy1-s0*sy0
				for range s2 {
					for range s1 {
						for range s0 {
							y[iy] = fn(x[ix])
							ix += sx0
							iy += sy0
						}
						ix += dx1
						iy += dy1
					}
					ix += dx2
					iy += dy2
				}
			}
		}
	}
}
