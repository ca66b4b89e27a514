// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package unary

const (
	// BlockSizeInBytes is the default target working set, per array, of one block: a typical cache line.
	// It is a heuristic, not detected from the hardware. Use Exec.WithBlockSizeBytes to tune it.
	BlockSizeInBytes = 64

	// BlockSizeInElements is the block size used when the byte width of the input or output elements
	// is unknown (e.g. Generic dtype): BlockSizeInBytes divided by an assumed 8-byte element.
	BlockSizeInElements = BlockSizeInBytes / assumedBytesPerElement

	// assumedBytesPerElement is the width assumed for elements of unknown size.
	assumedBytesPerElement = 8
)

// BlockSize returns the number of elements per block dimension, such that the working set of a block
// fits in BlockSizeInBytes for both the input and the output arrays.
//
// A width <= 0 means "unknown" (no fixed width), in which case it returns BlockSizeInElements.
// The result is always >= 1.
func BlockSize(bytesIn, bytesOut int) int {
	return blockSizeForBudget(BlockSizeInBytes, bytesIn, bytesOut)
}

// blockSizeForBudget is BlockSize with a configurable target budget in bytes.
func blockSizeForBudget(budget, bytesIn, bytesOut int) int {
	if bytesIn <= 0 || bytesOut <= 0 {
		return max(1, budget/assumedBytesPerElement)
	}
	return max(1, budget/max(bytesIn, bytesOut))
}
