// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

import (
	"math/bits"

	"code.hybscloud.com/atomix"
)

// nilNode marks the absence of a successor node.
const nilNode = ^uint64(0)

const (
	chunkBaseBits = 6  // first chunk holds 64 nodes
	maxChunks     = 48 // chunk sizes double; total capacity is effectively unbounded
)

// qnode is one element cell of the unbounded queue. Exactly one of the
// live chain and the free-list owns a node at any time. next holds the
// successor index in whichever list the node is on.
type qnode[T any] struct {
	val  T
	next atomix.Uint64
}

// nodeArena hands out qnodes at stable indices. Chunks double in size and
// never move, so an index published through an atomic release remains
// valid for the lifetime of the arena.
//
// Chunk creation happens under the grow lock; chunk access in at is
// lock-free. That is sound because an index only reaches another
// goroutine through a release/acquire edge (free-list head, node link,
// or end pointer) established after the chunk was fully built.
type nodeArena[T any] struct {
	grow   SpinLock
	used   uint64 // indices handed out; guarded by grow
	chunks [maxChunks][]qnode[T]
}

// locate maps a node index to its chunk and offset. Chunk c holds
// 64<<c nodes and starts at global index 64*(2^c - 1).
func (a *nodeArena[T]) locate(idx uint64) (chunk, offset uint64) {
	c := uint64(bits.Len64(idx>>chunkBaseBits+1)) - 1
	return c, idx - ((uint64(1)<<c)-1)<<chunkBaseBits
}

// at returns the node at idx. The index must have been returned by alloc.
func (a *nodeArena[T]) at(idx uint64) *qnode[T] {
	c, off := a.locate(idx)
	return &a.chunks[c][off]
}

// alloc returns the index of a fresh node with no value and no successor.
// This is the slow path of node acquisition, used only when the caller's
// free-list is empty.
func (a *nodeArena[T]) alloc() uint64 {
	a.grow.Lock()
	idx := a.used
	a.used++
	c, off := a.locate(idx)
	if a.chunks[c] == nil {
		a.chunks[c] = make([]qnode[T], uint64(1)<<(chunkBaseBits+c))
	}
	a.chunks[c][off].next.StoreRelaxed(nilNode)
	a.grow.Unlock()
	return idx
}

// allocated returns the number of indices handed out so far.
func (a *nodeArena[T]) allocated() uint64 {
	a.grow.Lock()
	n := a.used
	a.grow.Unlock()
	return n
}
