package guestmem

import (
	"sync"
	"sync/atomic"
)

// defaultBuckets covers typical script payloads, from short strings to
// small JSON documents.
var defaultBuckets = []int{256, 1024, 4096, 16384, 65536}

// PoolStats is a snapshot of BufferPool counters.
type PoolStats struct {
	Gets      int64
	Hits      int64
	Misses    int64
	Oversized int64
}

// HitRate is the percentage of Gets served by a reused buffer.
func (s PoolStats) HitRate() float64 {
	if s.Gets == 0 {
		return 0
	}

	return float64(s.Hits) / float64(s.Gets) * 100
}

// BufferPool keeps input buffers between calls, bucketed by capacity.
// Requests larger than the biggest bucket are allocated directly and never pooled.
type BufferPool struct {
	buckets []int
	pools   []sync.Pool

	gets      atomic.Int64
	misses    atomic.Int64
	oversized atomic.Int64
}

// NewBufferPool returns a pool with the given bucket capacities in ascending
// order. No buckets selects the defaults.
func NewBufferPool(buckets ...int) *BufferPool {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	bp := &BufferPool{
		buckets: append([]int(nil), buckets...),
		pools:   make([]sync.Pool, len(buckets)),
	}
	for i, size := range bp.buckets {
		bp.pools[i].New = func() any {
			bp.misses.Add(1)
			buf := make([]byte, 0, size)

			return &buf
		}
	}

	return bp
}

// bucket returns the index of the smallest bucket holding size, or -1.
func (bp *BufferPool) bucket(size int) int {
	for i, b := range bp.buckets {
		if b >= size {
			return i
		}
	}

	return -1
}

// Get returns a zeroed buffer of length size.
func (bp *BufferPool) Get(size int) []byte {
	bp.gets.Add(1)

	i := bp.bucket(size)
	if i < 0 {
		bp.oversized.Add(1)
		bp.misses.Add(1)

		return make([]byte, size)
	}

	buf, _ := bp.pools[i].Get().(*[]byte)

	return (*buf)[:size]
}

// Put hands buf back for reuse. Buffers not cut from a bucket are dropped.
func (bp *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}

	i := bp.bucket(cap(buf))
	if i < 0 || bp.buckets[i] != cap(buf) {
		return
	}

	buf = buf[:cap(buf)]
	clear(buf)
	buf = buf[:0]
	bp.pools[i].Put(&buf)
}

// Stats returns the current counters.
func (bp *BufferPool) Stats() PoolStats {
	gets := bp.gets.Load()
	misses := bp.misses.Load()

	return PoolStats{
		Gets:      gets,
		Hits:      gets - misses,
		Misses:    misses,
		Oversized: bp.oversized.Load(),
	}
}
