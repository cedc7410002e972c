package scraper

import "sync"

// Buffer accumulates extraction results for exactly one in-flight run. It is
// drained before ingestion and cleared on every exit path so results from
// different runs never mix. Concurrent runs must each own their own Buffer.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewBuffer returns an empty Buffer.
func NewBuffer[T any]() *Buffer[T] {
	return &Buffer[T]{}
}

// Add appends items to the buffer.
func (b *Buffer[T]) Add(items ...T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, items...)
}

// Len reports the number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Drain returns the buffered items in insertion order and empties the buffer.
func (b *Buffer[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

// Clear discards all buffered items.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
}
