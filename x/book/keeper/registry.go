package keeper

import "sync"

// Registry hands out one OrderBook per trading pair. Pairs are
// independent: operations across different order books proceed
// independently of each other.
type Registry struct {
	mu    sync.Mutex
	books map[string]*OrderBook
}

// NewRegistry returns an empty book registry.
func NewRegistry() *Registry {
	return &Registry{books: make(map[string]*OrderBook)}
}

// Book returns (lazily creating) the order book for pair.
func (r *Registry) Book(pair string) *OrderBook {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[pair]
	if !ok {
		b = NewOrderBook(pair)
		r.books[pair] = b
	}
	return b
}
