package channel

// Buffered decouples sender and receiver up to a fixed capacity. Send blocks
// once the buffer fills, so capacity has to cover the largest burst a single
// tick can produce.
type Buffered[T any] struct {
	ch chan T
}

// NewBuffered returns a Buffered with room for size values.
func NewBuffered[T any](size int) *Buffered[T] {
	return &Buffered[T]{ch: make(chan T, size)}
}

func (b *Buffered[T]) Send(v T) {
	b.ch <- v
}

func (b *Buffered[T]) Receive() <-chan T {
	return b.ch
}

// Len reports how many values sit in the buffer right now.
func (b *Buffered[T]) Len() int {
	return len(b.ch)
}

func (b *Buffered[T]) Close() {
	close(b.ch)
}
