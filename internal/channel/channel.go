// Package channel wraps Go channels behind small generic interfaces so
// producers and consumers can be wired without agreeing on buffering. The
// game loop publishes lifecycle events through a Sender; the callback pump
// owns the matching Receiver.
package channel

// Receiver is the consuming side.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender is the producing side.
type Sender[T any] interface {
	Send(T)
}

// Channel is both sides plus ownership of Close.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}
