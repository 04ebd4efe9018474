// Package channel is a minimal copy of the exported surface the analyzer
// inspects.
package channel

import "context"

type Case interface{ arm() }

type Selected struct {
	Index int
	Value any
	Err   error
}

type Channel[T any] struct{}

type Op[T any] struct{}

func (*Op[T]) arm() {}

func (o *Op[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	return zero, nil
}

func NewUnbuffered[T any]() *Channel[T] { return &Channel[T]{} }

func (ch *Channel[T]) StartPush(v T) *Op[T] { return &Op[T]{} }

func (ch *Channel[T]) StartPull() *Op[T] { return &Op[T]{} }

func Select(ctx context.Context, cases ...Case) (Selected, error) {
	return Selected{}, nil
}
