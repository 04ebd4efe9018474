package negative

import (
	"context"

	"github.com/OCAP2/csp/pkg/channel"
)

type fake struct{}

func (fake) StartPush(int) {}

func Waited(ctx context.Context, ch *channel.Channel[int]) error {
	_, err := ch.StartPush(1).Wait(ctx)
	return err
}

func Selected(ctx context.Context, a, b *channel.Channel[int]) (int, error) {
	sel, err := channel.Select(ctx, a.StartPull(), b.StartPull())
	return sel.Index, err
}

func Spread(ctx context.Context, cases []channel.Case) {
	channel.Select(ctx, cases...)
}

func Unrelated() {
	fake{}.StartPush(1)
}

func Assigned(ch *channel.Channel[int]) *channel.Op[int] {
	op := ch.StartPush(2)
	return op
}
