package positive

import (
	"context"

	"github.com/OCAP2/csp/pkg/channel"
)

func FireAndForget(ch *channel.Channel[int]) {
	ch.StartPush(1) // want `csplint: result of StartPush discarded`
}

func Peek(ch *channel.Channel[string]) {
	ch.StartPull() // want `csplint: result of StartPull discarded`
}

func Empty(ctx context.Context) {
	channel.Select(ctx) // want `csplint: Select without cases`
}

func Twice(ctx context.Context, ch *channel.Channel[int]) {
	op := ch.StartPull()
	channel.Select(ctx, op, op) // want `csplint: op passed to Select more than once`
}
