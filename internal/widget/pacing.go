package widget

import (
	"context"
	"time"
)

// Pacing holds the cosmetic delays around a webhook call.
type Pacing struct {
	// TypingDelay passes between rendering the user message and showing the indicator.
	TypingDelay time.Duration
	// ReplyDelay passes between the webhook answer and rendering it.
	ReplyDelay time.Duration
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultPacing() Pacing {
	return Pacing{
		TypingDelay: 300 * time.Millisecond,
		ReplyDelay:  800 * time.Millisecond,
		Sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
