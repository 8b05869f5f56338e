package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts wall time so lock-in and cooldown windows are testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)
