package metrics

import (
	"go.uber.org/fx"

	"github.com/Raikerian/go-audio-captcha/internal/captcha"
)

// Module provides the process-wide collector.
var Module = fx.Module("metrics",
	fx.Provide(NewCollector),
)

// TrackSession attaches the collector to the process session for the app's
// lifetime.
var TrackSession = fx.Invoke(func(lc fx.Lifecycle, c *Collector, s *captcha.Session) {
	unsubscribe := c.Track(s)
	lc.Append(fx.StopHook(unsubscribe))
})
