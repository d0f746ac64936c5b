package scheduler

import (
	"runtime"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/swarmnet/arbiter/challenge"
	"github.com/swarmnet/arbiter/trust"
)

const (
	defaultPollInterval   = 5 * time.Minute
	defaultCollectTimeout = 30 * time.Second
	defaultSampleSize     = 256
)

//nolint:lll
type Config struct {
	PollInterval   time.Duration  `long:"poll-interval"   description:"Sleep between consecutive rounds"`
	CollectTimeout time.Duration  `long:"collect-timeout" description:"Hard deadline for collecting flight plans in a round"`
	Tier           challenge.Tier `long:"tier"            description:"Difficulty tier of issued challenges (basic, moving, orbital, expert)"`
	SampleSize     int            `long:"sample-size"     description:"Number of participants sampled per round"`
	ReplayWorkers  int            `long:"replay-workers"  description:"Concurrent replay workers (0 for GOMAXPROCS)"`
	TrustAlpha     float64        `long:"trust-alpha"     description:"EMA smoothing factor for trust updates, in (0, 1]"`
}

func DefaultConfig() Config {
	return Config{
		PollInterval:   defaultPollInterval,
		CollectTimeout: defaultCollectTimeout,
		Tier:           challenge.TierBasic,
		SampleSize:     defaultSampleSize,
		ReplayWorkers:  runtime.GOMAXPROCS(0),
		TrustAlpha:     trust.DefaultAlpha,
	}
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddDuration("poll-interval", c.PollInterval)
	enc.AddDuration("collect-timeout", c.CollectTimeout)
	enc.AddString("tier", c.Tier.String())
	enc.AddInt("sample-size", c.SampleSize)
	enc.AddInt("replay-workers", c.ReplayWorkers)
	enc.AddFloat64("trust-alpha", c.TrustAlpha)
	return nil
}
