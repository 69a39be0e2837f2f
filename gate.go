package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// analyzeFunc inspects the result artifact accumulated so far and returns
// the updated total hit count.
type analyzeFunc func(currentHits int) (int, error)

// analysisGate enforces the attempts-per-interval budget. Once the budget
// is spent it optionally runs result analysis, optionally pauses for
// operator review when new hits appeared, sleeps out the interval and
// resets the counter. The analysis step is synchronous, so a slow
// analyzer stretches the pacing interval rather than overlapping it.
type analysisGate struct {
	limit    int
	interval time.Duration
	analyze  bool
	pause    bool
	echo     bool

	analyzer analyzeFunc
	confirm  func(prompt string)
	log      *logrus.Logger
	sleep    func(time.Duration)
	now      func() time.Time
}

func newAnalysisGate(cfg Config, analyzer analyzeFunc, confirm func(string), log *logrus.Logger) *analysisGate {
	return &analysisGate{
		limit:    cfg.Attempts,
		interval: time.Duration(cfg.Interval) * time.Minute,
		analyze:  cfg.Analyze,
		pause:    cfg.Pause,
		echo:     cfg.Echo(),
		analyzer: analyzer,
		confirm:  confirm,
		log:      log,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// check is invoked once per password round, before the round runs. An
// analyzer failure aborts the run: without a valid result the pause
// decision cannot be made safely.
func (g *analysisGate) check(state *sprayState) error {
	if g.limit <= 0 || state.attempts < g.limit {
		return nil
	}

	if g.analyze {
		newTotal, err := g.analyzer(state.totalHits)
		if err != nil {
			return fmt.Errorf("result analysis failed: %w", err)
		}

		if newTotal > state.totalHits && g.pause {
			if g.echo {
				fmt.Println()
			}
			g.log.Info("Identified new potentially successful login! Pausing...")
			g.confirm("Press enter to continue")
		}
		state.totalHits = newTotal
	}

	if g.echo {
		fmt.Println()
	}
	wake := g.now().Add(g.interval)
	g.log.Infof("Sleeping until %s", wake.Format("01-02 15:04:05"))
	g.sleep(g.interval)
	g.log.Info("Resuming spray")
	if g.echo {
		fmt.Println()
	}

	state.attempts = 0
	return nil
}
