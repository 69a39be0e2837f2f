package main

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// jitterController draws a uniformly random delay in [min, max] seconds
// and sleeps that long, breaking up the fixed-interval request pattern an
// IDS would otherwise key on. Each draw is independent; disabled jitter
// is a zero-delay no-op.
type jitterController struct {
	min   int
	max   int
	log   *logrus.Logger
	rng   *rand.Rand
	sleep func(time.Duration)
}

func newJitterController(min, max int, log *logrus.Logger) *jitterController {
	return &jitterController{
		min:   min,
		max:   max,
		log:   log,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: time.Sleep,
	}
}

func (j *jitterController) enabled() bool {
	return j.max > 0
}

// delay draws the next jitter duration without sleeping.
func (j *jitterController) delay() time.Duration {
	if !j.enabled() {
		return 0
	}
	secs := j.min + j.rng.Intn(j.max-j.min+1)
	return time.Duration(secs) * time.Second
}

// Wait draws a delay and suspends the calling flow for it.
func (j *jitterController) Wait() {
	d := j.delay()
	if d == 0 {
		return
	}
	j.log.Debugf("Jitter sleep: %d seconds", int(d.Seconds()))
	j.sleep(d)
}
