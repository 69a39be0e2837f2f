package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// transientBackoff is the fixed sleep between retries of a transient
// connection failure.
const transientBackoff = 5 * time.Second

// loginClient performs one logical login attempt per credential pair and
// guarantees exactly one terminal outcome is recorded for it. Transient
// transport failures are retried in place; the retried sub-attempts are
// never recorded, only the eventual terminal outcome.
type loginClient struct {
	target     Target
	writer     *resultWriter
	log        *logrus.Logger
	echo       bool
	maxRetries int // 0 retries forever
	sleep      func(time.Duration)
}

func newLoginClient(target Target, writer *resultWriter, log *logrus.Logger, echo bool, maxRetries int) *loginClient {
	return &loginClient{
		target:     target,
		writer:     writer,
		log:        log,
		echo:       echo,
		maxRetries: maxRetries,
		sleep:      time.Sleep,
	}
}

// Attempt drives a single (username, password) pair to a terminal
// outcome. The retry loop is iterative so an unreachable target cannot
// grow the call stack, and it keeps going until the target answers, times
// out on connect, or the configured retry cap is hit.
func (c *loginClient) Attempt(username, password string) error {
	for tries := 0; ; tries++ {
		resp, err := c.target.Login(username, password)
		switch {
		case err == nil:
			return c.writer.Record(username, password, resp, false, c.echo)

		case errors.Is(err, errConnectTimeout):
			return c.writer.Record(username, password, nil, true, c.echo)

		case errors.Is(err, errTransient):
			if c.maxRetries > 0 && tries+1 >= c.maxRetries {
				return fmt.Errorf("giving up on %s after %d transient failures: %w", username, c.maxRetries, err)
			}
			c.log.Warnf("Connection error - sleeping for %d seconds", int(transientBackoff.Seconds()))
			if c.echo {
				fmt.Println()
				color.Yellow("Connection error - sleeping for %d seconds", int(transientBackoff.Seconds()))
			}
			c.sleep(transientBackoff)

		default:
			return err
		}
	}
}
