package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sort"
	"syscall"
	"time"
)

// Target is a session bound to one authentication endpoint. Login is the
// only per-attempt call; it returns a normal Response for any outcome the
// protocol itself can express, and an error wrapping errConnectTimeout or
// errTransient for transport-level failures so the retry client can
// classify them.
type Target interface {
	Name() string
	Description() string
	Login(username, password string) (*Response, error)
}

// pathTarget is implemented by path-addressed protocols that need a URL
// path configured before first use.
type pathTarget interface {
	SetPath(path string)
}

// plainTarget is implemented by targets that default to an encrypted
// transport but can be switched to plaintext.
type plainTarget interface {
	SetPlainTransport()
}

// connTarget is implemented by connection-oriented protocols. The
// scheduler probes the connection once before the main loop and logs the
// negotiated details; an attribute the protocol or its library cannot
// surface is reported as the empty string and skipped in the log.
type connTarget interface {
	EstablishConnection() error
	Dialect() string
	Hostname() string
	Domain() string
	OS() string
}

// headerTarget is implemented by targets that print a column header line
// before attempt output.
type headerTarget interface {
	PrintHeaderBanner()
}

// targetFactory builds a target bound to one host.
type targetFactory func(host string, port int, timeout time.Duration, proxyAddr, fireprox string) (Target, error)

var targetModules = map[string]targetFactory{
	"owa":  newOWATarget,
	"o365": newO365Target,
	"ntlm": newNTLMTarget,
	"smb":  newSMBTarget,
	"ssh":  newSSHTarget,
}

// lookupTarget resolves a module name to its factory. Unknown names are an
// error so a run can never start without a bound target.
func lookupTarget(name string) (targetFactory, error) {
	factory, ok := targetModules[name]
	if !ok {
		return nil, fmt.Errorf("unrecognized target module %q (known modules: %v)", name, moduleNames())
	}
	return factory, nil
}

func moduleNames() []string {
	names := make([]string, 0, len(targetModules))
	for name := range targetModules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Transport failure classes. Targets never surface raw socket errors:
// every network-level failure is wrapped in one of these two sentinels.
var (
	// errConnectTimeout marks a timeout while establishing the
	// connection. The attempt is recorded as a timeout outcome, not
	// retried.
	errConnectTimeout = errors.New("connect timeout")

	// errTransient marks a failure expected to clear on its own:
	// connection refused or reset, read timeout, or a generic I/O
	// error. The attempt is retried after a fixed backoff.
	errTransient = errors.New("transient connection failure")
)

// classifyNetError maps a raw transport error onto the two failure
// classes. A timeout during dial is a connect timeout; everything else,
// including read timeouts and unexpected I/O errors, is transient.
func classifyNetError(err error) error {
	if err == nil {
		return nil
	}

	// The HTTP dial wrapper classifies connect-phase failures itself;
	// pass its verdict through.
	if errors.Is(err, errConnectTimeout) || errors.Is(err, errTransient) {
		return err
	}

	// Unwrap url.Error so HTTP modules classify like raw-socket ones.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" && opErr.Timeout() {
		return fmt.Errorf("%v: %w", err, errConnectTimeout)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		// Read-phase timeout, the connection itself was fine.
		return fmt.Errorf("%v: %w", err, errTransient)
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%v: %w", err, errTransient)
	}

	// Anything else at the transport layer gets the transient treatment
	// rather than killing an hours-long run.
	return fmt.Errorf("%v: %w", err, errTransient)
}
