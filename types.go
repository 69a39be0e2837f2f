package main

import (
	"time"
)

// Config holds the immutable configuration for a spray run. It is built
// once from the command line and never mutated afterwards.
type Config struct {
	Host     string
	Module   string
	Path     string
	Output   string
	Port     int
	Timeout  time.Duration
	Proxy    string
	Fireprox string
	Domain   string

	// Pacing
	Attempts  int // password rounds per interval, 0 = unlimited
	Interval  int // minutes to sleep once the attempt budget is spent
	JitterMin int // seconds
	JitterMax int // seconds, 0 disables jitter

	// Behavior flags
	Equal      bool
	Analyze    bool
	Pause      bool
	NoSSL      bool
	Debug      bool
	Quiet      bool
	MaxRetries int // transient retry cap, 0 = retry forever

	// Notifications
	Notify  string // slack, teams or discord
	Webhook string
}

// Echo reports whether attempt results should be printed to the screen.
func (c Config) Echo() bool {
	return !c.Debug && !c.Quiet
}

// Response is the terminal outcome of a single login attempt as observed
// by a target module. HTTP modules fill in the status code and body
// length and leave Success to the analyzer; connection-oriented modules
// (SMB, SSH) know the outcome definitively and set Success themselves.
type Response struct {
	StatusCode    int
	ContentLength int64
	Success       bool
	Message       string
}

// AttemptRecord is one (username, password, outcome) observation. Records
// are append-only: they are written to the result artifact once and never
// mutated or deleted during a run.
type AttemptRecord struct {
	Timestamp     string `json:"timestamp"`
	Module        string `json:"module"`
	Host          string `json:"host"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	StatusCode    int    `json:"response_code"`
	ContentLength int64  `json:"response_length"`
	Success       bool   `json:"success"`
	Timeout       bool   `json:"timeout"`
}

// sprayState is the mutable run state. attempts counts password rounds
// completed since the last pacing sleep and is reset to zero right after
// each sleep; totalHits carries the analyzer's running hit count across
// intervals.
type sprayState struct {
	attempts  int
	totalHits int
}
