package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/akamensky/argparse"
	"github.com/fatih/color"
)

// defaultPorts maps each module to the port its protocol usually listens
// on, used when --port is not given.
var defaultPorts = map[string]int{
	"owa":  443,
	"o365": 443,
	"ntlm": 443,
	"smb":  445,
	"ssh":  22,
}

func main() {
	parser := argparse.NewParser("spraycharles", "Low and slow password spraying with lockout-aware pacing")

	userArg := parser.String("u", "users", &argparse.Options{
		Help: "Usernames to spray (comma-separated). Example: 'alice,bob'",
	})
	userFileArg := parser.String("U", "userfile", &argparse.Options{
		Help: "File of usernames, one per line. Grows live: append mid-run to add users",
	})
	passArg := parser.String("p", "passwords", &argparse.Options{
		Help: "Passwords to spray (comma-separated)",
	})
	passFileArg := parser.String("P", "passfile", &argparse.Options{
		Help: "File of passwords, one per line. Grows live: append mid-run to add passwords",
	})
	hostArg := parser.String("H", "host", &argparse.Options{
		Required: true,
		Help:     "Target host",
	})
	moduleArg := parser.String("m", "module", &argparse.Options{
		Required: true,
		Help:     fmt.Sprintf("Target module. One of: %s", strings.Join(moduleNames(), ", ")),
	})
	pathArg := parser.String("", "path", &argparse.Options{
		Help: "Endpoint path for path-addressed modules (ntlm)",
	})
	outputArg := parser.String("o", "output", &argparse.Options{
		Help: "Result artifact path (default: ~/.spraycharles/out/<host>_<timestamp>.json)",
	})
	attemptsArg := parser.Int("a", "attempts", &argparse.Options{
		Help: "Password rounds per interval before sleeping (0 = no pacing)",
	})
	intervalArg := parser.Int("i", "interval", &argparse.Options{
		Default: 30,
		Help:    "Minutes to sleep once the attempt budget is spent",
	})
	equalArg := parser.Flag("e", "equal", &argparse.Options{
		Help: "Pre-pass attempting each username as its own password",
	})
	timeoutArg := parser.Int("t", "timeout", &argparse.Options{
		Default: 5,
		Help:    "Request timeout in seconds",
	})
	portArg := parser.Int("", "port", &argparse.Options{
		Help: "Target port (default depends on module)",
	})
	proxyArg := parser.String("", "proxy", &argparse.Options{
		Help: "SOCKS5 proxy as host:port",
	})
	fireproxArg := parser.String("f", "fireprox", &argparse.Options{
		Help: "Relay URL to send HTTP module requests through",
	})
	domainArg := parser.String("d", "domain", &argparse.Options{
		Help: "Domain to prepend to usernames as DOMAIN\\username",
	})
	analyzeArg := parser.Flag("", "analyze", &argparse.Options{
		Help: "Run result analysis at each pacing interval",
	})
	jitterArg := parser.Int("j", "jitter", &argparse.Options{
		Help: "Maximum jitter between attempts in seconds (0 disables)",
	})
	jitterMinArg := parser.Int("", "jitter-min", &argparse.Options{
		Help: "Minimum jitter between attempts in seconds",
	})
	notifyArg := parser.Selector("n", "notify", []string{"slack", "teams", "discord"}, &argparse.Options{
		Help: "Notification channel for new hits",
	})
	webhookArg := parser.String("w", "webhook", &argparse.Options{
		Help: "Webhook URL for the notification channel",
	})
	pauseArg := parser.Flag("", "pause", &argparse.Options{
		Help: "Pause for confirmation when analysis finds a new hit (implies --analyze)",
	})
	noSSLArg := parser.Flag("", "no-ssl", &argparse.Options{
		Help: "Use plaintext HTTP instead of HTTPS",
	})
	maxRetriesArg := parser.Int("", "max-retries", &argparse.Options{
		Help: "Cap on transient-failure retries per attempt (0 = retry forever)",
	})
	debugArg := parser.Flag("", "debug", &argparse.Options{
		Help: "Verbose logging, no attempt echo",
	})
	quietArg := parser.Flag("q", "quiet", &argparse.Options{
		Help: "Suppress attempt echo",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Println("Error:", err)
		fmt.Println()
		parser.Help(os.Stdout)
		os.Exit(1)
	}

	users, err := buildSource(*userArg, *userFileArg, "username")
	if err != nil {
		fatal(err)
	}
	passwords, err := buildSource(*passArg, *passFileArg, "password")
	if err != nil {
		fatal(err)
	}

	port := *portArg
	if port == 0 {
		port = defaultPorts[*moduleArg]
	}

	cfg := Config{
		Host:       *hostArg,
		Module:     *moduleArg,
		Path:       *pathArg,
		Output:     *outputArg,
		Port:       port,
		Timeout:    time.Duration(*timeoutArg) * time.Second,
		Proxy:      *proxyArg,
		Fireprox:   *fireproxArg,
		Domain:     *domainArg,
		Attempts:   *attemptsArg,
		Interval:   *intervalArg,
		JitterMin:  *jitterMinArg,
		JitterMax:  *jitterArg,
		Equal:      *equalArg,
		Analyze:    *analyzeArg || *pauseArg,
		Pause:      *pauseArg,
		NoSSL:      *noSSLArg,
		Debug:      *debugArg,
		Quiet:      *quietArg,
		MaxRetries: *maxRetriesArg,
		Notify:     *notifyArg,
		Webhook:    *webhookArg,
	}

	if err := validate(cfg); err != nil {
		fatal(err)
	}

	spray, err := NewSpraycharles(cfg, users, passwords)
	if err != nil {
		fatal(err)
	}
	defer spray.Close()

	if err := spray.Run(); err != nil {
		fatal(err)
	}
}

// buildSource resolves the literal-vs-file choice for one credential
// list. Exactly one of the two flags must be given.
func buildSource(literal, file, kind string) (credentialSource, error) {
	switch {
	case literal != "" && file != "":
		return credentialSource{}, fmt.Errorf("give either a %s list or a %s file, not both", kind, kind)
	case file != "":
		src, err := newFileSource(file)
		if err != nil {
			return credentialSource{}, fmt.Errorf("reading %s file: %w", kind, err)
		}
		if len(src.values) == 0 {
			return credentialSource{}, fmt.Errorf("%s file %s is empty", kind, file)
		}
		return src, nil
	case literal != "":
		return newLiteralSource(strings.Split(literal, ",")), nil
	default:
		return credentialSource{}, fmt.Errorf("a %s list or %s file is required", kind, kind)
	}
}

func validate(cfg Config) error {
	if cfg.JitterMax > 0 && cfg.JitterMin > cfg.JitterMax {
		return fmt.Errorf("jitter-min (%d) exceeds jitter (%d)", cfg.JitterMin, cfg.JitterMax)
	}
	if cfg.Notify != "" && cfg.Webhook == "" {
		return fmt.Errorf("--notify requires --webhook")
	}
	if cfg.Attempts > 0 && cfg.Interval <= 0 {
		return fmt.Errorf("--attempts requires a positive --interval")
	}
	return nil
}

func fatal(err error) {
	color.Red("Error: %v", err)
	os.Exit(1)
}
