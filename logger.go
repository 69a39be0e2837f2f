package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// workDirs creates the working directory layout under the user's home and
// returns the logs and out directories.
func workDirs() (logsDir, outDir string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", err
	}
	base := filepath.Join(home, ".spraycharles")
	logsDir = filepath.Join(base, "logs")
	outDir = filepath.Join(base, "out")
	for _, dir := range []string{base, logsDir, outDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", "", err
		}
	}
	return logsDir, outDir, nil
}

// logfileFormatter renders entries as "<UTC timestamp> - <LEVEL> - <message>".
type logfileFormatter struct{}

func (f *logfileFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := entry.Time.UTC().Format("2006-01-02 15:04:05")
	level := strings.ToUpper(entry.Level.String())
	return []byte(fmt.Sprintf("%s - %s - %s\n", ts, level, entry.Message)), nil
}

// newRunLogger builds the per-run file logger. One logger instance is
// constructed per run and handed to the scheduler; nothing mutates global
// logging state. The logfile never receives passwords.
func newRunLogger(path string, debug bool) (*logrus.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logfile: %w", err)
	}

	log := logrus.New()
	log.SetOutput(f)
	log.SetFormatter(&logfileFormatter{})
	if debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log, f, nil
}

// logName builds the per-run logfile path for a host.
func logName(logsDir, host string) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s_%d.log", host, time.Now().Unix()))
}

// defaultOutput builds the default result artifact path for a host.
func defaultOutput(outDir, host string) string {
	ts := time.Now().UTC().Format("20060102-150405")
	return filepath.Join(outDir, fmt.Sprintf("%s_%s.json", host, ts))
}
