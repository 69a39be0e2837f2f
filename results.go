package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
)

// resultWriter appends AttemptRecords to the result artifact, one JSON
// object per line, and optionally echoes a human-readable line to the
// screen. Records are flushed as they are written so a killed run keeps
// everything observed so far.
type resultWriter struct {
	path   string
	module string
	host   string
	f      *os.File
	w      *bufio.Writer
}

// newResultWriter opens the result artifact for appending. An existing
// file at the path is removed first: each run owns its artifact outright.
func newResultWriter(path, module, host string) (*resultWriter, error) {
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("removing stale output file: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening output file: %w", err)
	}
	return &resultWriter{
		path:   path,
		module: module,
		host:   host,
		f:      f,
		w:      bufio.NewWriter(f),
	}, nil
}

// Record appends one terminal outcome. resp is nil for timeouts.
func (rw *resultWriter) Record(username, password string, resp *Response, isTimeout, echo bool) error {
	rec := AttemptRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Module:    rw.module,
		Host:      rw.host,
		Username:  username,
		Password:  password,
		Timeout:   isTimeout,
	}
	if resp != nil {
		rec.StatusCode = resp.StatusCode
		rec.ContentLength = resp.ContentLength
		rec.Success = resp.Success
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := rw.w.Write(append(line, '\n')); err != nil {
		return err
	}
	if err := rw.w.Flush(); err != nil {
		return err
	}

	if echo {
		rw.echo(rec, resp)
	}
	return nil
}

func (rw *resultWriter) echo(rec AttemptRecord, resp *Response) {
	switch {
	case rec.Timeout:
		color.Yellow("%-28s %-28s %s", rec.Username, rec.Password, "TIMEOUT")
	case resp != nil && resp.Success:
		color.Green("%-28s %-28s %s", rec.Username, rec.Password, resp.Message)
	case resp != nil && resp.Message != "" && resp.StatusCode == 0:
		fmt.Printf("%-28s %-28s %s\n", rec.Username, rec.Password, resp.Message)
	default:
		fmt.Printf("%-28s %-28s %-12d %d\n", rec.Username, rec.Password, rec.StatusCode, rec.ContentLength)
	}
}

// Close flushes and closes the artifact.
func (rw *resultWriter) Close() error {
	if err := rw.w.Flush(); err != nil {
		rw.f.Close()
		return err
	}
	return rw.f.Close()
}

// readRecords loads every AttemptRecord from a result artifact. The file
// is append-only, so repeated reads only ever see more records.
func readRecords(path string) ([]AttemptRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []AttemptRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec AttemptRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("malformed record in %s: %w", path, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
