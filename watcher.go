package main

import (
	"bufio"
	"os"
	"strings"
)

// credentialSource is where a username or password list came from: either
// a literal value given on the command line or a file on disk. Only file
// sources can grow during a run; the distinction is explicit so a missing
// file and a never-was-a-file source are different cases.
type credentialSource struct {
	path   string // empty for literal sources
	values []string
}

// newLiteralSource wraps values passed directly on the command line.
func newLiteralSource(values []string) credentialSource {
	return credentialSource{values: values}
}

// newFileSource reads the initial list from a file, one entry per line.
// Blank lines are skipped; order is preserved.
func newFileSource(path string) (credentialSource, error) {
	values, err := readLines(path)
	if err != nil {
		return credentialSource{}, err
	}
	return credentialSource{path: path, values: values}, nil
}

func (s credentialSource) isFile() bool {
	return s.path != ""
}

// reload re-reads a file source and returns the entries present on disk
// but absent from current. Literal sources and unreadable files return no
// delta: an operator may delete the file mid-run, and a literal source
// never had one. The delta carries no order guarantee.
func (s credentialSource) reload(current []string) []string {
	if !s.isFile() {
		return nil
	}
	onDisk, err := readLines(s.path)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{}, len(current))
	for _, v := range current {
		seen[v] = struct{}{}
	}

	var additions []string
	for _, v := range onDisk {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			additions = append(additions, v)
		}
	}
	return additions
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
