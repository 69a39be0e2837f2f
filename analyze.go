package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
)

// analyzer inspects the result artifact and decides which attempts look
// like successful logins. Connection-oriented modules record a definitive
// success flag; HTTP modules are judged by response-length deviation,
// since a successful form or token login answers with a page unlike the
// failure baseline.
type analyzer struct {
	resultsFile string
	notify      string
	webhook     string
	host        string
	log         *logrus.Logger
	echo        bool
}

func newAnalyzer(cfg Config, resultsFile string, log *logrus.Logger) *analyzer {
	return &analyzer{
		resultsFile: resultsFile,
		notify:      cfg.Notify,
		webhook:     cfg.Webhook,
		host:        cfg.Host,
		log:         log,
		echo:        cfg.Echo(),
	}
}

// Analyze re-reads the whole artifact and returns the updated total hit
// count. Safe to call repeatedly against the growing file. When the total
// grows and a notification channel is configured, a webhook message goes
// out; delivery failure is logged but does not fail the analysis.
func (a *analyzer) Analyze(currentHits int) (int, error) {
	records, err := readRecords(a.resultsFile)
	if err != nil {
		return 0, fmt.Errorf("reading results: %w", err)
	}

	hits := findHits(records)
	a.log.Infof("Analysis found %d potentially successful logins across %d attempts", len(hits), len(records))

	if a.echo && len(hits) > 0 {
		printHitTable(hits)
	}

	if len(hits) > currentHits && a.notify != "" {
		if err := sendNotification(a.notify, a.webhook, a.host); err != nil {
			a.log.Warnf("Failed to deliver notification: %v", err)
		}
	}
	return len(hits), nil
}

// findHits classifies the recorded attempts. Timeouts never count.
// Explicit successes always count. For HTTP-style records the most common
// response length is the failure baseline and anything off-baseline is a
// potential hit; a single distinct length means nothing stood out.
func findHits(records []AttemptRecord) []AttemptRecord {
	var hits []AttemptRecord
	var httpRecords []AttemptRecord

	for _, rec := range records {
		switch {
		case rec.Timeout:
		case rec.Success:
			hits = append(hits, rec)
		case rec.StatusCode > 0:
			httpRecords = append(httpRecords, rec)
		}
	}

	counts := make(map[int64]int)
	for _, rec := range httpRecords {
		counts[rec.ContentLength]++
	}
	if len(counts) < 2 {
		return hits
	}

	baseline, best := int64(0), 0
	for length, n := range counts {
		if n > best {
			baseline, best = length, n
		}
	}
	for _, rec := range httpRecords {
		if rec.ContentLength != baseline {
			hits = append(hits, rec)
		}
	}
	return hits
}

func printHitTable(hits []AttemptRecord) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Username", "Password", "Code", "Length", "Timestamp"})
	for _, hit := range hits {
		table.Append([]string{
			hit.Username,
			hit.Password,
			strconv.Itoa(hit.StatusCode),
			strconv.FormatInt(hit.ContentLength, 10),
			hit.Timestamp,
		})
	}
	table.Render()
}
