// Package report summarizes assessed batches for reviewers and writes the
// result sheet.
package report

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/TobiSchelling/condrater/internal/condition"
	"github.com/TobiSchelling/condrater/internal/database"
)

// Composer composes batch reports from stored assessments.
type Composer struct {
	db *database.DB
}

// NewComposer creates a new report composer.
func NewComposer(db *database.DB) *Composer {
	return &Composer{db: db}
}

// ComposeReport builds and stores the markdown summary of a batch.
func (c *Composer) ComposeReport(batchID string) (*database.Report, error) {
	batch, err := c.db.GetBatch(batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, fmt.Errorf("batch %s not found", batchID)
	}

	counts, err := c.db.GetVerdictCounts(batchID)
	if err != nil {
		return nil, fmt.Errorf("counting verdicts: %w", err)
	}
	flagged, err := c.db.GetFlaggedRecords(batchID, false)
	if err != nil {
		return nil, fmt.Errorf("loading flagged records: %w", err)
	}

	body := assembleSummary(batch, counts, flagged)
	if _, err := c.db.InsertReport(batchID, body, batch.RecordCount, len(flagged)); err != nil {
		return nil, fmt.Errorf("storing report: %w", err)
	}

	report, err := c.db.GetReport(batchID)
	if err != nil {
		return nil, err
	}
	log.Printf("Report composed for %s: %d records, %d flagged", batchID, batch.RecordCount, len(flagged))
	return report, nil
}

func assembleSummary(batch *database.Batch, counts map[string]int, flagged []database.ReviewItem) string {
	var b strings.Builder

	assessed := 0
	for _, n := range counts {
		assessed += n
	}

	fmt.Fprintf(&b, "**Source:** `%s`\n\n", batch.Source)
	fmt.Fprintf(&b, "**Records:** %d assessed of %d", assessed, batch.RecordCount)
	if pending := batch.RecordCount - assessed; pending > 0 {
		fmt.Fprintf(&b, " (%d still waiting for classification)", pending)
	}
	b.WriteString("\n\n")

	b.WriteString("| Overall Condition | Records |\n|---|---:|\n")
	for _, v := range condition.Verdicts {
		fmt.Fprintf(&b, "| %s | %d |\n", v, counts[string(v)])
	}
	// Verdicts outside the known set only appear if the policy changes.
	var other []string
	for v := range counts {
		if !knownVerdict(v) {
			other = append(other, v)
		}
	}
	sort.Strings(other)
	for _, v := range other {
		fmt.Fprintf(&b, "| %s | %d |\n", v, counts[v])
	}

	b.WriteString("\n## Flagged for review\n\n")
	if len(flagged) == 0 {
		b.WriteString("No records were flagged.\n")
		return b.String()
	}

	for _, it := range flagged {
		fmt.Fprintf(&b, "### %s\n\n", recordTitle(it.Record))
		fmt.Fprintf(&b, "Rule: `%s`", it.Assessment.Rule)
		if it.Review != nil {
			fmt.Fprintf(&b, " · Resolved as **%s**", it.Review.Resolution)
		}
		b.WriteString("\n\n")
		for _, cl := range it.Classifications {
			fmt.Fprintf(&b, "- **%s:** %s. %s\n", cl.Field, cl.Category, cl.Reason)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func knownVerdict(v string) bool {
	for _, k := range condition.Verdicts {
		if string(k) == v {
			return true
		}
	}
	return false
}

func recordTitle(r database.Record) string {
	var loc []string
	for _, s := range []string{r.Address, r.City, strings.TrimSpace(r.State + " " + r.Zip)} {
		if s != "" {
			loc = append(loc, s)
		}
	}
	if len(loc) == 0 {
		return r.Key
	}
	return r.Key + ": " + strings.Join(loc, ", ")
}
