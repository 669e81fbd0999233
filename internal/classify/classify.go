// Package classify asks the oracle for a category for every narrative of
// every record in a batch and stores the parsed answers.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/condrater/internal/condition"
	"github.com/TobiSchelling/condrater/internal/database"
	"github.com/TobiSchelling/condrater/internal/llm"
)

// BlankReason is stored for narratives that were empty.
const BlankReason = "No description provided."

// ErrNoOracle is returned for non-blank narratives when no provider is set.
var ErrNoOracle = errors.New("no oracle available")

// Options tunes a Classifier.
type Options struct {
	Model              string
	PrimaryMaxTokens   int
	SecondaryMaxTokens int
	Concurrency        int
}

// Result holds the results of a classification run.
type Result struct {
	Processed  int
	Blank      int
	Errors     int
	ByCategory map[condition.Category]int
}

// Classifier classifies record narratives through an llm.Provider.
type Classifier struct {
	db       *database.DB
	provider llm.Provider
	opts     Options
}

// NewClassifier creates a new classifier. provider may be nil, in which
// case only blank narratives can be classified.
func NewClassifier(db *database.DB, provider llm.Provider, opts Options) *Classifier {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PrimaryMaxTokens <= 0 {
		opts.PrimaryMaxTokens = 256
	}
	if opts.SecondaryMaxTokens <= 0 {
		opts.SecondaryMaxTokens = 64
	}
	return &Classifier{db: db, provider: provider, opts: opts}
}

// Classify returns the parsed category for one narrative. Blank text is
// answered locally with NoRelevantInformation; blank reports that case.
func (c *Classifier) Classify(ctx context.Context, slot int, n database.Narrative) (resp condition.ParsedResponse, blank bool, err error) {
	if condition.IsBlank(n.Text) {
		return condition.ParsedResponse{Category: condition.NoRelevantInformation, Reason: BlankReason}, true, nil
	}
	if c.provider == nil {
		return condition.ParsedResponse{}, false, ErrNoOracle
	}

	prompt, maxTokens := PrimaryPrompt(n.Text), c.opts.PrimaryMaxTokens
	if slot > 0 {
		prompt, maxTokens = AreaPrompt(n.Name, n.Text), c.opts.SecondaryMaxTokens
	}

	reply, err := c.provider.Generate(ctx, prompt, maxTokens)
	if err != nil {
		return condition.ParsedResponse{}, false, err
	}
	return condition.Parse(reply), false, nil
}

type job struct {
	record database.Record
	slot   int
}

type outcome struct {
	job
	resp  condition.ParsedResponse
	blank bool
	err   error
}

// pending lists the unclassified slots of a batch in record order.
func (c *Classifier) pending(batchID string) ([]job, error) {
	records, err := c.db.GetRecordsForBatch(batchID)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	done, err := c.db.GetClassificationsForBatch(batchID)
	if err != nil {
		return nil, fmt.Errorf("loading classifications: %w", err)
	}

	var jobs []job
	for _, r := range records {
		have := make(map[int]bool, len(done[r.ID]))
		for _, cl := range done[r.ID] {
			have[cl.Slot] = true
		}
		for slot := 0; slot < r.Slots(); slot++ {
			if !have[slot] {
				jobs = append(jobs, job{record: r, slot: slot})
			}
		}
	}
	return jobs, nil
}

// ClassifyBatch classifies every pending slot of a batch. Oracle calls run
// on up to Options.Concurrency goroutines; results are written by the
// caller's goroutine. Failed slots stay pending for the next run.
func (c *Classifier) ClassifyBatch(ctx context.Context, batchID string) *Result {
	r := &Result{ByCategory: make(map[condition.Category]int)}

	jobs, err := c.pending(batchID)
	if err != nil {
		log.Printf("Error finding pending narratives: %v", err)
		r.Errors++
		return r
	}
	if len(jobs) == 0 {
		log.Println("No narratives pending classification")
		return r
	}
	log.Printf("Classifying %d narratives with %d worker(s)", len(jobs), c.opts.Concurrency)

	results := make(chan outcome)
	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	go func() {
		for _, j := range jobs {
			j := j
			g.Go(func() error {
				out := outcome{job: j}
				if err := ctx.Err(); err != nil {
					out.err = err
				} else {
					out.resp, out.blank, out.err = c.Classify(ctx, j.slot, j.record.Narrative(j.slot))
				}
				results <- out
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	for out := range results {
		field := out.record.Narrative(out.slot).Name
		if out.err != nil {
			log.Printf("Error classifying %s of record %s: %v", field, out.record.Key, out.err)
			r.Errors++
			continue
		}

		cl := database.Classification{
			RecordID: out.record.ID,
			Slot:     out.slot,
			Field:    field,
			Category: string(out.resp.Category),
			Reason:   out.resp.Reason,
			Blank:    out.blank,
		}
		if !out.blank && c.opts.Model != "" {
			model := c.opts.Model
			cl.Model = &model
		}
		if err := c.db.InsertClassification(cl); err != nil {
			log.Printf("Error storing %s of record %s: %v", field, out.record.Key, err)
			r.Errors++
			continue
		}

		r.Processed++
		r.ByCategory[out.resp.Category]++
		if out.blank {
			r.Blank++
		}
		log.Printf("Classified [%s] %s: %s", out.resp.Category, out.record.Key, field)
	}

	log.Printf("Classification complete: %d processed (%d blank), %d errors", r.Processed, r.Blank, r.Errors)
	return r
}
