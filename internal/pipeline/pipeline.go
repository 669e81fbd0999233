package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/TobiSchelling/condrater/internal/classify"
	"github.com/TobiSchelling/condrater/internal/condition"
	"github.com/TobiSchelling/condrater/internal/config"
	"github.com/TobiSchelling/condrater/internal/database"
	"github.com/TobiSchelling/condrater/internal/llm"
	"github.com/TobiSchelling/condrater/internal/records"
	"github.com/TobiSchelling/condrater/internal/report"
)

// TotalSteps is the number of steps in a full run.
const TotalSteps = 5

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	BatchID    string
	ExportPath string
	Steps      []StepResult
}

// Failed reports whether any step failed.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// RunOptions selects what a run works on. With InputPath set the file is
// imported into BatchID first; otherwise BatchID must already exist.
type RunOptions struct {
	InputPath  string
	BatchID    string
	Window     records.Window
	ExportPath string
}

// Pipeline orchestrates import, classification, assessment and reporting.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	provider llm.Provider
}

// New creates a new pipeline with the configured oracle.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	o := cfg.Oracle
	provider := llm.CreateProvider(llm.Options{
		Provider:    o.Provider,
		Model:       o.Model,
		BaseURL:     o.BaseURL,
		OllamaURL:   o.OllamaURL,
		APIKeyEnv:   o.APIKeyEnv,
		Temperature: o.Temperature,
	})
	return NewWithProvider(cfg, db, provider)
}

// NewWithProvider creates a pipeline that uses the given oracle.
func NewWithProvider(cfg *config.Config, db *database.DB, provider llm.Provider) *Pipeline {
	return &Pipeline{cfg: cfg, db: db, provider: provider}
}

// Run executes the pipeline.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) *Result {
	r := &Result{BatchID: opts.BatchID}

	// Step 1: Import
	step := p.runImport(opts)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 2: Classify
	step = p.runClassify(ctx, opts.BatchID)
	r.Steps = append(r.Steps, step)

	// Step 3: Assess
	step = p.runAssess(opts.BatchID)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 4: Report
	step = p.runReport(opts.BatchID)
	r.Steps = append(r.Steps, step)

	// Step 5: Export
	r.ExportPath = opts.ExportPath
	if r.ExportPath == "" {
		r.ExportPath = filepath.Join(p.cfg.GetExportDir(), opts.BatchID+".csv")
	}
	step = p.runExport(opts.BatchID, r.ExportPath)
	r.Steps = append(r.Steps, step)

	return r
}

// DryRun shows what would be done without calling the oracle or writing.
func (p *Pipeline) DryRun(opts RunOptions) *Result {
	r := &Result{BatchID: opts.BatchID}

	if opts.InputPath != "" {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Import",
			Summary: fmt.Sprintf("[dry-run] Would import %s into %s", opts.InputPath, opts.BatchID),
		})
	} else {
		recs, _ := p.db.GetRecordsForBatch(opts.BatchID)
		r.Steps = append(r.Steps, StepResult{
			Name:    "Import",
			Summary: fmt.Sprintf("[dry-run] %d records already in %s", len(recs), opts.BatchID),
		})
	}

	recs, _ := p.db.GetRecordsForBatch(opts.BatchID)
	slots := 0
	for _, rec := range recs {
		slots += rec.Slots()
	}
	done, _ := p.db.CountClassifications(opts.BatchID)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Classify",
		Summary: fmt.Sprintf("[dry-run] %d narratives need classification", slots-done),
	})

	assessed, _ := p.db.GetAssessmentsForBatch(opts.BatchID)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Assess",
		Summary: fmt.Sprintf("[dry-run] %d records, %d already assessed", len(recs), len(assessed)),
	})

	rep, _ := p.db.GetReport(opts.BatchID)
	if rep != nil {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Report",
			Summary: fmt.Sprintf("[dry-run] Report already exists for %s", opts.BatchID),
		})
	} else {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Report",
			Summary: fmt.Sprintf("[dry-run] Would compose report for %s", opts.BatchID),
		})
	}

	r.Steps = append(r.Steps, StepResult{
		Name:    "Export",
		Summary: "[dry-run] Would write result sheet",
	})
	return r
}

func (p *Pipeline) runImport(opts RunOptions) StepResult {
	log.Printf("Step 1/%d: Importing records...", TotalSteps)
	if opts.BatchID == "" {
		return StepResult{Name: "Import", Err: fmt.Errorf("no batch ID")}
	}
	if opts.InputPath == "" {
		b, err := p.db.GetBatch(opts.BatchID)
		if err != nil {
			return StepResult{Name: "Import", Err: err}
		}
		if b == nil {
			return StepResult{Name: "Import", Err: fmt.Errorf("batch %s not found", opts.BatchID)}
		}
		return StepResult{
			Name:    "Import",
			Summary: fmt.Sprintf("Using existing batch %s (%d records)", b.ID, b.RecordCount),
		}
	}

	im := records.NewImporter(p.db, p.cfg.Input)
	result, err := im.Import(opts.InputPath, opts.BatchID, opts.Window)
	if err != nil {
		return StepResult{Name: "Import", Err: err}
	}
	return StepResult{
		Name:    "Import",
		Summary: fmt.Sprintf("Imported %d new records (%d rows, %d duplicates)", result.NewRecords, result.TotalRows, result.Duplicates),
	}
}

func (p *Pipeline) runClassify(ctx context.Context, batchID string) StepResult {
	log.Printf("Step 2/%d: Classifying narratives...", TotalSteps)
	o := p.cfg.Oracle
	c := classify.NewClassifier(p.db, p.provider, classify.Options{
		Model:              o.Model,
		PrimaryMaxTokens:   o.PrimaryMaxTokens,
		SecondaryMaxTokens: o.SecondaryMaxTokens,
		Concurrency:        o.Concurrency,
	})
	result := c.ClassifyBatch(ctx, batchID)
	summary := fmt.Sprintf("Classified %d narratives (%d blank), %d errors", result.Processed, result.Blank, result.Errors)
	return StepResult{Name: "Classify", Summary: summary}
}

func (p *Pipeline) runAssess(batchID string) StepResult {
	log.Printf("Step 3/%d: Assessing records...", TotalSteps)
	result, err := AssessBatch(p.db, batchID)
	if err != nil {
		return StepResult{Name: "Assess", Err: err}
	}
	summary := fmt.Sprintf("Assessed %d records (%d flagged), %d incomplete",
		result.Assessed, result.Verdicts[condition.Flagged], result.Incomplete)
	return StepResult{Name: "Assess", Summary: summary}
}

func (p *Pipeline) runReport(batchID string) StepResult {
	log.Printf("Step 4/%d: Composing report...", TotalSteps)
	rep, err := report.NewComposer(p.db).ComposeReport(batchID)
	if err != nil {
		return StepResult{Name: "Report", Err: err}
	}
	return StepResult{
		Name:    "Report",
		Summary: fmt.Sprintf("Report composed: %d records, %d flagged", rep.RecordCount, rep.FlaggedCount),
	}
}

func (p *Pipeline) runExport(batchID, path string) StepResult {
	log.Printf("Step 5/%d: Writing result sheet...", TotalSteps)
	n, err := report.NewExporter(p.db, p.cfg.Input).ExportFile(batchID, path)
	if err != nil {
		return StepResult{Name: "Export", Err: err}
	}
	return StepResult{Name: "Export", Summary: fmt.Sprintf("Wrote %d rows to %s", n, path)}
}
