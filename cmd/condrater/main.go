package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/condrater/internal/condition"
	"github.com/TobiSchelling/condrater/internal/config"
	"github.com/TobiSchelling/condrater/internal/database"
	"github.com/TobiSchelling/condrater/internal/pipeline"
	"github.com/TobiSchelling/condrater/internal/records"
	"github.com/TobiSchelling/condrater/internal/report"
	"github.com/TobiSchelling/condrater/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "condrater",
	Short:   "Property condition ratings from broker narratives",
	Long:    "condrater classifies the condition narratives of property records with an LLM and combines them into one overall rating per record.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetFlags(log.LstdFlags)
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}

		// These work without a config file.
		switch cmd.Name() {
		case "init", "version", "verdict", "parse":
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if strings.EqualFold(cfg.Logging.Level, "DEBUG") {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(verdictCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("condrater", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/condrater/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the oracle and the spreadsheet columns.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Records:")
		fmt.Printf("  Batches: %d\n", stats.Batches)
		fmt.Printf("  Records: %d\n", stats.Records)
		fmt.Printf("  Classified narratives: %d\n", stats.Classifications)
		fmt.Printf("  Assessed: %d\n", stats.Assessed)
		fmt.Println("\nReview:")
		fmt.Printf("  Flagged: %d\n", stats.Flagged)
		fmt.Printf("  Resolved: %d\n", stats.Reviewed)
		fmt.Printf("  Open: %d\n", stats.Flagged-stats.Reviewed)

		latest, err := db.GetLatestBatchID()
		if err != nil || latest == "" {
			return err
		}
		counts, err := db.GetVerdictCounts(latest)
		if err != nil {
			return err
		}
		fmt.Printf("\nLatest batch: %s\n", database.FormatBatchDisplay(latest))
		for _, v := range condition.Verdicts {
			fmt.Printf("  %s: %d\n", v, counts[string(v)])
		}
		return nil
	},
}

// --- import command ---

var (
	batchID   string
	rowOffset int
	rowLimit  int
)

func window() records.Window {
	return records.Window{Offset: rowOffset, Limit: rowLimit}
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a CSV export of the property spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id := batchID
		if id == "" {
			id = database.MakeBatchID(database.GetToday(), args[0])
		}

		result, err := records.NewImporter(db, cfg.Input).Import(args[0], id, window())
		if err != nil {
			return err
		}

		fmt.Println("Import complete:")
		fmt.Printf("  Batch: %s\n", result.BatchID)
		fmt.Printf("  Rows read: %d\n", result.TotalRows)
		fmt.Printf("  New records: %d\n", result.NewRecords)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&batchID, "batch", "", "Batch ID (default: date and file name)")
	importCmd.Flags().IntVar(&rowOffset, "offset", 0, "Skip this many data rows")
	importCmd.Flags().IntVar(&rowLimit, "limit", 0, "Import at most this many rows (0 = all)")
}

// --- run command ---

var (
	dryRun     bool
	exportPath string
)

var runCmd = &cobra.Command{
	Use:   "run [FILE]",
	Short: "Run the full pipeline: import -> classify -> assess -> report -> export",
	Long: `Run the full pipeline. With FILE the spreadsheet is imported first;
without it the pipeline resumes the batch given by --batch, or the latest one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		opts := pipeline.RunOptions{BatchID: batchID, Window: window(), ExportPath: exportPath}
		if len(args) == 1 {
			opts.InputPath = args[0]
			if opts.BatchID == "" {
				opts.BatchID = database.MakeBatchID(database.GetToday(), args[0])
			}
		} else if opts.BatchID == "" {
			opts.BatchID, err = db.GetLatestBatchID()
			if err != nil {
				return err
			}
			if opts.BatchID == "" {
				return fmt.Errorf("no batches yet; pass a FILE to import")
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pipe := pipeline.New(cfg, db)
		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(opts)
		} else {
			result = pipe.Run(ctx, opts)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, pipeline.TotalSteps, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if result.Failed() {
			return fmt.Errorf("pipeline failed for %s", result.BatchID)
		}
		if !dryRun {
			fmt.Println("\nPipeline complete! Run 'condrater serve' to review flagged records.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().StringVar(&batchID, "batch", "", "Batch ID (default: date and file name, or the latest batch)")
	runCmd.Flags().IntVar(&rowOffset, "offset", 0, "Skip this many data rows")
	runCmd.Flags().IntVar(&rowLimit, "limit", 0, "Import at most this many rows (0 = all)")
	runCmd.Flags().StringVarP(&exportPath, "out", "o", "", "Result sheet path (default: <export_dir>/<batch>.csv)")
}

// --- export command ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the result sheet of a batch as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := resolveBatch(db)
		if err != nil {
			return err
		}
		exporter := report.NewExporter(db, cfg.Input)

		if exportPath == "-" {
			_, err := exporter.Export(id, os.Stdout)
			return err
		}
		path := exportPath
		if path == "" {
			path = filepath.Join(cfg.GetExportDir(), id+".csv")
		}
		n, err := exporter.ExportFile(id, path)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d rows to %s\n", n, path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&batchID, "batch", "", "Batch ID (default: latest)")
	exportCmd.Flags().StringVarP(&exportPath, "out", "o", "", "Output path, - for stdout (default: <export_dir>/<batch>.csv)")
}

// --- verdict / parse commands ---

var verdictCmd = &cobra.Command{
	Use:   "verdict PRIMARY [SECONDARY...]",
	Short: "Apply the aggregation policy to categories given on the command line",
	Example: `  condrater verdict positive "no relevant information" negative
  condrater verdict "Mixed Opinion" Positive ""`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		in := condition.Input{Primary: condition.Normalize(args[0])}
		for _, a := range args[1:] {
			in.Secondaries = append(in.Secondaries, condition.Normalize(a))
		}
		d := condition.Evaluate(in)
		fmt.Printf("%s (%s)\n", d.Verdict, d.Rule)
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse an oracle reply from stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading reply: %w", err)
		}
		resp := condition.Parse(string(data))
		fmt.Printf("Category: %s\nReason: %s\n", resp.Category, resp.Reason)
		return nil
	},
}

// --- review command ---

var reviewAll bool

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review flagged records",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List flagged records awaiting review",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := db.GetFlaggedRecords(batchID, !reviewAll)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Nothing to review.")
			return nil
		}

		for _, it := range items {
			fmt.Printf("[%d] %s %s (%s)\n", it.Record.ID, it.Record.Key, it.Record.Address, it.Assessment.Rule)
			for _, cl := range it.Classifications {
				fmt.Printf("      %-30s %-24s %s\n", cl.Field, cl.Category, truncate(cl.Reason, 70))
			}
			if it.Review != nil {
				fmt.Printf("      Resolved as %s\n", it.Review.Resolution)
			}
		}
		return nil
	},
}

var reviewResolveCmd = &cobra.Command{
	Use:   "resolve RECORD_ID CATEGORY [NOTE]",
	Short: "Record a reviewer's category for a flagged record",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid record ID: %s", args[0])
		}
		resolution := condition.Normalize(args[1])
		if !resolution.Known() {
			return fmt.Errorf("unknown category %q", args[1])
		}
		var note *string
		if len(args) == 3 {
			note = &args[2]
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		a, err := db.GetAssessment(id)
		if err != nil {
			return err
		}
		if a == nil || a.Verdict != string(condition.Flagged) {
			return fmt.Errorf("record %d is not flagged", id)
		}
		if err := db.UpsertReview(id, string(resolution), note); err != nil {
			return err
		}
		fmt.Printf("Record %d resolved as %s\n", id, resolution)
		return nil
	},
}

func init() {
	reviewListCmd.Flags().StringVar(&batchID, "batch", "", "Only this batch")
	reviewListCmd.Flags().BoolVar(&reviewAll, "all", false, "Include resolved records")
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewResolveCmd)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default: server.port)")
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func resolveBatch(db *database.DB) (string, error) {
	if batchID != "" {
		return batchID, nil
	}
	id, err := db.GetLatestBatchID()
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("no batches yet")
	}
	return id, nil
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "condrater.db")
	return database.Open(dbPath)
}
