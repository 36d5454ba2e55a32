package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vpinel/docugraph/internal/extract"
	"github.com/vpinel/docugraph/internal/ingest"
	"github.com/vpinel/docugraph/internal/jobs"
)

var (
	processConcurrency int
	processBatchSize   int
	processMaxPages    int
	processRecursive   bool
	processDryRun      bool
)

var processCmd = &cobra.Command{
	Use:   "process <path>",
	Short: "Ingest PDF and text documents from a directory",
	Long: `Process and ingest documents from a directory into the graph.

Each file is extracted, chunked, embedded, and stored under a document
node named after the file. Re-processing a file overwrites its existing
chunks, so the command is safe to re-run.

Examples:
  docugraph process ./papers
  docugraph process ./reports --concurrency 4
  docugraph process ./archive --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().IntVar(&processConcurrency, "concurrency", 2, "documents processed in parallel")
	processCmd.Flags().IntVar(&processBatchSize, "batch-size", 0, "chunks embedded per request (default from config)")
	processCmd.Flags().IntVar(&processMaxPages, "max-pages", 0, "skip documents with more pages (0 = no limit)")
	processCmd.Flags().BoolVarP(&processRecursive, "recursive", "r", true, "recursively process subdirectories")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "list files without ingesting them")
}

// progressPrinter mirrors job records to the terminal. It satisfies
// jobs.Publisher, so the CLI sees exactly what websocket clients would.
type progressPrinter struct {
	mu sync.Mutex
}

func (p *progressPrinter) Publish(_ string, rec jobs.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Printf("  [%3d%%] %-16s %s: %s\n", rec.PercentComplete, rec.Status, rec.Filename, rec.Message)
}

func runProcess(cmd *cobra.Command, args []string) error {
	path := args[0]

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path must be a directory: %s", path)
	}

	var files []string
	walkFn := func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && !processRecursive && p != path {
			return filepath.SkipDir
		}
		if !d.IsDir() && (extract.IsPDF(p) || strings.EqualFold(filepath.Ext(p), ".txt")) {
			files = append(files, p)
		}
		return nil
	}
	if err := filepath.WalkDir(path, walkFn); err != nil {
		return fmt.Errorf("scan directory: %w", err)
	}

	if len(files) == 0 {
		fmt.Println("No PDF or text files found.")
		return nil
	}
	fmt.Printf("Found %d documents\n", len(files))

	if processDryRun {
		for _, f := range files {
			fmt.Println("  " + f)
		}
		return nil
	}

	if err := initGateway(); err != nil {
		return err
	}

	batchSize := processBatchSize
	if batchSize <= 0 {
		batchSize = cfg.BatchSize
	}

	// Local runs track progress in memory; the printer takes the place of
	// the server's websocket hub.
	tracker := jobs.NewTracker(jobs.NewMemoryStore(), &progressPrinter{}, log)
	pipeline := ingest.New(tracker, graph, gateway, ingest.Options{
		BatchSize: batchSize,
		Logger:    log,
	})

	ctx := cmd.Context()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(processConcurrency)

	var mu sync.Mutex
	var stored, skipped, failed int

	for _, file := range files {
		file := file
		g.Go(func() error {
			if processMaxPages > 0 {
				pages, err := extract.PageCount(file)
				if err == nil && pages > processMaxPages {
					fmt.Printf("  SKIPPED %s: %d pages exceeds --max-pages %d\n", file, pages, processMaxPages)
					return nil
				}
			}
			res, err := pipeline.Run(ctx, uuid.NewString(), filepath.Base(file), file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				fmt.Printf("  FAILED %s: %v\n", file, err)
				return nil // keep processing the remaining files
			}
			stored += res.StoredChunks
			skipped += res.SkippedChunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("\nProcessed %d documents: %d chunks stored, %d chunks skipped, %d documents failed\n",
		len(files)-failed, stored, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d documents failed", failed)
	}
	return nil
}
