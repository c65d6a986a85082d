package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/ftltrace/sim/task"
	"github.com/inference-sim/ftltrace/sim/trace"
)

var (
	inputDir       string   // Directory holding raw trace files
	inputSuffix    string   // File-name suffix selecting raw trace files
	dataDir        string   // Directory for published traces and sidecars
	scratchDir     string   // Directory for in-progress temp files
	tasksPath      string   // Task catalog YAML
	taskNames      []string // Subset of catalog tasks to run
	chunkSize      int      // Bytes per input read
	readAhead      int      // Event batches buffered between reader and simulator
	aliasName      string   // Alias file name overriding the catalog
	skipUnreadable bool     // Skip inputs that cannot be opened
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert raw trace files into binary replay traces",
	Long: "Streams every raw trace file in --input-dir, in file-name order, through a shadow " +
		"mapping table and writes one 16-byte record per accepted event. Each catalog task stops " +
		"at its record limit and is published atomically to --data-dir with a JSON sidecar. " +
		"Tasks whose output already exists are skipped.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		results, err := runConvert(ctx, convertOptions{
			inputDir:         inputDir,
			suffix:           inputSuffix,
			dataDir:          dataDir,
			scratchDir:       scratchDir,
			tasksPath:        tasksPath,
			tasksPathChanged: cmd.Flags().Changed("tasks"),
			tasks:            taskNames,
			chunkSize:        chunkSize,
			readAhead:        readAhead,
			alias:            aliasName,
			skipUnreadable:   skipUnreadable,
		})
		for _, res := range results {
			logrus.Infof("task %s: %s, %d records from %d files, max_lba=%d",
				res.Task, res.State, res.Records, res.Files, res.MaxLBA)
		}
		if err != nil {
			logrus.Fatalf("Conversion failed: %v", err)
		}
	},
}

// convertOptions mirrors the convert flags so the command body can be tested
// without going through cobra.
type convertOptions struct {
	inputDir         string
	suffix           string
	dataDir          string
	scratchDir       string
	tasksPath        string
	tasksPathChanged bool
	tasks            []string
	chunkSize        int
	readAhead        int
	alias            string
	skipUnreadable   bool
}

func runConvert(ctx context.Context, opts convertOptions) ([]task.Result, error) {
	if opts.inputDir == "" {
		return nil, fmt.Errorf("--input-dir is required")
	}
	catalog, specs, err := resolveCatalog(opts.tasksPath, opts.tasksPathChanged, opts.tasks, opts.alias)
	if err != nil {
		return nil, err
	}
	inputs, err := task.ListInputs(opts.inputDir, opts.suffix)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		logrus.Warnf("No *%s files in %s", opts.suffix, opts.inputDir)
	}
	logrus.Infof("Converting %d input files for %d tasks", len(inputs), len(specs))

	cfg := task.Config{
		DataDir:        opts.dataDir,
		ScratchDir:     opts.scratchDir,
		ChunkSize:      opts.chunkSize,
		ReadAhead:      opts.readAhead,
		SkipUnreadable: opts.skipUnreadable,
		Alias:          catalog.Alias,
	}
	if def, ok := catalog.DefaultTask(); ok {
		cfg.AliasTask = def.Name
	}
	return task.NewController(cfg).Run(ctx, specs, inputs)
}

func init() {
	convertCmd.Flags().StringVar(&inputDir, "input-dir", "", "Directory containing raw trace files (required)")
	convertCmd.Flags().StringVar(&inputSuffix, "suffix", ".revised", "File-name suffix of raw trace files")
	convertCmd.Flags().StringVar(&dataDir, "data-dir", "data", "Directory for published traces and sidecars")
	convertCmd.Flags().StringVar(&scratchDir, "scratch-dir", filepath.Join(os.TempDir(), "ftltrace"), "Directory for in-progress temp files")
	convertCmd.Flags().StringVar(&tasksPath, "tasks", defaultTasksPath, "Path to the task catalog YAML")
	convertCmd.Flags().StringArrayVar(&taskNames, "task", nil, "Run only this task (repeatable; default all)")
	convertCmd.Flags().IntVar(&chunkSize, "chunk-size", trace.DefaultChunkSize, "Bytes read from an input per chunk")
	convertCmd.Flags().IntVar(&readAhead, "read-ahead", task.DefaultReadAhead, "Event batches buffered ahead of the simulator")
	convertCmd.Flags().StringVar(&aliasName, "alias", "", "Alias file name for the default task's output (overrides the catalog)")
	convertCmd.Flags().BoolVar(&skipUnreadable, "skip-unreadable", false, "Skip input files that cannot be opened instead of failing the task")
	_ = convertCmd.MarkFlagRequired("input-dir")
}
