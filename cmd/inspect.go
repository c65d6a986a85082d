package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/ftltrace/sim"
	"github.com/inference-sim/ftltrace/sim/task"
	"github.com/inference-sim/ftltrace/sim/trace"
)

var (
	inspectFile    string // Binary trace to inspect
	inspectSidecar string // Sidecar to cross-check
	inspectVerify  bool   // Replay the trace through a fresh shadow map
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize and optionally verify a binary replay trace",
	Long:  "Prints a YAML summary of a binary trace to stdout. --verify replays the trace and checks every PBA; --sidecar checks the recorded max_lba.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInspect(os.Stdout, inspectFile, inspectSidecar, inspectVerify); err != nil {
			logrus.Fatalf("Inspect failed: %v", err)
		}
	},
}

// inspectReport is the YAML document printed by inspect.
type inspectReport struct {
	File     string         `yaml:"file"`
	Summary  *trace.Summary `yaml:"summary"`
	Verified *bool          `yaml:"verified,omitempty"`
	Sidecar  string         `yaml:"sidecar,omitempty"`
}

func runInspect(out io.Writer, path, sidecarPath string, verify bool) error {
	if path == "" {
		return fmt.Errorf("--file is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening trace: %w", err)
	}
	defer func() { _ = f.Close() }()

	summary, err := trace.Summarize(f)
	if err != nil {
		return fmt.Errorf("summarizing %s: %w", path, err)
	}
	report := inspectReport{File: path, Summary: summary}

	if verify {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewinding %s: %w", path, err)
		}
		if _, err := sim.Verify(f); err != nil {
			return fmt.Errorf("verifying %s: %w", path, err)
		}
		ok := true
		report.Verified = &ok
	}

	if sidecarPath != "" {
		maxLBA, err := task.ReadSidecar(sidecarPath)
		if err != nil {
			return err
		}
		if summary.Records > 0 && maxLBA != summary.MaxLBA {
			return fmt.Errorf("sidecar %s records max_lba=%d but trace has %d", sidecarPath, maxLBA, summary.MaxLBA)
		}
		report.Sidecar = sidecarPath
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFile, "file", "", "Binary trace file (required)")
	inspectCmd.Flags().StringVar(&inspectSidecar, "sidecar", "", "Sidecar JSON whose max_lba must match the trace")
	inspectCmd.Flags().BoolVar(&inspectVerify, "verify", false, "Replay the trace and check every PBA")
	_ = inspectCmd.MarkFlagRequired("file")
}
