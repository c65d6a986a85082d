package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/ftltrace/sim"
	"github.com/inference-sim/ftltrace/sim/trace"
)

const (
	// DefaultProgressEvery is the record interval between progress log lines.
	DefaultProgressEvery = 50_000
	// DefaultReadAhead is the number of event batches a file reader may
	// queue ahead of the simulator.
	DefaultReadAhead = 4

	batchSize       = 4096
	writeBufferSize = 1 << 20
)

// errLimitReached stops a file pipeline once the task has enough records.
var errLimitReached = errors.New("record limit reached")

// Config controls where a Controller reads and writes.
type Config struct {
	DataDir        string // final outputs and sidecars
	ScratchDir     string // in-progress temp files
	ChunkSize      int    // bytes per input read; 0 = trace.DefaultChunkSize
	ReadAhead      int    // event batches buffered between reader and simulator; 0 = unbuffered
	SkipUnreadable bool   // skip input files that cannot be opened instead of failing the task
	ProgressEvery  int64  // records between progress logs; 0 = DefaultProgressEvery
	Alias          string // file name in DataDir exposing AliasTask's output; empty = none
	AliasTask      string // task whose output Alias points at
}

// Controller runs conversion tasks one at a time.
type Controller struct {
	cfg Config
}

// NewController returns a Controller using cfg.
func NewController(cfg Config) *Controller {
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	if cfg.ReadAhead < 0 {
		cfg.ReadAhead = 0
	}
	return &Controller{cfg: cfg}
}

// OutputPath returns the final binary trace path for spec.
func (c *Controller) OutputPath(spec Spec) string {
	if filepath.IsAbs(spec.Output) {
		return spec.Output
	}
	return filepath.Join(c.cfg.DataDir, spec.Output)
}

// SidecarPath returns the sidecar metadata path for spec.
func (c *Controller) SidecarPath(spec Spec) string {
	return filepath.Join(c.cfg.DataDir, spec.Name+".json")
}

// TempPath returns the scratch file spec is written to before publishing.
func (c *Controller) TempPath(spec Spec) string {
	return filepath.Join(c.cfg.ScratchDir, spec.Name+".bin.tmp")
}

// Run executes tasks in order over inputs. A failing task does not stop later
// tasks; all failures are joined into the returned error. After the tasks,
// the alias is refreshed if AliasTask has a published output.
func (c *Controller) Run(ctx context.Context, tasks []Spec, inputs []string) ([]Result, error) {
	results := make([]Result, 0, len(tasks))
	var errs []error
	for _, spec := range tasks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := c.RunTask(ctx, spec, inputs)
		results = append(results, res)
		if err != nil {
			logrus.Errorf("task %s failed in state %s: %v", spec.Name, res.State, err)
			errs = append(errs, fmt.Errorf("task %s: %w", spec.Name, err))
		}
	}
	if err := c.refreshAlias(tasks); err != nil {
		errs = append(errs, err)
	}
	return results, errors.Join(errs...)
}

func (c *Controller) refreshAlias(tasks []Spec) error {
	if c.cfg.Alias == "" || c.cfg.AliasTask == "" {
		return nil
	}
	for _, spec := range tasks {
		if spec.Name != c.cfg.AliasTask {
			continue
		}
		target := c.OutputPath(spec)
		exists, err := fileExists(target)
		if err != nil || !exists {
			return err
		}
		alias := filepath.Join(c.cfg.DataDir, c.cfg.Alias)
		if err := LinkAlias(target, alias); err != nil {
			return fmt.Errorf("linking alias: %w", err)
		}
		logrus.Infof("[ALIAS] %s -> %s", alias, target)
		return nil
	}
	return nil
}

// run is the state of one task while its records are produced. It is owned by
// the simulator goroutine.
type run struct {
	spec          Spec
	shadow        *sim.ShadowMap
	out           *trace.RecordWriter
	count         int64
	maxLBA        uint64
	progressEvery int64
}

func (r *run) apply(ev trace.Event) error {
	rec := r.shadow.Apply(ev)
	if rec.LBA > r.maxLBA {
		r.maxLBA = rec.LBA
	}
	if err := r.out.Write(rec); err != nil {
		return err
	}
	r.count++
	if r.count%r.progressEvery == 0 {
		logrus.Debugf("[%s] %d/%d records", r.spec.Name, r.count, r.spec.Limit)
	}
	return nil
}

func (r *run) full() bool {
	return r.count >= r.spec.Limit
}

// RunTask executes a single task. If the task's output already exists the
// task is skipped without touching any file. Otherwise inputs are consumed in
// file-name order until the limit is reached; later files are not opened.
// A run with no accepted records publishes nothing.
func (c *Controller) RunTask(ctx context.Context, spec Spec, inputs []string) (Result, error) {
	res := Result{Task: spec.Name, State: StateNotStarted}
	if spec.Limit <= 0 {
		return res, fmt.Errorf("limit must be positive, got %d", spec.Limit)
	}
	output := c.OutputPath(spec)

	exists, err := fileExists(output)
	if err != nil {
		return res, err
	}
	if exists {
		res.State = StateSkippedExisting
		res.Output = output
		logrus.Infof("[CHECK] %s already exists, skipping task %s", output, spec.Name)
		if ok, _ := fileExists(c.SidecarPath(spec)); !ok {
			logrus.Warnf("task %s: %s has no sidecar %s; delete the output to regenerate both",
				spec.Name, output, c.SidecarPath(spec))
		}
		return res, nil
	}

	if err := os.MkdirAll(c.cfg.ScratchDir, 0755); err != nil {
		return res, fmt.Errorf("creating scratch dir: %w", err)
	}
	tmpPath := c.TempPath(spec)
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return res, fmt.Errorf("creating temp file: %w", err)
	}
	published := false
	defer func() {
		if !published {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	res.State = StateProcessing
	logrus.Infof("[GEN] task %s -> %s (limit %d)", spec.Name, tmpPath, spec.Limit)
	r := &run{
		spec:          spec,
		shadow:        sim.NewShadowMap(),
		out:           trace.NewRecordWriter(tmp, writeBufferSize),
		progressEvery: c.cfg.ProgressEvery,
	}
	for _, path := range sortInputs(inputs) {
		if r.full() {
			break
		}
		skipped, err := c.consumeFile(ctx, path, r)
		res.SkippedLines += skipped
		var inErr *InputError
		if errors.As(err, &inErr) && c.cfg.SkipUnreadable {
			logrus.Warnf("task %s: skipping unreadable input: %v", spec.Name, err)
			continue
		}
		if err != nil {
			return res, err
		}
		res.Files++
	}
	if err := r.out.Flush(); err != nil {
		return res, fmt.Errorf("flushing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return res, fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	res.Records, res.MaxLBA = r.count, r.maxLBA

	if r.count == 0 {
		res.State = StateDone
		logrus.Warnf("task %s accepted no records; nothing published", spec.Name)
		return res, nil
	}

	res.State = StateFinalizing
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return res, fmt.Errorf("creating output dir: %w", err)
	}
	logrus.Infof("[MOVE] %s -> %s", tmpPath, output)
	if err := moveFile(tmpPath, output); err != nil {
		return res, err
	}
	published = true
	res.Output = output

	sidecar := c.SidecarPath(spec)
	if err := WriteSidecar(sidecar, r.maxLBA); err != nil {
		return res, fmt.Errorf("writing sidecar: %w", err)
	}
	res.Sidecar = sidecar
	res.State = StateDone
	logrus.Infof("[CONF] task %s: %d records, max_lba=%d, sidecar %s", spec.Name, r.count, r.maxLBA, sidecar)
	return res, nil
}

// consumeFile streams one input file into r. A reader goroutine splits and
// parses lines and hands batches of events to the calling pipeline's
// simulator goroutine, which alone touches r, so events are applied in exact
// file order. It returns the number of lines the parser skipped.
func (c *Controller) consumeFile(ctx context.Context, path string, r *run) (int64, error) {
	in, err := OpenInput(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	parser := trace.NewParser()
	batches := make(chan []trace.Event, c.cfg.ReadAhead)
	g, gctx := errgroup.WithContext(ctx)
	var lines int64

	g.Go(func() error {
		defer close(batches)
		lr := trace.NewLineReader(in, c.cfg.ChunkSize)
		batch := make([]trace.Event, 0, batchSize)
		send := func() error {
			select {
			case batches <- batch:
				batch = make([]trace.Event, 0, batchSize)
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		for lr.Scan() {
			ev, ok := parser.Parse(lr.Text())
			if !ok {
				continue
			}
			batch = append(batch, ev)
			if len(batch) == batchSize {
				if err := send(); err != nil {
					return err
				}
			}
		}
		lines = lr.Lines()
		if err := lr.Err(); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if len(batch) > 0 {
			return send()
		}
		return nil
	})

	g.Go(func() error {
		for batch := range batches {
			for _, ev := range batch {
				if err := r.apply(ev); err != nil {
					return err
				}
				if r.full() {
					return errLimitReached
				}
			}
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, errLimitReached) {
		err = nil
	}
	accepted, skipped := parser.Stats().Total()
	logrus.Debugf("[%s] %s: %d lines, %d accepted, %d skipped, %d records total",
		r.spec.Name, filepath.Base(path), lines, accepted, skipped, r.count)
	return skipped, err
}
