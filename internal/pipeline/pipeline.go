// Package pipeline drives one build of one board through the stages
// load, resolve, validate and emit. Stages run strictly in order, each at
// most once; the first failing stage moves the pipeline to FAILED and no
// artifact is produced.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/boardcfg/internal/chip"
	"github.com/mesh-intelligence/boardcfg/internal/emit"
	"github.com/mesh-intelligence/boardcfg/internal/layer"
	"github.com/mesh-intelligence/boardcfg/internal/policy"
	"github.com/mesh-intelligence/boardcfg/internal/resolve"
	"github.com/mesh-intelligence/boardcfg/internal/validate"
	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// Outcome summarises a finished run for a Recorder.
type Outcome struct {
	ID       string
	Board    string
	Chip     string
	State    State
	Layers   []string
	Format   string
	Digest   string
	Report   *types.Report
	Err      error // non-diagnostic failure, if any
	Started  time.Time
	Finished time.Time
}

// Recorder is notified once when a run reaches a terminal state.
type Recorder interface {
	Record(o Outcome) error
}

// Config configures a pipeline.
type Config struct {
	// Board names the target in the artifact. Empty falls back to the
	// resolved HW_BOARD_NAME.
	Board string

	// Chip supplies the pin range and peripheral catalog. Required for
	// validation.
	Chip *chip.Descriptor

	// Policy classifies keys. Nil selects policy.Default().
	Policy *policy.Policy

	// Emitter renders the artifact. Nil selects a header emitter.
	Emitter *emit.Emitter

	Logger   *slog.Logger
	Recorder Recorder
}

// Pipeline is a single build run. It is not safe for concurrent use; each
// build owns its own Pipeline.
type Pipeline struct {
	cfg     Config
	id      string
	logger  *slog.Logger
	started time.Time

	state    State
	stack    *types.LayerStack
	table    *types.SymbolTable
	resolved *types.ResolvedConfig
	artifact *emit.Artifact
	report   *types.Report
	err      error
}

// New returns a pipeline in state EMPTY.
func New(cfg Config) *Pipeline {
	if cfg.Policy == nil {
		cfg.Policy = policy.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := uuid.Must(uuid.NewV7()).String()
	return &Pipeline{
		cfg:     cfg,
		id:      id,
		logger:  logger.With("run", id),
		started: time.Now(),
		state:   StateEmpty,
		report:  &types.Report{},
	}
}

// ID returns the run identifier.
func (p *Pipeline) ID() string { return p.id }

// State returns the current state.
func (p *Pipeline) State() State { return p.state }

// Report returns the diagnostics and warnings collected so far.
func (p *Pipeline) Report() *types.Report { return p.report }

// Stack returns the loaded layer stack, or nil before loading.
func (p *Pipeline) Stack() *types.LayerStack { return p.stack }

// Table returns the resolved symbol table, or nil before resolution.
func (p *Pipeline) Table() *types.SymbolTable { return p.table }

// Config returns the sealed configuration, or nil before validation.
func (p *Pipeline) Config() *types.ResolvedConfig { return p.resolved }

// Artifact returns the emitted artifact, or nil unless the run reached
// EMITTED.
func (p *Pipeline) Artifact() *emit.Artifact { return p.artifact }

// Err returns the error that failed the run, or nil.
func (p *Pipeline) Err() error { return p.err }

func (p *Pipeline) enter(stage string, want State) error {
	switch {
	case p.state == StateFailed:
		return fmt.Errorf("%s: %w", stage, types.ErrPipelineFailed)
	case p.state != want:
		return fmt.Errorf("%w: %s requires %s, pipeline is %s", types.ErrInvalidTransition, stage, want, p.state)
	}
	return nil
}

func (p *Pipeline) advance(next State) {
	p.logger.Debug("pipeline transition", "from", p.state, "to", next)
	p.state = next
	if next.Terminal() {
		p.finish()
	}
}

// fail moves the pipeline to FAILED. Diagnostic errors are added to the
// report; everything else is kept as the run error.
func (p *Pipeline) fail(stage string, err error) error {
	var report *types.Report
	var diag *types.Diagnostic
	switch {
	case errors.As(err, &report):
		p.report.Merge(report)
	case errors.As(err, &diag):
		p.report.Add(*diag)
	}
	p.err = err
	p.logger.Info("pipeline stage failed", "stage", stage, "board", p.board(), "failures", len(p.report.Diagnostics), "err", err)
	p.advance(StateFailed)
	return err
}

// Load reads every source and stacks the layers in the given order,
// lowest precedence first. A parse error fails the run immediately.
func (p *Pipeline) Load(sources ...Source) error {
	if err := p.enter("load", StateEmpty); err != nil {
		return err
	}
	layers := make([]*types.Layer, 0, len(sources))
	for _, src := range sources {
		l, err := src.Load()
		if err != nil {
			return p.fail("load", err)
		}
		p.logger.Debug("layer loaded", "layer", l.Name(), "tier", l.Tier(), "source", l.Source(), "symbols", l.Len())
		layers = append(layers, l)
	}
	stack, err := layer.Stack(layers...)
	if err != nil {
		return p.fail("load", err)
	}
	p.stack = stack
	p.logger.Info("layers loaded", "board", p.board(), "layers", stack.Names())
	p.advance(StateLayersLoaded)
	return nil
}

// Resolve merges the loaded stack into a symbol table.
func (p *Pipeline) Resolve() error {
	if err := p.enter("resolve", StateLayersLoaded); err != nil {
		return err
	}
	table, err := resolve.Resolve(p.stack)
	if err != nil {
		return p.fail("resolve", err)
	}
	p.table = table
	p.logger.Info("symbols resolved", "board", p.board(), "symbols", table.Len())
	p.advance(StateResolved)
	return nil
}

// Validate checks the table and seals it into a ResolvedConfig.
func (p *Pipeline) Validate() error {
	if err := p.enter("validate", StateResolved); err != nil {
		return err
	}
	if p.cfg.Chip == nil {
		return p.fail("validate", fmt.Errorf("validate: %w: no chip descriptor", types.ErrUnknownChip))
	}
	report := validate.New(p.cfg.Chip, p.cfg.Policy).Validate(p.table)
	for _, w := range report.Warnings {
		p.logger.Debug("validation warning", "symbol", w.Symbol, "message", w.Message)
	}
	if report.Failed() {
		return p.fail("validate", report)
	}
	p.report.Merge(report)

	resolved, err := types.NewResolvedConfig(p.table, p.report, p.board(), p.cfg.Chip.Name)
	if err != nil {
		return p.fail("validate", err)
	}
	p.resolved = resolved
	p.logger.Info("configuration validated", "board", p.board(), "chip", p.cfg.Chip.Name, "warnings", len(p.report.Warnings))
	p.advance(StateValidated)
	return nil
}

// Emit renders the validated configuration.
func (p *Pipeline) Emit() (*emit.Artifact, error) {
	if err := p.enter("emit", StateValidated); err != nil {
		return nil, err
	}
	e := p.cfg.Emitter
	if e == nil {
		var err error
		if e, err = emit.New(emit.Options{}); err != nil {
			return nil, p.fail("emit", err)
		}
	}
	a, err := e.Emit(p.resolved)
	if err != nil {
		return nil, p.fail("emit", err)
	}
	p.artifact = a
	p.logger.Info("artifact emitted", "board", p.board(), "format", a.Format, "bytes", len(a.Data), "digest", a.Digest)
	p.advance(StateEmitted)
	return a, nil
}

// Check runs load, resolve and validate without emitting.
func (p *Pipeline) Check(sources ...Source) error {
	if err := p.Load(sources...); err != nil {
		return err
	}
	if err := p.Resolve(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return nil
}

// Run drives every stage and returns the artifact. On failure it returns
// the report (for configuration failures) or the underlying error.
func (p *Pipeline) Run(sources ...Source) (*emit.Artifact, error) {
	if err := p.Check(sources...); err != nil {
		return nil, err
	}
	return p.Emit()
}

// Run builds one board with a fresh pipeline.
func Run(cfg Config, sources ...Source) (*Pipeline, error) {
	p := New(cfg)
	_, err := p.Run(sources...)
	return p, err
}

func (p *Pipeline) board() string {
	if p.cfg.Board != "" {
		return p.cfg.Board
	}
	if p.table != nil {
		if s, ok := p.table.Get("HW_BOARD_NAME"); ok {
			if name, ok := s.Text(); ok {
				return name
			}
		}
	}
	return ""
}

func (p *Pipeline) outcome() Outcome {
	o := Outcome{
		ID:       p.id,
		Board:    p.board(),
		State:    p.state,
		Report:   p.report,
		Started:  p.started,
		Finished: time.Now(),
	}
	if p.cfg.Chip != nil {
		o.Chip = p.cfg.Chip.Name
	}
	if p.stack != nil {
		o.Layers = p.stack.Names()
	}
	if p.artifact != nil {
		o.Format = string(p.artifact.Format)
		o.Digest = p.artifact.Digest
	}
	if p.err != nil && !p.report.Failed() {
		o.Err = p.err
	}
	return o
}

func (p *Pipeline) finish() {
	if p.cfg.Recorder == nil {
		return
	}
	if err := p.cfg.Recorder.Record(p.outcome()); err != nil {
		p.logger.Warn("recording build outcome", "err", err)
	}
}
