package enhance

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// QualityOverride forces a treatment instead of assessing the signal.
type QualityOverride string

const (
	// OverrideNone assesses the signal and treats it according to its tier.
	OverrideNone QualityOverride = ""
	// OverrideForceLow skips assessment and runs the low-tier cascade.
	OverrideForceLow QualityOverride = "force-low"
)

// StageKind identifies a treatment step.
type StageKind string

const (
	StageHighPass StageKind = "highpass"
	StageDenoise  StageKind = "denoise"
)

// Stage is one step of a tier's treatment.
type Stage struct {
	Kind           StageKind `json:"kind"`
	CutoffHz       float64   `json:"cutoff_hz,omitempty"`
	Aggressiveness float64   `json:"aggressiveness,omitempty"`
	Stationary     bool      `json:"stationary,omitempty"`
}

func (s Stage) String() string {
	if s.Kind == StageHighPass {
		return fmt.Sprintf("highpass@%.0fHz", s.CutoffHz)
	}
	mode := "non-stationary"
	if s.Stationary {
		mode = "stationary"
	}
	return fmt.Sprintf("denoise(%.1f, %s)", s.Aggressiveness, mode)
}

// policy maps each tier to its treatment cascade.
var policy = map[Tier][]Stage{
	TierLow: {
		{Kind: StageHighPass, CutoffHz: 100},
		{Kind: StageDenoise, Aggressiveness: 0.9, Stationary: false},
		{Kind: StageDenoise, Aggressiveness: 0.3, Stationary: true},
	},
	TierMedium: {
		{Kind: StageHighPass, CutoffHz: 80},
		{Kind: StageDenoise, Aggressiveness: 0.7, Stationary: false},
	},
	TierHigh: {
		{Kind: StageDenoise, Aggressiveness: 0.5, Stationary: true},
	},
}

// Cascade returns a copy of the treatment stages applied for tier, or nil
// for an unknown tier.
func Cascade(tier Tier) []Stage {
	return slices.Clone(policy[tier])
}

// Result is the outcome of Enhance.
type Result struct {
	Signal Signal
	// Report is the zero value when assessment was skipped.
	Report   QualityReport
	Assessed bool
	Tier     Tier
	Stages   []Stage
	Elapsed  time.Duration
}

// Enhancer runs the adaptive enhancement cascade.
type Enhancer struct {
	gate     NoiseReducer
	chunked  *ChunkedReducer
	workers  int
	parallel bool
	targetDB float64
	logger   *slog.Logger
}

// Option configures an Enhancer.
type Option func(*Enhancer)

// WithWorkers sets the number of parallel noise-reduction segments. Zero
// selects DefaultWorkers.
func WithWorkers(n int) Option {
	return func(e *Enhancer) {
		if n >= 0 {
			e.workers = n
		}
	}
}

// WithParallel toggles chunked parallel noise reduction. When disabled every
// denoise stage runs on the whole signal.
func WithParallel(enabled bool) Option {
	return func(e *Enhancer) {
		e.parallel = enabled
	}
}

// WithTargetLevel sets the RMS level in dBFS applied after the cascade.
func WithTargetLevel(db float64) Option {
	return func(e *Enhancer) {
		e.targetDB = db
	}
}

// WithNoiseReducer replaces the spectral gate.
func WithNoiseReducer(r NoiseReducer) Option {
	return func(e *Enhancer) {
		if r != nil {
			e.gate = r
		}
	}
}

// NewEnhancer creates an Enhancer using DefaultSpectralGate, parallel
// processing and DefaultTargetDB unless overridden.
func NewEnhancer(logger *slog.Logger, opts ...Option) *Enhancer {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Enhancer{
		gate:     DefaultSpectralGate(),
		parallel: true,
		targetDB: DefaultTargetDB,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.chunked = NewChunkedReducer(e.gate, logger)
	return e
}

// Enhance assesses sig (unless override forces a tier), runs the tier's
// cascade and normalizes the level. The output has the same length as the
// input. Any failure is reported as ErrEnhancement wrapping the cause.
func (e *Enhancer) Enhance(ctx context.Context, sig Signal, sampleRate int, override QualityOverride) (*Result, error) {
	start := time.Now()
	res := &Result{}

	if override == OverrideForceLow {
		if err := validate(sig, sampleRate); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEnhancement, err)
		}
		res.Tier = TierLow
	} else {
		report, err := Assess(sig, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("%w: assess: %w", ErrEnhancement, err)
		}
		res.Report = report
		res.Assessed = true
		res.Tier = report.Tier
		e.logger.Info("audio quality assessed",
			slog.String("tier", string(report.Tier)),
			slog.Float64("spectral_rolloff", report.SpectralRolloff),
			slog.Float64("zero_crossing_rate", report.ZeroCrossingRate),
			slog.Float64("rms_energy", report.RMSEnergy),
		)
	}

	current := sig
	for i, stage := range policy[res.Tier] {
		out, err := e.runStage(ctx, current, sampleRate, stage)
		if err != nil {
			return nil, fmt.Errorf("%w: stage %d %s: %w", ErrEnhancement, i+1, stage, err)
		}
		current = out
		res.Stages = append(res.Stages, stage)
		e.logger.Debug("enhancement stage done",
			slog.String("tier", string(res.Tier)),
			slog.String("stage", stage.String()),
		)
	}

	res.Signal = Normalize(current, e.targetDB)
	res.Elapsed = time.Since(start)
	return res, nil
}

func (e *Enhancer) runStage(ctx context.Context, sig Signal, sampleRate int, stage Stage) (Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch stage.Kind {
	case StageHighPass:
		return HighPass(sig, sampleRate, stage.CutoffHz)
	case StageDenoise:
		if !e.parallel {
			return e.gate.Reduce(sig, sampleRate, stage.Aggressiveness, stage.Stationary)
		}
		return e.chunked.Reduce(ctx, sig, sampleRate, stage.Aggressiveness, stage.Stationary, e.workers)
	default:
		return nil, fmt.Errorf("unknown stage kind %q", stage.Kind)
	}
}
