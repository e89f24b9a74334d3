// Package analysis turns a trading decision and the asset's recent history
// into a deterministic behavioural critique.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"prism/internal/store"
	"prism/internal/store/model"
)

const (
	// LookbackLimit caps how many prior decisions feed the bias check.
	LookbackLimit = 5
	// recencyThreshold is the prior count that must be exceeded to flag bias.
	recencyThreshold = 2
	baseScore        = 75
	flagPenalty      = 15

	emotionalToneNeutral = "Neutral"
)

var ErrInvalidInput = errors.New("invalid decision")

// Input is a decision submitted for analysis.
type Input struct {
	Asset      string  `json:"asset"`
	Action     string  `json:"action"`
	Reasoning  string  `json:"reasoning"`
	Timeframe  string  `json:"timeframe"`
	Conviction int     `json:"conviction"`
	UserID     *uint64 `json:"user_id,omitempty"`
}

// Validate rejects decisions with a blank required field.
func (in Input) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"asset", in.Asset},
		{"action", in.Action},
		{"reasoning", in.Reasoning},
		{"timeframe", in.Timeframe},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

type Scenarios struct {
	Bull string `json:"bull"`
	Base string `json:"base"`
	Bear string `json:"bear"`
}

// Result is the critique returned to the caller.
type Result struct {
	Summary        string    `json:"summary"`
	Assumptions    []string  `json:"assumptions"`
	Biases         []string  `json:"biases"`
	Risks          []string  `json:"risks"`
	Scenarios      Scenarios `json:"scenarios"`
	Score          int       `json:"score"`
	Guidance       string    `json:"guidance"`
	Prompt         string    `json:"prompt"`
	BiasDetected   bool      `json:"bias_detected"`
	PriorDecisions int       `json:"prior_decisions"`
}

// Engine is stateless apart from its template source.
type Engine struct {
	templates TemplateSource
	now       func() time.Time
}

// NewEngine builds an engine; a nil source uses the built-in templates.
func NewEngine(src TemplateSource) *Engine {
	if src == nil {
		src = StaticTemplates(DefaultTemplates())
	}
	return &Engine{templates: src, now: time.Now}
}

// Evaluate is the pure heuristic: same input, prior count and templates
// always give the same result.
func Evaluate(in Input, priorCount int, tpl Templates) Result {
	var flags []string
	if priorCount > recencyThreshold {
		flags = append(flags, tpl.RecencyBias)
	}
	biases := flags
	if len(flags) == 0 {
		biases = []string{tpl.NeutralBias}
	}
	guidance := tpl.Guidance.Clear
	if len(flags) > 0 {
		guidance = tpl.Guidance.Biased
	}
	summary := strings.NewReplacer("{asset}", in.Asset, "{action}", in.Action).Replace(tpl.Summary)
	return Result{
		Summary:     summary,
		Assumptions: append([]string(nil), tpl.Assumptions...),
		Biases:      biases,
		Risks:       append([]string(nil), tpl.Risks...),
		Scenarios: Scenarios{
			Bull: tpl.Scenarios.Bull,
			Base: tpl.Scenarios.Base,
			Bear: tpl.Scenarios.Bear,
		},
		Score:          baseScore - flagPenalty*len(flags),
		Guidance:       guidance,
		Prompt:         tpl.Prompt,
		BiasDetected:   len(flags) > 0,
		PriorDecisions: priorCount,
	}
}

// Analyze reads the asset's recent decisions from the ledger, scores the new
// one and appends it. The caller owns the transaction behind decisions.
func (e *Engine) Analyze(ctx context.Context, decisions store.DecisionRepository, in Input) (Result, *model.DecisionModel, error) {
	if err := in.Validate(); err != nil {
		return Result{}, nil, err
	}
	if decisions == nil {
		return Result{}, nil, errors.New("decision repository is required")
	}
	prior, err := decisions.RecentByAsset(ctx, in.Asset, LookbackLimit)
	if err != nil {
		return Result{}, nil, fmt.Errorf("load prior decisions: %w", err)
	}
	result := Evaluate(in, len(prior), e.templates.Snapshot().Templates)

	row := &model.DecisionModel{
		UserID:          in.UserID,
		Asset:           in.Asset,
		Action:          in.Action,
		Reasoning:       in.Reasoning,
		Timeframe:       in.Timeframe,
		ConvictionLevel: in.Conviction,
		EmotionalTone:   emotionalToneNeutral,
		CreatedAt:       e.now().UTC(),
	}
	if err := decisions.Insert(ctx, row); err != nil {
		return Result{}, nil, fmt.Errorf("persist decision: %w", err)
	}
	return result, row, nil
}
