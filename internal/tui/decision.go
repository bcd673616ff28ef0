// Package tui implements the operator dashboard's decision layer and
// preference persistence: the Bayesian frame-diff strategy that chooses
// how to re-render each frame, and the debounced layout/accessibility
// settings store behind it. The strategy is kept independent of any
// terminal library so it is unit-testable without a tty; the bubbletea
// screen model in model.go is the thin rendering shell on top of it.
//
// Grounded on
// _examples/original_source/crates/mcp-agent-mail-server/src/tui_decision.rs
// for the exact loss matrix, likelihood thresholds, and the
// Degraded-state fallback reversal noted in spec.md §9.
package tui

import "github.com/agentmail/bus/internal/types"

// ScreenState is the coarse classification of what the terminal is doing
// this frame, used as the latent variable in the Bayesian posterior.
type ScreenState int

const (
	StateStable ScreenState = iota
	StateBursty
	StateResize
	StateDegraded
)

var allStates = []ScreenState{StateStable, StateBursty, StateResize, StateDegraded}

func (s ScreenState) String() string {
	switch s {
	case StateStable:
		return "stable"
	case StateBursty:
		return "bursty"
	case StateResize:
		return "resize"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// RenderAction is the render strategy chosen for a frame.
type RenderAction int

const (
	ActionIncremental RenderAction = iota
	ActionFull
	ActionDeferred
)

func (a RenderAction) String() string {
	switch a {
	case ActionIncremental:
		return "incremental"
	case ActionFull:
		return "full"
	case ActionDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// lossMatrix[state][action] is the expected-loss table from spec.md §4.9.
// Lower is better. Rows: Stable, Bursty, Resize, Degraded.
// Columns: Incremental, Full, Deferred.
var lossMatrix = [4][3]float64{
	{1, 8, 20},  // Stable
	{12, 3, 5},  // Bursty
	{15, 2, 10}, // Resize
	{10, 3, 15}, // Degraded
}

// FrameState is the raw per-frame observation fed to the decision layer.
type FrameState struct {
	ChangeRatio     float64 // fraction of cells changed since last frame, [0,1]
	IsResize        bool
	BudgetRemaining float64 // ms of frame budget left before a deadline
	ErrorCount      int
}

// alpha is the EMA smoothing factor for updating the state prior across
// frames, per spec.md §4.9.
const alpha = 0.3

// Strategy holds the evolving prior over ScreenState and the optional
// deterministic-fallback switch for pathological terminals.
type Strategy struct {
	prior               [4]float64
	DeterministicFallback bool
}

// NewStrategy builds a Strategy with a uniform prior over the four states.
func NewStrategy() *Strategy {
	return &Strategy{prior: [4]float64{0.25, 0.25, 0.25, 0.25}}
}

// likelihood computes P(observation | state) for each state, unnormalised.
// Resize is a near-one indicator on IsResize; Degraded rises with low
// budget and high error count; Bursty rises with change_ratio; Stable is
// the complement of the other three signals.
func likelihood(f FrameState) [4]float64 {
	var l [4]float64

	resizeSignal := 0.02
	if f.IsResize {
		resizeSignal = 0.97
	}
	l[StateResize] = resizeSignal

	budgetPressure := 0.0
	if f.BudgetRemaining < 8 {
		budgetPressure = (8 - f.BudgetRemaining) / 8
		if budgetPressure > 1 {
			budgetPressure = 1
		}
		if budgetPressure < 0 {
			budgetPressure = 0
		}
	}
	errorPressure := float64(f.ErrorCount) / (float64(f.ErrorCount) + 3)
	degraded := 0.5*budgetPressure + 0.5*errorPressure
	if f.IsResize {
		degraded *= 0.2
	}
	l[StateDegraded] = clamp01(0.03 + 0.94*degraded)

	bursty := clamp01(f.ChangeRatio)
	if f.IsResize {
		bursty *= 0.3
	}
	l[StateBursty] = clamp01(0.03 + 0.94*bursty)

	stable := 1 - clamp01(f.ChangeRatio) - degraded
	if f.IsResize {
		stable = 0.01
	}
	l[StateStable] = clamp01(0.03 + 0.94*clamp01(stable))

	return l
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// posterior computes prior*likelihood normalised to sum to 1, falling
// back to a uniform distribution if the product sums to zero so the
// result is always a valid probability vector (spec.md §8 invariant).
func posterior(prior, lhood [4]float64) [4]float64 {
	var raw [4]float64
	sum := 0.0
	for i := range raw {
		raw[i] = prior[i] * lhood[i]
		sum += raw[i]
	}
	if sum <= 0 {
		return [4]float64{0.25, 0.25, 0.25, 0.25}
	}
	for i := range raw {
		raw[i] /= sum
	}
	return raw
}

// expectedLoss computes, for each action, sum over states of
// posterior[state] * lossMatrix[state][action].
func expectedLoss(post [4]float64) [3]float64 {
	var losses [3]float64
	for s := 0; s < 4; s++ {
		for a := 0; a < 3; a++ {
			losses[a] += post[s] * lossMatrix[s][a]
		}
	}
	return losses
}

// chooseAction picks the minimum-expected-loss action, ties broken by
// action index (Incremental < Full < Deferred). The Degraded-state
// fallback reverses Full/Deferred preference per spec.md §9: deferring
// frames at low frame rate yields visibly blank screens, so Full is
// preferred over Deferred whenever Degraded is the dominant posterior
// state, even if the naive loss table would pick Deferred.
func chooseAction(post [4]float64, losses [3]float64) RenderAction {
	best := ActionIncremental
	bestLoss := losses[ActionIncremental]
	for a := RenderAction(1); a < 3; a++ {
		if losses[a] < bestLoss {
			best = a
			bestLoss = losses[a]
		}
	}

	dominant := dominantState(post)
	if dominant == StateDegraded && best == ActionDeferred {
		best = ActionFull
	}
	return best
}

func dominantState(post [4]float64) ScreenState {
	best := StateStable
	bestP := post[StateStable]
	for _, s := range allStates[1:] {
		if post[s] > bestP {
			best = s
			bestP = post[s]
		}
	}
	return best
}

// Decision is the outcome of one frame's Bayesian decision, suitable for
// recording in the evidence ledger.
type Decision struct {
	Posterior      [4]float64
	ExpectedLosses [3]float64
	Chosen         RenderAction
	Confidence     float64
}

// Decide runs one step of the Bayesian frame-diff strategy: computes the
// posterior for f given the current prior, derives expected losses,
// chooses an action (or forces Full if DeterministicFallback is set),
// updates the prior by EMA, and returns the full decision record.
func (st *Strategy) Decide(f FrameState) Decision {
	post := posterior(st.prior, likelihood(f))
	losses := expectedLoss(post)

	chosen := chooseAction(post, losses)
	if st.DeterministicFallback {
		chosen = ActionFull
	}

	for i := range st.prior {
		st.prior[i] = alpha*post[i] + (1-alpha)*st.prior[i]
	}

	conf := post[0]
	for _, p := range post[1:] {
		if p > conf {
			conf = p
		}
	}

	return Decision{Posterior: post, ExpectedLosses: losses, Chosen: chosen, Confidence: conf}
}

// EvidenceEntry converts a Decision into the shared evidence-ledger
// schema, stamping the policy version used by spec.md §4.9.
func (d Decision) EvidenceEntry(nowMicros int64) types.EvidenceEntry {
	return types.EvidenceEntry{
		DecisionPoint: "tui_frame_render",
		Action:        d.Chosen.String(),
		InputFeatures: map[string]interface{}{
			"posterior_stable":   d.Posterior[StateStable],
			"posterior_bursty":   d.Posterior[StateBursty],
			"posterior_resize":   d.Posterior[StateResize],
			"posterior_degraded": d.Posterior[StateDegraded],
			"loss_incremental":   d.ExpectedLosses[ActionIncremental],
			"loss_full":          d.ExpectedLosses[ActionFull],
			"loss_deferred":      d.ExpectedLosses[ActionDeferred],
		},
		Rationale:     "bayesian expected-loss minimisation over frame-diff strategies",
		Confidence:    d.Confidence,
		PolicyVersion: "bayesian_tui_v1",
		TS:            nowMicros,
	}
}
