// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nfctrl implements the neurofeedback controller:
// a hysteresis reward gate driven by an adaptive threshold, fed one
// (t_end_sec, metric) pair at a time alongside optional artifact gating.
package nfctrl

import (
	"math"
	"sort"
	"strings"

	"github.com/qeeg-nfb/qengine/qerr"
	"github.com/qeeg-nfb/qengine/stats"
)

// kMinAbsThreshold is the fixed zero-nudge constant for exponential
// adaptation.
const kMinAbsThreshold = 1e-12

// Direction names which side of threshold counts as reward.
type Direction int

const (
	Above Direction = iota
	Below
)

// ParseRewardDirection accepts the case-insensitive aliases
// above/gt/>/higher/high/up and below/lt/</lower/low/down.
func ParseRewardDirection(s string) (Direction, error) {
	const op = "nfctrl.ParseRewardDirection"
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "above", "gt", ">", "higher", "high", "up":
		return Above, nil
	case "below", "lt", "<", "lower", "low", "down":
		return Below, nil
	default:
		return 0, qerr.New(qerr.InvalidParam, op, "unknown reward direction %q", s)
	}
}

// AdaptMode names the adaptive-threshold update rule.
type AdaptMode int

const (
	Exponential AdaptMode = iota
	Quantile
)

// ParseAdaptMode accepts the case-insensitive aliases
// exp/exponential/mul/multiplicative and quantile/pct/percentile/q.
func ParseAdaptMode(s string) (AdaptMode, error) {
	const op = "nfctrl.ParseAdaptMode"
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exp", "exponential", "mul", "multiplicative":
		return Exponential, nil
	case "quantile", "pct", "percentile", "q":
		return Quantile, nil
	default:
		return 0, qerr.New(qerr.InvalidParam, op, "unknown adapt mode %q", s)
	}
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// HysteresisGate is a Schmitt-trigger-style binary decision: OFF->ON
// requires crossing threshold+h (Above) or threshold-h (Below), and the
// opposite crossing is required to return to the other state. Non-finite
// inputs force OFF. Zero hysteresis degenerates to a strict comparison.
type HysteresisGate struct {
	On bool
}

// Update advances the gate with one (value, threshold) observation and
// returns the resulting state.
func (g *HysteresisGate) Update(value, threshold, hysteresis float64, direction Direction) bool {
	if !isFinite(value) || !isFinite(threshold) {
		g.On = false
		return g.On
	}
	switch direction {
	case Above:
		if !g.On && value > threshold+hysteresis {
			g.On = true
		} else if g.On && value < threshold-hysteresis {
			g.On = false
		}
	case Below:
		if !g.On && value < threshold-hysteresis {
			g.On = true
		} else if g.On && value > threshold+hysteresis {
			g.On = false
		}
	}
	return g.On
}

// ArtifactInput is the optional per-frame artifact-gate signal. A nil
// *ArtifactInput disables artifact gating entirely. The gate only fires
// once the detector's baseline is ready; before that, Bad is advisory and
// the controller proceeds normally.
type ArtifactInput struct {
	BaselineReady   bool
	Bad             bool
	BadChannelCount int
}

// Config configures one Controller. All fields are immutable after
// construction.
type Config struct {
	Direction                Direction
	Hysteresis               float64
	BaselineSeconds          float64
	UpdateSeconds            float64
	RateWindowSeconds        float64
	AdaptMode                AdaptMode
	Target                   float64
	Eta                      float64
	Span                     float64
	QuantileWindowSeconds    float64
	QuantileMinSamples       int
	MinUpdateIntervalSeconds float64 // <= 0 disables the gate
}

func (c Config) validate(op string) error {
	if c.UpdateSeconds <= 0 {
		return qerr.New(qerr.InvalidParam, op, "updateSeconds must be > 0, got %v", c.UpdateSeconds)
	}
	if c.BaselineSeconds <= 0 {
		return qerr.New(qerr.InvalidParam, op, "baselineSeconds must be > 0, got %v", c.BaselineSeconds)
	}
	if c.RateWindowSeconds <= 0 {
		return qerr.New(qerr.InvalidParam, op, "rateWindowSeconds must be > 0, got %v", c.RateWindowSeconds)
	}
	if c.AdaptMode == Quantile && c.QuantileMinSamples < 1 {
		return qerr.New(qerr.InvalidParam, op, "quantileMinSamples must be >= 1 for quantile adaptation, got %d", c.QuantileMinSamples)
	}
	return nil
}

func (c Config) rateWindowFrames() int {
	n := int(math.Round(c.RateWindowSeconds / c.UpdateSeconds))
	if n < 1 {
		n = 1
	}
	return n
}

func (c Config) quantileWindowFrames() int {
	n := int(math.Round(c.QuantileWindowSeconds / c.UpdateSeconds))
	if n < 1 {
		n = 1
	}
	return n
}

// Frame is one emitted NF decision.
type Frame struct {
	TEndSec         float64
	Metric          float64
	Threshold       float64 // NaN while undefined
	Reward          float64 // 0 or 1
	RewardRate      float64
	ArtifactReady   bool
	Bad             bool
	BadChannelCount int
	FeedbackValue   float64
}

// Controller holds all per-instance mutable state: threshold, baseline
// accumulation, reward history, adaptation state, and the hysteresis gate.
type Controller struct {
	cfg              Config
	threshold        float64
	thresholdDefined bool
	baselineStore    []float64
	rewardHistory    []bool
	quantileStore    []float64
	gate             HysteresisGate
	lastAdaptTSec    float64
	hasLastAdapt     bool
}

// New constructs a Controller with threshold undefined.
func New(cfg Config) (*Controller, error) {
	const op = "nfctrl.New"
	if err := cfg.validate(op); err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg, threshold: math.NaN()}, nil
}

func rateOf(history []bool) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, v := range history {
		if v {
			sum++
		}
	}
	return sum / float64(len(history))
}

func (c *Controller) appendReward(r bool) float64 {
	c.rewardHistory = append(c.rewardHistory, r)
	if max := c.cfg.rateWindowFrames(); len(c.rewardHistory) > max {
		c.rewardHistory = c.rewardHistory[len(c.rewardHistory)-max:]
	}
	return rateOf(c.rewardHistory)
}

func (c *Controller) feedbackValue(metric float64) float64 {
	if !isFinite(metric) || !c.thresholdDefined {
		return 0
	}
	span := c.cfg.Span
	if span <= 0 {
		span = 1
	}
	var raw float64
	if c.cfg.Direction == Above {
		raw = (metric - c.threshold) / span
	} else {
		raw = (c.threshold - metric) / span
	}
	if raw < 0 {
		return 0
	}
	if raw > 1 {
		return 1
	}
	return raw
}

func (c *Controller) rewardRate() float64 {
	return rateOf(c.rewardHistory)
}

func sortedCopy(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	return out
}

func (c *Controller) adapt(tEndSec, metric float64) {
	if c.cfg.MinUpdateIntervalSeconds > 0 && c.hasLastAdapt && tEndSec-c.lastAdaptTSec < c.cfg.MinUpdateIntervalSeconds {
		return
	}
	rr := c.rewardRate()
	switch c.cfg.AdaptMode {
	case Exponential:
		th := c.threshold
		if math.Abs(th) < kMinAbsThreshold {
			if th < 0 {
				th = -kMinAbsThreshold
			} else {
				th = kMinAbsThreshold
			}
		}
		exponent := c.cfg.Eta * (rr - c.cfg.Target)
		if c.cfg.Direction == Below {
			exponent = -exponent
		}
		c.threshold = th * math.Exp(exponent)
	case Quantile:
		c.quantileStore = append(c.quantileStore, metric)
		if max := c.cfg.quantileWindowFrames(); len(c.quantileStore) > max {
			c.quantileStore = c.quantileStore[len(c.quantileStore)-max:]
		}
		if len(c.quantileStore) < c.cfg.QuantileMinSamples {
			return
		}
		q := 1 - c.cfg.Target
		if c.cfg.Direction == Below {
			q = c.cfg.Target
		}
		qValue := stats.Quantile(sortedCopy(c.quantileStore), q)
		alpha := c.cfg.Eta
		if alpha < 0 {
			alpha = 0
		}
		if alpha > 1 {
			alpha = 1
		}
		c.threshold = c.threshold + alpha*(qValue-c.threshold)
	}
	c.lastAdaptTSec = tEndSec
	c.hasLastAdapt = true
}

// PushFrame advances the controller by one (t_end_sec, metric) observation,
// optionally gated by an artifact frame.
func (c *Controller) PushFrame(tEndSec, metric float64, artifact *ArtifactInput) Frame {
	base := Frame{TEndSec: tEndSec, Metric: metric, Threshold: c.threshold}

	// Step 1: non-finite metric -> no decision, reward=0, skip everything.
	if !isFinite(metric) {
		base.RewardRate = c.rewardRate()
		base.FeedbackValue = 0
		return base
	}

	// Step 2: accumulate baseline until threshold is defined.
	if !c.thresholdDefined {
		c.baselineStore = append(c.baselineStore, metric)
		if tEndSec > c.cfg.BaselineSeconds {
			c.threshold = stats.Median(c.baselineStore)
			c.thresholdDefined = true
			base.Threshold = c.threshold
		} else {
			base.RewardRate = c.rewardRate()
			base.FeedbackValue = 0
			return base
		}
	}

	// Step 3: optional artifact gate; suppression requires the detector's
	// baseline to be ready.
	if artifact != nil {
		base.ArtifactReady = artifact.BaselineReady
		base.Bad = artifact.Bad
		base.BadChannelCount = artifact.BadChannelCount
		if artifact.BaselineReady && artifact.Bad {
			base.RewardRate = c.rewardRate()
			base.FeedbackValue = 0
			return base
		}
	}

	// Step 4: hysteresis decision.
	on := c.gate.Update(metric, c.threshold, c.cfg.Hysteresis, c.cfg.Direction)
	base.Reward = 0
	if on {
		base.Reward = 1
	}

	// Step 5: reward history + rate.
	base.RewardRate = c.appendReward(on)

	// Step 6: adaptive threshold update.
	c.adapt(tEndSec, metric)
	base.Threshold = c.threshold

	// Step 7: continuous feedback value.
	base.FeedbackValue = c.feedbackValue(metric)

	return base
}
