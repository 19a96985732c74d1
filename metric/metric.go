// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metric parses the compact metric-spec grammar and
// evaluates a parsed spec against a Recording into a single scalar feature,
// composing the welch/coherence/phaseconn/pac kernels.
package metric

import (
	"math"
	"strings"

	"github.com/qeeg-nfb/qengine/coherence"
	"github.com/qeeg-nfb/qengine/pac"
	"github.com/qeeg-nfb/qengine/phaseconn"
	"github.com/qeeg-nfb/qengine/qerr"
	"github.com/qeeg-nfb/qengine/recording"
	"github.com/qeeg-nfb/qengine/welch"
)

func phaseconnMeasure(m CoherenceMeasure) (phaseconn.Measure, error) {
	switch m {
	case CoherencePLV:
		return phaseconn.MeasurePLV, nil
	case CoherencePLI:
		return phaseconn.MeasurePLI, nil
	case CoherenceWPLI:
		return phaseconn.MeasureWPLI, nil
	case CoherenceDebiasedWPLI2:
		return phaseconn.MeasureDebiasedWPLI2, nil
	default:
		return 0, qerr.New(qerr.InvalidParam, "metric.phaseconnMeasure", "measure %v has no phaseconn mapping", m)
	}
}

// eps guards ratio and asymmetry denominators against zero power.
const eps = 1e-12

// Kind tags which of the five metric-spec forms a Spec holds.
type Kind int

const (
	KindBand Kind = iota
	KindRatio
	KindAsym
	KindCoherence
	KindPAC
)

// CoherenceMeasure selects the measure a KindCoherence Spec computes (the
// optional "coh:MEASURE:BAND:A:B" form): a coherence.Spectrum field for
// MSC and imaginary coherency, or a phaseconn measure for PLV, PLI, wPLI
// and debiased wPLI².
type CoherenceMeasure int

const (
	CoherenceMSC CoherenceMeasure = iota
	CoherenceImaginary
	CoherencePLV
	CoherencePLI
	CoherenceWPLI
	CoherenceDebiasedWPLI2
)

// Spec is a parsed metric-spec grammar value, one tagged field set per Kind.
type Spec struct {
	Kind Kind

	Band    recording.BandDefinition // KindBand, KindAsym, KindCoherence, KindPAC(phase)
	Channel string                   // KindBand, KindPAC

	NumBand recording.BandDefinition // KindRatio
	DenBand recording.BandDefinition // KindRatio

	ChannelA string // KindAsym, KindCoherence
	ChannelB string // KindAsym, KindCoherence

	CoherenceMeasure CoherenceMeasure // KindCoherence

	AmpBand recording.BandDefinition // KindPAC
	UseMVL  bool                     // KindPAC: true for "mvl:", false for "pac:" (MI)
}

// Parse parses a metric-spec string against the active band list.
// Band names are matched case-insensitively; an explicit "LO-HI"
// range is accepted wherever a band name is expected.
func Parse(spec string, bands []recording.BandDefinition) (Spec, error) {
	const op = "metric.Parse"
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Spec{}, qerr.New(qerr.InvalidParam, op, "empty metric spec")
	}
	toks := strings.Split(spec, ":")
	head := strings.ToLower(strings.TrimSpace(toks[0]))

	lookupBand := func(name string) (recording.BandDefinition, error) {
		b, ok := recording.FindBand(bands, name)
		if !ok {
			return recording.BandDefinition{}, qerr.New(qerr.InvalidParam, op, "unknown band %q", name)
		}
		return b, nil
	}

	switch head {
	case "band":
		if len(toks) != 3 {
			return Spec{}, qerr.New(qerr.InvalidParam, op, "expected band:NAME:CH, got %q", spec)
		}
		b, err := lookupBand(toks[1])
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindBand, Band: b, Channel: strings.TrimSpace(toks[2])}, nil

	case "ratio":
		if len(toks) != 4 {
			return Spec{}, qerr.New(qerr.InvalidParam, op, "expected ratio:NUM:DEN:CH, got %q", spec)
		}
		num, err := lookupBand(toks[1])
		if err != nil {
			return Spec{}, err
		}
		den, err := lookupBand(toks[2])
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindRatio, NumBand: num, DenBand: den, Channel: strings.TrimSpace(toks[3])}, nil

	case "asym":
		if len(toks) != 4 {
			return Spec{}, qerr.New(qerr.InvalidParam, op, "expected asym:BAND:A:B, got %q", spec)
		}
		b, err := lookupBand(toks[1])
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindAsym, Band: b, ChannelA: strings.TrimSpace(toks[2]), ChannelB: strings.TrimSpace(toks[3])}, nil

	case "coh":
		switch len(toks) {
		case 4:
			b, err := lookupBand(toks[1])
			if err != nil {
				return Spec{}, err
			}
			return Spec{Kind: KindCoherence, Band: b, ChannelA: strings.TrimSpace(toks[2]), ChannelB: strings.TrimSpace(toks[3])}, nil
		case 5:
			measure, err := parseCoherenceMeasure(toks[1])
			if err != nil {
				return Spec{}, err
			}
			b, err := lookupBand(toks[2])
			if err != nil {
				return Spec{}, err
			}
			return Spec{Kind: KindCoherence, CoherenceMeasure: measure, Band: b, ChannelA: strings.TrimSpace(toks[3]), ChannelB: strings.TrimSpace(toks[4])}, nil
		default:
			return Spec{}, qerr.New(qerr.InvalidParam, op, "expected coh[:MEASURE]:BAND:A:B, got %q", spec)
		}

	case "pac", "mvl":
		if len(toks) != 4 {
			return Spec{}, qerr.New(qerr.InvalidParam, op, "expected %s:PHASE:AMP:CH, got %q", head, spec)
		}
		phase, err := lookupBand(toks[1])
		if err != nil {
			return Spec{}, err
		}
		amp, err := lookupBand(toks[2])
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindPAC, Band: phase, AmpBand: amp, Channel: strings.TrimSpace(toks[3]), UseMVL: head == "mvl"}, nil

	default:
		// Shorthand forms: "NAME:CH" (band) or "NUM/DEN:CH" (ratio).
		if len(toks) != 2 {
			return Spec{}, qerr.New(qerr.InvalidParam, op, "unrecognized metric spec %q", spec)
		}
		ch := strings.TrimSpace(toks[1])
		if strings.Contains(toks[0], "/") {
			parts := strings.SplitN(toks[0], "/", 2)
			num, err := lookupBand(parts[0])
			if err != nil {
				return Spec{}, err
			}
			den, err := lookupBand(parts[1])
			if err != nil {
				return Spec{}, err
			}
			return Spec{Kind: KindRatio, NumBand: num, DenBand: den, Channel: ch}, nil
		}
		b, err := lookupBand(toks[0])
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindBand, Band: b, Channel: ch}, nil
	}
}

func parseCoherenceMeasure(s string) (CoherenceMeasure, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "msc":
		return CoherenceMSC, nil
	case "imag", "icoh", "imagcoh":
		return CoherenceImaginary, nil
	case "plv":
		return CoherencePLV, nil
	case "pli":
		return CoherencePLI, nil
	case "wpli":
		return CoherenceWPLI, nil
	case "dwpli2", "dwpli", "wpli2":
		return CoherenceDebiasedWPLI2, nil
	default:
		return 0, qerr.New(qerr.InvalidParam, "metric.parseCoherenceMeasure", "unknown coherence measure %q", s)
	}
}

// Evaluator binds a Recording and the kernel options needed to evaluate any
// Spec against it.
type Evaluator struct {
	Recording     *recording.Recording
	WelchOpts     welch.Options
	PhaseConnOpts phaseconn.Options
	PacOpts       pac.Options
}

func (e *Evaluator) channel(name string) ([]float64, error) {
	const op = "metric.Evaluator.channel"
	idx := e.Recording.ChannelIndex(name)
	if idx < 0 {
		return nil, qerr.New(qerr.InvalidParam, op, "unknown channel %q", name)
	}
	ch := e.Recording.Channels[idx]
	out := make([]float64, len(ch))
	for i, v := range ch {
		out[i] = float64(v)
	}
	return out, nil
}

func (e *Evaluator) bandpower(channelName string, band recording.BandDefinition) (float64, error) {
	xs, err := e.channel(channelName)
	if err != nil {
		return 0, err
	}
	psd, err := welch.PSD(xs, e.Recording.FsHz, e.WelchOpts)
	if err != nil {
		return 0, err
	}
	return welch.IntegrateBandpower(psd, band.FminHz, band.FmaxHz)
}

// Evaluate computes the scalar value of s against e.Recording.
// Non-finite kernel outputs propagate as NaN rather than an error.
func (e *Evaluator) Evaluate(s Spec) (float64, error) {
	const op = "metric.Evaluator.Evaluate"
	switch s.Kind {
	case KindBand:
		return e.bandpower(s.Channel, s.Band)

	case KindRatio:
		num, err := e.bandpower(s.Channel, s.NumBand)
		if err != nil {
			return 0, err
		}
		den, err := e.bandpower(s.Channel, s.DenBand)
		if err != nil {
			return 0, err
		}
		return (num + eps) / (den + eps), nil

	case KindAsym:
		pa, err := e.bandpower(s.ChannelA, s.Band)
		if err != nil {
			return 0, err
		}
		pb, err := e.bandpower(s.ChannelB, s.Band)
		if err != nil {
			return 0, err
		}
		return math.Log10((pa + eps) / (pb + eps)), nil

	case KindCoherence:
		xa, err := e.channel(s.ChannelA)
		if err != nil {
			return 0, err
		}
		xb, err := e.channel(s.ChannelB)
		if err != nil {
			return 0, err
		}
		switch s.CoherenceMeasure {
		case CoherenceMSC, CoherenceImaginary:
			spec, err := coherence.Compute(xa, xb, e.Recording.FsHz, e.WelchOpts)
			if err != nil {
				return 0, err
			}
			vals := spec.MagnitudeSquared
			if s.CoherenceMeasure == CoherenceImaginary {
				vals = spec.ImaginaryAbs
			}
			return coherence.BandAverage(spec.FreqsHz, vals, s.Band.FminHz, s.Band.FmaxHz)
		default:
			measure, err := phaseconnMeasure(s.CoherenceMeasure)
			if err != nil {
				return 0, err
			}
			switch measure {
			case phaseconn.MeasurePLV:
				return phaseconn.PLV(xa, xb, e.Recording.FsHz, s.Band, e.PhaseConnOpts)
			case phaseconn.MeasurePLI:
				return phaseconn.PLI(xa, xb, e.Recording.FsHz, s.Band, e.PhaseConnOpts)
			case phaseconn.MeasureWPLI:
				return phaseconn.WPLI(xa, xb, e.Recording.FsHz, s.Band, e.PhaseConnOpts)
			default:
				return phaseconn.DebiasedWPLI2(xa, xb, e.Recording.FsHz, s.Band, e.PhaseConnOpts)
			}
		}

	case KindPAC:
		xs, err := e.channel(s.Channel)
		if err != nil {
			return 0, err
		}
		if s.UseMVL {
			return pac.MVL(xs, e.Recording.FsHz, s.Band, s.AmpBand, e.PacOpts)
		}
		mi, _, err := pac.ModulationIndex(xs, e.Recording.FsHz, s.Band, s.AmpBand, e.PacOpts)
		return mi, err

	default:
		return 0, qerr.New(qerr.InvalidParam, op, "unknown spec kind %v", s.Kind)
	}
}
