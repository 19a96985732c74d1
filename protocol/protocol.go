// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package protocol holds a small set of built-in neurofeedback protocol
// presets: named starting points that bundle a metric-spec template, an
// optional band spec, and recommended
// nfctrl defaults. They are examples and quick-starts, not a complete
// protocol library — real clinical protocols vary widely.
package protocol

import (
	"strings"

	"github.com/qeeg-nfb/qengine/nfctrl"
	"github.com/qeeg-nfb/qengine/qerr"
)

// Preset bundles everything needed to start an NF session without hand
// assembling a metric spec and controller config.
type Preset struct {
	Name        string
	Title       string
	Description string

	// MetricTemplate is a metric.Parse-compatible string with {ch}/{a}/{b}
	// placeholders.
	MetricTemplate string

	// BandSpec is a recording.ParseBandSpec-compatible string. Empty means
	// "use the caller's active band list".
	BandSpec string

	DefaultChannel  string
	DefaultChannelA string
	DefaultChannelB string

	RewardDirection     nfctrl.Direction
	TargetRewardRate    float64
	BaselineSeconds     float64
	WindowSeconds       float64
	UpdateSeconds       float64
	MetricSmoothSeconds float64
}

func preset(name, title, desc, metricTemplate, bandSpec string, dir nfctrl.Direction) Preset {
	return Preset{
		Name:                name,
		Title:               title,
		Description:         desc,
		MetricTemplate:      metricTemplate,
		BandSpec:            bandSpec,
		RewardDirection:     dir,
		TargetRewardRate:    0.6,
		BaselineSeconds:     10.0,
		WindowSeconds:       2.0,
		UpdateSeconds:       0.25,
		MetricSmoothSeconds: 0.5,
	}
}

const (
	tbrBands    = "delta:0.5-4,theta:4-8,alpha:8-12,beta:13-20,beta2:20-30,gamma:30-80"
	smrBands    = "delta:0.5-4,theta:4-8,alpha:8-12,smr:12-15,beta:13-30,gamma:30-80"
	thetaBands  = "delta:0.5-4,theta:4-8,alpha:8-12,beta:13-30,gamma:30-80"
	hibetaBands = "delta:0.5-4,theta:4-8,alpha:8-12,beta:13-21,hibeta:22-36,gamma:30-80"
	beta1Bands  = "delta:0.5-4,theta:4-8,alpha:8-12,beta1:15-18,beta2:18-30,gamma:30-80"
)

// BuiltinPresets returns the built-in protocol list, always in the same
// order. These are intentionally conservative and dependency-light
// quick-starts, not a clinical protocol library.
func BuiltinPresets() []Preset {
	out := make([]Preset, 0, 16)

	p := preset("alpha_up_pz", "Alpha uptraining",
		"Reward increased alpha (8-12 Hz) bandpower at Pz.",
		"alpha:{ch}", "", nfctrl.Above)
	p.DefaultChannel = "Pz"
	out = append(out, p)

	p = preset("theta_down_cz", "Theta downtraining",
		"Reward reduced theta (4-8 Hz) bandpower at Cz.",
		"theta:{ch}", thetaBands, nfctrl.Below)
	p.DefaultChannel = "Cz"
	out = append(out, p)

	p = preset("tbr_down_cz", "Theta/Beta ratio downtraining",
		"Reward a lower theta/beta ratio at Cz (theta 4-8 over beta 13-20).",
		"theta/beta:{ch}", tbrBands, nfctrl.Below)
	p.DefaultChannel = "Cz"
	out = append(out, p)

	p = preset("smr_up_cz", "SMR uptraining",
		"Reward increased SMR (12-15 Hz) bandpower at Cz.",
		"smr:{ch}", smrBands, nfctrl.Above)
	p.DefaultChannel = "Cz"
	out = append(out, p)

	p = preset("hibeta_down_fz", "High beta downtraining",
		"Reward reduced high beta (22-36 Hz) bandpower at Fz.",
		"hibeta:{ch}", hibetaBands, nfctrl.Below)
	p.DefaultChannel = "Fz"
	out = append(out, p)

	p = preset("alpha_coh_up_f3_f4", "Alpha coherence uptraining",
		"Reward increased alpha-band coherence between F3 and F4.",
		"coh:alpha:{a}:{b}", "", nfctrl.Above)
	p.DefaultChannelA, p.DefaultChannelB = "F3", "F4"
	out = append(out, p)

	p = preset("alpha_theta_ratio_up_pz", "Alpha/Theta ratio uptraining",
		"Reward increased alpha/theta ratio at Pz.",
		"alpha/theta:{ch}", thetaBands, nfctrl.Above)
	p.DefaultChannel = "Pz"
	out = append(out, p)

	p = preset("pac_theta_gamma_up_cz", "Theta->Gamma PAC uptraining",
		"Reward increased theta-phase to gamma-amplitude PAC at Cz (Tort MI).",
		"pac:theta:gamma:{ch}", thetaBands, nfctrl.Above)
	p.DefaultChannel = "Cz"
	p.WindowSeconds = 4.0 // PAC estimates need longer windows than bandpower
	out = append(out, p)

	p = preset("alpha_up_oz", "Alpha uptraining (occipital)",
		"Reward increased alpha (8-12 Hz) bandpower at Oz.",
		"alpha:{ch}", "", nfctrl.Above)
	p.DefaultChannel = "Oz"
	out = append(out, p)

	p = preset("smr_up_c3", "SMR uptraining (C3)",
		"Reward increased SMR (12-15 Hz) bandpower at C3.",
		"smr:{ch}", smrBands, nfctrl.Above)
	p.DefaultChannel = "C3"
	out = append(out, p)

	p = preset("smr_up_c4", "SMR uptraining (C4)",
		"Reward increased SMR (12-15 Hz) bandpower at C4.",
		"smr:{ch}", smrBands, nfctrl.Above)
	p.DefaultChannel = "C4"
	out = append(out, p)

	p = preset("beta1_up_cz", "Beta1 uptraining",
		"Reward increased beta1 (15-18 Hz) bandpower at Cz.",
		"beta1:{ch}", beta1Bands, nfctrl.Above)
	p.DefaultChannel = "Cz"
	out = append(out, p)

	p = preset("theta_alpha_ratio_down_pz", "Theta/Alpha ratio downtraining",
		"Reward a lower theta/alpha ratio at Pz.",
		"theta/alpha:{ch}", thetaBands, nfctrl.Below)
	p.DefaultChannel = "Pz"
	out = append(out, p)

	p = preset("imcoh_alpha_up_f3_f4", "Alpha imaginary coherency uptraining",
		"Reward increased alpha-band imaginary coherency between F3 and F4.",
		"coh:imag:alpha:{a}:{b}", "", nfctrl.Above)
	p.DefaultChannelA, p.DefaultChannelB = "F3", "F4"
	out = append(out, p)

	p = preset("mvl_theta_gamma_up_cz", "Theta->Gamma coupling uptraining (MVL)",
		"Reward increased theta-phase to gamma-amplitude coupling at Cz (MVL).",
		"mvl:theta:gamma:{ch}", thetaBands, nfctrl.Above)
	p.DefaultChannel = "Cz"
	p.WindowSeconds = 4.0
	out = append(out, p)

	p = preset("alpha_asym_f4_f3", "Alpha asymmetry (F4/F3)",
		"Reward increased alpha-band asymmetry computed as log-power ratio between F4 and F3 (log10(P(F4)/P(F3))).",
		"asym:alpha:{a}:{b}", thetaBands, nfctrl.Above)
	p.DefaultChannelA, p.DefaultChannelB = "F4", "F3"
	out = append(out, p)

	return out
}

func normName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FindPreset looks up a built-in preset by name, case-insensitively.
func FindPreset(name string) (Preset, bool) {
	key := normName(name)
	if key == "" {
		return Preset{}, false
	}
	for _, p := range BuiltinPresets() {
		if normName(p.Name) == key {
			return p, true
		}
	}
	return Preset{}, false
}

func applyPlaceholders(template, ch, a, b, label string) (string, error) {
	const op = "protocol.applyPlaceholders"
	needCh := strings.Contains(template, "{ch}") || strings.Contains(template, "{channel}")
	needA := strings.Contains(template, "{a}")
	needB := strings.Contains(template, "{b}")

	if needCh && ch == "" {
		return "", qerr.New(qerr.InvalidParam, op, "%s requires a channel; override it explicitly", label)
	}
	if needA && a == "" {
		return "", qerr.New(qerr.InvalidParam, op, "%s requires channel A; override it explicitly", label)
	}
	if needB && b == "" {
		return "", qerr.New(qerr.InvalidParam, op, "%s requires channel B; override it explicitly", label)
	}

	out := template
	out = strings.ReplaceAll(out, "{ch}", ch)
	out = strings.ReplaceAll(out, "{channel}", ch)
	out = strings.ReplaceAll(out, "{a}", a)
	out = strings.ReplaceAll(out, "{b}", b)
	return out, nil
}

func resolve(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

// RenderMetric substitutes p's placeholders into a metric.Parse-ready
// string. Overrides take precedence over the preset's defaults; an empty
// resolved placeholder that the template requires is an error.
func RenderMetric(p Preset, chOverride, aOverride, bOverride string) (string, error) {
	ch := resolve(chOverride, p.DefaultChannel)
	a := resolve(aOverride, p.DefaultChannelA)
	b := resolve(bOverride, p.DefaultChannelB)
	return applyPlaceholders(p.MetricTemplate, ch, a, b, "protocol '"+p.Name+"' metric")
}

// RenderBands substitutes p's placeholders into p.BandSpec. An empty
// BandSpec passes through unchanged (meaning "use the caller's defaults").
func RenderBands(p Preset, chOverride, aOverride, bOverride string) (string, error) {
	if p.BandSpec == "" {
		return "", nil
	}
	ch := resolve(chOverride, p.DefaultChannel)
	a := resolve(aOverride, p.DefaultChannelA)
	b := resolve(bOverride, p.DefaultChannelB)
	return applyPlaceholders(p.BandSpec, ch, a, b, "protocol '"+p.Name+"' bands")
}
