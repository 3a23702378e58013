package magick

import (
	"strings"
	"testing"

	"github.com/aliskhannn/imageforge/internal/model"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		op   model.Operation
		want []string
	}{
		{
			name: "percent resize",
			op:   model.Operation{Kind: model.EffectResize, Params: map[string]float64{"percent": 92.5}},
			want: []string{"-resize", "92.5%"},
		},
		{
			name: "fixed resize forces exact geometry",
			op:   model.Operation{Kind: model.EffectResize, Params: map[string]float64{"width": 1024, "height": 768}},
			want: []string{"-resize", "1024x768!"},
		},
		{
			name: "rotate",
			op:   model.Operation{Kind: model.EffectRotate, Params: map[string]float64{"degrees": -2.5}},
			want: []string{"-rotate", "-2.50"},
		},
		{
			name: "horizontal flip",
			op:   model.Operation{Kind: model.EffectFlip, Option: "horizontal"},
			want: []string{"-flop"},
		},
		{
			name: "vertical flip",
			op:   model.Operation{Kind: model.EffectFlip, Option: "vertical"},
			want: []string{"-flip"},
		},
		{
			name: "blur",
			op:   model.Operation{Kind: model.EffectBlur, Params: map[string]float64{"radius": 1.25}},
			want: []string{"-blur", "0x1.25"},
		},
		{
			name: "brightness",
			op:   model.Operation{Kind: model.EffectBrightness, Params: map[string]float64{"delta": 12}},
			want: []string{"-brightness-contrast", "12.0x0"},
		},
		{
			name: "contrast",
			op:   model.Operation{Kind: model.EffectContrast, Params: map[string]float64{"delta": -7.5}},
			want: []string{"-brightness-contrast", "0x-7.5"},
		},
		{
			name: "grain maps to attenuated gaussian noise",
			op:   model.Operation{Kind: model.EffectGrain, Params: map[string]float64{"amount": 2.5}},
			want: []string{"-attenuate", "2.50", "+noise", "Gaussian"},
		},
		{
			name: "noise maps to attenuated uniform noise",
			op:   model.Operation{Kind: model.EffectNoise, Params: map[string]float64{"amount": 1.5}},
			want: []string{"-attenuate", "1.50", "+noise", "Uniform"},
		},
		{
			name: "grayscale",
			op:   model.Operation{Kind: model.EffectGrayscale},
			want: []string{"-colorspace", "Gray"},
		},
		{
			name: "sepia",
			op:   model.Operation{Kind: model.EffectSepia, Params: map[string]float64{"intensity": 80}},
			want: []string{"-sepia-tone", "80%"},
		},
		{
			name: "vignette",
			op:   model.Operation{Kind: model.EffectVignette, Params: map[string]float64{"radius": 10}},
			want: []string{"-vignette", "0x10.0"},
		},
		{
			name: "sharpen",
			op:   model.Operation{Kind: model.EffectSharpen, Params: map[string]float64{"sigma": 1.5}},
			want: []string{"-sharpen", "0x1.50"},
		},
		{
			name: "color balance builds a channel matrix",
			op: model.Operation{Kind: model.EffectColorBalance, Params: map[string]float64{
				"red": 10, "green": 0, "blue": -5,
			}},
			want: []string{"-color-matrix", "1.100 0 0 0 1.000 0 0 0 0.950"},
		},
		{
			name: "named preset",
			op:   model.Operation{Kind: model.EffectFilter, Option: "warm"},
			want: []string{"-modulate", "102,110,98"},
		},
		{
			name: "unknown preset produces nothing",
			op:   model.Operation{Kind: model.EffectFilter, Option: "nope"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildArgs(model.ModificationPlan{Ops: []model.Operation{tt.op}})
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Fatalf("args = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildArgsPreservesPlanOrder(t *testing.T) {
	plan := model.ModificationPlan{Ops: []model.Operation{
		{Kind: model.EffectResize, Params: map[string]float64{"percent": 90}},
		{Kind: model.EffectGrayscale},
		{Kind: model.EffectContrast, Params: map[string]float64{"delta": 5}},
	}}

	got := strings.Join(BuildArgs(plan), " ")
	want := "-resize 90.0% -colorspace Gray -brightness-contrast 0x5.0"
	if got != want {
		t.Fatalf("args = %q, want %q", got, want)
	}
}

func TestParseStats(t *testing.T) {
	stats, err := parseStats("0.731 2.14 0.238\n")
	if err != nil {
		t.Fatalf("parse stats: %v", err)
	}
	if stats.Entropy != 0.731 || stats.Kurtosis != 2.14 || stats.StdDev != 0.238 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestParseStatsRejectsShortOutput(t *testing.T) {
	if _, err := parseStats("0.5"); err == nil {
		t.Fatal("expected an error for short output")
	}
	if _, err := parseStats("a b c"); err == nil {
		t.Fatal("expected an error for non-numeric output")
	}
}
