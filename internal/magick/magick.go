package magick

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/aliskhannn/imageforge/internal/model"
)

// Tool invokes the ImageMagick binary to apply a modification plan to an
// image in a single filter-pipeline run, and to query pixel statistics.
type Tool struct {
	binary string
}

// New creates a Tool around the given binary name. An empty name falls
// back to "magick".
func New(binary string) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "magick"
	}
	return &Tool{binary: binary}
}

// Apply runs the plan against inputPath and writes the result to
// outputPath. The whole plan is translated into one invocation.
func (t *Tool) Apply(ctx context.Context, inputPath, outputPath string, plan model.ModificationPlan) error {
	args := append([]string{inputPath}, BuildArgs(plan)...)
	args = append(args, outputPath)

	cmd := exec.CommandContext(ctx, t.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("magick apply: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return nil
}

// Stats queries normalized entropy, kurtosis and standard deviation of
// the image at path via ImageMagick's identify mode.
func (t *Tool) Stats(ctx context.Context, path string) (model.ImageStats, error) {
	cmd := exec.CommandContext(ctx, t.binary, "identify", "-format",
		"%[entropy] %[kurtosis] %[standard-deviation]", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return model.ImageStats{}, fmt.Errorf("magick identify: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return parseStats(string(output))
}

func parseStats(raw string) (model.ImageStats, error) {
	fields := strings.Fields(raw)
	if len(fields) < 3 {
		return model.ImageStats{}, errors.New("magick identify: short statistics output")
	}

	values := make([]float64, 3)
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return model.ImageStats{}, fmt.Errorf("magick identify: parse %q: %w", fields[i], err)
		}
		values[i] = v
	}

	return model.ImageStats{Entropy: values[0], Kurtosis: values[1], StdDev: values[2]}, nil
}

// BuildArgs translates a modification plan into the ImageMagick argument
// list placed between the input and output paths.
func BuildArgs(plan model.ModificationPlan) []string {
	var args []string

	for _, op := range plan.Ops {
		switch op.Kind {
		case model.EffectResize:
			if pct, ok := op.Params["percent"]; ok {
				args = append(args, "-resize", fmt.Sprintf("%.1f%%", pct))
				break
			}
			args = append(args, "-resize",
				fmt.Sprintf("%.0fx%.0f!", op.Params["width"], op.Params["height"]))
		case model.EffectRotate:
			args = append(args, "-rotate", fmt.Sprintf("%.2f", op.Params["degrees"]))
		case model.EffectFlip:
			if op.Option == "vertical" {
				args = append(args, "-flip")
				break
			}
			args = append(args, "-flop")
		case model.EffectBlur:
			args = append(args, "-blur", fmt.Sprintf("0x%.2f", op.Params["radius"]))
		case model.EffectBrightness:
			args = append(args, "-brightness-contrast", fmt.Sprintf("%.1fx0", op.Params["delta"]))
		case model.EffectContrast:
			args = append(args, "-brightness-contrast", fmt.Sprintf("0x%.1f", op.Params["delta"]))
		case model.EffectVignette:
			args = append(args, "-vignette", fmt.Sprintf("0x%.1f", op.Params["radius"]))
		case model.EffectSharpen:
			args = append(args, "-sharpen", fmt.Sprintf("0x%.2f", op.Params["sigma"]))
		case model.EffectColorBalance:
			args = append(args, "-color-matrix", colorMatrix(
				op.Params["red"], op.Params["green"], op.Params["blue"]))
		case model.EffectGrain:
			args = append(args, "-attenuate", fmt.Sprintf("%.2f", op.Params["amount"]),
				"+noise", "Gaussian")
		case model.EffectFilter:
			args = append(args, presetArgs(op.Option)...)
		case model.EffectGrayscale:
			args = append(args, "-colorspace", "Gray")
		case model.EffectSepia:
			args = append(args, "-sepia-tone", fmt.Sprintf("%.0f%%", op.Params["intensity"]))
		case model.EffectNoise:
			args = append(args, "-attenuate", fmt.Sprintf("%.2f", op.Params["amount"]),
				"+noise", "Uniform")
		}
	}

	return args
}

// colorMatrix builds a 3x3 channel-remapping matrix shifting each
// channel by the given percentage.
func colorMatrix(red, green, blue float64) string {
	return fmt.Sprintf("%.3f 0 0 0 %.3f 0 0 0 %.3f",
		1+red/100, 1+green/100, 1+blue/100)
}

// presetArgs maps a named filter preset to its curve combination.
// Unknown names produce no arguments.
func presetArgs(name string) []string {
	switch name {
	case "warm":
		return []string{"-modulate", "102,110,98"}
	case "cold":
		return []string{"-modulate", "100,92,103"}
	case "vintage":
		return []string{"-modulate", "98,80,100", "-sigmoidal-contrast", "3x50%"}
	case "fade":
		return []string{"+sigmoidal-contrast", "3x50%", "-modulate", "100,85,100"}
	default:
		return nil
	}
}
