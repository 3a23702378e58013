package executor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/imageforge/internal/model"
)

// Validation thresholds. Output whose entropy is above maxEntropy is
// near-uniform random (corrupted); output whose standard deviation is
// below minStdDev is near-blank.
const (
	maxEntropy = 0.95
	minStdDev  = 0.01
)

// filterTool defines the interface for the external image-filter tool.
type filterTool interface {
	Apply(ctx context.Context, inputPath, outputPath string, plan model.ModificationPlan) error
	Stats(ctx context.Context, path string) (model.ImageStats, error)
}

// metadataWriter defines the interface for the external metadata-writing tool.
type metadataWriter interface {
	Write(ctx context.Context, path string, set model.MetadataSet) error
}

// Executor turns a modification plan into a concrete filter-tool
// invocation, validates the result, and falls back to a byte-identical
// copy of the input on any failure. A batch never aborts because one
// image could not be transformed.
type Executor struct {
	tool   filterTool
	writer metadataWriter
}

// New creates an Executor over the given tools.
func New(tool filterTool, writer metadataWriter) *Executor {
	return &Executor{tool: tool, writer: writer}
}

// Execute processes one image. The output path receives either the
// transformed image or a verbatim copy of the input. A non-nil metadata
// set is stamped onto the output after a successful transformation;
// metadata failures are logged and ignored.
func (e *Executor) Execute(ctx context.Context, inputPath, outputPath string, plan model.ModificationPlan, set *model.MetadataSet) error {
	if err := e.tool.Apply(ctx, inputPath, outputPath, plan); err != nil {
		zlog.Logger.Err(err).Str("image", inputPath).Msg("filter tool failed, keeping original")
		return copyFile(inputPath, outputPath)
	}

	if !e.validate(ctx, outputPath, plan) {
		zlog.Logger.Warn().Str("image", inputPath).Msg("output rejected by validation, keeping original")
		return copyFile(inputPath, outputPath)
	}

	if set != nil {
		if err := e.writer.Write(ctx, outputPath, *set); err != nil {
			zlog.Logger.Err(err).Str("image", outputPath).Msg("metadata write failed")
		}
	}

	return nil
}

// validate runs the statistics heuristic over the tool's output. The
// check is mandatory when the plan carries a noise-family effect: if no
// statistics can be obtained for such output, it is rejected. For other
// plans an unobtainable measurement is accepted with a log entry.
func (e *Executor) validate(ctx context.Context, path string, plan model.ModificationPlan) bool {
	mandatory := plan.Contains(model.EffectNoise) || plan.Contains(model.EffectGrain)

	stats, err := e.tool.Stats(ctx, path)
	if err != nil {
		zlog.Logger.Err(err).Str("image", path).Msg("tool statistics query failed, computing locally")

		stats, err = localStats(path)
		if err != nil {
			zlog.Logger.Err(err).Str("image", path).Msg("local statistics failed")
			return !mandatory
		}
	}

	if stats.Entropy > maxEntropy {
		zlog.Logger.Warn().
			Str("image", path).
			Float64("entropy", stats.Entropy).
			Msg("entropy above threshold")
		return false
	}

	if stats.StdDev < minStdDev {
		zlog.Logger.Warn().
			Str("image", path).
			Float64("std_dev", stats.StdDev).
			Msg("standard deviation below threshold")
		return false
	}

	return true
}

// copyFile writes a byte-identical copy of src at dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open original %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create fallback copy %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy original to %s: %w", dst, err)
	}

	return nil
}
