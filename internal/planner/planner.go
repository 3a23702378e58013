package planner

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/aliskhannn/imageforge/internal/model"
	"github.com/aliskhannn/imageforge/internal/settings"
)

// Inclusion probabilities of the optional effect families. Brightness,
// contrast and one resize entry are always added to the candidate pool.
const (
	chanceFixedResize  = 0.30 // fixed-size resize instead of percentage resize
	chanceRotate       = 0.30
	chanceFlip         = 0.30
	chanceBlur         = 0.30
	chanceVignette     = 0.30
	chanceSharpen      = 0.40
	chanceColorBalance = 0.30
	chanceGrain        = 0.25
	chanceFilter       = 0.20
	chanceGrayscale    = 0.10
	chanceSepia        = 0.10
	chanceNoise        = 0.05
)

// noiseCeiling caps the sampled noise amount regardless of the
// configured maximum, to bound corruption risk.
const noiseCeiling = 3

// Planner builds randomized modification plans from a transformation
// configuration. It is a pure function of the configuration and its
// random source, so tests may inject a seeded one.
type Planner struct {
	rng *rand.Rand
}

// New creates a Planner. A nil rng falls back to an unseeded source.
func New(rng *rand.Rand) *Planner {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Planner{rng: rng}
}

// Plan produces one modification plan for a single image. The candidate
// pool always contains a resize, a brightness and a contrast entry plus
// any enabled optional effects that pass their coin flip; the final plan
// is a uniformly random subset of 2-4 distinct candidates. The always-on
// entries are only guaranteed pool membership, not final presence.
func (p *Planner) Plan(cfg settings.TransformationConfig) model.ModificationPlan {
	pool := []model.Operation{
		p.resizeOp(cfg),
		{Kind: model.EffectBrightness, Params: map[string]float64{"delta": p.sample(cfg.Brightness)}},
		{Kind: model.EffectContrast, Params: map[string]float64{"delta": p.sample(cfg.Contrast)}},
	}

	if cfg.EnableRotate && p.chance(chanceRotate) {
		pool = append(pool, model.Operation{
			Kind:   model.EffectRotate,
			Params: map[string]float64{"degrees": p.sample(cfg.Rotate)},
		})
	}
	if cfg.EnableFlip && p.chance(chanceFlip) {
		direction := "horizontal"
		if p.chance(0.5) {
			direction = "vertical"
		}
		pool = append(pool, model.Operation{Kind: model.EffectFlip, Option: direction})
	}
	if cfg.EnableBlur && p.chance(chanceBlur) {
		pool = append(pool, model.Operation{
			Kind:   model.EffectBlur,
			Params: map[string]float64{"radius": p.sample(cfg.Blur)},
		})
	}
	if cfg.EnableVignette && p.chance(chanceVignette) {
		pool = append(pool, model.Operation{
			Kind:   model.EffectVignette,
			Params: map[string]float64{"radius": p.sample(cfg.Vignette)},
		})
	}
	if cfg.EnableSharpen && p.chance(chanceSharpen) {
		pool = append(pool, model.Operation{
			Kind:   model.EffectSharpen,
			Params: map[string]float64{"sigma": p.sample(cfg.Sharpen)},
		})
	}
	if cfg.EnableColorBalance && p.chance(chanceColorBalance) {
		pool = append(pool, model.Operation{
			Kind: model.EffectColorBalance,
			Params: map[string]float64{
				"red":   p.sample(cfg.ColorShift),
				"green": p.sample(cfg.ColorShift),
				"blue":  p.sample(cfg.ColorShift),
			},
		})
	}
	if cfg.EnableGrain && p.chance(chanceGrain) {
		pool = append(pool, model.Operation{
			Kind:   model.EffectGrain,
			Params: map[string]float64{"amount": p.sample(cfg.Grain)},
		})
	}
	if cfg.EnableFilters && len(cfg.Filters) > 0 && p.chance(chanceFilter) {
		pool = append(pool, model.Operation{
			Kind:   model.EffectFilter,
			Option: cfg.Filters[p.rng.IntN(len(cfg.Filters))],
		})
	}
	if cfg.EnableGrayscale && p.chance(chanceGrayscale) {
		pool = append(pool, model.Operation{Kind: model.EffectGrayscale})
	}
	if cfg.EnableSepia && p.chance(chanceSepia) {
		pool = append(pool, model.Operation{
			Kind:   model.EffectSepia,
			Params: map[string]float64{"intensity": p.sample(cfg.Sepia)},
		})
	}
	if cfg.EnableNoise && p.chance(chanceNoise) {
		pool = append(pool, model.Operation{
			Kind:   model.EffectNoise,
			Params: map[string]float64{"amount": math.Min(p.sample(cfg.Noise), noiseCeiling)},
		})
	}

	return model.ModificationPlan{Ops: p.pick(pool)}
}

// resizeOp builds the resize-family candidate: a fixed target size when
// the aspect ratio is pinned (or on a 30% flip), a percentage resize of
// 80-100% otherwise.
func (p *Planner) resizeOp(cfg settings.TransformationConfig) model.Operation {
	if cfg.FixedAspectRatio || p.chance(chanceFixedResize) {
		return model.Operation{
			Kind: model.EffectResize,
			Params: map[string]float64{
				"width":  math.Round(p.sample(cfg.Width)),
				"height": math.Round(p.sample(cfg.Height)),
			},
		}
	}

	return model.Operation{
		Kind:   model.EffectResize,
		Params: map[string]float64{"percent": 80 + p.rng.Float64()*20},
	}
}

// pick selects a uniformly random subset of 2-4 distinct candidates,
// capped at the pool size, keeping the pool's order.
func (p *Planner) pick(pool []model.Operation) []model.Operation {
	n := 2 + p.rng.IntN(3)
	if n > len(pool) {
		n = len(pool)
	}

	indices := p.rng.Perm(len(pool))[:n]
	sort.Ints(indices)

	ops := make([]model.Operation, 0, n)
	for _, idx := range indices {
		ops = append(ops, pool[idx])
	}

	return ops
}

func (p *Planner) chance(probability float64) bool {
	return p.rng.Float64() < probability
}

func (p *Planner) sample(r settings.Range) float64 {
	return r.Min + p.rng.Float64()*(r.Max-r.Min)
}
