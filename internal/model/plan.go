package model

// EffectKind names one transformation family applied to an image.
type EffectKind string

const (
	EffectResize       EffectKind = "resize"
	EffectRotate       EffectKind = "rotate"
	EffectFlip         EffectKind = "flip"
	EffectBlur         EffectKind = "blur"
	EffectBrightness   EffectKind = "brightness"
	EffectContrast     EffectKind = "contrast"
	EffectVignette     EffectKind = "vignette"
	EffectSharpen      EffectKind = "sharpen"
	EffectColorBalance EffectKind = "colorbalance"
	EffectGrain        EffectKind = "grain"
	EffectFilter       EffectKind = "filter"
	EffectGrayscale    EffectKind = "grayscale"
	EffectSepia        EffectKind = "sepia"
	EffectNoise        EffectKind = "noise"
)

// Operation is a single entry of a ModificationPlan: one effect and its
// sampled parameters. Option carries the non-numeric parameter of kinds
// that need one (flip direction, named filter).
type Operation struct {
	Kind   EffectKind         `json:"kind"`
	Params map[string]float64 `json:"params,omitempty"`
	Option string             `json:"option,omitempty"`
}

// ModificationPlan is the ordered, bounded list of operations applied to
// one image. Built fresh per image; holds 2-4 entries with no duplicate
// effect kinds.
type ModificationPlan struct {
	Ops []Operation `json:"ops"`
}

// Contains reports whether the plan carries an operation of the given kind.
func (p ModificationPlan) Contains(kind EffectKind) bool {
	for _, op := range p.Ops {
		if op.Kind == kind {
			return true
		}
	}
	return false
}
