package settings

// Range is a closed numeric interval that effect parameters are
// uniformly sampled from.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// MetadataConfig controls capture-metadata randomization. Each Random*
// flag enables randomizing one field; disabled fields fall back to fixed
// defaults. ConsistentPerFolder makes every image of one source folder
// share a single synthesized record.
type MetadataConfig struct {
	Enable              bool `json:"enable"`
	RandomDevice        bool `json:"random_device"`
	RandomTimestamp     bool `json:"random_timestamp"`
	RandomFocalLength   bool `json:"random_focal_length"`
	RandomGPS           bool `json:"random_gps"`
	RandomExposure      bool `json:"random_exposure"`
	ConsistentPerFolder bool `json:"consistent_per_folder"`
}

// TransformationConfig is the per-job snapshot of transformation ranges
// and enable flags. It is read once at job start and never mutated for
// that job's duration.
type TransformationConfig struct {
	Brightness Range `json:"brightness"`
	Contrast   Range `json:"contrast"`
	Blur       Range `json:"blur"`
	Noise      Range `json:"noise"`
	Vignette   Range `json:"vignette"`
	Sharpen    Range `json:"sharpen"`
	ColorShift Range `json:"color_shift"`
	Grain      Range `json:"grain"`
	Rotate     Range `json:"rotate"`
	Sepia      Range `json:"sepia"`
	Width      Range `json:"width"`
	Height     Range `json:"height"`

	EnableRotate       bool `json:"enable_rotate"`
	EnableFlip         bool `json:"enable_flip"`
	EnableBlur         bool `json:"enable_blur"`
	EnableVignette     bool `json:"enable_vignette"`
	EnableSharpen      bool `json:"enable_sharpen"`
	EnableColorBalance bool `json:"enable_color_balance"`
	EnableGrain        bool `json:"enable_grain"`
	EnableFilters      bool `json:"enable_filters"`
	EnableGrayscale    bool `json:"enable_grayscale"`
	EnableSepia        bool `json:"enable_sepia"`
	EnableNoise        bool `json:"enable_noise"`
	FixedAspectRatio   bool `json:"fixed_aspect_ratio"`

	// Filters is the allow-list of named presets EffectFilter may pick from.
	Filters []string `json:"filters"`

	// NumFolders is the default number of folders sampled per job.
	NumFolders int `json:"num_folders"`

	Metadata MetadataConfig `json:"metadata"`
}

// Default returns the configuration used when the provider has no
// stored snapshot.
func Default() TransformationConfig {
	return TransformationConfig{
		Brightness: Range{Min: -15, Max: 15},
		Contrast:   Range{Min: -10, Max: 20},
		Blur:       Range{Min: 0.3, Max: 1.2},
		Noise:      Range{Min: 0.5, Max: 2},
		Vignette:   Range{Min: 5, Max: 25},
		Sharpen:    Range{Min: 0.5, Max: 2},
		ColorShift: Range{Min: -8, Max: 8},
		Grain:      Range{Min: 1, Max: 5},
		Rotate:     Range{Min: -3, Max: 3},
		Sepia:      Range{Min: 60, Max: 90},
		Width:      Range{Min: 900, Max: 1300},
		Height:     Range{Min: 900, Max: 1300},

		EnableRotate:       true,
		EnableFlip:         true,
		EnableBlur:         true,
		EnableVignette:     true,
		EnableSharpen:      true,
		EnableColorBalance: true,
		EnableGrain:        true,
		EnableFilters:      true,
		EnableGrayscale:    true,
		EnableSepia:        true,
		EnableNoise:        false,

		Filters:    []string{"warm", "cold", "vintage", "fade"},
		NumFolders: 5,

		Metadata: MetadataConfig{
			Enable:              true,
			RandomDevice:        true,
			RandomTimestamp:     true,
			RandomFocalLength:   true,
			RandomExposure:      true,
			ConsistentPerFolder: true,
		},
	}
}
