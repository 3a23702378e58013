package metadata

import (
	"math/rand/v2"
	"time"

	"github.com/aliskhannn/imageforge/internal/model"
	"github.com/aliskhannn/imageforge/internal/settings"
)

// Fixed defaults used for fields whose randomization flag is off.
const (
	defaultDevice      = "Unknown Device"
	defaultCamera      = "Unknown Camera"
	defaultFocalLength = "35mm"
	defaultExposure    = "1/125"
)

// timestampWindow bounds randomized capture timestamps to the past two years.
const timestampWindow = 2 * 365 * 24 * time.Hour

var devices = []string{
	"Apple iPhone 13 Pro",
	"Apple iPhone 14",
	"Samsung Galaxy S22",
	"Samsung Galaxy S23 Ultra",
	"Google Pixel 6",
	"Google Pixel 7 Pro",
	"Xiaomi 12T",
	"OnePlus 10 Pro",
	"Sony Xperia 1 IV",
	"Huawei P50 Pro",
	"Oppo Find X5",
	"Nothing Phone (1)",
}

var cameras = []string{
	"Canon EOS R6 / RF 24-70mm f/2.8",
	"Canon EOS 5D Mark IV / EF 50mm f/1.4",
	"Nikon Z6 II / NIKKOR Z 35mm f/1.8",
	"Nikon D850 / AF-S 24-120mm f/4",
	"Sony A7 III / FE 28-70mm f/3.5-5.6",
	"Sony A7R IV / FE 85mm f/1.8",
	"Fujifilm X-T4 / XF 23mm f/2",
	"Fujifilm X100V / 23mm f/2",
	"Panasonic Lumix S5 / 20-60mm f/3.5-5.6",
	"Olympus OM-D E-M1 / 12-40mm f/2.8",
	"Leica Q2 / Summilux 28mm f/1.7",
}

var focalLengths = []string{"24mm", "28mm", "35mm", "50mm", "70mm", "85mm", "105mm", "135mm"}

var exposures = []string{"1/30", "1/60", "1/125", "1/250", "1/500", "1/1000", "1/2000"}

// Synthesizer produces randomized capture-metadata records. Fields whose
// flag is off in the configuration keep fixed defaults.
type Synthesizer struct {
	rng *rand.Rand
}

// New creates a Synthesizer. A nil rng falls back to an unseeded source.
func New(rng *rand.Rand) *Synthesizer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Synthesizer{rng: rng}
}

// Synthesize builds one metadata record from the configuration. When the
// consistent-per-folder flag is set, the caller is expected to request
// exactly one record per folder and reuse it for every image inside.
func (s *Synthesizer) Synthesize(cfg settings.MetadataConfig) model.MetadataSet {
	set := model.MetadataSet{
		Device:      defaultDevice,
		Camera:      defaultCamera,
		CapturedAt:  time.Now().UTC().Truncate(time.Hour),
		FocalLength: defaultFocalLength,
		Exposure:    defaultExposure,
	}

	if cfg.RandomDevice {
		set.Device = devices[s.rng.IntN(len(devices))]
		set.Camera = cameras[s.rng.IntN(len(cameras))]
	}
	if cfg.RandomTimestamp {
		offset := time.Duration(s.rng.Int64N(int64(timestampWindow)))
		set.CapturedAt = time.Now().UTC().Add(-offset).Truncate(time.Second)
	}
	if cfg.RandomFocalLength {
		set.FocalLength = focalLengths[s.rng.IntN(len(focalLengths))]
	}
	if cfg.RandomGPS {
		set.GPS = &model.GPSPoint{
			Latitude:  -90 + s.rng.Float64()*180,
			Longitude: -180 + s.rng.Float64()*360,
		}
	}
	if cfg.RandomExposure {
		set.Exposure = exposures[s.rng.IntN(len(exposures))]
	}

	return set
}
