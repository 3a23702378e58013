package model

// ImageStats holds the pixel statistics used by the output validation
// pass. Entropy and StdDev are normalized to [0, 1].
type ImageStats struct {
	Entropy  float64 `json:"entropy"`
	Kurtosis float64 `json:"kurtosis"`
	StdDev   float64 `json:"std_dev"`
}
