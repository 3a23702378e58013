package model

import "time"

// GPSPoint is a latitude/longitude pair in decimal degrees.
type GPSPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MetadataSet is a synthesized capture-metadata record stamped onto a
// processed image. Scope is either per-image or shared across a folder,
// decided once per job.
type MetadataSet struct {
	Device      string    `json:"device"`
	Camera      string    `json:"camera"`
	CapturedAt  time.Time `json:"captured_at"`
	FocalLength string    `json:"focal_length"`
	GPS         *GPSPoint `json:"gps,omitempty"`
	Exposure    string    `json:"exposure"`
}
