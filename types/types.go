package types

// Location is a geographic point as claimed by a prover's device.
type Location struct {
	Latitude  float64 `json:"latitude"  cbor:"0,keyasint"`
	Longitude float64 `json:"longitude" cbor:"1,keyasint"`
	// Accuracy is the device-reported accuracy radius in meters.
	Accuracy float64 `json:"accuracy" cbor:"2,keyasint,omitempty"`
}

// Geofence is a circular region a claimed location must fall within.
type Geofence struct {
	Latitude  float64 `json:"latitude"  cbor:"0,keyasint"`
	Longitude float64 `json:"longitude" cbor:"1,keyasint"`
	// Radius in meters.
	Radius float64 `json:"radius" cbor:"2,keyasint"`
}

// Center returns the geofence center as a Location.
func (g Geofence) Center() Location {
	return Location{Latitude: g.Latitude, Longitude: g.Longitude}
}

// Demographics is the self-reported demographic payload attached to a
// presence proof. GroupAnchor names the community (the "network school")
// the proof is submitted against.
type Demographics struct {
	AgeRange    string   `json:"ageRange"         cbor:"0,keyasint"`
	Gender      string   `json:"gender,omitempty" cbor:"1,keyasint,omitempty"`
	Geofence    Geofence `json:"location"         cbor:"2,keyasint"`
	GroupAnchor string   `json:"networkSchoolId"  cbor:"3,keyasint"`
	Timestamp   int64    `json:"timestamp"        cbor:"4,keyasint"`
}
