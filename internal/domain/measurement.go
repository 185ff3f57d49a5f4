package domain

// Measurement is one complete recording session (a trip) as held by the
// local store. The upload subsystem only reads it.
type Measurement struct {
	// ID is the device-local identifier, immutable once assigned.
	ID uint64 `json:"id"`

	// Tracks are the contiguous recording segments in capture order.
	Tracks []Track `json:"tracks"`

	// Finished is true once capturing has stopped for good. Only finished
	// measurements may be uploaded.
	Finished bool `json:"finished"`

	// Synchronized is set by the store after a successful upload.
	Synchronized bool `json:"synchronized,omitempty"`

	// Distance is the travelled length in meters, reported in upload metadata.
	Distance float64 `json:"distance"`

	// Modality is the transport mode chosen at capture time (e.g. "BICYCLE").
	Modality string `json:"modality"`
}

// Track is a contiguous recording segment within a measurement.
type Track struct {
	Locations     []GeoLocation `json:"locations,omitempty"`
	Altitudes     []Altitude    `json:"altitudes,omitempty"`
	Accelerations []SensorValue `json:"accelerations,omitempty"`
	Rotations     []SensorValue `json:"rotations,omitempty"`
	Directions    []SensorValue `json:"directions,omitempty"`
}

// GeoLocation is a single GNSS fix.
type GeoLocation struct {
	// Timestamp in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`

	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`

	// Speed in m/s.
	Speed float64 `json:"speed"`

	// Accuracy is the horizontal accuracy in meters.
	Accuracy float64 `json:"accuracy"`
}

// Altitude is a barometric or GNSS altitude sample.
type Altitude struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// SensorValue is a three-axis sample from the accelerometer, gyroscope or
// magnetometer.
type SensorValue struct {
	Timestamp int64   `json:"timestamp"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
}

// LocationCount returns the number of geo locations across all tracks.
func (m Measurement) LocationCount() int {
	n := 0
	for _, t := range m.Tracks {
		n += len(t.Locations)
	}
	return n
}

// AccelerationCount returns the number of acceleration samples across all tracks.
func (m Measurement) AccelerationCount() int {
	n := 0
	for _, t := range m.Tracks {
		n += len(t.Accelerations)
	}
	return n
}

// FirstLocation returns the earliest captured location, if any.
func (m Measurement) FirstLocation() (GeoLocation, bool) {
	for _, t := range m.Tracks {
		if len(t.Locations) > 0 {
			return t.Locations[0], true
		}
	}
	return GeoLocation{}, false
}

// LastLocation returns the latest captured location, if any.
func (m Measurement) LastLocation() (GeoLocation, bool) {
	for i := len(m.Tracks) - 1; i >= 0; i-- {
		locs := m.Tracks[i].Locations
		if len(locs) > 0 {
			return locs[len(locs)-1], true
		}
	}
	return GeoLocation{}, false
}
