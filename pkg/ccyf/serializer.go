package ccyf

import (
	"encoding/binary"
	"math"

	"github.com/cyface-de/cyup/internal/domain"
)

// Serialize encodes the measurement into the uncompressed wire payload.
// Locations and accelerations of all tracks are written in track order.
func Serialize(m domain.Measurement) []byte {
	locations := m.LocationCount()
	accelerations := m.AccelerationCount()

	buf := make([]byte, Size(locations, accelerations))
	putHeader(buf, locations, accelerations)

	off := HeaderSize
	for _, t := range m.Tracks {
		for _, l := range t.Locations {
			putLocation(buf[off:off+LocationRecordSize], l)
			off += LocationRecordSize
		}
	}
	for _, t := range m.Tracks {
		for _, a := range t.Accelerations {
			putSensorValue(buf[off:off+AccelerationRecordSize], a)
			off += AccelerationRecordSize
		}
	}
	return buf
}

// SerializeCompressed encodes the measurement and deflates the result.
// An error means the measurement cannot be transmitted at all.
func SerializeCompressed(m domain.Measurement) ([]byte, error) {
	return Compress(Serialize(m))
}

func putHeader(b []byte, locations, accelerations int) {
	binary.BigEndian.PutUint16(b[0:2], Version)
	binary.BigEndian.PutUint16(b[2:4], 0)
	binary.BigEndian.PutUint32(b[4:8], uint32(locations))
	binary.BigEndian.PutUint32(b[8:12], uint32(accelerations))
	binary.BigEndian.PutUint32(b[12:16], 0)
	binary.BigEndian.PutUint32(b[16:20], 0)
}

func putLocation(b []byte, l domain.GeoLocation) {
	binary.BigEndian.PutUint64(b[0:8], uint64(l.Timestamp))
	binary.BigEndian.PutUint64(b[8:16], math.Float64bits(l.Latitude))
	binary.BigEndian.PutUint64(b[16:24], math.Float64bits(l.Longitude))
	binary.BigEndian.PutUint64(b[24:32], math.Float64bits(l.Speed))
	binary.BigEndian.PutUint32(b[32:36], encodeAccuracy(l.Accuracy))
}

func putSensorValue(b []byte, v domain.SensorValue) {
	binary.BigEndian.PutUint64(b[0:8], uint64(v.Timestamp))
	binary.BigEndian.PutUint64(b[8:16], math.Float64bits(v.X))
	binary.BigEndian.PutUint64(b[16:24], math.Float64bits(v.Y))
	binary.BigEndian.PutUint64(b[24:32], math.Float64bits(v.Z))
}

// encodeAccuracy converts meters to whole centimeters, rounding half away
// from zero. Negative and NaN values encode as 0, overflow saturates.
func encodeAccuracy(meters float64) uint32 {
	cm := math.Round(meters * 100)
	switch {
	case math.IsNaN(cm) || cm <= 0:
		return 0
	case cm >= math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(cm)
}
