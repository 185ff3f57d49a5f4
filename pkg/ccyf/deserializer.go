package ccyf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cyface-de/cyup/internal/domain"
)

// Payload is the decoded content of an uncompressed ccyf payload.
type Payload struct {
	Version        uint16
	Locations      []domain.GeoLocation
	Accelerations  []domain.SensorValue
	RotationCount  uint32
	DirectionCount uint32
}

// Deserialize decodes an uncompressed payload. Accuracy comes back in
// meters with centimeter resolution.
func Deserialize(b []byte) (Payload, error) {
	if len(b) < HeaderSize {
		return Payload{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(b), HeaderSize)
	}

	p := Payload{
		Version:        binary.BigEndian.Uint16(b[0:2]),
		RotationCount:  binary.BigEndian.Uint32(b[12:16]),
		DirectionCount: binary.BigEndian.Uint32(b[16:20]),
	}
	if p.Version != Version {
		return Payload{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.Version)
	}

	locations := int(binary.BigEndian.Uint32(b[4:8]))
	accelerations := int(binary.BigEndian.Uint32(b[8:12]))
	if want := Size(locations, accelerations); len(b) < want {
		return Payload{}, fmt.Errorf("%w: %d bytes, header announces %d", ErrTruncated, len(b), want)
	}

	off := HeaderSize
	p.Locations = make([]domain.GeoLocation, locations)
	for i := range p.Locations {
		p.Locations[i] = readLocation(b[off : off+LocationRecordSize])
		off += LocationRecordSize
	}
	p.Accelerations = make([]domain.SensorValue, accelerations)
	for i := range p.Accelerations {
		p.Accelerations[i] = readSensorValue(b[off : off+AccelerationRecordSize])
		off += AccelerationRecordSize
	}
	return p, nil
}

func readLocation(b []byte) domain.GeoLocation {
	return domain.GeoLocation{
		Timestamp: int64(binary.BigEndian.Uint64(b[0:8])),
		Latitude:  math.Float64frombits(binary.BigEndian.Uint64(b[8:16])),
		Longitude: math.Float64frombits(binary.BigEndian.Uint64(b[16:24])),
		Speed:     math.Float64frombits(binary.BigEndian.Uint64(b[24:32])),
		Accuracy:  float64(binary.BigEndian.Uint32(b[32:36])) / 100,
	}
}

func readSensorValue(b []byte) domain.SensorValue {
	return domain.SensorValue{
		Timestamp: int64(binary.BigEndian.Uint64(b[0:8])),
		X:         math.Float64frombits(binary.BigEndian.Uint64(b[8:16])),
		Y:         math.Float64frombits(binary.BigEndian.Uint64(b[16:24])),
		Z:         math.Float64frombits(binary.BigEndian.Uint64(b[24:32])),
	}
}
