package ccyf

import "errors"

// Format constants. Changing any of these breaks compatibility with the
// collector.
const (
	// Version is the format version written into every header.
	Version uint16 = 1

	// HeaderSize is the size of the payload header in bytes.
	HeaderSize = 20

	// LocationRecordSize is the size of one serialized geo location.
	LocationRecordSize = 36

	// AccelerationRecordSize is the size of one serialized acceleration sample.
	AccelerationRecordSize = 32

	// ContentType identifies compressed ccyf payloads on the wire.
	ContentType = "application/vnd.cyface.ccyf"
)

var (
	// ErrTruncated is returned when a payload is shorter than its header announces.
	ErrTruncated = errors.New("ccyf: truncated payload")

	// ErrUnsupportedVersion is returned for payloads with an unknown format version.
	ErrUnsupportedVersion = errors.New("ccyf: unsupported format version")
)

// Size returns the uncompressed payload size for the given record counts.
func Size(locations, accelerations int) int {
	return HeaderSize + locations*LocationRecordSize + accelerations*AccelerationRecordSize
}
