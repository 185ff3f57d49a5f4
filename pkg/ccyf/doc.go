// Package ccyf implements the Cyface binary measurement format.
//
// A payload starts with a 20 byte header followed by one record per geo
// location and one record per acceleration sample. All fields are
// big-endian; floating point values are sent as their raw IEEE-754 bit
// pattern. The complete byte sequence is deflated (zlib stream) before
// transmission.
//
//	offset  size  field
//	0       2     format version (currently 1)
//	2       2     reserved, zero
//	4       4     geo location count
//	8       4     acceleration count
//	12      4     rotation count (always zero)
//	16      4     direction count (always zero)
//
// Geo location record (36 bytes): timestamp i64, latitude, longitude,
// speed (f64 bits each), accuracy in centimeters as u32.
//
// Acceleration record (32 bytes): timestamp i64, x, y, z (f64 bits each).
//
// # Usage
//
//	payload, err := ccyf.SerializeCompressed(measurement)
//	if err != nil {
//	    return err // defect: the measurement is unusable
//	}
package ccyf
