// Package header encodes and decodes the fixed fragment header.
//
// Wire layout per datagram:
//
//	tag(u32) frame_id(u32) fragment_index(u32) fragment_count(u32) payload...
//
// All fields are little-endian. A zero-byte datagram carries no header and
// is the end-of-stream sentinel.
package header
