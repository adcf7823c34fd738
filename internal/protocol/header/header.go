package header

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Size is the fixed wire header length: four little-endian uint32 fields.
const Size = 16

var (
	ErrEncoding    = errors.New("header: encoding failed")
	ErrDecoding    = errors.New("header: decoding failed")
	ErrShortHeader = fmt.Errorf("%w: short fixed header", ErrDecoding)
)

// Header is the per-fragment wire header.
//
// Field order on the wire is Tag, FrameID, FragmentIndex, FragmentCount.
type Header struct {
	Tag           uint32
	FrameID       uint32
	FragmentIndex uint32
	FragmentCount uint32
}

// New range-checks index and count before they are narrowed to uint32.
func New(tag, frameID uint32, index, count int) (Header, error) {
	if count < 1 || uint64(count) > math.MaxUint32 {
		return Header{}, fmt.Errorf("%w: fragment_count %d out of range", ErrEncoding, count)
	}
	if index < 1 || index > count {
		return Header{}, fmt.Errorf("%w: fragment_index %d outside 1..%d", ErrEncoding, index, count)
	}
	return Header{
		Tag:           tag,
		FrameID:       frameID,
		FragmentIndex: uint32(index),
		FragmentCount: uint32(count),
	}, nil
}

// Validate reports whether the index/count pair describes a real fragment.
func (h Header) Validate() error {
	if h.FragmentCount == 0 {
		return fmt.Errorf("%w: zero fragment_count", ErrDecoding)
	}
	if h.FragmentIndex == 0 || h.FragmentIndex > h.FragmentCount {
		return fmt.Errorf("%w: fragment_index %d outside 1..%d", ErrDecoding, h.FragmentIndex, h.FragmentCount)
	}
	return nil
}

// First reports whether this fragment opens its frame.
func (h Header) First() bool {
	return h.FragmentIndex == 1
}

func Encode(h Header) []byte {
	return AppendEncode(make([]byte, 0, Size), h)
}

// AppendEncode appends the encoded header to dst so callers can build a
// datagram in one buffer.
func AppendEncode(dst []byte, h Header) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, h.Tag)
	dst = binary.LittleEndian.AppendUint32(dst, h.FrameID)
	dst = binary.LittleEndian.AppendUint32(dst, h.FragmentIndex)
	dst = binary.LittleEndian.AppendUint32(dst, h.FragmentCount)
	return dst
}

// Decode parses the fixed header and returns the bytes that follow it.
// The returned slice aliases b.
func Decode(b []byte) (Header, []byte, error) {
	if len(b) < Size {
		return Header{}, nil, fmt.Errorf("%w: got %d bytes", ErrShortHeader, len(b))
	}
	return Header{
		Tag:           binary.LittleEndian.Uint32(b[0:4]),
		FrameID:       binary.LittleEndian.Uint32(b[4:8]),
		FragmentIndex: binary.LittleEndian.Uint32(b[8:12]),
		FragmentCount: binary.LittleEndian.Uint32(b[12:16]),
	}, b[Size:], nil
}
