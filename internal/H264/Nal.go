package H264

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

type NalType byte

const (
	NAL_TYPE_NON_IDR NalType = 1
	NAL_TYPE_IDR     NalType = 5
	NAL_TYPE_SEI     NalType = 6
	NAL_TYPE_SPS     NalType = 7
	NAL_TYPE_PPS     NalType = 8
	NAL_TYPE_AUD     NalType = 9
	NAL_TYPE_FUA     NalType = 28
)

func (t NalType) String() string {
	switch t {
	case NAL_TYPE_NON_IDR:
		return "NonIDR"
	case NAL_TYPE_IDR:
		return "IDR"
	case NAL_TYPE_SEI:
		return "SEI"
	case NAL_TYPE_SPS:
		return "SPS"
	case NAL_TYPE_PPS:
		return "PPS"
	case NAL_TYPE_AUD:
		return "AUD"
	default:
		return "Other"
	}
}

var ErrMalformedFrame = errors.New("h264: malformed frame")

var (
	startCode3 = []byte{0x00, 0x00, 0x01}
	startCode4 = []byte{0x00, 0x00, 0x00, 0x01}
)

// NalUnit is one NAL unit without delimiter, Data[0] is the nal header.
type NalUnit struct {
	Type NalType
	Data []byte
}

func (n NalUnit) IsSlice() bool {
	return n.Type == NAL_TYPE_NON_IDR || n.Type == NAL_TYPE_IDR
}

func NewNalUnit(data []byte) NalUnit {
	return NalUnit{
		Type: NalType(data[0] & 0x1F),
		Data: data,
	}
}

// SplitFrame cuts one encoded access unit into its NAL units. The frame is
// either AnnexB (00 00 01 / 00 00 00 01 delimiters) or AVCC (4 byte big endian
// length before each unit); AnnexB is assumed when the frame begins with a
// start code. The returned units alias the frame buffer and are only valid
// for the duration of the delivery call.
func SplitFrame(frame []byte) ([]NalUnit, error) {
	if len(frame) == 0 {
		return nil, errors.Wrap(ErrMalformedFrame, "empty frame")
	}
	if bytes.HasPrefix(frame, startCode3) || bytes.HasPrefix(frame, startCode4) {
		return splitAnnexB(frame)
	}
	return splitAVCC(frame)
}

func splitAnnexB(frame []byte) ([]NalUnit, error) {
	var units []NalUnit
	pos := skipStartCode(frame, 0)
	for pos < len(frame) {
		next := bytes.Index(frame[pos:], startCode3)
		var data []byte
		if next < 0 {
			data = frame[pos:]
			pos = len(frame)
		} else {
			end := pos + next
			// a 4 byte start code ends one zero earlier
			if end > pos && frame[end-1] == 0x00 {
				end--
			}
			data = frame[pos:end]
			pos = skipStartCode(frame, pos+next)
		}
		if len(data) == 0 {
			return nil, errors.Wrap(ErrMalformedFrame, "empty nal unit")
		}
		units = append(units, NewNalUnit(data))
	}
	if len(units) == 0 {
		return nil, errors.Wrap(ErrMalformedFrame, "no nal unit found")
	}
	return units, nil
}

func skipStartCode(frame []byte, pos int) int {
	if bytes.HasPrefix(frame[pos:], startCode4) {
		return pos + 4
	}
	return pos + 3
}

func splitAVCC(frame []byte) ([]NalUnit, error) {
	var units []NalUnit
	pos := 0
	for pos < len(frame) {
		if len(frame)-pos < 4 {
			return nil, errors.Wrap(ErrMalformedFrame, "truncated length prefix")
		}
		length := int(binary.BigEndian.Uint32(frame[pos : pos+4]))
		pos += 4
		if length <= 0 || length > len(frame)-pos {
			return nil, errors.Wrapf(ErrMalformedFrame, "declared length %d exceeds remaining %d", length, len(frame)-pos)
		}
		units = append(units, NewNalUnit(frame[pos:pos+length]))
		pos += length
	}
	if len(units) == 0 {
		return nil, errors.Wrap(ErrMalformedFrame, "no nal unit found")
	}
	return units, nil
}
