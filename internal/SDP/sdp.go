package SDP

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pion/sdp/v3"
	"github.com/pkg/errors"
)

// Describe builds the DESCRIBE body for the single H264 video track.
// profile-level-id comes from the three bytes after the SPS nal header,
// sprop-parameter-sets carries SPS and PPS base64 encoded so clients can
// configure the decoder before the first keyframe arrives.
func Describe(host string, payloadType int, sps, pps []byte) (string, error) {
	if len(sps) < 4 || len(pps) == 0 {
		return "", errors.New("sdp: parameter sets not available")
	}
	fmtp := fmt.Sprintf("%d packetization-mode=1;profile-level-id=%s;sprop-parameter-sets=%s,%s",
		payloadType,
		hex.EncodeToString(sps[1:4]),
		base64.StdEncoding.EncodeToString(sps),
		base64.StdEncoding.EncodeToString(pps))
	desc := &sdp.SessionDescription{
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      uint64(time.Now().Unix()),
			SessionVersion: uint64(time.Now().Unix()),
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: host,
		},
		SessionName: "CameraStream",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: "0.0.0.0"},
		},
		TimeDescriptions: []sdp.TimeDescription{{}},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "video",
					Port:    sdp.RangedPort{Value: 0},
					Protos:  []string{"RTP", "AVP"},
					Formats: []string{fmt.Sprintf("%d", payloadType)},
				},
				Attributes: []sdp.Attribute{
					{Key: "rtpmap", Value: fmt.Sprintf("%d H264/90000", payloadType)},
					{Key: "fmtp", Value: fmtp},
					{Key: "control", Value: "track1"},
				},
			},
		},
	}
	raw, err := desc.Marshal()
	if err != nil {
		return "", errors.Wrap(err, "marshal session description")
	}
	return string(raw), nil
}
