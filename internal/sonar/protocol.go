// Package sonar talks to a Blue Robotics Ping1D echo-sounder.
//
// Ping protocol frame (little endian):
//
//	'B' 'R' | payload_len u16 | message_id u16 | src u8 | dst u8 | payload | checksum u16
//
// The checksum is the 16-bit sum of every byte before it.
package sonar

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	msgAck             uint16 = 1
	msgNack            uint16 = 2
	msgGeneralRequest  uint16 = 6
	msgSetSpeedOfSound uint16 = 1002
	msgSpeedOfSound    uint16 = 1203
	msgDistance        uint16 = 1212

	headerLen   = 8
	checksumLen = 2
	maxPayload  = 1024
)

var errBadChecksum = errors.New("ping: checksum mismatch")

type message struct {
	ID      uint16
	Src     uint8
	Dst     uint8
	Payload []byte
}

func checksum(b []byte) uint16 {
	var sum uint16
	for _, c := range b {
		sum += uint16(c)
	}
	return sum
}

// encode frames a message.
func encode(m message) []byte {
	out := make([]byte, 0, headerLen+len(m.Payload)+checksumLen)
	out = append(out, 'B', 'R')
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.Payload)))
	out = binary.LittleEndian.AppendUint16(out, m.ID)
	out = append(out, m.Src, m.Dst)
	out = append(out, m.Payload...)
	out = binary.LittleEndian.AppendUint16(out, checksum(out))
	return out
}

// decode reads the next frame, resynchronizing on the 'B' 'R' preamble.
func decode(r *bufio.Reader) (message, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return message{}, err
		}
		if b != 'B' {
			continue
		}
		next, err := r.Peek(1)
		if err != nil {
			return message{}, err
		}
		if next[0] != 'R' {
			continue
		}
		_, _ = r.ReadByte()

		hdr := make([]byte, headerLen)
		hdr[0], hdr[1] = 'B', 'R'
		if _, err := io.ReadFull(r, hdr[2:]); err != nil {
			return message{}, err
		}
		n := int(binary.LittleEndian.Uint16(hdr[2:4]))
		if n > maxPayload {
			continue
		}
		body := make([]byte, n+checksumLen)
		if _, err := io.ReadFull(r, body); err != nil {
			return message{}, err
		}
		frame := append(hdr, body[:n]...)
		if checksum(frame) != binary.LittleEndian.Uint16(body[n:]) {
			return message{}, errBadChecksum
		}
		return message{
			ID:      binary.LittleEndian.Uint16(hdr[4:6]),
			Src:     hdr[6],
			Dst:     hdr[7],
			Payload: body[:n],
		}, nil
	}
}

func generalRequest(id uint16) message {
	return message{ID: msgGeneralRequest, Payload: binary.LittleEndian.AppendUint16(nil, id)}
}

func setSpeedOfSound(mmPerSec uint32) message {
	return message{ID: msgSetSpeedOfSound, Payload: binary.LittleEndian.AppendUint32(nil, mmPerSec)}
}

// distance payload: distance u32, confidence u16, transmit_duration u16,
// ping_number u32, scan_start u32, scan_length u32, gain_setting u32.
const distanceLen = 24

type distance struct {
	DistanceMM         uint32
	Confidence         uint16
	TransmitDurationUS uint16
	PingNumber         uint32
	ScanStartMM        uint32
	ScanLengthMM       uint32
	GainSetting        uint32
}

func parseDistance(p []byte) (distance, error) {
	if len(p) < distanceLen {
		return distance{}, fmt.Errorf("ping: distance payload %d bytes, want %d", len(p), distanceLen)
	}
	le := binary.LittleEndian
	return distance{
		DistanceMM:         le.Uint32(p[0:4]),
		Confidence:         le.Uint16(p[4:6]),
		TransmitDurationUS: le.Uint16(p[6:8]),
		PingNumber:         le.Uint32(p[8:12]),
		ScanStartMM:        le.Uint32(p[12:16]),
		ScanLengthMM:       le.Uint32(p[16:20]),
		GainSetting:        le.Uint32(p[20:24]),
	}, nil
}

func (d distance) payload() []byte {
	le := binary.LittleEndian
	out := make([]byte, 0, distanceLen)
	out = le.AppendUint32(out, d.DistanceMM)
	out = le.AppendUint16(out, d.Confidence)
	out = le.AppendUint16(out, d.TransmitDurationUS)
	out = le.AppendUint32(out, d.PingNumber)
	out = le.AppendUint32(out, d.ScanStartMM)
	out = le.AppendUint32(out, d.ScanLengthMM)
	out = le.AppendUint32(out, d.GainSetting)
	return out
}
