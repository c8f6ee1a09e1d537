// Package audio provides the PCM16 conversion and outbound framing primitives
// used by the session bridge.
package audio

import (
	"encoding/binary"
	"fmt"
)

// AgentSampleRate is the fixed rate negotiated with the conversational agent.
const AgentSampleRate = 16000

// BytesToPCM decodes little-endian 16-bit samples. A trailing odd byte is ignored.
func BytesToPCM(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// PCMToBytes encodes samples as little-endian 16-bit PCM.
func PCMToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// Resample converts samples from inRate to outRate by linear interpolation.
// The result has floor(len(samples)*outRate/inRate) samples; equal rates
// return the input slice itself.
func Resample(samples []int16, inRate, outRate int) []int16 {
	if inRate <= 0 || outRate <= 0 {
		panic(fmt.Sprintf("audio: invalid sample rates %d -> %d", inRate, outRate))
	}
	if inRate == outRate {
		return samples
	}

	outLen := len(samples) * outRate / inRate
	out := make([]int16, outLen)
	if len(samples) == 0 {
		return out
	}

	ratio := float64(inRate) / float64(outRate)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx > last {
			idx = last
		}
		frac := pos - float64(idx)
		s0 := float64(samples[idx])
		s1 := s0
		if idx+1 <= last {
			s1 = float64(samples[idx+1])
		}
		out[i] = int16(s0 + (s1-s0)*frac)
	}
	return out
}

// ResampleBytes is Resample over PCM16 byte buffers.
func ResampleBytes(data []byte, inRate, outRate int) []byte {
	if inRate == outRate {
		return data
	}
	return PCMToBytes(Resample(BytesToPCM(data), inRate, outRate))
}
