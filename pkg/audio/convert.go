package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// PCM is interleaved 16-bit signed little-endian audio.
type PCM struct {
	SampleRate int
	Channels   int
	Data       []byte
}

// Frames returns the number of sample frames (one sample per channel).
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Data) / (2 * p.Channels)
}

// Duration returns the playback length of p.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(p.Frames()) / float64(p.SampleRate) * float64(time.Second))
}

// Seconds returns the playback length of p in seconds.
func (p PCM) Seconds() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(p.Frames()) / float64(p.SampleRate)
}

// Mono down-mixes p to a single channel. Mono input is returned unchanged.
func (p PCM) Mono() PCM {
	switch {
	case p.Channels == 1:
		return p
	case p.Channels == 2:
		return PCM{SampleRate: p.SampleRate, Channels: 1, Data: StereoToMono(p.Data)}
	case p.Channels > 2:
		return PCM{SampleRate: p.SampleRate, Channels: 1, Data: downmix(p.Data, p.Channels)}
	default:
		return PCM{SampleRate: p.SampleRate, Channels: 1}
	}
}

// Resample converts p to rate using linear interpolation.
func (p PCM) Resample(rate int) PCM {
	if rate == p.SampleRate {
		return p
	}
	out := PCM{SampleRate: rate, Channels: p.Channels}
	switch p.Channels {
	case 1:
		out.Data = ResampleMono16(p.Data, p.SampleRate, rate)
	case 2:
		out.Data = ResampleStereo16(p.Data, p.SampleRate, rate)
	default:
		m := p.Mono()
		out.Channels = 1
		out.Data = ResampleMono16(m.Data, p.SampleRate, rate)
	}
	return out
}

// Samples returns p as mono float samples in [-1, 1].
func (p PCM) Samples() []float64 {
	m := p.Mono()
	out := make([]float64, len(m.Data)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(m.Data[i*2:]))) / 32768
	}
	return out
}

// FromSamples builds mono PCM from float samples, clamping to [-1, 1].
func FromSamples(samples []float64, sampleRate int) PCM {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(s * 32767)
		v = max(-32768, min(32767, v))
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v)))
	}
	return PCM{SampleRate: sampleRate, Channels: 1, Data: data}
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(binary.LittleEndian.Uint16(pcm[i*4:])))
		r := int32(int16(binary.LittleEndian.Uint16(pcm[i*4+2:])))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clamp16((l+r)/2)))
	}
	return out
}

// downmix averages every channel of each frame.
func downmix(pcm []byte, channels int) []byte {
	stride := channels * 2
	frames := len(pcm) / stride
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for c := range channels {
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[i*stride+c*2:])))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clamp16(sum/int32(channels))))
	}
	return out
}

func clamp16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. If srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	return resample16(pcm, 1, srcRate, dstRate)
}

// ResampleStereo16 resamples 16-bit stereo PCM from srcRate to dstRate using
// linear interpolation. Each stereo frame is 4 bytes (L+R interleaved).
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	return resample16(pcm, 2, srcRate, dstRate)
}

func resample16(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return pcm
	}
	stride := channels * 2
	srcFrames := len(pcm) / stride
	if srcFrames == 0 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*stride)
	ratio := float64(srcRate) / float64(dstRate)
	sample := func(frame, ch int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(pcm[frame*stride+ch*2:])))
	}
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, srcFrames-1)
		for ch := range channels {
			v := sample(idx, ch)*(1-frac) + sample(next, ch)*frac
			binary.LittleEndian.PutUint16(out[i*stride+ch*2:], uint16(int16(v)))
		}
	}
	return out
}
