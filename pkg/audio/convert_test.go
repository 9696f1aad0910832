package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"runtime"
	"testing"
	"time"

	"github.com/MrWong99/voicemeter/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestStereoToMono(t *testing.T) {
	t.Parallel()

	// Two stereo frames: L=100,R=200 and L=-100,R=-200
	stereo := samplesToBytes([]int16{100, 200, -100, -200})
	got := bytesToSamples(audio.StereoToMono(stereo))
	want := []int16{150, -150}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono_NoOverflow(t *testing.T) {
	t.Parallel()

	got := bytesToSamples(audio.StereoToMono(samplesToBytes([]int16{32767, 32767, -32768, -32768})))
	if got[0] != 32767 || got[1] != -32768 {
		t.Errorf("got %v, want [32767 -32768]", got)
	}
}

func TestPCM_MonoMultiChannel(t *testing.T) {
	t.Parallel()

	p := audio.PCM{SampleRate: 8000, Channels: 3, Data: samplesToBytes([]int16{30, 60, 90, -3, -6, -9})}
	m := p.Mono()
	if m.Channels != 1 {
		t.Fatalf("Channels = %d, want 1", m.Channels)
	}
	got := bytesToSamples(m.Data)
	if len(got) != 2 || got[0] != 60 || got[1] != -6 {
		t.Errorf("samples = %v, want [60 -6]", got)
	}
}

func TestPCM_Resample(t *testing.T) {
	t.Parallel()

	src := audio.PCM{SampleRate: 48000, Channels: 1, Data: make([]byte, 48000*2)}
	dst := src.Resample(16000)
	if dst.SampleRate != 16000 || dst.Frames() != 16000 {
		t.Errorf("Resample: rate %d frames %d, want 16000/16000", dst.SampleRate, dst.Frames())
	}
	if same := src.Resample(48000); &same.Data[0] != &src.Data[0] {
		t.Error("Resample to the same rate should not copy")
	}

	stereo := audio.PCM{SampleRate: 8000, Channels: 2, Data: make([]byte, 8000*4)}
	if got := stereo.Resample(16000); got.Frames() != 16000 || got.Channels != 2 {
		t.Errorf("stereo Resample: frames %d channels %d", got.Frames(), got.Channels)
	}
}

func TestResampleMono16_Interpolates(t *testing.T) {
	t.Parallel()

	got := bytesToSamples(audio.ResampleMono16(samplesToBytes([]int16{0, 100}), 1000, 2000))
	want := []int16{0, 50, 100, 100}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPCM_SamplesAndDuration(t *testing.T) {
	t.Parallel()

	p := audio.FromSamples([]float64{0, 0.5, -0.5, 1, -1, 2}, 4)
	if p.Seconds() != 1.5 || p.Duration() != 1500*time.Millisecond {
		t.Errorf("Seconds = %v, Duration = %v", p.Seconds(), p.Duration())
	}
	got := p.Samples()
	want := []float64{0, 0.5, -0.5, 1, -1, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-3 {
			t.Errorf("sample %d = %v, want ≈ %v", i, got[i], want[i])
		}
	}
}

func TestWAV_RoundTripWithExtraChunk(t *testing.T) {
	t.Parallel()

	src := audio.PCM{SampleRate: 16000, Channels: 2, Data: samplesToBytes([]int16{1, -1, 2, -2, 3, -3})}
	wav := audio.EncodeWAV(src)

	// Insert a LIST chunk between fmt and data, as many recorders do.
	list := append([]byte("LIST"), 0x03, 0, 0, 0, 'a', 'b', 'c', 0)
	withList := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	for name, data := range map[string][]byte{"plain": wav, "with LIST": withList} {
		got, err := audio.DecodeWAV(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%s: DecodeWAV: %v", name, err)
		}
		if got.SampleRate != 16000 || got.Channels != 2 || !bytes.Equal(got.Data, src.Data) {
			t.Errorf("%s: decoded %+v, want %+v", name, got, src)
		}
	}
}

func TestDecodeWAV_Errors(t *testing.T) {
	t.Parallel()

	float32WAV := audio.EncodeWAV(audio.PCM{SampleRate: 8000, Channels: 1, Data: []byte{0, 0}})
	binary.LittleEndian.PutUint16(float32WAV[20:22], 3)
	binary.LittleEndian.PutUint16(float32WAV[34:36], 32)

	hugeFmt := audio.EncodeWAV(audio.PCM{SampleRate: 8000, Channels: 1, Data: []byte{0, 0}})
	binary.LittleEndian.PutUint32(hugeFmt[16:20], 0xFFFFFFF0)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, audio.ErrNotWAV},
		{"not riff", []byte("RIFX0000WAVEfmt "), audio.ErrNotWAV},
		{"no data chunk", audio.EncodeWAV(audio.PCM{SampleRate: 8000, Channels: 1})[:36], audio.ErrNotWAV},
		{"float samples", float32WAV, audio.ErrUnsupportedFormat},
		{"oversized fmt chunk", hugeFmt, audio.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := audio.DecodeWAV(bytes.NewReader(tt.data)); !errors.Is(err, tt.want) {
				t.Errorf("DecodeWAV error = %v, want %v", err, tt.want)
			}
		})
	}
}

// A header may claim far more data than the stream carries. Decoding must
// keep what arrived without allocating the declared size.
func TestDecodeWAV_DeclaredSizeExceedsStream(t *testing.T) {
	src := audio.PCM{SampleRate: 8000, Channels: 1, Data: samplesToBytes(make([]int16, 32))}
	wav := audio.EncodeWAV(src)
	binary.LittleEndian.PutUint32(wav[40:44], 0xFFFFFFF0)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	got, err := audio.DecodeWAV(bytes.NewReader(wav))
	runtime.ReadMemStats(&after)

	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(got.Data, src.Data) {
		t.Errorf("decoded %d bytes, want %d", len(got.Data), len(src.Data))
	}
	if grew := after.TotalAlloc - before.TotalAlloc; grew > 16<<20 {
		t.Errorf("decoding a %d byte stream allocated %d MiB", len(wav), grew>>20)
	}
}
