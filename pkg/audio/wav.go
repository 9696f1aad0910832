package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	bitsPerSample = 16

	formatPCM        = 1
	formatExtensible = 0xFFFE

	// maxFmtSize bounds the fmt chunk; WAVE_FORMAT_EXTENSIBLE needs 40.
	maxFmtSize = 64
)

// Errors returned by [DecodeWAV].
var (
	ErrNotWAV            = errors.New("audio: not a RIFF/WAVE stream")
	ErrUnsupportedFormat = errors.New("audio: unsupported WAV format")
)

// DecodeWAV reads a RIFF/WAVE stream holding 16-bit integer PCM. Chunks other
// than "fmt " and "data" are skipped.
func DecodeWAV(r io.Reader) (PCM, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return PCM{}, fmt.Errorf("%w: %w", ErrNotWAV, err)
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return PCM{}, ErrNotWAV
	}

	var (
		pcm    PCM
		gotFmt bool
	)
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return PCM{}, fmt.Errorf("%w: no data chunk", ErrNotWAV)
			}
			return PCM{}, fmt.Errorf("audio: read chunk header: %w", err)
		}
		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			if size < 16 || size > maxFmtSize {
				return PCM{}, fmt.Errorf("%w: fmt chunk of %d bytes", ErrUnsupportedFormat, size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return PCM{}, fmt.Errorf("audio: read fmt chunk: %w", err)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			pcm.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			pcm.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format == formatExtensible && size >= 26 {
				format = binary.LittleEndian.Uint16(body[24:26])
			}
			if format != formatPCM || bits != bitsPerSample {
				return PCM{}, fmt.Errorf("%w: format %d with %d bits per sample (want 16-bit PCM)", ErrUnsupportedFormat, format, bits)
			}
			if pcm.Channels <= 0 || pcm.SampleRate <= 0 {
				return PCM{}, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, pcm.Channels, pcm.SampleRate)
			}
			gotFmt = true
			if size%2 == 1 {
				if _, err := io.CopyN(io.Discard, r, 1); err != nil {
					return PCM{}, fmt.Errorf("audio: skip pad byte: %w", err)
				}
			}

		case "data":
			if !gotFmt {
				return PCM{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrNotWAV)
			}
			// Streaming writers set the size to 0 or 0xFFFFFFFF; read to EOF.
			// A declared size is an upper bound, never an allocation hint:
			// truncated streams keep whatever arrived.
			src := r
			if size != 0 && size != 0xFFFFFFFF {
				src = io.LimitReader(r, size)
			}
			data, err := io.ReadAll(src)
			if err != nil {
				return PCM{}, fmt.Errorf("audio: read data chunk: %w", err)
			}
			frame := 2 * pcm.Channels
			pcm.Data = data[:len(data)/frame*frame]
			return pcm, nil

		default:
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return PCM{}, fmt.Errorf("audio: skip %q chunk: %w", id, err)
			}
		}
	}
}

// EncodeWAV wraps p in a canonical 44-byte-header RIFF/WAVE container.
func EncodeWAV(p PCM) []byte {
	byteRate := p.SampleRate * p.Channels * bitsPerSample / 8
	blockAlign := p.Channels * bitsPerSample / 8
	dataSize := len(p.Data)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(p.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(p.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], p.Data)

	return buf
}
