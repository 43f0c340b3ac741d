// Package wav wraps and decodes PCM WAV clips produced by synthesis engines.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the size of a canonical WAV header in bytes.
const HeaderSize = 44

// FormatPCM is the audio format code for uncompressed PCM.
const FormatPCM = 1

// PiperSampleRate is the raw output rate of Piper voices.
const PiperSampleRate = 22050

var (
	// ErrNotWAV is returned when data does not start with a RIFF/WAVE header.
	ErrNotWAV = errors.New("not a WAV file")

	// ErrUnsupportedFormat is returned for compressed or non 16-bit audio.
	ErrUnsupportedFormat = errors.New("unsupported WAV format")
)

// Format describes interleaved PCM samples.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Mono16 returns a 16-bit mono format at the given rate.
func Mono16(rate int) Format {
	return Format{SampleRate: rate, Channels: 1, BitsPerSample: 16}
}

// FrameSize returns the number of bytes per sample frame.
func (f Format) FrameSize() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate returns the number of bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.FrameSize()
}

// Duration returns the length in seconds of pcm bytes in this format.
func (f Format) Duration(n int) float64 {
	if f.ByteRate() == 0 {
		return 0
	}
	return float64(n/f.FrameSize()) / float64(f.SampleRate)
}

// Clip is a decoded WAV file.
type Clip struct {
	Format Format
	PCM    []byte
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	return c.Format.Duration(len(c.PCM))
}

// Wrap adds a canonical WAV header to raw PCM data.
func Wrap(pcm []byte, f Format) []byte {
	header := make([]byte, HeaderSize)

	copy(header[0:4], "RIFF")
	PutLE32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	PutLE32(header[16:20], 16)
	PutLE16(header[20:22], FormatPCM)
	PutLE16(header[22:24], uint16(f.Channels))
	PutLE32(header[24:28], uint32(f.SampleRate))
	PutLE32(header[28:32], uint32(f.ByteRate()))
	PutLE16(header[32:34], uint16(f.FrameSize()))
	PutLE16(header[34:36], uint16(f.BitsPerSample))

	copy(header[36:40], "data")
	PutLE32(header[40:44], uint32(len(pcm)))

	return append(header, pcm...)
}

// Decode parses a RIFF/WAVE file, walking chunks until it has both the
// format and the data. Only 16-bit PCM is accepted.
func Decode(data []byte) (Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, ErrNotWAV
	}

	var (
		clip    Clip
		haveFmt bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			// Streaming writers may leave the data size unset.
			if id == "data" {
				end = len(data)
			} else {
				return Clip{}, fmt.Errorf("%w: truncated %q chunk", ErrNotWAV, id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Clip{}, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			code := binary.LittleEndian.Uint16(data[body : body+2])
			clip.Format = Format{
				Channels:      int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
			if code != FormatPCM || clip.Format.BitsPerSample != 16 || clip.Format.Channels < 1 || clip.Format.SampleRate <= 0 {
				return Clip{}, fmt.Errorf("%w: code=%d bits=%d channels=%d", ErrUnsupportedFormat,
					code, clip.Format.BitsPerSample, clip.Format.Channels)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Clip{}, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			pcm := data[body:end]
			if frame := clip.Format.FrameSize(); len(pcm)%frame != 0 {
				pcm = pcm[:len(pcm)-len(pcm)%frame]
			}
			clip.PCM = pcm
			return clip, nil
		}

		pos = end
		if size%2 == 1 {
			pos++
		}
	}
	return Clip{}, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
}

// Duration decodes the header of data and returns its length in seconds.
func Duration(data []byte) (float64, error) {
	clip, err := Decode(data)
	if err != nil {
		return 0, err
	}
	return clip.Duration(), nil
}

// Silence returns a WAV file holding d seconds of silence.
func Silence(d float64, f Format) []byte {
	if d < 0 {
		d = 0
	}
	frames := int(d*float64(f.SampleRate) + 0.5)
	return Wrap(make([]byte, frames*f.FrameSize()), f)
}

// PutLE16 writes v in little-endian order.
func PutLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// PutLE32 writes v in little-endian order.
func PutLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
