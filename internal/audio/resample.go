package audio

import (
	"encoding/binary"

	"github.com/dgnsrekt/scenecast/internal/wav"
)

// Convert resamples a decoded clip to the output format, applying a
// playback speed by linear interpolation. Speed changes pitch.
func Convert(clip wav.Clip, to wav.Format, speed float64) []byte {
	if speed <= 0 {
		speed = 1
	}
	from := clip.Format
	if from == to && speed == 1 {
		out := make([]byte, len(clip.PCM))
		copy(out, clip.PCM)
		return out
	}

	inFrame := from.FrameSize()
	if inFrame == 0 || to.SampleRate == 0 {
		return nil
	}
	frames := len(clip.PCM) / inFrame
	if frames == 0 {
		return nil
	}

	step := float64(from.SampleRate) * speed / float64(to.SampleRate)
	outFrames := int(float64(frames) / step)
	out := make([]byte, outFrames*to.FrameSize())

	sample := func(frame, ch int) float64 {
		if frame >= frames {
			frame = frames - 1
		}
		base := frame * inFrame
		switch {
		case from.Channels == 1:
			return float64(int16(binary.LittleEndian.Uint16(clip.PCM[base:])))
		case to.Channels == 1:
			var sum float64
			for c := 0; c < from.Channels; c++ {
				sum += float64(int16(binary.LittleEndian.Uint16(clip.PCM[base+2*c:])))
			}
			return sum / float64(from.Channels)
		default:
			if ch >= from.Channels {
				ch = from.Channels - 1
			}
			return float64(int16(binary.LittleEndian.Uint16(clip.PCM[base+2*ch:])))
		}
	}

	pos := 0
	for i := 0; i < outFrames; i++ {
		src := float64(i) * step
		j := int(src)
		frac := src - float64(j)
		for ch := 0; ch < to.Channels; ch++ {
			a := sample(j, ch)
			b := sample(j+1, ch)
			v := a + (b-a)*frac
			binary.LittleEndian.PutUint16(out[pos:], uint16(clamp16(v)))
			pos += 2
		}
	}
	return out
}

func clamp16(v float64) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}
