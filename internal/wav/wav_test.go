package wav

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestPutLE(t *testing.T) {
	b := make([]byte, 2)
	PutLE16(b, 0x1234)
	if !bytes.Equal(b, []byte{0x34, 0x12}) {
		t.Errorf("PutLE16 = %v", b)
	}

	b = make([]byte, 4)
	PutLE32(b, 0x12345678)
	if !bytes.Equal(b, []byte{0x78, 0x56, 0x34, 0x12}) {
		t.Errorf("PutLE32 = %v", b)
	}
}

func TestWrapDecode(t *testing.T) {
	f := Mono16(22050)
	pcm := make([]byte, 22050*2)
	pcm[0], pcm[1] = 0x01, 0x02

	data := Wrap(pcm, f)
	if len(data) != HeaderSize+len(pcm) {
		t.Fatalf("len = %d", len(data))
	}

	clip, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if clip.Format != f {
		t.Errorf("format = %+v, want %+v", clip.Format, f)
	}
	if !bytes.Equal(clip.PCM, pcm) {
		t.Error("pcm mismatch")
	}
	if d := clip.Duration(); d != 1.0 {
		t.Errorf("duration = %v, want 1", d)
	}
}

func TestDecodeSkipsUnknownChunks(t *testing.T) {
	f := Format{SampleRate: 8000, Channels: 2, BitsPerSample: 16}
	data := Wrap(make([]byte, 8000*4), f)

	// Insert a LIST chunk with an odd length between fmt and data.
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	withList := append(append(append([]byte{}, data[:36]...), list...), data[36:]...)

	d, err := Duration(withList)
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d != 1.0 {
		t.Errorf("duration = %v, want 1", d)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrNotWAV},
		{"garbage", []byte("this is not audio at all"), ErrNotWAV},
		{"eight bit", Wrap(make([]byte, 10), Format{SampleRate: 8000, Channels: 1, BitsPerSample: 8}), ErrUnsupportedFormat},
		{"header only", Wrap(nil, Mono16(8000))[:36], ErrNotWAV},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDecodeTruncatedData(t *testing.T) {
	data := Wrap(make([]byte, 1000), Mono16(1000))
	clip, err := Decode(data[:HeaderSize+501])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(clip.PCM) != 500 {
		t.Errorf("pcm len = %d, want 500", len(clip.PCM))
	}
}

func TestSilence(t *testing.T) {
	for _, d := range []float64{0, 0.25, 1.5, 3} {
		got, err := Duration(Silence(d, Mono16(22050)))
		if err != nil {
			t.Fatalf("Duration: %v", err)
		}
		if math.Abs(got-d) > 1e-4 {
			t.Errorf("Silence(%v) decoded as %v", d, got)
		}
	}
}
