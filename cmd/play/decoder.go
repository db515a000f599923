package main

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// sampleSource abstracts a decoded audio file so the playback loop handles
// WAV and MP3 uniformly. ReadSamples fills dst with normalized samples in
// [-1, 1] and returns io.EOF once the stream ends.
type sampleSource interface {
	ReadSamples(dst []float64) (int, error)
	SampleRate() int
	Channels() int
}

// openSource picks a decoder by file extension.
func openSource(path string) (sampleSource, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	var src sampleSource
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		src, err = newWavSource(f)
	case ".mp3":
		src, err = newMp3Source(f)
	default:
		err = errors.New("unsupported file type (want .wav or .mp3)")
	}

	if err != nil {
		_ = f.Close()

		return nil, nil, err
	}

	return src, f, nil
}

// wavSource adapts the go-audio WAV decoder.
type wavSource struct {
	dec   *wav.Decoder
	buf   *audio.IntBuffer
	scale float64
}

func newWavSource(r io.ReadSeeker) (sampleSource, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	return &wavSource{
		dec:   dec,
		scale: float64(int64(1) << (dec.BitDepth - 1)),
	}, nil
}

func (w *wavSource) SampleRate() int { return int(w.dec.SampleRate) }
func (w *wavSource) Channels() int   { return int(w.dec.NumChans) }

func (w *wavSource) ReadSamples(dst []float64) (int, error) {
	if w.buf == nil || len(w.buf.Data) < len(dst) {
		w.buf = &audio.IntBuffer{Data: make([]int, len(dst))}
	}

	n, err := w.dec.PCMBuffer(w.buf)
	if err != nil {
		return 0, err
	}

	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n && i < len(dst); i++ {
		dst[i] = float64(w.buf.Data[i]) / w.scale
	}

	return n, nil
}

// mp3Source adapts the go-mp3 decoder, which always produces 16-bit stereo.
type mp3Source struct {
	dec *mp3.Decoder
	buf []byte
}

func newMp3Source(r io.Reader) (sampleSource, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	return &mp3Source{dec: dec}, nil
}

func (m *mp3Source) SampleRate() int { return m.dec.SampleRate() }
func (m *mp3Source) Channels() int   { return 2 }

func (m *mp3Source) ReadSamples(dst []float64) (int, error) {
	want := len(dst) * 2
	if len(m.buf) < want {
		m.buf = make([]byte, want)
	}

	read, err := m.dec.Read(m.buf[:want])
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}

	n := read / 2
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(m.buf[i*2:]))
		if s >= 0 {
			dst[i] = float64(s) / 32767
		} else {
			dst[i] = float64(s) / 32768
		}
	}

	if n == 0 && err != nil {
		return 0, err
	}

	return n, nil
}
