package audio

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
)

// ErrNotWAV is returned when a file does not carry a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a wav file")

var levels = []rune("▁▂▃▄▅▆▇█")

// Waveform holds normalised peaks for a decoded clip.
type Waveform struct {
	Peaks      []float64
	Duration   time.Duration
	SampleRate int
	Channels   int
}

// DecodeWaveform reads a WAV file and reduces it to buckets peaks in [0, 1].
func DecodeWaveform(path string, buckets int) (*Waveform, error) {
	if buckets <= 0 {
		buckets = 1
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clip: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), ErrNotWAV)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		channels = 1
	}
	rate := int(dec.SampleRate)
	frames := len(buf.Data) / channels

	w := &Waveform{
		Peaks:      make([]float64, buckets),
		SampleRate: rate,
		Channels:   channels,
	}
	if rate > 0 {
		w.Duration = time.Duration(float64(frames) / float64(rate) * float64(time.Second))
	}
	if frames == 0 {
		return w, nil
	}

	full := math.Exp2(float64(dec.BitDepth) - 1)
	if dec.BitDepth == 0 {
		full = math.Exp2(15)
	}
	for i, sample := range buf.Data {
		b := (i / channels) * buckets / frames
		v := math.Abs(float64(sample)) / full
		if v > w.Peaks[b] {
			w.Peaks[b] = math.Min(v, 1)
		}
	}
	return w, nil
}

// IsWAV reports whether path looks like a WAV file by extension or header.
func IsWAV(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, 12)
	if _, err := f.Read(head); err != nil {
		return false
	}
	return bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE"))
}

// Render draws the waveform in width glyphs, split at progress (0..1) into the
// played and remaining parts.
func (w *Waveform) Render(width int, progress float64) (played, remaining string) {
	if w == nil || width <= 0 || len(w.Peaks) == 0 {
		return "", ""
	}
	progress = math.Max(0, math.Min(1, progress))
	split := int(math.Round(progress * float64(width)))

	var a, b strings.Builder
	for i := 0; i < width; i++ {
		lo := i * len(w.Peaks) / width
		hi := (i + 1) * len(w.Peaks) / width
		if hi <= lo {
			hi = lo + 1
		}
		peak := 0.0
		for _, p := range w.Peaks[lo:hi] {
			peak = math.Max(peak, p)
		}
		glyph := levels[int(math.Round(peak*float64(len(levels)-1)))]
		if i < split {
			a.WriteRune(glyph)
		} else {
			b.WriteRune(glyph)
		}
	}
	return a.String(), b.String()
}
