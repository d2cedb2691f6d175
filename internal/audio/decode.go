package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/cwbudde/wav"
)

// ErrNotWAV is returned by Probe for payloads without a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a WAV payload")

// Info is the header summary of a WAV payload.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Probe reads the header of a WAV payload without decoding its samples.
func Probe(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, errors.New("empty WAV input")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Info{}, ErrNotWAV
	}

	dur, err := dec.Duration()
	if err != nil {
		return Info{}, fmt.Errorf("reading WAV duration: %w", err)
	}

	return Info{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Duration:   dur,
	}, nil
}
