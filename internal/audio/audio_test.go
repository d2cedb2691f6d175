package audio

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeWAV_ProbeRoundTrip(t *testing.T) {
	samples := make([]float32, 22050) // 0.5 s at 44.1 kHz
	for i := range samples {
		samples[i] = 0.25
	}

	data, err := EncodeWAV(samples, 44100)
	if err != nil {
		t.Fatalf("EncodeWAV error = %v", err)
	}

	info, err := Probe(data)
	if err != nil {
		t.Fatalf("Probe error = %v", err)
	}
	if info.SampleRate != 44100 || info.Channels != 1 || info.BitDepth != 16 {
		t.Errorf("Probe = %+v; want 44100 Hz mono 16-bit", info)
	}
	if d := info.Duration; d < 490*time.Millisecond || d > 510*time.Millisecond {
		t.Errorf("Duration = %v; want ~500ms", d)
	}
}

func TestEncodeWAV_InvalidSampleRate(t *testing.T) {
	if _, err := EncodeWAV([]float32{0}, 0); err == nil {
		t.Error("EncodeWAV(rate=0) = nil; want error")
	}
}

func TestProbe_NotWAV(t *testing.T) {
	_, err := Probe([]byte("fLaC\x00\x00\x00\x22 definitely not riff"))
	if !errors.Is(err, ErrNotWAV) {
		t.Errorf("Probe(flac) error = %v; want ErrNotWAV", err)
	}
	if _, err := Probe(nil); err == nil {
		t.Error("Probe(nil) = nil; want error")
	}
}

func TestSniffExtension(t *testing.T) {
	wav, err := EncodeWAV([]float32{0, 0.1}, 16000)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"wav", wav, ExtWAV},
		{"flac", []byte("fLaC...."), ExtFLAC},
		{"ogg", []byte("OggS...."), ExtOGG},
		{"mp3 id3", []byte("ID3\x04...."), ExtMP3},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, ExtMP3},
		{"unknown", []byte("hello"), ExtWAV},
		{"empty", nil, ExtWAV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SniffExtension(tt.data); got != tt.want {
				t.Errorf("SniffExtension = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestIsAudioExt(t *testing.T) {
	for _, ext := range []string{".wav", ".WAV", ".flac", ".mp3", ".ogg"} {
		if !IsAudioExt(ext) {
			t.Errorf("IsAudioExt(%q) = false; want true", ext)
		}
	}
	for _, ext := range []string{".txt", "", "wav"} {
		if IsAudioExt(ext) {
			t.Errorf("IsAudioExt(%q) = true; want false", ext)
		}
	}
}
