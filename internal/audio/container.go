package audio

import "bytes"

// Container extensions recognised by SniffExtension.
const (
	ExtWAV  = ".wav"
	ExtFLAC = ".flac"
	ExtOGG  = ".ogg"
	ExtMP3  = ".mp3"
)

// Extensions lists every container extension treated as audio.
var Extensions = []string{ExtWAV, ExtFLAC, ExtOGG, ExtMP3}

// IsAudioExt reports whether ext (with leading dot, any case) is a known container.
func IsAudioExt(ext string) bool {
	for _, e := range Extensions {
		if bytes.EqualFold([]byte(ext), []byte(e)) {
			return true
		}
	}
	return false
}

// SniffExtension guesses the container from the payload's magic bytes.
// Unknown payloads are reported as WAV.
func SniffExtension(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return ExtWAV
	case bytes.HasPrefix(data, []byte("fLaC")):
		return ExtFLAC
	case bytes.HasPrefix(data, []byte("OggS")):
		return ExtOGG
	case bytes.HasPrefix(data, []byte("ID3")):
		return ExtMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ExtMP3
	default:
		return ExtWAV
	}
}
