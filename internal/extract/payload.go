package extract

import "github.com/example/go-meloplus/internal/dataset"

// AudioColumn is the record field holding the audio payload.
const AudioColumn = "audio"

// PayloadKind tags the shape an audio payload was found in.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	// PayloadRaw is a bare byte sequence in the audio cell.
	PayloadRaw
	// PayloadWrapped is a nested object whose "bytes" field holds the data.
	PayloadWrapped
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadRaw:
		return "raw"
	case PayloadWrapped:
		return "wrapped"
	default:
		return "none"
	}
}

// AudioPayload is the audio cell of one record resolved to bytes.
type AudioPayload struct {
	Kind  PayloadKind
	Bytes []byte
}

// Usable reports whether the payload can be written as an audio file.
func (p AudioPayload) Usable() bool {
	return p.Kind != PayloadNone && len(p.Bytes) > 0
}

// ResolvePayload inspects the audio cell of rec. Anything other than a byte
// slice or a map with a byte-slice "bytes" field resolves to PayloadNone.
func ResolvePayload(rec dataset.Record) AudioPayload {
	switch v := rec[AudioColumn].(type) {
	case []byte:
		return AudioPayload{Kind: PayloadRaw, Bytes: v}
	case map[string]any:
		if b, ok := v["bytes"].([]byte); ok {
			return AudioPayload{Kind: PayloadWrapped, Bytes: b}
		}
	case dataset.Record:
		if b, ok := v["bytes"].([]byte); ok {
			return AudioPayload{Kind: PayloadWrapped, Bytes: b}
		}
	}
	return AudioPayload{}
}
