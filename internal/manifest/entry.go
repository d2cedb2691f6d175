package manifest

import (
	"fmt"
	"strings"
)

// Separator delimits the fields of a manifest line.
const Separator = "|"

// Entry is one line of metadata.list.
type Entry struct {
	AudioPath string // relative to the manifest, e.g. wavs/x.wav
	Voice     string // {language}-{speaker}
	Language  string
	Text      string
}

// NewEntry builds the entry for a copied audio file name.
func NewEntry(filename, language, speaker, text string) Entry {
	return Entry{
		AudioPath: AudioDir + "/" + filename,
		Voice:     language + "-" + speaker,
		Language:  language,
		Text:      text,
	}
}

func (e Entry) String() string {
	return strings.Join([]string{e.AudioPath, e.Voice, e.Language, e.Text}, Separator)
}

// ParseLine splits a manifest line into its four fields. The transcript is
// the remainder after the third separator and may itself contain "|".
func ParseLine(line string) (Entry, error) {
	parts := strings.SplitN(strings.TrimRight(line, "\r\n"), Separator, 4)
	if len(parts) != 4 {
		return Entry{}, fmt.Errorf("manifest line has %d fields, want 4: %q", len(parts), line)
	}
	e := Entry{AudioPath: parts[0], Voice: parts[1], Language: parts[2], Text: parts[3]}
	if e.AudioPath == "" || e.Language == "" {
		return Entry{}, fmt.Errorf("manifest line missing audio path or language: %q", line)
	}
	return e, nil
}

// Parse reads every non-blank line of a manifest.
func Parse(content string) ([]Entry, error) {
	var out []Entry
	for i, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, e)
	}
	return out, nil
}
