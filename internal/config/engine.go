package config

import (
	"fmt"
	"strings"
)

const (
	EngineCLI       = "cli"
	EnginePocketTTS = "pocket-tts"
)

func NormalizeEngine(raw string) (string, error) {
	engine := strings.ToLower(strings.TrimSpace(raw))
	if engine == "" {
		engine = EngineCLI
	}
	switch engine {
	case EngineCLI, EnginePocketTTS:
		return engine, nil
	case "pockettts", "pocket":
		return EnginePocketTTS, nil
	default:
		return "", fmt.Errorf(
			"invalid engine %q (expected %s|%s)",
			raw,
			EngineCLI,
			EnginePocketTTS,
		)
	}
}
