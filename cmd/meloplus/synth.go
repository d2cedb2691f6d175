package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/go-meloplus/internal/synth"
	"github.com/spf13/cobra"
)

func newSynthCmd() *cobra.Command {
	var (
		text     string
		out      string
		language string
		speaker  string
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize text to WAV with the configured engine",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := readSynthText(text, os.Stdin)
			if err != nil {
				return err
			}

			svc, err := newSynthService(cfg, newModelCache(cfg, os.Stderr))
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			res, err := svc.Synthesize(ctx, synth.Request{
				Text:     input,
				Language: language,
				Speaker:  speaker,
			})
			if err != nil {
				return err
			}

			return placeSynthOutput(res.Path, out, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to synthesize (if empty, read from stdin)")
	cmd.Flags().StringVar(&out, "out", "", "Output WAV path ('-' for stdout, empty keeps the generated name)")
	cmd.Flags().StringVar(&language, "lang", "", "Override the configured synthesis language")
	cmd.Flags().StringVar(&speaker, "voice", "", "Override the configured speaker")

	return cmd
}

func readSynthText(text string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimSpace(string(b))
	if input == "" {
		return "", fmt.Errorf("either provide --text or pipe text on stdin")
	}
	return input, nil
}

// placeSynthOutput moves the service's output file to outPath. "-" streams
// it to stdout and removes the file; an empty outPath prints its location.
func placeSynthOutput(generated, outPath string, stdout io.Writer) error {
	switch outPath {
	case "":
		_, err := fmt.Fprintln(stdout, generated)
		return err
	case "-":
		data, err := os.ReadFile(generated)
		if err != nil {
			return err
		}
		_ = os.Remove(generated)
		_, err = stdout.Write(data)
		return err
	}

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.Rename(generated, outPath); err != nil {
		return fmt.Errorf("move output: %w", err)
	}
	_, err := fmt.Fprintln(stdout, outPath)
	return err
}
