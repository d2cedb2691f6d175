package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Hub      HubConfig      `mapstructure:"hub"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Manifest ManifestConfig `mapstructure:"manifest"`
	Synth    SynthConfig    `mapstructure:"synth"`
	Server   ServerConfig   `mapstructure:"server"`
	LogLevel string         `mapstructure:"log_level"`
}

type HubConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"`
	Revision string `mapstructure:"revision"`
}

type DatasetConfig struct {
	Repo      string   `mapstructure:"repo"`
	OutputDir string   `mapstructure:"output_dir"`
	Columns   []string `mapstructure:"columns"`
	Limit     int      `mapstructure:"limit"`
	Ignore    []string `mapstructure:"ignore"`
}

type ManifestConfig struct {
	Language      string `mapstructure:"language"`
	Speaker       string `mapstructure:"speaker"`
	NormalizeText bool   `mapstructure:"normalize_text"`
}

type SynthConfig struct {
	Engine       string  `mapstructure:"engine"`
	CLIPath      string  `mapstructure:"cli_path"`
	ModelRepo    string  `mapstructure:"model_repo"`
	ModelVersion string  `mapstructure:"model_version"`
	ModelDir     string  `mapstructure:"model_dir"`
	Language     string  `mapstructure:"language"`
	Speaker      string  `mapstructure:"speaker"`
	Speed        float64 `mapstructure:"speed"`
	OutDir       string  `mapstructure:"out_dir"`
	Quiet        bool    `mapstructure:"quiet"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	Workers         int    `mapstructure:"workers"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// binding ties a nested config key to the flag that overrides it.
type binding struct {
	key  string
	flag string
}

var bindings = []binding{
	{"hub.endpoint", "hub-endpoint"},
	{"hub.token", "hf-token"},
	{"hub.revision", "hub-revision"},
	{"dataset.repo", "dataset-repo"},
	{"dataset.output_dir", "dataset-output-dir"},
	{"dataset.columns", "columns"},
	{"dataset.limit", "limit"},
	{"dataset.ignore", "ignore"},
	{"manifest.language", "language"},
	{"manifest.speaker", "speaker"},
	{"manifest.normalize_text", "normalize-text"},
	{"synth.engine", "engine"},
	{"synth.cli_path", "synth-cli-path"},
	{"synth.model_repo", "model-repo"},
	{"synth.model_version", "model-version"},
	{"synth.model_dir", "model-dir"},
	{"synth.language", "synth-language"},
	{"synth.speaker", "synth-speaker"},
	{"synth.speed", "speed"},
	{"synth.out_dir", "synth-out-dir"},
	{"synth.quiet", "synth-quiet"},
	{"server.listen_addr", "server-listen-addr"},
	{"server.max_text_bytes", "max-text-bytes"},
	{"server.request_timeout", "request-timeout"},
	{"server.shutdown_timeout", "shutdown-timeout"},
	{"server.workers", "workers"},
	{"log_level", "log-level"},
}

func DefaultConfig() Config {
	return Config{
		Hub: HubConfig{
			Endpoint: "https://huggingface.co",
			Token:    "",
			Revision: "main",
		},
		Dataset: DatasetConfig{
			Repo:      "bookbot/ljspeech_phonemes",
			OutputDir: "output/ljspeech_phonemes",
			Columns:   []string{"text", "phonemes"},
			Limit:     0,
			Ignore:    nil,
		},
		Manifest: ManifestConfig{
			Language:      "EN",
			Speaker:       "default",
			NormalizeText: false,
		},
		Synth: SynthConfig{
			Engine:       EngineCLI,
			CLIPath:      "",
			ModelRepo:    "Vyvo/MeloTTS-Ljspeech",
			ModelVersion: "152000",
			ModelDir:     "models",
			Language:     "EN",
			Speaker:      "EN-US",
			Speed:        1.0,
			OutDir:       "synth-out",
			Quiet:        true,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			MaxTextBytes:    4096,
			RequestTimeout:  120,
			ShutdownTimeout: 30,
			Workers:         2,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("hub-endpoint", defaults.Hub.Endpoint, "Hugging Face hub endpoint")
	fs.String("hf-token", defaults.Hub.Token, "Hugging Face token (falls back to HF_TOKEN env var)")
	fs.String("hub-revision", defaults.Hub.Revision, "Repository revision (branch, tag or commit)")
	fs.String("dataset-repo", defaults.Dataset.Repo, "Dataset repository id")
	fs.String("dataset-output-dir", defaults.Dataset.OutputDir, "Directory the dataset snapshot is written to")
	fs.StringSlice("columns", defaults.Dataset.Columns, "Text columns to extract (empty means all non-audio columns)")
	fs.Int("limit", defaults.Dataset.Limit, "Extract at most this many rows (0 means all)")
	fs.StringSlice("ignore", defaults.Dataset.Ignore, "Additional glob patterns skipped during snapshot download")
	fs.String("language", defaults.Manifest.Language, "Manifest language code")
	fs.String("speaker", defaults.Manifest.Speaker, "Manifest speaker name")
	fs.Bool("normalize-text", defaults.Manifest.NormalizeText, "Apply Unicode NFC normalization to transcripts")
	fs.String("engine", defaults.Synth.Engine, "Synthesis engine (cli|pocket-tts)")
	fs.String("synth-cli-path", defaults.Synth.CLIPath, "Path to the synthesis engine executable")
	fs.String("model-repo", defaults.Synth.ModelRepo, "Model repository id holding G_/D_/DUR_ checkpoints")
	fs.String("model-version", defaults.Synth.ModelVersion, "Checkpoint version (step number)")
	fs.String("model-dir", defaults.Synth.ModelDir, "Local directory for downloaded checkpoints")
	fs.String("synth-language", defaults.Synth.Language, "Language passed to the synthesis engine")
	fs.String("synth-speaker", defaults.Synth.Speaker, "Speaker passed to the synthesis engine")
	fs.Float64("speed", defaults.Synth.Speed, "Speech speed multiplier")
	fs.String("synth-out-dir", defaults.Synth.OutDir, "Directory for synthesized WAV files")
	fs.Bool("synth-quiet", defaults.Synth.Quiet, "Silence engine stderr")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Maximum text size accepted by POST /tts")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-request synthesis timeout in seconds")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.Int("workers", defaults.Server.Workers, "Maximum concurrent synthesis requests")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("MELOPLUS")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("hub.token", "MELOPLUS_HUB_TOKEN", "HF_TOKEN"); err != nil {
		return Config{}, fmt.Errorf("bind token env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("meloplus")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, b := range bindings {
		f := fs.Lookup(b.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", b.flag, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("hub.endpoint", c.Hub.Endpoint)
	v.SetDefault("hub.token", c.Hub.Token)
	v.SetDefault("hub.revision", c.Hub.Revision)
	v.SetDefault("dataset.repo", c.Dataset.Repo)
	v.SetDefault("dataset.output_dir", c.Dataset.OutputDir)
	v.SetDefault("dataset.columns", c.Dataset.Columns)
	v.SetDefault("dataset.limit", c.Dataset.Limit)
	v.SetDefault("dataset.ignore", c.Dataset.Ignore)
	v.SetDefault("manifest.language", c.Manifest.Language)
	v.SetDefault("manifest.speaker", c.Manifest.Speaker)
	v.SetDefault("manifest.normalize_text", c.Manifest.NormalizeText)
	v.SetDefault("synth.engine", c.Synth.Engine)
	v.SetDefault("synth.cli_path", c.Synth.CLIPath)
	v.SetDefault("synth.model_repo", c.Synth.ModelRepo)
	v.SetDefault("synth.model_version", c.Synth.ModelVersion)
	v.SetDefault("synth.model_dir", c.Synth.ModelDir)
	v.SetDefault("synth.language", c.Synth.Language)
	v.SetDefault("synth.speaker", c.Synth.Speaker)
	v.SetDefault("synth.speed", c.Synth.Speed)
	v.SetDefault("synth.out_dir", c.Synth.OutDir)
	v.SetDefault("synth.quiet", c.Synth.Quiet)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("log_level", c.LogLevel)
}
