package main

import (
	"fmt"
	"os"

	"github.com/binzume/rigconv/converter"
	"github.com/binzume/rigconv/logger"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	config       string
	logLevel     string
	logJSON      bool
	sampleRate   float32
	lenientBones bool
	atlas        string
}

var flags globalFlags

// loadConfig merges the config file with the flags set on the command line.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	cfg, err := LoadConfig(flags.config)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed("log-json") {
		cfg.LogJSON = flags.logJSON
	}
	if changed("sample-rate") {
		cfg.SampleRate = flags.sampleRate
	}
	if changed("lenient-bones") {
		cfg.LenientBones = flags.lenientBones
	}
	if changed("atlas") {
		cfg.Atlas = flags.atlas
	}
	if changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if changed("output") {
		cfg.Output, _ = cmd.Flags().GetString("output")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type session struct {
	cfg  *Config
	opts *converter.Options
	log  logger.Logger
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, opts: opts, log: cfg.Logger()}, nil
}

func (s *session) context(path string) *converter.CompilationContext {
	return converter.NewCompilationContext(assetName(path), s.opts, s.log)
}

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rigconv",
		Short:         "Compile skeletal animation assets into runtime rig records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.config, "config", "", "config file (rigconv.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "debug, info, warn, error or disabled")
	pf.BoolVar(&flags.logJSON, "log-json", false, "log as JSON")
	pf.Float32Var(&flags.sampleRate, "sample-rate", 30, "animation sample rate (samples/sec)")
	pf.BoolVar(&flags.lenientBones, "lenient-bones", false, "warn instead of failing on unknown bone references")
	pf.StringVar(&flags.atlas, "atlas", "", "atlas UV file for attachment paths")

	root.AddCommand(
		CompileCmd(),
		PreviewCmd(),
		DumpCmd(),
	)
	return root
}

func main() {
	if err := RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
