// Command tier1c compiles and runs methods with the tier-1 compiler.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tier1/pkg/compiledfile"
	"tier1/pkg/config"
	"tier1/pkg/helpers/stubs"
	"tier1/pkg/jit"
	"tier1/pkg/method"
	"tier1/pkg/native"
	"tier1/pkg/tagged"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tier1c",
		Short:         "Tier-1 bytecode to x86-64 compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a tier1.toml file")
	root.PersistentFlags().Bool("debug", false, "log every emitted instruction")

	root.AddCommand(
		newOpcodesCmd(),
		newCompileCmd(),
		newRunCmd(),
		newEncodeCmd(),
	)
	return root
}

// loadConfig reads --config, if given, and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if f := cmd.Flags().Lookup("debug"); f != nil && f.Changed {
		cfg.JIT.Debug, _ = cmd.Flags().GetBool("debug")
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: color.NoColor, PartsExclude: []string{zerolog.TimestampFieldName}}
	return zerolog.New(out).Level(level)
}

// session holds the native memory and reference helpers one command uses.
type session struct {
	cfg   *config.Config
	log   zerolog.Logger
	arena *native.Arena
	rt    *stubs.Runtime
	undef uintptr
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := newLogger(cmd, cfg.JIT.Debug)

	arena, err := native.NewArena(cfg.Arena.Size)
	if err != nil {
		return nil, fmt.Errorf("allocate arena: %w", err)
	}
	rt, err := stubs.New(arena, log)
	if err != nil {
		arena.Free()
		return nil, err
	}
	undef, err := arena.Words(1)
	if err != nil {
		rt.Release()
		arena.Free()
		return nil, err
	}
	arena.Store(undef, uintptr(tagged.Undef))
	return &session{cfg: cfg, log: log, arena: arena, rt: rt, undef: undef}, nil
}

func (s *session) options() jit.Options {
	return jit.Options{
		Helpers:       s.rt.Table(),
		UndefinedSlot: s.undef,
		Caches:        s.rt,
		Opcodes:       s.cfg.Opcodes(jit.Supported()),
		Debug:         s.cfg.JIT.Debug,
		Logger:        s.log,
	}
}

func (s *session) Close() {
	s.rt.Release()
	s.arena.Free()
}

func loadMethod(path string) (*method.Method, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cf, err := compiledfile.Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m, err := cf.Method()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
