package main

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-chroma/internal/config"
	"github.com/cptaffe/acme-chroma/internal/logger"
	"github.com/cptaffe/acme-chroma/internal/stylemap"
)

// app is the state shared by every subcommand.
type app struct {
	fs      afero.Fs
	cfgFile string
	verbose bool

	cfg config.Config
	v   *viper.Viper
	log *zap.Logger
}

func newApp() *app {
	return &app{fs: afero.NewOsFs()}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "acme-chroma",
		Short: "Syntax highlighting for acme",
		Long: `acme-chroma mirrors every open acme window, highlights it with a chroma
lexer and publishes the result as an acme-styles layer.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup(cmd) },
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				a.log.Sync() //nolint:errcheck
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "",
		"config file (yaml, toml or json)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false,
		"verbose logging")

	root.AddCommand(
		newServeCmd(a),
		newFormatCmd(a),
		newLexersCmd(a),
		newDetectCmd(a),
		newStylesCmd(a),
	)
	return root
}

// setup loads the config and builds the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, v, err := config.Load(a.fs, a.cfgFile)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Verbose = true
	}
	a.cfg, a.v = cfg, v

	if a.log == nil {
		if a.log, err = newLogger(cfg.Verbose); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		zap.ReplaceGlobals(a.log)
	}
	cmd.SetContext(logger.NewContext(cmd.Context(), a.log))
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// mapper builds c's theme.  Palette entries naming unknown tags are logged
// and left out.
func (a *app) mapper(c config.Config) (*stylemap.Mapper, error) {
	m, err := c.Mapper(a.fs)
	if errors.Is(err, stylemap.ErrUnknownTag) {
		a.log.Warn("skipped palette entries", zap.String("palette", c.Palette), zap.Error(err))
		return m, nil
	}
	return m, err
}
