package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/alecthomas/chroma/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cptaffe/acme-chroma/internal/buffer"
	"github.com/cptaffe/acme-chroma/internal/format"
	"github.com/cptaffe/acme-chroma/internal/session"
	"github.com/cptaffe/acme-chroma/style"
)

func newFormatCmd(a *app) *cobra.Command {
	var (
		lexerName string
		styles    bool
	)
	cmd := &cobra.Command{
		Use:   "format [file]",
		Short: "Print a file as a tagged chunk stream",
		Long: `format highlights a file, or standard input when no file or "-" is
given, and prints one "tag:payload" line per chunk.  With --styles it prints
the palette and style runs in the acme-styles layer format instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "-"
			if len(args) == 1 {
				name = args[0]
			}
			text, err := a.readInput(cmd.InOrStdin(), name)
			if err != nil {
				return err
			}
			lexer, err := a.lexerFor(lexerName, name, text)
			if err != nil {
				return err
			}
			m, err := a.mapper(a.cfg)
			if err != nil {
				return err
			}
			chunks := format.New(m, format.WithLogger(a.log)).Format(text, lexer)
			if !styles {
				return format.Encode(cmd.OutOrStdout(), chunks)
			}
			_, err = io.WriteString(cmd.OutOrStdout(),
				style.Format(m.Palette(a.cfg.BaseFont()), chunkRuns(chunks)))
			return err
		},
	}
	cmd.Flags().StringVarP(&lexerName, "lexer", "l", "", "lexer name (default: detect)")
	cmd.Flags().BoolVar(&styles, "styles", false, "print acme-styles palette and runs")
	return cmd
}

func (a *app) readInput(stdin io.Reader, name string) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := afero.ReadFile(a.fs, name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(b), nil
}

// lexerFor returns the named lexer, or the one detected for name and text.
// A nil lexer means plain text.
func (a *app) lexerFor(lexerName, name, text string) (chroma.Lexer, error) {
	if lexerName != "" {
		return session.LookupLexer(lexerName)
	}
	if name == "-" {
		name = ""
	}
	return session.DetectLexer(filepath.Base(name), text, a.cfg.LexerOverrides()), nil
}

// chunkRuns returns the styled spans of chunks as rune-offset runs.
func chunkRuns(chunks []style.Chunk) []style.StyleRun {
	b := buffer.New("")
	b.Insert(buffer.Pos{Line: 1}, chunks...)
	return b.SyntaxRuns()
}
