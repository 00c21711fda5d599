package main

import (
	"fmt"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/spf13/cobra"

	"github.com/cptaffe/acme-chroma/internal/session"
	"github.com/cptaffe/acme-chroma/internal/stylemap"
)

func newLexersCmd(a *app) *cobra.Command {
	var aliases bool
	cmd := &cobra.Command{
		Use:   "lexers",
		Short: "List lexer names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, n := range lexers.Names(aliases) {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&aliases, "aliases", false, "include aliases")
	return cmd
}

func newStylesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List theme names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, n := range stylemap.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newDetectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detect file",
		Short: "Print the lexer a file would be highlighted with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			lexer, err := a.lexerFor("", args[0], text)
			if err != nil {
				return err
			}
			name := session.LexerName(lexer)
			if name == "" {
				name = "plaintext"
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}
