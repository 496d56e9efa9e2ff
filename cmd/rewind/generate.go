package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/rewind/examples/users"
	"github.com/platinummonkey/rewind/pkg/changelog"
	"github.com/platinummonkey/rewind/pkg/render"
)

func newChangelogCmd(opts *options) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Print the changelog of every version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := changelog.ParseFormat(format)
			if err != nil {
				return err
			}
			app, err := users.Build(opts.generationLogger(cmd.ErrOrStderr()), nil)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer file.Close()
				w = file
			}
			return app.Changelog.Write(w, f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(changelog.FormatMarkdown), "Output format: json, yaml or markdown")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newRenderCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the schemas of every version as Go source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := opts.generationLogger(cmd.ErrOrStderr())
			app, err := users.Build(log, nil)
			if err != nil {
				return err
			}
			files, err := render.NewRenderer(log).RenderAll(app.Schemas)
			if err != nil {
				return err
			}
			for _, f := range files {
				path := filepath.Join(out, f.Path)
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return fmt.Errorf("failed to create directory for %s: %w", path, err)
				}
				if err := os.WriteFile(path, f.Content, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", path, f.Size)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "generated", "Directory the version packages are written to")
	return cmd
}

func newVersionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List the declared versions and their changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := users.Build(opts.generationLogger(cmd.ErrOrStderr()), nil)
			if err != nil {
				return err
			}
			printVersions(cmd.OutOrStdout(), app)
			return nil
		},
	}
}

func printVersions(w io.Writer, app *users.App) {
	for _, v := range app.Bundle.Versions() {
		fmt.Fprintln(w, v.Date)
		if len(v.Changes) == 0 {
			fmt.Fprintln(w, "  (first version)")
		}
		for _, vc := range v.Changes {
			marker := ""
			if vc.HasSideEffects() {
				marker = " [side effects]"
			}
			fmt.Fprintf(w, "  - %s%s\n", vc.Name(), marker)
		}
	}
}
