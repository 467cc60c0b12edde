package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagepilot/internal/browser/jsexec"
	"github.com/xkilldash9x/pagepilot/internal/browser/memdom"
	"github.com/xkilldash9x/pagepilot/internal/observability"
)

var output = jsoniter.ConfigCompatibleWithStandardLibrary

func newSnapshotCmd() *cobra.Command {
	var (
		targetURL string
		file      string
		baseURL   string
	)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the page context of a live page or a saved HTML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			var p *page
			if file != "" {
				p, err = openFile(file, baseURL)
				if err != nil {
					return err
				}
			} else {
				p, err = openPage(ctx, cfg, logger)
				if err != nil {
					return fmt.Errorf("failed to open browser tab: %w", err)
				}
				if err := p.nav.Navigate(ctx, targetURL); err != nil {
					p.close()
					return err
				}
			}
			defer p.close()

			pc, err := newEngine(p, cfg, logger).Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("failed to snapshot page: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), pc)
		},
	}

	snapshotCmd.Flags().StringVarP(&targetURL, "url", "u", "", "page to load and snapshot")
	snapshotCmd.Flags().StringVarP(&file, "file", "f", "", "saved HTML file to snapshot without a browser")
	snapshotCmd.Flags().StringVar(&baseURL, "base-url", "", "location links in --file resolve against (default file://<path>)")
	snapshotCmd.Flags().Bool("headless", true, "run Chrome without a window")
	snapshotCmd.Flags().String("remote-url", "", "attach to a running browser's DevTools endpoint")
	snapshotCmd.MarkFlagsOneRequired("url", "file")
	snapshotCmd.MarkFlagsMutuallyExclusive("url", "file")
	return snapshotCmd
}

// openFile loads a saved page into an in-memory document.
func openFile(path, baseURL string) (*page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if baseURL == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		baseURL = "file://" + filepath.ToSlash(abs)
	}

	logger := observability.GetLogger()
	doc, err := memdom.Parse(f, memdom.WithURL(baseURL), memdom.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &page{
		doc:   doc,
		realm: jsexec.NewRealm(doc, logger),
		nav:   doc,
		close: func() {},
	}, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := output.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
