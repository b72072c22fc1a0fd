package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/ae-columns/internal/config"
	"github.com/kyleking/ae-columns/internal/formatter"
	"github.com/kyleking/ae-columns/internal/storage"
)

type listOptions struct {
	Format formatter.OutputFormat
	Dump   bool
}

func mappingListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List the dataset's mappings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "output format (table, json, csv)",
			},
			&cli.BoolFlag{
				Name:  "dump",
				Usage: "print the raw mapping structs",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}

			format, err := formatter.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}

			return runMappingList(ctx, cmd.Root().Writer, cfg, nil, listOptions{Format: format, Dump: cmd.Bool("dump")})
		},
	}
}

// DatasetsCommand lists every dataset with stored mappings
func DatasetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "datasets",
		Usage: "List datasets that have mappings",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}

			return runDatasets(ctx, cmd.Root().Writer, cfg, nil)
		},
	}
}

func runMappingList(ctx context.Context, w io.Writer, cfg *config.Config, repo storage.Repository, opts listOptions) error {
	repo, closeRepo, err := ensureStorage(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer closeRepo()

	coll, err := repo.LoadMappings(ctx, cfg.Dataset)
	if err != nil {
		return fmt.Errorf("failed to load mappings: %w", err)
	}

	f := formatter.NewFormatter()

	if opts.Dump {
		f.Dump(w, coll.Mappings())
		return nil
	}

	return f.FormatMappings(w, coll, opts.Format)
}

func runDatasets(ctx context.Context, w io.Writer, cfg *config.Config, repo storage.Repository) error {
	repo, closeRepo, err := ensureStorage(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer closeRepo()

	datasets, err := repo.ListDatasets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list datasets: %w", err)
	}

	return formatter.NewFormatter().FormatDatasets(w, datasets)
}
