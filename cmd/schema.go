package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/ae-columns/internal/config"
	"github.com/kyleking/ae-columns/internal/errors"
	"github.com/kyleking/ae-columns/internal/formatter"
	"github.com/kyleking/ae-columns/internal/schema"
	"github.com/kyleking/ae-columns/internal/storage"
)

// SchemaCommand prints the dataset's columns by category with their friendly names
func SchemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Show the dataset's columns and their friendly names",
		Description: `List the blob, double and index columns the dataset exposes. The column
counts come from the schema section of the configuration.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "category",
				Aliases: []string{"c"},
				Usage:   "only show one category (blob, double, index)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}

			return runSchema(ctx, cmd.Root().Writer, cfg, nil, cmd.String("category"))
		},
	}
}

func runSchema(ctx context.Context, w io.Writer, cfg *config.Config, repo storage.Repository, category string) error {
	var provider schema.Provider = providerFromConfig(cfg)

	if category != "" {
		t, err := schema.ParseColumnType(category)
		if err != nil {
			return errors.Wrap(err, errors.ErrTypeValidation, "invalid category")
		}

		provider = schema.NewStatic(map[schema.ColumnType][]string{t: provider.ColumnsByCategory(t)})
	}

	repo, closeRepo, err := ensureStorage(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer closeRepo()

	coll, err := repo.LoadMappings(ctx, cfg.Dataset)
	if err != nil {
		return fmt.Errorf("failed to load mappings: %w", err)
	}

	fmt.Fprintf(w, "Dataset: %s\n\n", cfg.Dataset)

	return formatter.NewFormatter().FormatSchema(w, provider, coll)
}
