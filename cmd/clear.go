package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/ae-columns/internal/config"
	"github.com/kyleking/ae-columns/internal/storage"
)

func mappingClearCommand() *cli.Command {
	return &cli.Command{
		Name:        "clear",
		Usage:       "Remove every mapping of the dataset",
		Description: `Delete all friendly names stored for the current dataset. This action requires confirmation.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "skip confirmation prompt",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}

			return runClearWithStorage(ctx, cmd.Root().Writer, cmd.Root().Reader, cfg, nil, cmd.Bool("force"))
		},
	}
}

func runClearWithStorage(ctx context.Context, w io.Writer, in io.Reader, cfg *config.Config, repo storage.Repository, force bool) error {
	repo, closeRepo, err := ensureStorage(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer closeRepo()

	coll, err := repo.LoadMappings(ctx, cfg.Dataset)
	if err != nil {
		return fmt.Errorf("failed to load mappings: %w", err)
	}

	if coll.Len() == 0 {
		fmt.Fprintf(w, "Dataset %q has no mappings.\n", cfg.Dataset)
		return nil
	}

	fmt.Fprintf(w, "This will delete %d mapping(s) from dataset %q.\n", coll.Len(), cfg.Dataset)

	if !force {
		fmt.Fprintf(w, "\nAre you sure? This action cannot be undone.\n")
		fmt.Fprintf(w, "Type 'yes' to confirm: ")

		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Fprintln(w, "Operation cancelled.")
			return nil
		}
	}

	removed, err := repo.ClearDataset(ctx, cfg.Dataset)
	if err != nil {
		return fmt.Errorf("failed to clear dataset: %w", err)
	}

	fmt.Fprintf(w, "Removed %d mapping(s).\n", removed)

	return nil
}
