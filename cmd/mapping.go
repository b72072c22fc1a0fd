package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/ae-columns/internal/config"
	"github.com/kyleking/ae-columns/internal/errors"
	"github.com/kyleking/ae-columns/internal/formatter"
	"github.com/kyleking/ae-columns/internal/mapping"
	"github.com/kyleking/ae-columns/internal/schema"
	"github.com/kyleking/ae-columns/internal/storage"
)

// MappingCommand groups the commands that edit a dataset's friendly names
func MappingCommand() *cli.Command {
	return &cli.Command{
		Name:    "mapping",
		Aliases: []string{"map"},
		Usage:   "Manage friendly names for the dataset's columns",
		Commands: []*cli.Command{
			mappingListCommand(),
			mappingSetCommand(),
			mappingRemoveCommand(),
			mappingPasteCommand(),
			mappingClearCommand(),
		},
	}
}

func mappingSetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Name a single column",
		ArgsUsage: "<column> <friendly name>",
		Description: `Assign a friendly name to one column. An empty name removes the mapping.

Example:
  ae-columns mapping set blob1 country --description "ISO 3166 code"`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "description", Usage: "free-text description of the column"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() < 1 {
				return errors.New(errors.ErrTypeValidation, "a column is required").
					WithSuggestion("Usage: ae-columns mapping set <column> <friendly name>")
			}

			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}

			name := strings.Join(cmd.Args().Slice()[1:], " ")

			return runMappingSet(ctx, cmd.Root().Writer, cfg, nil, cmd.Args().First(), name, cmd.String("description"))
		},
	}
}

func mappingRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm"},
		Usage:     "Remove the friendly name of a column",
		ArgsUsage: "<column>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errors.New(errors.ErrTypeValidation, "exactly one column is required")
			}

			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}

			return runMappingRemove(ctx, cmd.Root().Writer, cfg, nil, cmd.Args().First())
		},
	}
}

func mappingPasteCommand() *cli.Command {
	return &cli.Command{
		Name:      "paste",
		Usage:     "Paste comma-separated names starting at a column",
		ArgsUsage: "<column> [text]",
		Description: `Distribute a comma-separated list across the column and the ones after it
in the same category, replacing that category's previous names. Without text
the list is read from stdin. Text without a comma names just the one column.

Example:
  ae-columns mapping paste blob1 "country, city, , browser"
  pbpaste | ae-columns mapping paste double1`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Usage: "pasted text; overrides the positional text"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() < 1 {
				return errors.New(errors.ErrTypeValidation, "a column is required")
			}

			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}

			text := cmd.String("text")
			if text == "" {
				text = strings.Join(cmd.Args().Slice()[1:], " ")
			}

			clipboard := &readerClipboard{r: cmd.Root().Reader}

			return runMappingPaste(ctx, cmd.Root().Writer, cfg, nil, clipboard, cmd.Args().First(), text)
		},
	}
}

func runMappingSet(ctx context.Context, w io.Writer, cfg *config.Config, repo storage.Repository, column, name, description string) error {
	provider := providerFromConfig(cfg)
	if err := checkColumn(provider, column); err != nil {
		return err
	}

	repo, closeRepo, err := ensureStorage(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer closeRepo()

	store, err := storage.OpenStore(ctx, repo, cfg.Dataset)
	if err != nil {
		return err
	}

	coll, changed, err := store.Set(ctx, provider, column, name, description)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to save mapping")
	}

	switch {
	case !changed:
		fmt.Fprintln(w, "No changes.")
	case strings.TrimSpace(name) == "":
		fmt.Fprintf(w, "Removed mapping for %s.\n", column)
	default:
		fmt.Fprintf(w, "Mapped %s to %q.\n", column, name)
	}

	return formatter.NewFormatter().FormatMappings(w, coll, formatter.FormatTable)
}

func runMappingRemove(ctx context.Context, w io.Writer, cfg *config.Config, repo storage.Repository, column string) error {
	repo, closeRepo, err := ensureStorage(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer closeRepo()

	store, err := storage.OpenStore(ctx, repo, cfg.Dataset)
	if err != nil {
		return err
	}

	_, changed, err := store.Remove(ctx, column)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to remove mapping")
	}

	if !changed {
		return errors.Newf(errors.ErrTypeNotFound, "column %q is not mapped in dataset %q", column, cfg.Dataset)
	}

	fmt.Fprintf(w, "Removed mapping for %s.\n", column)

	return nil
}

func runMappingPaste(ctx context.Context, w io.Writer, cfg *config.Config, repo storage.Repository, clipboard mapping.ClipboardReader, column, text string) error {
	provider := providerFromConfig(cfg)
	if err := checkColumn(provider, column); err != nil {
		return err
	}

	repo, closeRepo, err := ensureStorage(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer closeRepo()

	store, err := storage.OpenStore(ctx, repo, cfg.Dataset)
	if err != nil {
		return err
	}

	handled, err := mapping.NewDistributor(provider, clipboard).
		HandlePaste(ctx, store, mapping.PasteEvent{Column: column, Text: text})
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to save pasted mappings")
	}

	if !handled {
		if text == "" && clipboard != nil {
			text, _ = clipboard.ReadText(ctx)
		}

		text = strings.TrimSpace(text)

		// A comma here means the list was already in place or had no values.
		if text == "" || strings.Contains(text, ",") {
			fmt.Fprintln(w, "No changes.")
			return nil
		}

		if _, _, err := store.Set(ctx, provider, column, text, ""); err != nil {
			return errors.Wrap(err, errors.ErrTypeDatabase, "failed to save mapping")
		}
	}

	return formatter.NewFormatter().FormatMappings(w, store.Snapshot(), formatter.FormatTable)
}

func checkColumn(provider schema.Provider, column string) error {
	if _, known := provider.LookupType(column); !known {
		return errors.Newf(errors.ErrTypeValidation, "unknown column %q", column).
			WithSuggestion("Run 'ae-columns schema' to list the available columns")
	}

	return nil
}

// readerClipboard treats a reader such as stdin as the clipboard. The text is
// read once so the single-value fallback sees what the distributor saw.
type readerClipboard struct {
	r    io.Reader
	read bool
	text string
}

func (c *readerClipboard) ReadText(_ context.Context) (string, error) {
	if c.read {
		return c.text, nil
	}

	c.read = true

	if c.r == nil {
		return "", nil
	}

	data, err := io.ReadAll(c.r)
	if err != nil {
		return "", fmt.Errorf("failed to read pasted text: %w", err)
	}

	c.text = strings.TrimRight(string(data), "\r\n")

	return c.text, nil
}
