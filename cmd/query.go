package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/urfave/cli/v3"

	"github.com/kyleking/ae-columns/internal/analytics"
	"github.com/kyleking/ae-columns/internal/config"
	"github.com/kyleking/ae-columns/internal/errors"
	"github.com/kyleking/ae-columns/internal/formatter"
	"github.com/kyleking/ae-columns/internal/logging"
	"github.com/kyleking/ae-columns/internal/query"
	"github.com/kyleking/ae-columns/internal/storage"
)

// forgetter is implemented by executors that cache results
type forgetter interface {
	Forget(ctx context.Context, creds analytics.Credentials, sql string) error
}

type queryOptions struct {
	SQL      string
	Strings  []string
	Numbers  []string
	Friendly bool
	// Refresh drops a cached result before running
	Refresh  bool
	Format   formatter.OutputFormat
	// Progress receives a spinner while the query runs; nil disables it
	Progress io.Writer
}

// QueryCommand groups templated query rendering and execution
func QueryCommand() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Render or run SQL templates with {{name}} placeholders",
		Commands: []*cli.Command{
			queryRunCommand(),
			queryRenderCommand(),
		},
	}
}

func paramFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "param",
			Aliases: []string{"p"},
			Usage:   "string parameter as name=value; interval literals like '5' MINUTE stay unquoted",
		},
		&cli.StringSliceFlag{
			Name:    "number",
			Aliases: []string{"n"},
			Usage:   "numeric parameter as name=value",
		},
	}
}

func queryRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Substitute parameters and run the query",
		ArgsUsage: "<sql | @file | ->",
		Description: `Run a SQL template against the Analytics Engine SQL API.

Examples:
  ae-columns query run "SELECT blob1, count() FROM events WHERE timestamp > NOW() - INTERVAL {{window}} GROUP BY blob1" -p "window='1' DAY"
  ae-columns query run @top.sql -p country=US -n limit=10 --friendly`,
		Flags: append(paramFlags(),
			&cli.BoolFlag{Name: "friendly", Usage: "label result columns with the dataset's friendly names"},
			&cli.BoolFlag{Name: "no-cache", Usage: "bypass the result cache"},
			&cli.BoolFlag{Name: "refresh", Usage: "replace any cached result with a fresh one"},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "output format (table, json, csv)",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}

			sql, err := readQueryArg(cmd.Args().First(), cmd.Root().Reader)
			if err != nil {
				return err
			}

			format, err := formatter.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}

			executor, closeExecutor := newExecutor(cfg, cmd.Bool("no-cache"))
			defer closeExecutor()

			return runQuery(ctx, cmd.Root().Writer, cfg, executor, nil, queryOptions{
				SQL:      sql,
				Strings:  cmd.StringSlice("param"),
				Numbers:  cmd.StringSlice("number"),
				Friendly: cmd.Bool("friendly"),
				Refresh:  cmd.Bool("refresh"),
				Format:   format,
				Progress: cmd.Root().ErrWriter,
			})
		},
	}
}

func queryRenderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Print the query with parameters substituted",
		ArgsUsage: "<sql | @file | ->",
		Flags:     paramFlags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			sql, err := readQueryArg(cmd.Args().First(), cmd.Root().Reader)
			if err != nil {
				return err
			}

			return runRender(cmd.Root().Writer, sql, cmd.StringSlice("param"), cmd.StringSlice("number"))
		},
	}
}

// readQueryArg resolves the query text from the argument, a file (@path), or stdin (-)
func readQueryArg(arg string, stdin io.Reader) (string, error) {
	var text string

	switch {
	case arg == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrTypeFileSystem, "failed to read query from stdin")
		}

		text = string(data)
	case strings.HasPrefix(arg, "@"):
		data, err := os.ReadFile(config.ExpandPath(arg[1:]))
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrTypeFileSystem, "failed to read query file %s", arg[1:])
		}

		text = string(data)
	default:
		text = arg
	}

	if strings.TrimSpace(text) == "" {
		return "", errors.New(errors.ErrTypeValidation, "query must not be empty").
			WithSuggestion("Pass the SQL as an argument, @file, or - to read stdin")
	}

	return text, nil
}

func buildParams(strs, numbers []string) (query.Params, error) {
	params, err := query.ParseStringParams(strs)
	if err != nil {
		return nil, err
	}

	if err := query.AddNumberParams(params, numbers); err != nil {
		return nil, err
	}

	return params, nil
}

// newExecutor builds the backend client, backed by the file cache unless disabled.
// A cache that cannot be opened is logged and skipped.
func newExecutor(cfg *config.Config, noCache bool) (analytics.Executor, func()) {
	client := analytics.NewClient(cfg.Analytics).WithTrace(cfg.Debug.TraceAPI)

	if noCache || cfg.Cache.Disabled {
		return client, func() {}
	}

	ttl, _ := cfg.Cache.Durations()

	fc, err := openResultCache(cfg, true)
	if err != nil {
		logging.WithError(err).Warn("Result cache unavailable, queries will not be cached")
		return client, func() {}
	}

	return client.WithCache(fc, ttl), func() {
		if stats, err := fc.Stats(context.Background()); err == nil {
			logging.WithFields(map[string]any{
				"hits":    stats.Hits,
				"misses":  stats.Misses,
				"entries": stats.Entries,
			}).Debug("Result cache usage")
		}

		if err := fc.Close(); err != nil {
			logging.WithError(err).Debug("Failed to close result cache")
		}
	}
}

func runQuery(ctx context.Context, w io.Writer, cfg *config.Config, executor analytics.Executor, repo storage.Repository, opts queryOptions) error {
	params, err := buildParams(opts.Strings, opts.Numbers)
	if err != nil {
		return err
	}

	warnMissing(opts.SQL, params)

	sql := query.Substitute(opts.SQL, params)
	logging.Debugf("Executing query: %s", sql)

	var s *spinner.Spinner
	if opts.Progress != nil {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond,
			spinner.WithWriter(opts.Progress),
			spinner.WithSuffix(" Running query..."))
		s.Start()
	}

	creds := analytics.CredentialsFromConfig(cfg.Analytics)

	if f, ok := executor.(forgetter); ok && opts.Refresh {
		if err := f.Forget(ctx, creds, sql); err != nil {
			logging.WithError(err).Warn("Failed to drop cached result")
		}
	}

	var result *analytics.Result

	err = logging.LoggerMiddleware("query", func() error {
		var err error
		result, err = executor.Execute(ctx, creds, sql)

		return err
	})

	if s != nil {
		s.Stop()
	}

	if err != nil {
		return err
	}

	if opts.Friendly {
		repo, closeRepo, err := ensureStorage(ctx, cfg, repo)
		if err != nil {
			return err
		}
		defer closeRepo()

		coll, err := repo.LoadMappings(ctx, cfg.Dataset)
		if err != nil {
			return fmt.Errorf("failed to load mappings: %w", err)
		}

		result = result.Relabel(coll)
	}

	return formatter.NewFormatter().FormatResult(w, result, opts.Format)
}

func runRender(w io.Writer, sql string, strs, numbers []string) error {
	params, err := buildParams(strs, numbers)
	if err != nil {
		return err
	}

	warnMissing(sql, params)

	_, err = fmt.Fprintln(w, strings.TrimRight(query.Substitute(sql, params), "\n"))

	return err
}

func warnMissing(sql string, params query.Params) {
	if missing := query.Missing(sql, params); len(missing) > 0 {
		logging.WithField("placeholders", missing).Warn("Unresolved placeholders left in query")
	}
}
