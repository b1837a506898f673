// Command wordindex builds a word-location index from local text files or a
// web crawl, answers query files against it and optionally serves searches
// over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/config"
)

func newRootCmd() *cobra.Command {
	var opts options
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "wordindex",
		Short: "Build, query and serve a stemmed word-location index",
		Long: `wordindex indexes the .txt and .text files under --text and/or the pages
reachable from --html, evaluates the query lines in --query and writes the
requested JSON outputs.

Giving --threads, --html or --server switches to the multi-threaded engine.
Output flags take an optional value: --counts alone writes the configured
counts file, --counts out/c.json writes there.`,
		SilenceUsage: true,
		// flags are parsed in RunE so optional values may follow a space
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			joined, bare := joinOptionalValues(f, args)
			if err := f.Parse(joined); err != nil {
				if errors.Is(err, pflag.ErrHelp) {
					return cmd.Help()
				}
				return err
			}
			if help, _ := f.GetBool("help"); help {
				return cmd.Help()
			}
			if f.NArg() > 0 {
				return fmt.Errorf("unexpected argument %q for %q", f.Arg(0), cmd.CommandPath())
			}
			opts.bare = bare
			opts.threadsSet = f.Changed("threads")
			opts.serverSet = f.Changed("server")
			opts.countsSet = f.Changed("counts")
			opts.indexSet = f.Changed("index")
			opts.resultsSet = f.Changed("results")
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	f.StringVar(&opts.text, "text", "", "file or directory of text files to index")
	f.StringVar(&opts.html, "html", "", "seed location to crawl")
	f.IntVar(&opts.crawl, "crawl", 1, "maximum number of pages to crawl")
	f.StringVar(&opts.query, "query", "", "file of query lines to evaluate")
	f.BoolVar(&opts.partial, "partial", false, "use partial (prefix) search for --query")
	f.IntVar(&opts.threads, "threads", defaults.Engine.Threads, "number of worker goroutines")
	f.IntVar(&opts.server, "server", 0, "serve searches on this port after building (0 uses the configured port)")
	f.StringVar(&opts.counts, "counts", "", "write word counts per location")
	f.StringVar(&opts.index, "index", "", "write the inverted index")
	f.StringVar(&opts.results, "results", "", "write query results")

	f.Lookup("threads").NoOptDefVal = fmt.Sprint(defaults.Engine.Threads)
	f.Lookup("server").NoOptDefVal = "0"
	f.Lookup("counts").NoOptDefVal = defaults.Output.Counts
	f.Lookup("index").NoOptDefVal = defaults.Output.Index
	f.Lookup("results").NoOptDefVal = defaults.Output.Results
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
