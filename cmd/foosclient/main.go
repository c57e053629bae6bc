// Command foosclient exercises a running gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"

	"github.com/stevemurr/foogate/client"
	"github.com/stevemurr/foogate/model"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		endpoint string
		timeout  time.Duration
	)
	root := &cobra.Command{
		Use:          "foosclient",
		Short:        "Issue sample requests against a foogate instance",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "http://127.0.0.1:8000/graphql", "GraphQL endpoint")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")

	withClient := func(run func(ctx context.Context, c *client.Client, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return run(ctx, client.New(endpoint), cmd)
		}
	}

	scenario := &cobra.Command{
		Use:   "scenario",
		Short: "Insert a Foo, append a Thing, list, then delete it",
		RunE:  withClient(runScenario),
	}

	var count, batches int
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Insert random Foos with two Things each",
		RunE: withClient(func(ctx context.Context, c *client.Client, cmd *cobra.Command) error {
			return runSeed(ctx, c, cmd, count, batches)
		}),
	}
	seed.Flags().IntVarP(&count, "count", "n", 10, "Foos per batch")
	seed.Flags().IntVar(&batches, "batches", 1, "concurrent addFoos requests")

	list := &cobra.Command{
		Use:   "list",
		Short: "Print every Foo",
		RunE: withClient(func(ctx context.Context, c *client.Client, cmd *cobra.Command) error {
			foos, err := c.FooPayloads(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, foos)
		}),
	}

	root.AddCommand(scenario, seed, list)
	return root
}

func runScenario(ctx context.Context, c *client.Client, cmd *cobra.Command) error {
	id, err := c.AddFoo(ctx, model.FooInput{FooString: "A"})
	if err != nil {
		return fmt.Errorf("addFoo: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "addFoo -> %s\n", id.Hex())

	stats, err := c.AddThing(ctx, id, model.ThingInput{ID: bson.NewObjectID(), ThingInfo: "t1"})
	if err != nil {
		return fmt.Errorf("addThing: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "addThing -> matched=%d modified=%d\n", stats.MatchedCount, stats.ModifiedCount)

	foos, err := c.FooPayloads(ctx)
	if err != nil {
		return fmt.Errorf("fooPayloads: %w", err)
	}
	if err := printJSON(cmd, foos); err != nil {
		return err
	}

	deleted, err := c.DeleteFoo(ctx, id)
	if err != nil {
		return fmt.Errorf("deleteFoos: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleteFoos -> %t\n", deleted)
	return nil
}

func runSeed(ctx context.Context, c *client.Client, cmd *cobra.Command, count, batches int) error {
	var (
		mu  sync.Mutex
		all []model.ID
	)
	g, ctx := errgroup.WithContext(ctx)
	for b := 0; b < batches; b++ {
		g.Go(func() error {
			in := make([]model.FooInput, 0, count)
			for i := 0; i < count; i++ {
				in = append(in, model.FooInput{
					FooString: fmt.Sprintf("Random-%d-%d", b, i),
					Things: []model.Thing{
						{ID: bson.NewObjectID(), ThingInfo: "Random1"},
						{ID: bson.NewObjectID(), ThingInfo: "Random2"},
					},
				})
			}
			ids, err := c.AddFoos(ctx, in)
			if err != nil {
				return fmt.Errorf("addFoos batch %d: %w", b, err)
			}
			mu.Lock()
			all = append(all, ids...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "inserted %d foos\n", len(all))
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
