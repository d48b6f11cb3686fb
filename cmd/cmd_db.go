package main

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/dosco/bsonq/core"
	"github.com/dosco/bsonq/serv"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// indexesCmd creates the indexes command
func indexesCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "indexes",
		Short: "Index management commands",
	}

	c.AddCommand(&cobra.Command{
		Use:   "diff",
		Short: "Show the index changes needed to match the config",
		Long: `Compare the indexes declared in the config against the indexes in the
database and print the createIndexes and dropIndexes commands needed to bring
the database in sync. Nothing is changed.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return cmdIndexes(c, true)
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Create and drop indexes to match the config",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return cmdIndexes(c, false)
		},
	})

	return c
}

func cmdIndexes(c *cobra.Command, dryRun bool) error {
	ctx := context.Background()

	s, err := newService()
	if err != nil {
		return err
	}
	defer s.Close(ctx) //nolint:errcheck

	ops, err := s.SyncIndexes(ctx, dryRun)
	if err != nil {
		return err
	}
	return printIndexOps(c.OutOrStdout(), ops)
}

// printIndexOps writes the operations in collection order
func printIndexOps(w io.Writer, ops map[string][]core.IndexOperation) error {
	names := lo.Keys(ops)
	slices.Sort(names)

	n := 0
	for _, name := range names {
		for _, op := range ops[name] {
			if err := printJSON(w, op.Command()); err != nil {
				return err
			}
			n++
		}
	}
	if n == 0 {
		fmt.Fprintln(w, "// indexes are in sync")
	}
	return nil
}

func columnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns [collection...]",
		Short: "Suggest column configs from the documents in the database",
		Long: `Sample the named collections, or every collection, and print a
collections config with the field paths and types found. Fields are taken
from the $jsonSchema validator when there is one.`,
		RunE: cmdColumns,
	}
}

func cmdColumns(c *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := newService()
	if err != nil {
		return err
	}
	defer s.Close(ctx) //nolint:errcheck

	colls, err := s.Introspect(ctx, args...)
	if err != nil {
		return err
	}
	return printColumns(c.OutOrStdout(), colls)
}

func printColumns(w io.Writer, colls []core.Collection) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(core.Config{Collections: colls}); err != nil {
		return err
	}
	return enc.Close()
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <collection> <file>",
		Short: "Bulk insert the documents of a YAML or JSON file",
		Long: `Insert a list of documents into a collection using batched bulk writes.
Documents with an _id replace the stored document with the same _id.`,
		Args: cobra.ExactArgs(2),
		RunE: cmdImport,
	}
}

func cmdImport(c *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := newService()
	if err != nil {
		return err
	}
	defer s.Close(ctx) //nolint:errcheck

	n, err := s.Import(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.OutOrStdout(), "%d documents written to %s\n", n, args[0])
	return nil
}

func seedCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "seed <collection>",
		Short: "Write fake documents to a configured collection",
		Long: `Generate documents from the column names and types declared for a
collection and write them using batched bulk writes.`,
		Args: cobra.ExactArgs(1),
		RunE: cmdSeed,
	}
	c.Flags().Int("count", 100, "Number of documents")
	c.Flags().Int64("seed", 0, "Random seed, 0 picks a random one")
	return c
}

func cmdSeed(c *cobra.Command, args []string) error {
	ctx := context.Background()

	count, _ := c.Flags().GetInt("count")
	seed, _ := c.Flags().GetInt64("seed")

	s, err := newService()
	if err != nil {
		return err
	}
	defer s.Close(ctx) //nolint:errcheck

	n, err := s.Seed(ctx, args[0], serv.SeedOptions{Count: count, Seed: seed})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.OutOrStdout(), "%d documents written to %s\n", n, args[0])
	return nil
}
