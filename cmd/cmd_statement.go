package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dosco/bsonq/core"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <file>",
		Short: "Print the database command for a statement file",
		Long: `Compile a statement file (YAML or JSON) and print the database command
as extended JSON. The database is not contacted.`,
		Args: cobra.ExactArgs(1),
		RunE: cmdCompile,
	}
}

func cmdCompile(c *cobra.Command, args []string) error {
	s, err := newService()
	if err != nil {
		return err
	}

	cmd, err := s.CompileFile(args[0])
	if err != nil {
		return err
	}
	return printJSON(c.OutOrStdout(), cmd.Doc())
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a statement file against the database",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdRun,
	}
}

func cmdRun(c *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := newService()
	if err != nil {
		return err
	}
	defer s.Close(ctx) //nolint:errcheck

	res, err := s.RunFile(ctx, args[0])
	if err != nil {
		return err
	}
	return printResult(c.OutOrStdout(), res)
}

// printResult writes one line per returned document, the count for counts
// and the write counts for writes.
func printResult(w io.Writer, res *core.Result) error {
	switch res.Kind {
	case core.CmdFind, core.CmdAggregate:
		for _, doc := range res.Docs {
			if err := printJSON(w, doc); err != nil {
				return err
			}
		}
	case core.CmdCount:
		fmt.Fprintln(w, res.Count)
	default:
		r := res.Write
		fmt.Fprintf(w, "inserted: %d, matched: %d, modified: %d, upserted: %d, deleted: %d\n",
			r.Inserted, r.Matched, r.Modified, r.Upserted, r.Deleted)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	b, err := bson.MarshalExtJSON(v, false, false)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
