package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
)

func (a *app) queryCmd() *cobra.Command {
	var compact bool
	cmd := &cobra.Command{
		Use:   "query <asset> <jq-expression>",
		Short: "Run a jq expression over an asset document",
		Example: `  rendererctl query Forward '.objects[] | select(.active) | .name'
  rendererctl query Forward '[.features[] | select(. != 0)] | length'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := gojq.Parse(args[1])
			if err != nil {
				return fmt.Errorf("parse query: %w", err)
			}
			doc, err := a.ws.store.Raw(args[0])
			if err != nil {
				return err
			}
			return runQuery(cmd, query, doc, compact)
		},
	}
	cmd.Flags().BoolVarP(&compact, "compact", "c", false, "print each result on one line")
	return cmd
}

func runQuery(cmd *cobra.Command, query *gojq.Query, doc map[string]any, compact bool) error {
	out := cmd.OutOrStdout()
	iter := query.RunWithContext(cmd.Context(), doc)
	for {
		value, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := value.(error); ok {
			return fmt.Errorf("run query: %w", err)
		}
		if err := printJSON(out, value, compact); err != nil {
			return err
		}
	}
}

func printJSON(w io.Writer, value any, compact bool) error {
	var (
		data []byte
		err  error
	)
	if compact {
		data, err = json.Marshal(value)
	} else {
		data, err = json.MarshalIndent(value, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
