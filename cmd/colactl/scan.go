package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/colaidx/cola"
)

var scanOperators = map[string]cola.Operator{
	"lt": cola.OpLess,
	"le": cola.OpLessEqual,
	"eq": cola.OpEqual,
	"ge": cola.OpGreaterEqual,
	"gt": cola.OpGreater,
}

func scanCmd() *cobra.Command {
	var path, op string
	var key int64
	var bitmap bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a COLA index for tuples matching an operator and key",
		Long:  "op is one of lt, le, eq, ge, gt.",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, ok := scanOperators[op]
			if !ok {
				return fmt.Errorf("unknown op %q (want one of lt, le, eq, ge, gt)", op)
			}

			idx, err := cola.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer idx.Close()

			ctx := context.Background()
			s := idx.BeginScan(o, cola.IntKey(key))
			defer s.EndScan()

			out := cmd.OutOrStdout()
			if bitmap {
				set, err := s.GetBitmap(ctx)
				if err != nil {
					return fmt.Errorf("scan: %w", err)
				}
				fmt.Fprintf(out, "%d matches\n", set.Len())
				return nil
			}

			n := 0
			for {
				tid, ok, err := s.GetTuple(ctx)
				if err != nil {
					return fmt.Errorf("scan: %w", err)
				}
				if !ok {
					break
				}
				fmt.Fprintf(out, "%d\t%d\n", uint32(tid.Block), tid.Offset)
				n++
			}
			fmt.Fprintf(out, "%d matches\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "path to the COLA index file")
	cmd.Flags().StringVar(&op, "op", "eq", "comparison operator: lt, le, eq, ge, gt")
	cmd.Flags().Int64Var(&key, "key", 0, "integer key to compare against")
	cmd.Flags().BoolVar(&bitmap, "bitmap", false, "use GetBitmap instead of streaming GetTuple")
	cmd.MarkFlagRequired("path")
	return cmd
}
