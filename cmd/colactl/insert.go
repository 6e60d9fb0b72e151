package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/colaidx/cola"
)

func insertCmd() *cobra.Command {
	var path string
	var key int64
	var block, offset uint32

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a single tuple into a COLA index",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := cola.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer idx.Close()

			t := cola.Tuple{Key: cola.IntKey(key), TID: cola.MakeTID(block, uint16(offset))}
			if err := idx.Insert(context.Background(), t); err != nil {
				return fmt.Errorf("insert: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "path to the COLA index file")
	cmd.Flags().Int64Var(&key, "key", 0, "integer key")
	cmd.Flags().Uint32Var(&block, "block", 0, "heap block number")
	cmd.Flags().Uint32Var(&offset, "offset", 1, "heap item offset (must be nonzero; 0 is reserved for look-ahead pointers)")
	cmd.MarkFlagRequired("path")
	return cmd
}
