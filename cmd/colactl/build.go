package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/colaidx/cola"
)

func buildCmd() *cobra.Command {
	var path, input string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Bulk-load a COLA index from a tab-separated tuple stream",
		Long: "Reads lines of \"key\\tblock\\toffset\" (one tuple per line, key as a\n" +
			"signed integer) from --input (or stdin) and inserts them into a fresh\n" +
			"or existing index in sorted order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := cola.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer idx.Close()

			in := os.Stdin
			if input != "" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("open %s: %w", input, err)
				}
				defer f.Close()
				in = f
			}

			tuples := make(chan cola.Tuple, 256)
			scanErr := make(chan error, 1)
			go func() {
				defer close(tuples)
				scanErr <- scanTuples(in, tuples)
			}()

			ctx := context.Background()
			stats, err := idx.Build(ctx, tuples)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			if err := <-scanErr; err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "built %d tuples across %d pages\n", stats.NumTuples, stats.NumPages)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "path to the COLA index file")
	cmd.Flags().StringVar(&input, "input", "", "tuple stream file (defaults to stdin)")
	cmd.MarkFlagRequired("path")
	return cmd
}

func scanTuples(r *os.File, out chan<- cola.Tuple) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		t, err := parseTupleLine(line)
		if err != nil {
			return err
		}
		out <- t
	}
	return sc.Err()
}

func parseTupleLine(line string) (cola.Tuple, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 3 {
		return cola.Tuple{}, fmt.Errorf("malformed line %q: want key\\tblock\\toffset", line)
	}
	key, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return cola.Tuple{}, fmt.Errorf("bad key %q: %w", fields[0], err)
	}
	block, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return cola.Tuple{}, fmt.Errorf("bad block %q: %w", fields[1], err)
	}
	offset, err := strconv.ParseUint(fields[2], 10, 16)
	if err != nil {
		return cola.Tuple{}, fmt.Errorf("bad offset %q: %w", fields[2], err)
	}
	return cola.Tuple{
		Key: cola.IntKey(key),
		TID: cola.MakeTID(uint32(block), uint16(offset)),
	}, nil
}
