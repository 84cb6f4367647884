/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssargent/jsonlbuf/pkg/codec"
	"github.com/ssargent/jsonlbuf/pkg/compress"
	"github.com/ssargent/jsonlbuf/pkg/segment"
)

// segmentsCmd groups the segment store commands
var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "Inspect staged segments",
}

var segmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staged segments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSegmentStore(cmd, func(store *segment.Store) error {
			metas, err := store.List()
			if err != nil {
				return err
			}
			printSegments(cmd.OutOrStdout(), metas)
			return nil
		})
	},
}

var segmentsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Write a staged segment to stdout or a file",
	Long: `Write a staged segment's bytes to stdout or --output.

Examples:
  jsonlbuf segments get 2ZJ4Z1nFvPqKqR4wYt0sQ2GdMhx --decode
  jsonlbuf segments get 2ZJ4Z1nFvPqKqR4wYt0sQ2GdMhx --output users.jsonl.gz`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		decode, _ := cmd.Flags().GetBool("decode")
		output, _ := cmd.Flags().GetString("output")

		return withSegmentStore(cmd, func(store *segment.Store) error {
			meta, data, err := store.Get(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" {
				file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}
			return copySegment(out, meta, data, decode)
		})
	},
}

var segmentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a staged segment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSegmentStore(cmd, func(store *segment.Store) error {
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted segment %s\n", args[0])
			return nil
		})
	},
}

func withSegmentStore(cmd *cobra.Command, fn func(*segment.Store) error) error {
	cfg := configFrom(cmd)
	if err := os.MkdirAll(cfg.Storage.SegmentDir, 0750); err != nil {
		return fmt.Errorf("failed to create segment dir: %w", err)
	}
	store, err := segment.Open(cfg.Storage.SegmentDir)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printSegments(w io.Writer, metas []segment.Meta) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTREAM\tRECORDS\tSTORED\tCOMPRESSION\tCREATED")
	for _, m := range metas {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			m.ID, m.Stream, m.Records, m.StoredBytes, m.Compression, m.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	tw.Flush()
}

func copySegment(w io.Writer, meta segment.Meta, data []byte, decode bool) error {
	if !decode {
		_, err := w.Write(data)
		return err
	}
	rc, err := compress.NewReader(bytes.NewReader(data), meta.Compression)
	if err != nil {
		return err
	}
	defer rc.Close()
	if _, err := codec.CopyLines(w, rc); err != nil {
		return fmt.Errorf("decode segment %s: %w", meta.ID, err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(segmentsCmd)
	segmentsCmd.AddCommand(segmentsListCmd, segmentsGetCmd, segmentsDeleteCmd)
	segmentsGetCmd.Flags().Bool("decode", false, "Decompress the segment")
	segmentsGetCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
}
