/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/jsonlbuf/pkg/buffer"
	"github.com/ssargent/jsonlbuf/pkg/compress"
	"github.com/ssargent/jsonlbuf/pkg/config"
	"github.com/ssargent/jsonlbuf/pkg/record"
)

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Serialize protocol messages into a JSON Lines file",
	Long: `Read protocol messages (one JSON object per line) and write their records
into a single JSON Lines file. The compression extension is appended to the
output name when missing.

Examples:
  jsonlbuf write --input records.jsonl --output users.jsonl
  cat records.jsonl | jsonlbuf write --output users.jsonl --compression none --flatten root
  jsonlbuf write --input records.jsonl --output users.jsonl --stream users --namespace public`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFrom(cmd)
		logger := loggerFrom(cmd)

		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		namespace, _ := cmd.Flags().GetString("namespace")
		streamName, _ := cmd.Flags().GetString("stream")

		format := cfg.Format
		if cmd.Flags().Changed("compression") {
			name, _ := cmd.Flags().GetString("compression")
			t, err := compress.ParseType(name)
			if err != nil {
				return err
			}
			format.Compression = t
		}
		if cmd.Flags().Changed("flatten") {
			name, _ := cmd.Flags().GetString("flatten")
			f, err := record.ParseFlattening(name)
			if err != nil {
				return err
			}
			format.Flattening = f
		}

		in := cmd.InOrStdin()
		if input != "-" {
			file, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer file.Close()
			in = file
		}

		result, err := writeFile(in, output, writeOptions{
			Format:     format,
			Stream:     record.StreamDescriptor{Namespace: namespace, Name: streamName},
			BufferSize: cfg.Storage.WriteBufferSize,
			Logger:     logger,
		})
		if err != nil {
			return err
		}

		cmd.Printf("Wrote %d records (%d bytes, %d stored) to %s\n",
			result.Records, result.Bytes, result.StoredBytes, result.Path)
		if result.Skipped > 0 {
			cmd.Printf("Skipped %d messages\n", result.Skipped)
		}
		return nil
	},
}

type writeOptions struct {
	Format     config.Format
	Stream     record.StreamDescriptor // Empty name accepts every stream
	BufferSize int
	Logger     *slog.Logger
}

type writeResult struct {
	Path        string
	Records     int64
	Bytes       int64
	StoredBytes int64
	Skipped     int
}

// writeFile buffers every matching record read from in into the file at
// output. A failed write removes the partial file.
func writeFile(in io.Reader, output string, opts writeOptions) (writeResult, error) {
	name := filepath.Base(output)
	if ext := opts.Format.Compression.Extension(); !strings.HasSuffix(name, ext) {
		name += ext
	}
	storage := buffer.NewFileStorage(buffer.FileStorageConfig{
		Dir:        filepath.Dir(output),
		Name:       name,
		BufferSize: opts.BufferSize,
	})

	create := buffer.NewCreateFunc(&opts.Format, func() (buffer.Storage, error) {
		return storage, nil
	}, buffer.WithLogger(opts.Logger))

	buf, err := create(opts.Stream)
	if err != nil {
		return writeResult{}, err
	}

	skipped, err := copyRecords(in, buf, opts.Stream)
	if err != nil {
		return writeResult{}, errors.Join(err, buf.Discard())
	}
	if err := buf.Close(); err != nil {
		return writeResult{}, errors.Join(err, buf.Discard())
	}

	return writeResult{
		Path:        storage.Path(),
		Records:     buf.RecordCount(),
		Bytes:       buf.ByteCount(),
		StoredBytes: buf.StoredBytes(),
		Skipped:     skipped,
	}, nil
}

// copyRecords writes the records read from in to buf. Non-record messages
// and records of other streams are skipped and counted.
func copyRecords(in io.Reader, buf *buffer.Buffer, stream record.StreamDescriptor) (int, error) {
	reader := bufio.NewReader(in)
	skipped := 0
	lineNo := 0

	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
		}
		if len(bytes.TrimSpace(line)) > 0 {
			rec, ok, err := record.DecodeMessage(nil, line)
			if err != nil {
				return skipped, fmt.Errorf("line %d: %w", lineNo, err)
			}
			switch {
			case !ok:
				skipped++
			case stream.Name != "" && (rec.Stream != stream.Name || rec.Namespace != stream.Namespace):
				skipped++
			default:
				if err := buf.Write(rec); err != nil {
					return skipped, fmt.Errorf("line %d: %w", lineNo, err)
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return skipped, nil
			}
			return skipped, readErr
		}
	}
}

func init() {
	rootCmd.AddCommand(writeCmd)
	writeCmd.Flags().StringP("input", "i", "-", "Input file of protocol messages (- for stdin)")
	writeCmd.Flags().StringP("output", "o", "", "Output file path (required)")
	writeCmd.Flags().String("compression", "gzip", "Compression: none, gzip, zstd, lz4")
	writeCmd.Flags().String("flatten", "no", "Flattening: no, root")
	writeCmd.Flags().String("namespace", "", "Only write records of this namespace (with --stream)")
	writeCmd.Flags().String("stream", "", "Only write records of this stream")
	_ = writeCmd.MarkFlagRequired("output")
}
