package api

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/jsonlbuf/pkg/buffer"
	"github.com/ssargent/jsonlbuf/pkg/codec"
	"github.com/ssargent/jsonlbuf/pkg/compress"
	"github.com/ssargent/jsonlbuf/pkg/record"
	"github.com/ssargent/jsonlbuf/pkg/segment"
)

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleCreateSegment buffers the JSON Lines protocol messages in the body
// into one segment for the stream named by the query and stages it.
//
//	POST /api/v1/segments?namespace=<ns>&stream=<name>
func (s *Server) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	query := r.URL.Query()
	stream := record.StreamDescriptor{
		Namespace: query.Get("namespace"),
		Name:      query.Get("stream"),
	}
	if stream.Name == "" {
		s.metrics.RecordSegmentOperation("stage", false)
		sendError(w, "stream query parameter is required", http.StatusBadRequest)
		return
	}

	buf, err := s.create(stream)
	if err != nil {
		s.metrics.RecordSegmentOperation("stage", false)
		s.logger.Error("create buffer", "stream", stream.String(), "error", err)
		sendError(w, "Failed to create buffer", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := buf.Discard(); err != nil {
			s.logger.Warn("discard buffer", "stream", stream.String(), "error", err)
		}
	}()

	skipped, status, err := s.ingest(buf, stream, http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		s.metrics.RecordSegmentOperation("stage", false)
		if status >= http.StatusInternalServerError {
			s.logger.Error("ingest records", "stream", stream.String(), "error", err)
		}
		sendError(w, err.Error(), status)
		return
	}

	meta, err := s.store.Stage(buf)
	if err != nil {
		s.metrics.RecordSegmentOperation("stage", false)
		s.logger.Error("stage segment", "stream", stream.String(), "error", err)
		sendError(w, "Failed to stage segment", http.StatusInternalServerError)
		return
	}

	s.metrics.RecordSegmentOperation("stage", true)
	s.metrics.RecordSegmentStaged(stream.String(), meta.Records, meta.Bytes, meta.StoredBytes, time.Since(start))
	s.logger.Info("segment staged",
		"id", meta.ID,
		"stream", stream.String(),
		"records", meta.Records,
		"stored_bytes", meta.StoredBytes)

	sendSuccess(w, http.StatusCreated, SegmentResponse{Meta: meta, Skipped: skipped})
}

// ingest writes every record message read from body into buf. It returns
// the number of skipped non-record messages, or an HTTP status and error.
func (s *Server) ingest(buf *buffer.Buffer, stream record.StreamDescriptor, body io.Reader) (int, int, error) {
	reader := bufio.NewReader(body)
	skipped := 0
	lineNo := 0

	for {
		line, readErr := reader.ReadBytes('\n')
		var maxErr *http.MaxBytesError
		if errors.As(readErr, &maxErr) {
			return 0, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		if len(line) > 0 {
			lineNo++
		}
		if len(bytes.TrimSpace(line)) > 0 {
			rec, ok, err := record.DecodeMessage(s.json, line)
			if err != nil {
				return 0, http.StatusBadRequest, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if !ok {
				skipped++
			} else {
				if rec.Stream == "" {
					rec.Stream = stream.Name
				}
				if rec.Namespace == "" {
					rec.Namespace = stream.Namespace
				}
				if rec.Descriptor() != stream {
					return 0, http.StatusBadRequest, fmt.Errorf("line %d: record for stream %q posted to stream %q", lineNo, rec.Descriptor(), stream)
				}
				if err := buf.Write(rec); err != nil {
					if errors.Is(err, record.ErrInvalidData) || errors.Is(err, record.ErrReservedField) {
						return 0, http.StatusBadRequest, fmt.Errorf("line %d: %w", lineNo, err)
					}
					return 0, http.StatusInternalServerError, fmt.Errorf("line %d: %w", lineNo, err)
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return skipped, 0, nil
			}
			return 0, http.StatusBadRequest, fmt.Errorf("read request body: %w", readErr)
		}
	}
}

// handleListSegments lists staged segments
func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	metas, err := s.store.List()
	if err != nil {
		s.metrics.RecordSegmentOperation("list", false)
		sendError(w, "Failed to list segments", http.StatusInternalServerError)
		return
	}
	s.metrics.RecordSegmentOperation("list", true)

	if metas == nil {
		metas = []segment.Meta{}
	}
	sendSuccess(w, http.StatusOK, SegmentListResponse{Segments: metas, Count: len(metas)})
}

// handleGetSegment downloads a staged segment. With decode=true the stored
// bytes are decompressed and served as JSON Lines.
func (s *Server) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	meta, data, err := s.store.Get(id)
	if err != nil {
		s.metrics.RecordSegmentOperation("get", false)
		s.sendStoreError(w, err)
		return
	}
	s.metrics.RecordSegmentOperation("get", true)

	decode, _ := strconv.ParseBool(r.URL.Query().Get("decode"))
	if !decode || meta.Compression == compress.None {
		w.Header().Set("Content-Type", meta.Compression.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	rc, err := compress.NewReader(bytes.NewReader(data), meta.Compression)
	if err != nil {
		sendError(w, "Failed to decode segment", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", compress.None.ContentType())
	w.WriteHeader(http.StatusOK)
	lines, err := codec.CopyLines(w, rc)
	if err != nil {
		s.logger.Error("decode segment", "id", id, "lines", lines, "error", err)
	}
}

// handleDeleteSegment removes a staged segment
func (s *Server) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.Delete(id); err != nil {
		s.metrics.RecordSegmentOperation("delete", false)
		s.sendStoreError(w, err)
		return
	}
	s.metrics.RecordSegmentOperation("delete", true)
	sendSuccess(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, segment.ErrNotFound):
		sendError(w, "Segment not found", http.StatusNotFound)
	case errors.Is(err, segment.ErrInvalidID):
		sendError(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("segment store", "error", err)
		sendError(w, "Segment store failure", http.StatusInternalServerError)
	}
}
