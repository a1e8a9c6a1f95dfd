package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"greentwin/internal/model"
)

// Source delivers raw messages until ctx is done or its input is exhausted.
// Implementations must not close out.
type Source interface {
	Run(ctx context.Context, out chan<- model.RawMessage) error
}

// FileSource replays readings from a CSV or JSON file (or http URL).
// JSON input may be an array of objects, a single object or newline-delimited objects.
type FileSource struct {
	Path   string
	Format string // csv, json
	log    *zap.Logger
}

func NewFileSource(path, format string, log *zap.Logger) *FileSource {
	return &FileSource{Path: path, Format: strings.ToLower(format), log: log.Named("ingest")}
}

func (s *FileSource) Run(ctx context.Context, out chan<- model.RawMessage) error {
	s.log.Info("starting replay", zap.String("path", s.Path), zap.String("format", s.Format))

	reader, closeFn, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	var n int
	switch s.Format {
	case "csv":
		n, err = s.ingestCSV(ctx, reader, out)
	case "json":
		n, err = s.ingestJSON(ctx, reader, out)
	default:
		err = fmt.Errorf("unknown source type: %s", s.Format)
	}

	s.log.Info("replay finished", zap.String("path", s.Path), zap.Int("messages", n))
	return err
}

func (s *FileSource) open(ctx context.Context) (io.Reader, func(), error) {
	if strings.HasPrefix(s.Path, "http://") || strings.HasPrefix(s.Path, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Path, nil)
		if err != nil {
			return nil, nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to GET %s: %w", s.Path, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, nil, fmt.Errorf("failed to GET %s: status %d", s.Path, resp.StatusCode)
		}
		return resp.Body, func() { resp.Body.Close() }, nil
	}

	file, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	return file, func() { file.Close() }, nil
}

func (s *FileSource) ingestCSV(ctx context.Context, r io.Reader, out chan<- model.RawMessage) (int, error) {
	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	headers, err := csvReader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i, h := range headers {
		// Clean header names: trim whitespace and remove ALL quotes
		headers[i] = strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
	}

	count := 0
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				s.log.Warn("skipping malformed CSV row", zap.Int("line", parseErr.Line), zap.Error(err))
				continue
			}
			return count, fmt.Errorf("failed to read CSV: %w", err)
		}

		fields := make(map[string]interface{}, len(headers))
		for i, h := range headers {
			if i < len(record) && strings.TrimSpace(record[i]) != "" {
				fields[h] = strings.TrimSpace(record[i])
			}
		}

		if !send(ctx, out, model.RawMessage{Fields: fields, ReceivedAt: time.Now().UTC(), Origin: s.Path}) {
			return count, nil
		}
		count++
	}
}

func (s *FileSource) ingestJSON(ctx context.Context, r io.Reader, out chan<- model.RawMessage) (int, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	dec := json.NewDecoder(br)
	count := 0
	emit := func(raw json.RawMessage) bool {
		msg := model.RawMessage{Payload: bytes.Clone(raw), ReceivedAt: time.Now().UTC(), Origin: s.Path}
		if !send(ctx, out, msg) {
			return false
		}
		count++
		return true
	}

	if first == '[' {
		var items []json.RawMessage
		if err := dec.Decode(&items); err != nil {
			return 0, fmt.Errorf("failed to decode JSON: %w", err)
		}
		for _, item := range items {
			if !emit(item) {
				return count, nil
			}
		}
		return count, nil
	}

	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to decode JSON: %w", err)
		}
		if !emit(raw) {
			return count, nil
		}
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func send(ctx context.Context, out chan<- model.RawMessage, msg model.RawMessage) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- msg:
		return true
	}
}
