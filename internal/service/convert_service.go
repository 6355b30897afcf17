package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cdlconv/internal/convert"
	"cdlconv/internal/mapping"
	"cdlconv/internal/sqlast"
)

// MappingSource re-reads the mapping table from its backing store. The table
// it returns must not be mutated afterwards.
type MappingSource interface {
	Load() (*mapping.Table, error)
}

// MappingFile is a MappingSource backed by an .xlsx or .csv file on disk.
type MappingFile struct {
	Path string
}

func (f MappingFile) Load() (*mapping.Table, error) {
	return mapping.Load(f.Path)
}

// HistoryRecorder persists finished conversions. Implementations must be safe
// for concurrent use.
type HistoryRecorder interface {
	Record(ctx context.Context, entry HistoryEntry) error
}

// HistoryEntry is the conversion record handed to the history store.
type HistoryEntry struct {
	Query      string
	Dialect    string
	Rewritten  string
	ErrorCount int
	Duration   time.Duration
}

// Request is one conversion job.
type Request struct {
	Query   string `json:"query"`
	Dialect string `json:"dialect,omitempty"`
}

// BatchResult pairs a batch request index with its outcome. Error carries the
// failure text for jobs that did not produce a response.
type BatchResult struct {
	Index    int               `json:"index"`
	Response *convert.Response `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// batchWorkers bounds the parallelism of ConvertBatch.
const batchWorkers = 8

// ConvertService runs conversions against a shared mapping table. The table
// is swapped atomically on Reload; in-flight conversions keep the table they
// started with.
type ConvertService struct {
	mu     sync.RWMutex
	table  *mapping.Table
	loaded time.Time

	source         MappingSource
	catalog        convert.Catalog
	defaultDialect sqlast.Dialect
	history        HistoryRecorder
	logger         *slog.Logger
}

// ConvertServiceDeps holds the dependencies for NewConvertService. History
// may be nil to disable recording.
type ConvertServiceDeps struct {
	Source         MappingSource
	Catalog        convert.Catalog
	DefaultDialect sqlast.Dialect
	History        HistoryRecorder
	Logger         *slog.Logger
}

// NewConvertService loads the initial mapping table and returns the service.
func NewConvertService(deps ConvertServiceDeps) (*ConvertService, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	table, err := deps.Source.Load()
	if err != nil {
		return nil, fmt.Errorf("load mapping: %w", err)
	}
	logger.Info("mapping table loaded", "rows", table.Len())
	return &ConvertService{
		table:          table,
		loaded:         time.Now(),
		source:         deps.Source,
		catalog:        deps.Catalog,
		defaultDialect: deps.DefaultDialect,
		history:        deps.History,
		logger:         logger,
	}, nil
}

// Convert runs one conversion. Parse failures and unknown dialects are
// returned as errors; everything else is reported inside the response.
func (s *ConvertService) Convert(ctx context.Context, req Request) (*convert.Response, error) {
	dialect := s.defaultDialect
	if req.Dialect != "" {
		var err error
		dialect, err = sqlast.ParseDialect(req.Dialect)
		if err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	table := s.table
	s.mu.RUnlock()

	start := time.Now()
	resp, err := convert.Convert(req.Query, table, convert.Options{
		Dialect: dialect,
		Catalog: s.catalog,
		Logger:  s.logger,
	})
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		entry := HistoryEntry{
			Query:      req.Query,
			Dialect:    string(dialect),
			Rewritten:  resp.Query,
			ErrorCount: len(resp.Errors),
			Duration:   time.Since(start),
		}
		if err := s.history.Record(ctx, entry); err != nil {
			// History is best effort; a conversion never fails because the
			// record could not be written.
			s.logger.Warn("history record failed", "error", err)
		}
	}
	return resp, nil
}

// ConvertBatch runs the requests with bounded parallelism and returns one
// result per request, in request order. Individual failures do not abort the
// batch.
func (s *ConvertService) ConvertBatch(ctx context.Context, reqs []Request) []BatchResult {
	results := make([]BatchResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchWorkers)
	for i := range reqs {
		g.Go(func() error {
			resp, err := s.Convert(gctx, reqs[i])
			if err != nil {
				results[i] = BatchResult{Index: i, Error: err.Error()}
				return nil
			}
			results[i] = BatchResult{Index: i, Response: resp}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Reload re-reads the mapping table from the source and swaps it in. The old
// table stays in place when loading fails.
func (s *ConvertService) Reload(ctx context.Context) error {
	table, err := s.source.Load()
	if err != nil {
		return fmt.Errorf("reload mapping: %w", err)
	}

	s.mu.Lock()
	old := s.table
	s.table = table
	s.loaded = time.Now()
	s.mu.Unlock()

	s.logger.Info("mapping table reloaded", "rows", table.Len(), "previous_rows", old.Len())
	return nil
}

// MappingInfo reports the current table size and load time.
func (s *ConvertService) MappingInfo() (rows int, loaded time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Len(), s.loaded
}
