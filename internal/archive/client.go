// Package archive implements the cold archive on Google Sheets. Messages are
// appended into monthly partition sheets named Log_YYYY_MM; reads fetch whole
// partitions and parse them back into message records.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/telewatch/telewatch/internal/config"
	"github.com/telewatch/telewatch/internal/database"
)

// ErrThrottled marks a request rejected by the Sheets API rate limiter.
// It is retryable.
var ErrThrottled = errors.New("archive: throttled by remote")

// Archive defines the cold storage operations used by the backup cycle and
// the history service.
type Archive interface {
	AppendBatch(ctx context.Context, records []database.Message) error
	ScanMonth(ctx context.Context, month time.Time) ([]database.Message, error)
}

type sheetsClient struct {
	httpClient    *http.Client
	log           *slog.Logger
	baseURL       string
	spreadsheetID string
	token         string
	limiter       *rate.Limiter
	maxElapsed    time.Duration

	mu          sync.Mutex
	knownSheets map[string]bool
	scanCache   map[string]scanEntry
	scanTTL     time.Duration
}

type scanEntry struct {
	records   []database.Message
	fetchedAt time.Time
}

// NewClient creates a Sheets archive client from configuration.
func NewClient(cfg config.ArchiveConfig, log *slog.Logger) (Archive, error) {
	if cfg.SpreadsheetID == "" || cfg.Token == "" {
		return nil, fmt.Errorf("archive spreadsheet ID and token are required")
	}

	logger := log.With("component", "archive_client")
	logger.Info("Archive client initialized", "spreadsheet_id", cfg.SpreadsheetID)
	return &sheetsClient{
		httpClient:    &http.Client{Timeout: cfg.RequestTimeout},
		log:           logger,
		baseURL:       cfg.BaseURL,
		spreadsheetID: cfg.SpreadsheetID,
		token:         cfg.Token,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		maxElapsed:    2 * time.Minute,
		knownSheets:   make(map[string]bool),
		scanCache:     make(map[string]scanEntry),
		scanTTL:       cfg.ScanCacheTTL,
	}, nil
}

// PartitionName returns the sheet name for the month containing t.
func PartitionName(t time.Time) string {
	return t.Format("Log_2006_01")
}

// AppendBatch writes records to their monthly partitions, creating partitions
// as needed. Records are grouped by month so a batch spanning a month boundary
// lands in both sheets.
func (c *sheetsClient) AppendBatch(ctx context.Context, records []database.Message) error {
	if len(records) == 0 {
		return nil
	}

	byPartition := make(map[string][][]any)
	order := make([]string, 0, 1)
	for i := range records {
		name := PartitionName(records[i].Timestamp)
		if _, ok := byPartition[name]; !ok {
			order = append(order, name)
		}
		byPartition[name] = append(byPartition[name], encodeRow(&records[i]))
	}

	for _, name := range order {
		if err := c.ensureSheet(ctx, name); err != nil {
			return fmt.Errorf("failed to ensure partition %s: %w", name, err)
		}
		if err := c.appendValues(ctx, name, byPartition[name]); err != nil {
			return fmt.Errorf("failed to append to partition %s: %w", name, err)
		}
		c.log.DebugContext(ctx, "Appended records to partition", "partition", name, "count", len(byPartition[name]))
	}

	// Appends change partition contents; stale scan results must not outlive them.
	c.mu.Lock()
	for name := range byPartition {
		delete(c.scanCache, name)
	}
	c.mu.Unlock()

	return nil
}

// ScanMonth fetches and parses one monthly partition. A missing partition is
// an empty month, not an error. Results are cached for a short TTL.
func (c *sheetsClient) ScanMonth(ctx context.Context, month time.Time) ([]database.Message, error) {
	name := PartitionName(month)

	c.mu.Lock()
	if entry, ok := c.scanCache[name]; ok && time.Since(entry.fetchedAt) < c.scanTTL {
		c.mu.Unlock()
		return entry.records, nil
	}
	c.mu.Unlock()

	var payload struct {
		Values [][]any `json:"values"`
	}
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s", c.baseURL, c.spreadsheetID, url.PathEscape(name+"!A2:O"))
	err := c.doWithRetry(ctx, http.MethodGet, endpoint, nil, &payload)
	if err != nil {
		if isMissingSheet(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan partition %s: %w", name, err)
	}

	records := make([]database.Message, 0, len(payload.Values))
	for i, row := range payload.Values {
		rec, err := decodeRow(row)
		if err != nil {
			c.log.WarnContext(ctx, "Skipping malformed archive row", "partition", name, "row", i+2, "error", err)
			continue
		}
		records = append(records, rec)
	}

	c.mu.Lock()
	c.scanCache[name] = scanEntry{records: records, fetchedAt: time.Now()}
	c.mu.Unlock()

	return records, nil
}

func (c *sheetsClient) ensureSheet(ctx context.Context, name string) error {
	c.mu.Lock()
	known := c.knownSheets[name]
	c.mu.Unlock()
	if known {
		return nil
	}

	exists, err := c.sheetExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		if err := c.createSheet(ctx, name); err != nil {
			return err
		}
		if err := c.appendValues(ctx, name, [][]any{headerRow()}); err != nil {
			return fmt.Errorf("failed to write header row: %w", err)
		}
		c.log.InfoContext(ctx, "Created archive partition", "partition", name)
	}

	c.mu.Lock()
	c.knownSheets[name] = true
	c.mu.Unlock()
	return nil
}

func (c *sheetsClient) sheetExists(ctx context.Context, name string) (bool, error) {
	var payload struct {
		Sheets []struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	endpoint := fmt.Sprintf("%s/spreadsheets/%s?fields=sheets.properties.title", c.baseURL, c.spreadsheetID)
	if err := c.doWithRetry(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return false, fmt.Errorf("failed to list sheets: %w", err)
	}
	for _, s := range payload.Sheets {
		if s.Properties.Title == name {
			return true, nil
		}
	}
	return false, nil
}

func (c *sheetsClient) createSheet(ctx context.Context, name string) error {
	body := map[string]any{
		"requests": []map[string]any{
			{"addSheet": map[string]any{"properties": map[string]any{"title": name}}},
		},
	}
	endpoint := fmt.Sprintf("%s/spreadsheets/%s:batchUpdate", c.baseURL, c.spreadsheetID)
	if err := c.doWithRetry(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	return nil
}

func (c *sheetsClient) appendValues(ctx context.Context, name string, rows [][]any) error {
	body := map[string]any{"values": rows}
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s:append?valueInputOption=RAW",
		c.baseURL, c.spreadsheetID, url.PathEscape(name+"!A1"))
	return c.doWithRetry(ctx, http.MethodPost, endpoint, body, nil)
}

// doWithRetry performs one API call with rate limiting and exponential
// backoff on throttling and transient server errors.
func (c *sheetsClient) doWithRetry(ctx context.Context, method, endpoint string, body, out any) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.maxElapsed

	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := c.do(ctx, method, endpoint, body, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrThrottled) || isTransient(err) {
			c.log.WarnContext(ctx, "Retrying archive request", "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("archive API status %d: %s", e.Status, e.Body)
}

func isTransient(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.Status >= 500
}

func isMissingSheet(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.Status == http.StatusBadRequest
}

func (c *sheetsClient) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w (status %d)", ErrThrottled, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{Status: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
