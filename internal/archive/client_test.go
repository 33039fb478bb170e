package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telewatch/telewatch/internal/config"
	"github.com/telewatch/telewatch/internal/database"
)

func testConfig(baseURL string) config.ArchiveConfig {
	return config.ArchiveConfig{
		BaseURL:        baseURL,
		SpreadsheetID:  "sheet-1",
		Token:          "token-1",
		Epoch:          "2024-01",
		ScanWorkers:    3,
		RatePerSecond:  1000,
		ScanCacheTTL:   time.Minute,
		RequestTimeout: 5 * time.Second,
	}
}

func record(id int, ts time.Time) database.Message {
	return database.Message{
		OwnerID:     10,
		ChatID:      20,
		MessageID:   id,
		Timestamp:   ts,
		SenderID:    30,
		SenderName:  "Ada",
		ContentType: "text",
		Text:        sql.NullString{String: "hi", Valid: true},
		CreatedAt:   ts,
	}
}

func TestPartitionName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Log_2025_06", PartitionName(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Log_2024_01", PartitionName(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAppendBatchCreatesPartition(t *testing.T) {
	t.Parallel()

	var batchUpdates, appends atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		switch {
		case strings.Contains(r.URL.Path, ":batchUpdate"):
			batchUpdates.Add(1)
			io.WriteString(w, `{}`)
		case strings.Contains(r.URL.Path, ":append"):
			appends.Add(1)
			io.WriteString(w, `{}`)
		default:
			// Sheet listing: partition does not exist yet.
			io.WriteString(w, `{"sheets":[{"properties":{"title":"Other"}}]}`)
		}
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err = client.AppendBatch(context.Background(), []database.Message{record(1, ts), record(2, ts)})
	require.NoError(t, err)

	assert.Equal(t, int32(1), batchUpdates.Load(), "partition should be created once")
	assert.Equal(t, int32(2), appends.Load(), "header append plus data append")

	// Second batch to the same partition skips the existence check.
	err = client.AppendBatch(context.Background(), []database.Message{record(3, ts)})
	require.NoError(t, err)
	assert.Equal(t, int32(1), batchUpdates.Load())
	assert.Equal(t, int32(3), appends.Load())
}

func TestAppendBatchSplitsAcrossMonths(t *testing.T) {
	t.Parallel()

	appended := make(map[string]int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, ":append"):
			var body struct {
				Values [][]any `json:"values"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			for name := range map[string]bool{"Log_2025_05": true, "Log_2025_06": true} {
				if strings.Contains(r.URL.Path, name) {
					appended[name] += len(body.Values)
				}
			}
			io.WriteString(w, `{}`)
		case strings.Contains(r.URL.Path, ":batchUpdate"):
			io.WriteString(w, `{}`)
		default:
			io.WriteString(w, `{"sheets":[{"properties":{"title":"Log_2025_05"}},{"properties":{"title":"Log_2025_06"}}]}`)
		}
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	err = client.AppendBatch(context.Background(), []database.Message{
		record(1, time.Date(2025, 5, 31, 23, 0, 0, 0, time.UTC)),
		record(2, time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)),
		record(3, time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, appended["Log_2025_05"])
	assert.Equal(t, 2, appended["Log_2025_06"])
}

func TestScanMonthParsesAndCaches(t *testing.T) {
	t.Parallel()

	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		resp := map[string]any{
			"values": [][]any{
				{"2025-06-01T12:00:00Z", "10", "20", "1", "30", "Ada", "", "false", "text", "hi", "", "", "", "", "2025-06-01T12:00:00Z"},
				{"garbage-timestamp", "10", "20", "2", "30", "Ada", "", "false", "text", "bad", "", "", "", "", ""},
				{"2025-06-02T08:30:00Z", "10", "20", "3", "30", "Ada", "ada_l", "true", "voice", "", "125", "48211", "fp-1", "", "2025-06-02T08:30:00Z"},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	month := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records, err := client.ScanMonth(context.Background(), month)
	require.NoError(t, err)
	require.Len(t, records, 2, "malformed row should be skipped")

	assert.Equal(t, 1, records[0].MessageID)
	assert.Equal(t, "hi", records[0].Text.String)
	assert.Equal(t, 3, records[1].MessageID)
	assert.True(t, records[1].IsOutgoing)
	assert.Equal(t, int64(125), records[1].Duration.Int64)
	assert.Equal(t, "fp-1", records[1].Fingerprint.String)

	// Within the TTL the second scan is served from cache.
	_, err = client.ScanMonth(context.Background(), month)
	require.NoError(t, err)
	assert.Equal(t, int32(1), gets.Load())
}

func TestScanMonthMissingPartition(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Unable to parse range"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	records, err := client.ScanMonth(context.Background(), time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRetryOnThrottle(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"values":[]}`)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = client.ScanMonth(context.Background(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestRowRoundTrip(t *testing.T) {
	t.Parallel()

	m := database.Message{
		OwnerID:        10,
		ChatID:         20,
		MessageID:      7,
		Timestamp:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		SenderID:       30,
		SenderName:     "Ada Lovelace",
		SenderUsername: sql.NullString{String: "ada_l", Valid: true},
		IsOutgoing:     true,
		ContentType:    "voice",
		Duration:       sql.NullInt64{Int64: 125, Valid: true},
		FileSize:       sql.NullInt64{Int64: 48211, Valid: true},
		Fingerprint:    sql.NullString{String: "fp-1", Valid: true},
		CreatedAt:      time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC),
	}

	decoded, err := decodeRow(encodeRow(&m))
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}
