package snapshot_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/tokenledger/internal/domain"
	"github.com/davidbz/tokenledger/internal/snapshot"
)

func sampleSnapshot() domain.Snapshot {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	description := "draft outline"

	return domain.Snapshot{
		RunID: "run-1",
		Summary: map[string]domain.PhaseBucket{
			domain.TotalPhase: {InputTokens: 1500, OutputTokens: 700, Cost: 0.0042, Calls: 2},
			"planning":        {InputTokens: 1000, OutputTokens: 500, Cost: 0.0030, Calls: 1},
			"writing":         {InputTokens: 500, OutputTokens: 200, Cost: 0.0012, Calls: 1},
		},
		DetailedLogs: []domain.LogEntry{
			{
				Phase:        "planning",
				Model:        "gpt-4.1-mini",
				Description:  &description,
				InputTokens:  1000,
				OutputTokens: 500,
				Cost:         0.0030,
				Timestamp:    at,
			},
			{
				Phase:        "writing",
				Model:        "gpt-4.1-mini",
				InputTokens:  500,
				OutputTokens: 200,
				Cost:         0.0012,
				Timestamp:    at.Add(time.Second),
			},
		},
		GeneratedAt: at.Add(time.Minute),
	}
}

func requireSnapshotEqual(t *testing.T, expected, actual domain.Snapshot) {
	t.Helper()

	require.Equal(t, expected.RunID, actual.RunID)
	require.Equal(t, expected.Summary, actual.Summary)
	require.True(t, expected.GeneratedAt.Equal(actual.GeneratedAt))
	require.Len(t, actual.DetailedLogs, len(expected.DetailedLogs))

	for i, want := range expected.DetailedLogs {
		got := actual.DetailedLogs[i]
		require.Equal(t, want.Phase, got.Phase)
		require.Equal(t, want.Model, got.Model)
		require.Equal(t, want.Description, got.Description)
		require.Equal(t, want.InputTokens, got.InputTokens)
		require.Equal(t, want.OutputTokens, got.OutputTokens)
		require.InDelta(t, want.Cost, got.Cost, 1e-12)
		require.True(t, want.Timestamp.Equal(got.Timestamp))
	}
}

func TestEncodingFor(t *testing.T) {
	tests := []struct {
		path     string
		expected snapshot.Encoding
	}{
		{path: "token_usage.json", expected: snapshot.EncodingJSON},
		{path: "usage.yaml", expected: snapshot.EncodingYAML},
		{path: "USAGE.YML", expected: snapshot.EncodingYAML},
		{path: "usage", expected: snapshot.EncodingJSON},
		{path: "usage.txt", expected: snapshot.EncodingJSON},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.expected, snapshot.EncodingFor(tt.path))
		})
	}
}

func TestFileWriter_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{name: "json", file: "token_usage.json"},
		{name: "yaml", file: "token_usage.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			writer := snapshot.NewFileWriter(snapshot.EncodingFor(path))

			require.NoError(t, writer.Write(context.Background(), path, sampleSnapshot()))

			loaded, err := snapshot.ReadFile(path)
			require.NoError(t, err)
			requireSnapshotEqual(t, sampleSnapshot(), loaded)
		})
	}
}

func TestFileWriter_JSONLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token_usage.json")
	writer := snapshot.NewFileWriter(snapshot.EncodingJSON)

	snap := sampleSnapshot()
	snap.DetailedLogs = snap.DetailedLogs[1:]
	require.NoError(t, writer.Write(context.Background(), path, snap))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "summary")
	require.Contains(t, doc, "detailed_logs")
	require.Contains(t, doc, "generated_at")

	var logs []map[string]any
	require.NoError(t, json.Unmarshal(doc["detailed_logs"], &logs))
	require.Len(t, logs, 1)
	require.Contains(t, logs[0], "description")
	require.Nil(t, logs[0]["description"])
}

func TestFileWriter_ReplacesExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token_usage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"stale": true, "padding": "a much longer previous document"}`), 0o600))

	writer := snapshot.NewFileWriter(snapshot.EncodingJSON)
	empty := domain.Snapshot{
		Summary:      map[string]domain.PhaseBucket{domain.TotalPhase: {}},
		DetailedLogs: []domain.LogEntry{},
		GeneratedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, writer.Write(context.Background(), path, empty))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "stale")

	loaded, err := snapshot.ReadFile(path)
	require.NoError(t, err)
	require.Empty(t, loaded.DetailedLogs)
	require.Equal(t, domain.PhaseBucket{}, loaded.Summary[domain.TotalPhase])
}

func TestFileWriter_Failures(t *testing.T) {
	ctx := context.Background()
	writer := snapshot.NewFileWriter(snapshot.EncodingJSON)

	t.Run("should fail when the directory does not exist", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "token_usage.json")

		err := writer.Write(ctx, path, sampleSnapshot())
		require.Error(t, err)
		require.NoFileExists(t, path)
	})

	t.Run("should leave no temp files when the target cannot be replaced", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "occupied.json")
		require.NoError(t, os.Mkdir(target, 0o755))

		err := writer.Write(ctx, target, sampleSnapshot())
		require.Error(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "occupied.json", entries[0].Name())
	})

	t.Run("should not write when the context is cancelled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token_usage.json")
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := writer.Write(cancelled, path, sampleSnapshot())
		require.ErrorIs(t, err, context.Canceled)
		require.NoFileExists(t, path)
	})
}

func TestSQLiteWriter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "usage.db")
	writer := snapshot.NewSQLiteWriter()

	require.NoError(t, writer.Write(ctx, path, sampleSnapshot()))

	loaded, err := snapshot.ReadSQLite(ctx, path)
	require.NoError(t, err)
	requireSnapshotEqual(t, sampleSnapshot(), loaded)

	t.Run("should replace a previous database", func(t *testing.T) {
		second := sampleSnapshot()
		second.RunID = "run-2"
		second.DetailedLogs = second.DetailedLogs[:1]
		require.NoError(t, writer.Write(ctx, path, second))

		reloaded, err := snapshot.ReadSQLite(ctx, path)
		require.NoError(t, err)
		require.Equal(t, "run-2", reloaded.RunID)
		require.Len(t, reloaded.DetailedLogs, 1)
	})
}

func TestReadSQLite_MissingFile(t *testing.T) {
	_, err := snapshot.ReadSQLite(context.Background(), filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
}

func TestRouter_Write(t *testing.T) {
	ctx := context.Background()
	router := snapshot.NewRouter(nil)

	t.Run("should write json by default", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token_usage.json")
		require.NoError(t, router.Write(ctx, path, sampleSnapshot()))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.True(t, json.Valid(data))
	})

	t.Run("should write yaml for yaml targets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token_usage.yml")
		require.NoError(t, router.Write(ctx, path, sampleSnapshot()))

		loaded, err := snapshot.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "run-1", loaded.RunID)
	})

	t.Run("should write sqlite for database targets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token_usage.sqlite")
		require.NoError(t, router.Write(ctx, path, sampleSnapshot()))

		loaded, err := snapshot.ReadSQLite(ctx, path)
		require.NoError(t, err)
		require.Len(t, loaded.DetailedLogs, 2)
	})

	t.Run("should reject redis targets without a client", func(t *testing.T) {
		err := router.Write(ctx, "redis:latest", sampleSnapshot())
		require.ErrorIs(t, err, snapshot.ErrRedisDisabled)
	})

	t.Run("should reject an empty target", func(t *testing.T) {
		require.Error(t, router.Write(ctx, "", sampleSnapshot()))
	})
}

func TestRedisWriter(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	writer := snapshot.NewRedisWriter(client, "tokenledger:")

	t.Run("should map targets onto prefixed keys", func(t *testing.T) {
		require.Equal(t, "tokenledger:latest", writer.Key("redis:latest"))
		require.True(t, snapshot.IsRedisTarget("redis:latest"))
		require.False(t, snapshot.IsRedisTarget("token_usage.json"))
	})

	t.Run("should fail when redis is unreachable", func(t *testing.T) {
		err := snapshot.NewRouter(writer).Write(context.Background(), "redis:latest", sampleSnapshot())
		require.Error(t, err)

		_, err = writer.Read(context.Background(), "redis:latest")
		require.Error(t, err)
	})
}
