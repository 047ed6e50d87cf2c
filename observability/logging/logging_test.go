package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWritesServiceFields(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup("creditd", "test", WithOutput(&buf), WithLevel("warn"))
	logger.Info("dropped")
	logger.Warn("kept", "height", 7)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	require.Equal(t, "kept", record["message"])
	require.Equal(t, "WARN", record["severity"])
	require.Equal(t, "creditd", record["service"])
	require.Equal(t, "test", record["env"])
	require.EqualValues(t, 7, record["height"])
	require.Contains(t, record, "timestamp")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("hmac_secret", "s3cret").Value.String())
	require.Equal(t, "cosmos1abc", MaskField("sender", "cosmos1abc").Value.String())
	require.Equal(t, "", MaskField("token", "").Value.String())
	require.Contains(t, RedactionAllowlist(), "account_id")
}

func TestRedactDSN(t *testing.T) {
	cases := []struct{ in, want string }{
		{"postgres://indexer:hunter2@db:5432/credit?sslmode=disable", "postgres://indexer:[REDACTED]@db:5432/credit?sslmode=disable"},
		{"postgres://db:5432/credit", "postgres://db:5432/credit"},
		{"host=db user=indexer password=hunter2 dbname=credit", "host=db user=indexer password=[REDACTED] dbname=credit"},
		{"file:journal.db?cache=shared", "file:journal.db?cache=shared"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, RedactDSN(tc.in), tc.in)
	}
}
