package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/YuminosukeSato/coupling/pkg/errors"
)

func TestTestLogger(t *testing.T) {
	logger, buffer := NewTestLogger(LevelInfo)

	logger.Debug("hidden")
	logger.Info("Score: 0.25", TargetKey, "fc", FoldKey, 1)
	logger.Error("failed", fmt.Errorf("boom"))

	assert.NotContains(t, buffer.String(), "hidden")
	assert.True(t, logger.ContainsMessage("Score: 0.25"))
	assert.True(t, logger.ContainsField(TargetKey, "fc"))
	assert.True(t, logger.ContainsField(FoldKey, 1.0))
	assert.True(t, logger.ContainsField("error", "boom"))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	logger.Clear()
	assert.Empty(t, buffer.String())
}

func TestTestLoggerWith(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)
	child := logger.With(StudyKey, "lgb_fc")
	child.Info("trial complete", TrialKey, 3)

	assert.True(t, logger.ContainsField(StudyKey, "lgb_fc"))
	assert.True(t, logger.ContainsField(TrialKey, 3.0))
	assert.True(t, child.Enabled(context.Background(), LevelDebug))
}

func TestTestLoggerProvider(t *testing.T) {
	p, _ := NewTestLoggerProvider(LevelDebug)
	SetProvider(p)
	defer SetProvider(&zerologProvider{root: zerolog.Nop()})

	GetLoggerWithName("tuning").Info("started")
	assert.True(t, p.Logger().ContainsField(ComponentKey, "tuning"))

	p.SetLevel(LevelError)
	GetLogger().Info("dropped")
	assert.False(t, p.Logger().ContainsMessage("dropped"))
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	logger.Debug("skip")
	logger.With(TargetKey, "sd").Info("fold done", ScoreKey, 0.5, FoldKey, 2)
	logger.Error("store failed", perrors.NewStorageError("save", "x.db", fmt.Errorf("disk")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "sd", first[TargetKey])
	assert.Equal(t, 0.5, first[ScoreKey])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Contains(t, second["error"], "disk")
	assert.NotEmpty(t, second[StacktraceKey])

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), LevelWarn))
}

type foldSummary struct {
	fold  int
	score float64
}

func (f foldSummary) MarshalZerologObject(e *zerolog.Event) {
	e.Int("fold", f.fold).Float64("score", f.score)
}

func TestZerologLoggerObjectField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf))
	logger.Info("fold done", "summary", foldSummary{fold: 1, score: -0.3})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	summary, ok := entry["summary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.0, summary["fold"])
	assert.Equal(t, -0.3, summary["score"])
}

func TestSetupLoggerWithFile(t *testing.T) {
	defer SetProvider(&zerologProvider{root: zerolog.Nop()})
	defer perrors.SetZerologWarnFunc(nil)

	path := filepath.Join(t.TempDir(), "run.log")
	closer, err := SetupLogger(Options{Level: "debug", Format: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	GetLoggerWithName("pipeline").Info("written to file")
	perrors.Warn(perrors.New("tuning exhausted"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.Contains(t, string(data), "tuning exhausted")
}

func TestToLogLevel(t *testing.T) {
	lvl, err := ToLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, lvl)

	_, err = ToLogLevel("loud")
	var ce *perrors.ConfigurationError
	assert.True(t, perrors.As(err, &ce))
}
