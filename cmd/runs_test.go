package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/report"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	ended := now.Add(1500 * time.Millisecond)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Mode:      model.ModeApply,
			Status:    model.RunStatusComplete,
			Applied:   4,
			Rejected:  1,
			StartedAt: now,
			EndedAt:   &ended,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Mode:      model.ModeDryRun,
			Status:    model.RunStatusRunning,
			StartedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "MODE")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "apply")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "dry_run")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "1.5s")
}

func TestFormatRunsList_FailedRun(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Mode:      model.ModeApply,
			Status:    model.RunStatusFailed,
			ExitCode:  5,
			ErrorKind: model.KindDBTransient,
			StartedAt: now,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "5 DB_TRANSIENT")
}

func TestFormatAudit(t *testing.T) {
	entries := []model.AuditEntry{
		{
			ID:         7,
			Table:      "committees",
			RecordID:   100,
			Operation:  model.OpAssignChair,
			NewValue:   json.RawMessage(`{"chair_member_id":2}`),
			ExecutedAt: time.Date(2025, 1, 3, 17, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	formatAudit(&buf, entries)

	output := buf.String()
	assert.Contains(t, output, "TABLE")
	assert.Contains(t, output, "committees")
	assert.Contains(t, output, "100")
	assert.Contains(t, output, string(model.OpAssignChair))
	assert.Contains(t, output, `{"chair_member_id":2}`)
	assert.Contains(t, output, "2025-01-03 17:00:00")
}

func TestShowRun_WithReport(t *testing.T) {
	rep := &report.Report{
		RunID:     "run-1",
		Mode:      model.ModeDryRun,
		StartedAt: time.Date(2025, 1, 3, 17, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2025, 1, 3, 17, 0, 2, 0, time.UTC),
		Counts:    report.Counts{Sources: 2, Records: 9},
	}
	data, err := rep.JSON()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, showRun(&buf, &model.Run{ID: "run-1", Report: data}))
	assert.Contains(t, buf.String(), "run-1 (dry_run)")
	assert.Contains(t, buf.String(), "2s")
}

func TestShowRun_WithoutReport(t *testing.T) {
	var buf bytes.Buffer
	run := &model.Run{
		ID:        "run-2",
		Mode:      model.ModeApply,
		Status:    model.RunStatusRunning,
		StartedAt: time.Date(2025, 1, 3, 17, 0, 0, 0, time.UTC),
	}
	require.NoError(t, showRun(&buf, run))
	assert.Contains(t, buf.String(), "run-2")
	assert.Contains(t, buf.String(), "running")
	assert.Contains(t, buf.String(), "2025-01-03T17:00:00Z")
}

func TestShowRun_CorruptReport(t *testing.T) {
	var buf bytes.Buffer
	err := showRun(&buf, &model.Run{ID: "run-3", Report: json.RawMessage(`[1,2]`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode report")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestCompactJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, compactJSON(json.RawMessage(`{"a":1}`), 60))
	assert.Equal(t, "abcdefg...", compactJSON(json.RawMessage("abcdefghijklmnop"), 10))
}
