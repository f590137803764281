package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/haiwise/knowledge-cli/internal/model"
)

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("12345678-abcd-efgh"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	runs := []model.QueryRun{
		{
			ID:         "aaaaaaaa-1111-2222-3333-444444444444",
			Question:   "What is the on-time delivery rate for the east region this quarter exactly?",
			Agent:      "dev",
			Status:     model.RunStatusComplete,
			Confidence: 0.87,
			Retrieved:  5,
			CreatedAt:  created,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "aaaaaaaa")
	assert.Contains(t, out, "...", "long questions are truncated")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "0.87")
	assert.Contains(t, out, "2026-03-14 09:30")
}
