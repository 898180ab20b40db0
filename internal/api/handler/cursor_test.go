package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/cuongbtq/review-monitor/internal/api/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	cursor := &storage.JobCursor{
		StartTime: time.Date(2024, 6, 1, 9, 30, 0, 123456789, time.UTC),
		JobID:     uuid.NewString(),
	}

	decoded, err := DecodeJobCursor(EncodeJobCursor(cursor))
	require.NoError(t, err)
	assert.True(t, cursor.StartTime.Equal(decoded.StartTime))
	assert.Equal(t, cursor.JobID, decoded.JobID)
}

func TestDecodeJobCursor_Invalid(t *testing.T) {
	encode := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%"},
		{"missing separator", encode("12345")},
		{"bad timestamp", encode("abc|" + uuid.NewString())},
		{"bad job id", encode("12345|job-1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor, err := DecodeJobCursor(tt.input)
			assert.Error(t, err)
			assert.Nil(t, cursor)
		})
	}

	cursor, err := DecodeJobCursor("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}
