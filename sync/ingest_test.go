// ABOUTME: Tests for ingesting extractor records
// ABOUTME: Covers the confidence threshold and upsert by source email
package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
)

func TestIngestExtractedBelowThreshold(t *testing.T) {
	env := newTestEnv(t)

	sub, err := env.engine.IngestExtracted("u1", models.ExtractedSubscription{
		Name:       "Maybe",
		Confidence: 0.4,
	}, 0.7)
	require.NoError(t, err)
	assert.Nil(t, sub)

	subs, err := db.FindSubscriptions(env.db, "u1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestIngestExtractedUpsertsBySourceEmail(t *testing.T) {
	env := newTestEnv(t)
	amount := 9.99

	created, err := env.engine.IngestExtracted("u1", models.ExtractedSubscription{
		Name:          "Spotify",
		RenewalDate:   day("2025-06-01"),
		SourceEmailID: "msg-1",
		Confidence:    0.9,
	}, 0.7)
	require.NoError(t, err)
	require.NotNil(t, created)

	updated, err := env.engine.IngestExtracted("u1", models.ExtractedSubscription{
		Name:          "Spotify Premium",
		RenewalDate:   day("2025-07-01"),
		Amount:        &amount,
		Currency:      "USD",
		SourceEmailID: "msg-1",
		Confidence:    0.95,
	}, 0.7)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, created.ID, updated.ID)

	subs, err := db.FindSubscriptions(env.db, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Spotify Premium", subs[0].Name)
	assert.Equal(t, "2025-07-01", subs[0].RenewalDate.Format("2006-01-02"))
	require.NotNil(t, subs[0].Amount)
	assert.InDelta(t, 9.99, *subs[0].Amount, 0.001)
}

func TestIngestExtractedRequiresName(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.IngestExtracted("u1", models.ExtractedSubscription{Confidence: 1}, 0.7)
	assert.ErrorIs(t, err, ErrMissingName)
}
