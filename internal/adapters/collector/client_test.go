package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resonance/internal/adapters/config"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init("error", "test")
	m.Run()
}

func TestClient_RecentSamples(t *testing.T) {
	var gotAuth, gotTopics, gotSince, gotLimit string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/samples", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotTopics = r.URL.Query().Get("topics")
		gotSince = r.URL.Query().Get("since")
		gotLimit = r.URL.Query().Get("limit")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"samples":[
			{"topic_id":"pushups","timestamp":"2026-08-25T10:00:00Z","views":1000,"likes":120,"comments":30,"shares":10,"source":"tiktok"},
			{"topic_id":"yoga","timestamp":"2026-08-25T10:01:00Z","views":500,"likes":40,"comments":5,"shares":2,"source":"tiktok"}
		]}`))
	}))
	defer server.Close()

	client, err := NewClient(config.CollectorConfig{
		BaseURL:  server.URL,
		APIToken: "secret-token",
		MaxItems: 50,
	})
	require.NoError(t, err)

	since := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	samples, err := client.RecentSamples(context.Background(), []string{"pushups", "yoga"}, since)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "pushups,yoga", gotTopics)
	assert.Equal(t, "2026-08-25T09:00:00Z", gotSince)
	assert.Equal(t, "50", gotLimit)

	assert.Equal(t, "pushups", samples[0].TopicID)
	assert.Equal(t, int64(120), samples[0].Likes)
	assert.Equal(t, "tiktok", samples[0].Source)
}

func TestClient_RecentSamples_EmptyTopicSet(t *testing.T) {
	client, err := NewClient(config.CollectorConfig{BaseURL: "http://collector.invalid"})
	require.NoError(t, err)

	samples, err := client.RecentSamples(context.Background(), nil, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestClient_RecentSamples_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "actor quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(config.CollectorConfig{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.RecentSamples(context.Background(), []string{"pushups"}, time.Time{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	assert.Contains(t, err.Error(), "429")
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(config.CollectorConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
