package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resonance/internal/domain/catalog"
	"resonance/internal/domain/engagement"
	"resonance/pkg/errors"
)

type stubCatalog struct {
	niches map[string][]catalog.Topic
	err    error
}

func (s *stubCatalog) TopicsForNiche(_ context.Context, niche string) ([]catalog.Topic, error) {
	return s.niches[niche], s.err
}

func (s *stubCatalog) ActiveNiches(_ context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	niches := make([]string, 0, len(s.niches))
	for n := range s.niches {
		niches = append(niches, n)
	}
	return niches, nil
}

func (s *stubCatalog) Upsert(context.Context, catalog.Topic) error      { return nil }
func (s *stubCatalog) Deactivate(context.Context, string, string) error { return nil }

type stubSource struct {
	gotTopics []string
	gotSince  time.Time
	samples   []engagement.MetricSample
	err       error
}

func (s *stubSource) RecentSamples(_ context.Context, topics []string, since time.Time) ([]engagement.MetricSample, error) {
	s.gotTopics = topics
	s.gotSince = since
	return s.samples, s.err
}

type stubIngester struct {
	accepted []engagement.MetricSample
}

func (s *stubIngester) Ingest(sample engagement.MetricSample) error {
	if err := sample.Validate(); err != nil {
		return err
	}
	s.accepted = append(s.accepted, sample)
	return nil
}

type stubArchive struct {
	batches [][]engagement.MetricSample
}

func (s *stubArchive) InsertSamples(_ context.Context, samples []engagement.MetricSample) error {
	s.batches = append(s.batches, samples)
	return nil
}

func pollFixtures() (*stubCatalog, *stubSource, *stubIngester, *stubArchive) {
	cat := &stubCatalog{niches: map[string][]catalog.Topic{
		"fitness": {
			{Niche: "fitness", TopicID: "pushups", Active: true},
			{Niche: "fitness", TopicID: "yoga", Active: true},
		},
		"cooking": {
			{Niche: "cooking", TopicID: "airfryer", Active: true},
			{Niche: "cooking", TopicID: "yoga", Active: true}, // shared topic
		},
	}}

	now := time.Now().UTC()
	source := &stubSource{samples: []engagement.MetricSample{
		{TopicID: "pushups", Timestamp: now, Views: 100, Likes: 10, Comments: 2, Shares: 1, Source: "poll"},
		{TopicID: "yoga", Timestamp: now, Views: 50, Likes: -3, Source: "poll"}, // invalid
		{TopicID: "airfryer", Timestamp: now, Views: 80, Likes: 8, Source: "poll"},
	}}

	return cat, source, &stubIngester{}, &stubArchive{}
}

func TestCollectorPollWorker_Run(t *testing.T) {
	cat, source, ingester, archive := pollFixtures()
	worker := NewCollectorPollWorker(time.Minute, true, source, cat, ingester, archive)

	err := worker.Run(context.Background())
	require.NoError(t, err)

	// Union across niches, deduped and sorted.
	assert.Equal(t, []string{"airfryer", "pushups", "yoga"}, source.gotTopics)
	assert.True(t, source.gotSince.IsZero(), "first poll covers full collector window")

	// Invalid sample dropped, cycle not aborted.
	require.Len(t, ingester.accepted, 2)

	// Archive receives the raw batch, rejects included (history keeps
	// everything the collector delivered).
	require.Len(t, archive.batches, 1)
	assert.Len(t, archive.batches[0], 3)

	health := worker.Health()
	assert.EqualValues(t, 1, health.RunCount)
	assert.EqualValues(t, 0, health.ErrorCount)
}

func TestCollectorPollWorker_AdvancesSinceBetweenCycles(t *testing.T) {
	cat, source, ingester, _ := pollFixtures()
	worker := NewCollectorPollWorker(time.Minute, true, source, cat, ingester, nil)

	before := time.Now()
	require.NoError(t, worker.Run(context.Background()))
	require.NoError(t, worker.Run(context.Background()))

	assert.False(t, source.gotSince.IsZero())
	assert.True(t, !source.gotSince.Before(before), "second poll starts from the first cycle's start")
}

func TestCollectorPollWorker_SourceFailure(t *testing.T) {
	cat, source, ingester, _ := pollFixtures()
	source.err = errors.ErrUnavailable
	worker := NewCollectorPollWorker(time.Minute, true, source, cat, ingester, nil)

	err := worker.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))

	health := worker.Health()
	assert.EqualValues(t, 1, health.ErrorCount)
}

func TestCollectorPollWorker_NoTopics(t *testing.T) {
	source := &stubSource{}
	worker := NewCollectorPollWorker(time.Minute, true, source, &stubCatalog{niches: map[string][]catalog.Topic{}}, &stubIngester{}, nil)

	require.NoError(t, worker.Run(context.Background()))
	assert.Nil(t, source.gotTopics, "no poll issued without topics")
}
