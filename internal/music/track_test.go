package music

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KuramaSyu/inu-sub000/internal/lavalink"
)

func testTrack(n int) Track {
	return Track{
		Source: lavalink.Track{
			Encoded: fmt.Sprintf("enc-%d", n),
			Info: lavalink.TrackInfo{
				Title:  fmt.Sprintf("track %d", n),
				URI:    fmt.Sprintf("https://example.com/%d", n),
				Length: 180000,
			},
		},
		RequesterID: "user-1",
	}
}

func fillQueue(q *queue, n int) {
	for i := 0; i < n; i++ {
		q.Append(testTrack(i))
	}
}

func TestQueueCurrent(t *testing.T) {
	q := &queue{}
	_, ok := q.Current()
	assert.False(t, ok)

	fillQueue(q, 3)
	current, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "track 0", current.Title())
}

func TestQueueAdvance(t *testing.T) {
	q := &queue{}
	fillQueue(q, 4)

	next, ok := q.Advance(1)
	require.True(t, ok)
	assert.Equal(t, "track 1", next.Title())
	assert.Equal(t, 3, q.Len())

	next, ok = q.Advance(2)
	require.True(t, ok)
	assert.Equal(t, "track 3", next.Title())
}

func TestQueueAdvancePastEndEmpties(t *testing.T) {
	q := &queue{}
	fillQueue(q, 2)

	_, ok := q.Advance(5)
	assert.False(t, ok)
	assert.True(t, q.Empty())
}

func TestQueueAdvanceClampsNonPositive(t *testing.T) {
	q := &queue{}
	fillQueue(q, 3)

	next, ok := q.Advance(0)
	require.True(t, ok)
	assert.Equal(t, "track 1", next.Title())
}

func TestQueueInsertAt(t *testing.T) {
	tests := []struct {
		name     string
		position int
		want     []string // expected title order after insert
	}{
		{"next up", 1, []string{"track 0", "inserted", "track 1", "track 2"}},
		{"middle", 2, []string{"track 0", "track 1", "inserted", "track 2"}},
		{"clamped low", -3, []string{"track 0", "inserted", "track 1", "track 2"}},
		{"clamped high", 99, []string{"track 0", "track 1", "track 2", "inserted"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &queue{}
			fillQueue(q, 3)
			inserted := testTrack(100)
			inserted.Source.Info.Title = "inserted"
			q.InsertAt(tt.position, inserted)

			var got []string
			for _, track := range q.Snapshot() {
				got = append(got, track.Title())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueueShuffleKeepsHead(t *testing.T) {
	q := &queue{}
	fillQueue(q, 20)
	before := q.Snapshot()

	q.Shuffle()

	after := q.Snapshot()
	require.Len(t, after, 20)
	assert.Equal(t, before[0], after[0], "current track must stay in place")

	seen := map[string]bool{}
	for _, track := range after {
		seen[track.URI()] = true
	}
	for _, track := range before {
		assert.True(t, seen[track.URI()], "shuffle must not lose %s", track.URI())
	}
}

func TestQueueShuffleTinyQueueIsNoOp(t *testing.T) {
	q := &queue{}
	fillQueue(q, 2)
	before := q.Snapshot()
	q.Shuffle()
	assert.Equal(t, before, q.Snapshot())
}

func TestQueueClear(t *testing.T) {
	q := &queue{}
	fillQueue(q, 5)
	q.Clear()
	assert.True(t, q.Empty())
}

func TestQueuePrepend(t *testing.T) {
	q := &queue{}
	fillQueue(q, 2)
	head := testTrack(7)
	q.Prepend(head)

	current, ok := q.Current()
	require.True(t, ok)
	assert.True(t, current.Equal(head))
	assert.Equal(t, 3, q.Len())
}

func TestTrackEqual(t *testing.T) {
	a := testTrack(1)
	b := testTrack(1)
	assert.True(t, a.Equal(b))

	b.RequesterID = "someone-else"
	assert.False(t, a.Equal(b))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:05", FormatDuration(5*time.Second))
	assert.Equal(t, "3:07", FormatDuration(3*time.Minute+7*time.Second))
	assert.Equal(t, "1:02:03", FormatDuration(time.Hour+2*time.Minute+3*time.Second))
}
