package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishCall struct {
	channelID string
	body      string
	kind      Kind
}

type fakeMessenger struct {
	mu          sync.Mutex
	published   []publishCall
	notified    []string
	updated     []string
	texts       []string
	failPublish bool
	failNotify  bool
}

func (f *fakeMessenger) SendText(channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) Publish(channelID string, sub *Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPublish {
		return errors.New("channel unreachable")
	}
	f.published = append(f.published, publishCall{channelID: channelID, body: sub.Body(), kind: sub.Kind})
	return nil
}

func (f *fakeMessenger) NotifyModerator(channelID string, sub *Submission) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNotify {
		return "", errors.New("review channel unreachable")
	}
	f.notified = append(f.notified, sub.Key)
	return fmt.Sprintf("review-%d", len(f.notified)), nil
}

func (f *fakeMessenger) UpdateReview(channelID, messageID string, sub *Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, messageID)
	return nil
}

func (f *fakeMessenger) publishedBodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	bodies := make([]string, len(f.published))
	for i, p := range f.published {
		bodies[i] = p.body
	}
	return bodies
}

type fakeTranscriber struct {
	text string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioURL string) string {
	return f.text
}

const (
	testModerator = "mod-1"
	testReview    = "review-channel"
	testPublish   = "publish-channel"
)

func newTestEngine(transcript string) (*Engine, *fakeMessenger) {
	messenger := &fakeMessenger{}
	engine := NewEngine(Config{
		ModeratorID:      testModerator,
		ReviewChannelID:  testReview,
		PublishChannelID: testPublish,
		RateLimit:        5 * time.Second,
		Messenger:        messenger,
		Transcriber:      &fakeTranscriber{text: transcript},
	})
	return engine, messenger
}

func textIntake(submitterID, messageID, text string) Inbound {
	return Inbound{
		SubmitterID: submitterID,
		MessageID:   messageID,
		Kind:        KindText,
		Caption:     text,
	}
}

func TestIntakeApprovePublishes(t *testing.T) {
	engine, messenger := newTestEngine("")

	key, err := engine.Intake(context.Background(), textIntake("42", "7", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "7_42", key)
	require.Equal(t, []string{"7_42"}, messenger.notified)

	require.NoError(t, engine.Decide(testModerator, key, VerdictApprove))
	assert.Equal(t, []string{"hello"}, messenger.publishedBodies())
	assert.Equal(t, testPublish, messenger.published[0].channelID)

	report := engine.Report()
	assert.Equal(t, uint64(1), report.Published)
	assert.Equal(t, 0, report.Pending)

	// A second approve on the same key is stale.
	assert.ErrorIs(t, engine.Decide(testModerator, key, VerdictApprove), ErrStale)
}

func TestRejectDiscards(t *testing.T) {
	engine, messenger := newTestEngine("")

	key, err := engine.Intake(context.Background(), textIntake("42", "7", "hello"))
	require.NoError(t, err)

	require.NoError(t, engine.Decide(testModerator, key, VerdictReject))
	assert.Empty(t, messenger.publishedBodies())

	report := engine.Report()
	assert.Equal(t, uint64(1), report.Rejected)
	assert.Equal(t, 0, report.Pending)

	assert.ErrorIs(t, engine.Decide(testModerator, key, VerdictApprove), ErrStale)
}

func TestDecideRequiresModerator(t *testing.T) {
	engine, _ := newTestEngine("")

	key, err := engine.Intake(context.Background(), textIntake("42", "7", "hello"))
	require.NoError(t, err)

	assert.ErrorIs(t, engine.Decide("42", key, VerdictApprove), ErrNoRights)
	// Still pending after the denied attempt.
	assert.Equal(t, 1, engine.Report().Pending)
}

func TestBannedSubmitterNeverStored(t *testing.T) {
	engine, messenger := newTestEngine("")
	engine.Bans().Ban("42")

	_, err := engine.Intake(context.Background(), textIntake("42", "7", "hello"))
	assert.ErrorIs(t, err, ErrBanned)
	assert.Empty(t, messenger.notified)
	assert.Equal(t, 0, engine.Report().Pending)
}

func TestRateLimitedSecondSubmission(t *testing.T) {
	engine, messenger := newTestEngine("")

	_, err := engine.Intake(context.Background(), textIntake("42", "7", "first"))
	require.NoError(t, err)

	_, err = engine.Intake(context.Background(), textIntake("42", "8", "second"))
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Greater(t, limited.Wait, time.Duration(0))
	assert.Len(t, messenger.notified, 1)
}

func TestVoicePublishesTranscriptOverCaption(t *testing.T) {
	engine, messenger := newTestEngine("spoken words")

	key, err := engine.Intake(context.Background(), Inbound{
		SubmitterID: "42",
		MessageID:   "7",
		Kind:        KindVoice,
		MediaURL:    "https://cdn.example/voice.ogg",
		Caption:     "caption text",
	})
	require.NoError(t, err)

	require.NoError(t, engine.Decide(testModerator, key, VerdictApprove))
	assert.Equal(t, []string{"spoken words"}, messenger.publishedBodies())
}

func TestVoiceSentinelStillReachesModeration(t *testing.T) {
	engine, messenger := newTestEngine("(speech not recognized)")

	key, err := engine.Intake(context.Background(), Inbound{
		SubmitterID: "42",
		MessageID:   "7",
		Kind:        KindVoice,
		MediaURL:    "https://cdn.example/voice.ogg",
	})
	require.NoError(t, err)
	require.Equal(t, []string{key}, messenger.notified)

	sub, ok := engine.store.Get(key)
	require.True(t, ok)
	assert.Equal(t, "(speech not recognized)", sub.Transcript)
}

func TestDeliveryFailureKeepsSubmission(t *testing.T) {
	engine, messenger := newTestEngine("")

	key, err := engine.Intake(context.Background(), textIntake("42", "7", "hello"))
	require.NoError(t, err)

	messenger.failPublish = true
	assert.ErrorIs(t, engine.Decide(testModerator, key, VerdictApprove), ErrDeliveryFailed)

	report := engine.Report()
	assert.Equal(t, uint64(0), report.Published)
	assert.Equal(t, 1, report.Pending)

	// The retry succeeds once delivery recovers.
	messenger.failPublish = false
	require.NoError(t, engine.Decide(testModerator, key, VerdictApprove))
	assert.Equal(t, []string{"hello"}, messenger.publishedBodies())
	assert.Equal(t, uint64(1), engine.Report().Published)
}

func TestEditFlowPublishesCorrectedText(t *testing.T) {
	engine, messenger := newTestEngine("")

	key, err := engine.Intake(context.Background(), textIntake("42", "7", "helo"))
	require.NoError(t, err)

	require.NoError(t, engine.BeginEdit(testModerator, key))

	handled, err := engine.ApplyEdit(testModerator, "corrected text")
	require.NoError(t, err)
	require.True(t, handled)
	assert.Len(t, messenger.updated, 1)

	require.NoError(t, engine.Decide(testModerator, key, VerdictApprove))
	assert.Equal(t, []string{"corrected text"}, messenger.publishedBodies())
}

func TestBeginEditChecks(t *testing.T) {
	engine, _ := newTestEngine("")

	key, err := engine.Intake(context.Background(), textIntake("42", "7", "hello"))
	require.NoError(t, err)

	assert.ErrorIs(t, engine.BeginEdit("42", key), ErrNoRights)
	assert.ErrorIs(t, engine.BeginEdit(testModerator, "absent_1"), ErrStale)
}

func TestApplyEditWithoutSessionFallsThrough(t *testing.T) {
	engine, _ := newTestEngine("")

	handled, err := engine.ApplyEdit(testModerator, "just a message")
	require.NoError(t, err)
	assert.False(t, handled)

	handled, err = engine.ApplyEdit("42", "not the moderator")
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestApplyEditOnGoneSubmissionDiscardsAndClosesSession(t *testing.T) {
	engine, messenger := newTestEngine("")

	key, err := engine.Intake(context.Background(), textIntake("42", "7", "hello"))
	require.NoError(t, err)
	require.NoError(t, engine.BeginEdit(testModerator, key))

	// The submission is decided while the moderator is typing.
	require.NoError(t, engine.Decide(testModerator, key, VerdictReject))

	handled, err := engine.ApplyEdit(testModerator, "too late")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Empty(t, messenger.updated)
	assert.False(t, engine.EditPending())
}

func TestSecondEditSessionReplacesFirst(t *testing.T) {
	engine, _ := newTestEngine("")

	first, err := engine.Intake(context.Background(), textIntake("42", "7", "one"))
	require.NoError(t, err)
	second, err := engine.Intake(context.Background(), textIntake("43", "8", "two"))
	require.NoError(t, err)

	require.NoError(t, engine.BeginEdit(testModerator, first))
	require.NoError(t, engine.BeginEdit(testModerator, second))

	handled, err := engine.ApplyEdit(testModerator, "replacement")
	require.NoError(t, err)
	require.True(t, handled)

	sub, ok := engine.store.Get(second)
	require.True(t, ok)
	assert.Equal(t, "replacement", sub.Transcript)

	sub, ok = engine.store.Get(first)
	require.True(t, ok)
	assert.Empty(t, sub.Transcript)
}

func TestConcurrentDecisionsSingleWinner(t *testing.T) {
	engine, _ := newTestEngine("")

	key, err := engine.Intake(context.Background(), textIntake("42", "7", "hello"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, verdict := range []Verdict{VerdictApprove, VerdictReject} {
		wg.Add(1)
		go func(v Verdict) {
			defer wg.Done()
			results <- engine.Decide(testModerator, key, v)
		}(verdict)
	}
	wg.Wait()
	close(results)

	var wins, stale int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrStale):
			stale++
		default:
			t.Fatalf("unexpected decision error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, stale)
	assert.Equal(t, uint64(1), engine.Report().Total)
}

func TestIntakeSanitizesCaption(t *testing.T) {
	engine, _ := newTestEngine("")

	key, err := engine.Intake(context.Background(), textIntake("42", "7", "<b>hello</b>"))
	require.NoError(t, err)

	sub, ok := engine.store.Get(key)
	require.True(t, ok)
	assert.Equal(t, "hello", sub.Caption)
}

func TestPlainTextPublishedUnaltered(t *testing.T) {
	engine, messenger := newTestEngine("")

	key, err := engine.Intake(context.Background(), textIntake("42", "7", "Tom & Jerry say 1 < 2"))
	require.NoError(t, err)

	require.NoError(t, engine.Decide(testModerator, key, VerdictApprove))
	assert.Equal(t, []string{"Tom & Jerry say 1 < 2"}, messenger.publishedBodies())
}

func TestEditedTextKeepsSpecialCharacters(t *testing.T) {
	engine, _ := newTestEngine("")

	key, err := engine.Intake(context.Background(), textIntake("42", "7", "draft"))
	require.NoError(t, err)

	require.NoError(t, engine.BeginEdit(testModerator, key))
	handled, err := engine.ApplyEdit(testModerator, "cats & dogs")
	require.NoError(t, err)
	require.True(t, handled)

	sub, ok := engine.store.Get(key)
	require.True(t, ok)
	assert.Equal(t, "cats & dogs", sub.Transcript)
}

func TestInvalidKindDoesNotChargeCooldown(t *testing.T) {
	engine, _ := newTestEngine("")

	_, err := engine.Intake(context.Background(), Inbound{SubmitterID: "42", MessageID: "7", Kind: Kind("sticker")})
	require.Error(t, err)

	// The rejected junk must not have started the submitter's cooldown.
	key, err := engine.Intake(context.Background(), textIntake("42", "8", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "8_42", key)
}

func TestCollidingKeySupersedes(t *testing.T) {
	engine, _ := newTestEngine("")

	key, err := engine.Intake(context.Background(), textIntake("42", "7", "first"))
	require.NoError(t, err)
	key2, err := engine.Intake(context.Background(), textIntake("43", "7", "other submitter"))
	require.NoError(t, err)
	assert.NotEqual(t, key, key2)
	assert.Equal(t, 2, engine.Report().Pending)
}
