package moderation

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/anonthink/modrelay/src/components"
	"github.com/anonthink/modrelay/src/logging"
	"github.com/microcosm-cc/bluemonday"
)

var (
	// ErrBanned means the submitter is on the ban list. Intake drops the
	// message silently; the bot must not reply.
	ErrBanned = errors.New("submitter is banned")

	// ErrStale means the key references a submission that is absent:
	// already decided, never existed, or superseded. Expected outcome,
	// not a fault.
	ErrStale = errors.New("submission no longer pending")

	// ErrNoRights means the actor is not the configured moderator.
	ErrNoRights = errors.New("no rights")

	// ErrDeliveryFailed means publishing to the destination failed. The
	// submission stays pending so the moderator can retry.
	ErrDeliveryFailed = errors.New("delivery failed")
)

// RateLimitedError carries the remaining cooldown so the intake boundary can
// tell the submitter how long to wait.
type RateLimitedError struct {
	Wait time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, %s left", e.Wait)
}

type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

// Messenger is the outbound half of the messaging transport, as consumed by
// the engine. The bot package implements it over Discord; tests fake it.
type Messenger interface {
	SendText(channelID, text string) error
	// Publish delivers the submission's content to the public destination.
	Publish(channelID string, sub *Submission) error
	// NotifyModerator posts the review message with the moderation controls
	// and returns its message ID.
	NotifyModerator(channelID string, sub *Submission) (string, error)
	// UpdateReview rewrites a review message in place after an edit, with
	// fresh controls.
	UpdateReview(channelID, messageID string, sub *Submission) error
}

// Transcriber converts a voice resource into text. It never fails: provider
// trouble resolves to a visible sentinel string so the submission still
// reaches moderation.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) string
}

type Config struct {
	ModeratorID      string
	ReviewChannelID  string
	PublishChannelID string
	RateLimit        time.Duration

	Messenger   Messenger
	Transcriber Transcriber
}

const defaultRateLimit = 5 * time.Second

// Engine owns the moderation state: rate limits, bans, pending submissions,
// counters and the edit slot. One instance lives for the whole process and is
// injected into the transport handlers.
type Engine struct {
	config    Config
	limiter   *components.RateLimiter
	bans      *components.BanList
	store     *Store
	stats     *components.StatsCounter
	edit      editSlot
	sanitizer *bluemonday.Policy
}

func NewEngine(config Config) *Engine {
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	return &Engine{
		config:    config,
		limiter:   components.NewRateLimiter(config.RateLimit),
		bans:      components.NewBanList(),
		store:     NewStore(),
		stats:     components.NewStatsCounter(),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (e *Engine) Bans() *components.BanList { return e.bans }

// clean strips markup from user-supplied text. The destination renders plain
// text, so entities the sanitizer escaped are folded back: "Tom & Jerry"
// stays "Tom & Jerry", "<b>hi</b>" becomes "hi".
func (e *Engine) clean(text string) string {
	return html.UnescapeString(e.sanitizer.Sanitize(text))
}

func (e *Engine) IsModerator(userID string) bool {
	return userID == e.config.ModeratorID
}

// Inbound is one user message as seen at the transport boundary.
type Inbound struct {
	SubmitterID string
	MessageID   string
	Kind        Kind
	MediaURL    string
	Caption     string
}

// Intake gates an inbound message through the ban list and the rate limiter,
// transcribes voice, stores the submission and notifies the moderator. It
// returns the submission key on acceptance. Counters are untouched here;
// they only reflect terminal outcomes.
func (e *Engine) Intake(ctx context.Context, in Inbound) (string, error) {
	if e.bans.IsBanned(in.SubmitterID) {
		return "", ErrBanned
	}

	// Reject junk before charging the submitter's cooldown.
	if !in.Kind.Valid() {
		return "", fmt.Errorf("unknown submission kind %q", in.Kind)
	}

	now := time.Now()
	if !e.limiter.Allow(in.SubmitterID, now) {
		return "", &RateLimitedError{Wait: e.limiter.TimeUntilNext(in.SubmitterID, now)}
	}

	sub := &Submission{
		Key:             SubmissionKey(in.MessageID, in.SubmitterID),
		Kind:            in.Kind,
		SubmitterID:     in.SubmitterID,
		OriginMessageID: in.MessageID,
		MediaURL:        in.MediaURL,
		Caption:         e.clean(in.Caption),
		ReceivedAt:      now,
	}

	// Transcription blocks only this submitter's flow; no shared lock is
	// held while the provider round-trips.
	if in.Kind.Transcribes() {
		sub.Transcript = e.clean(e.config.Transcriber.Transcribe(ctx, in.MediaURL))
	}

	e.store.Put(sub)

	msgID, err := e.config.Messenger.NotifyModerator(e.config.ReviewChannelID, sub)
	if err != nil {
		// The submission stays pending; it just has no review message
		// to act on until the moderator notices.
		log.Printf("notify moderator for %s from %s: %v", sub.Key, logging.AnonTag(in.SubmitterID), err)
		return sub.Key, nil
	}
	e.store.SetReviewMessage(sub.Key, e.config.ReviewChannelID, msgID)

	log.Printf("submission %s (%s) from %s pending review", sub.Key, sub.Kind, logging.AnonTag(in.SubmitterID))
	return sub.Key, nil
}

// Decide applies a terminal verdict. Store.Take is the linearization point:
// of two racing decisions on one key, exactly one gets the submission and the
// other observes ErrStale.
func (e *Engine) Decide(actorID, key string, verdict Verdict) error {
	if !e.IsModerator(actorID) {
		return ErrNoRights
	}

	sub, ok := e.store.Take(key)
	if !ok {
		return ErrStale
	}

	switch verdict {
	case VerdictApprove:
		if err := e.config.Messenger.Publish(e.config.PublishChannelID, sub); err != nil {
			// Restore the submission so the approval can be retried. A
			// reject racing the failed publish sees ErrStale even though
			// the key returns to pending; with a single moderator that
			// window holds no second actor.
			e.store.PutIfAbsent(sub)
			log.Printf("publish %s: %v", key, err)
			return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		e.stats.AddPublished()
		log.Printf("submission %s published", key)
		return nil
	case VerdictReject:
		e.stats.AddRejected()
		log.Printf("submission %s rejected", key)
		return nil
	default:
		e.store.PutIfAbsent(sub)
		return fmt.Errorf("unknown verdict %q", verdict)
	}
}

// BeginEdit opens the edit session for key. Any previously open session is
// replaced.
func (e *Engine) BeginEdit(actorID, key string) error {
	if !e.IsModerator(actorID) {
		return ErrNoRights
	}

	sub, ok := e.store.Get(key)
	if !ok {
		return ErrStale
	}

	e.edit.open(EditSession{
		Key:       key,
		ChannelID: sub.ReviewChannelID,
		MessageID: sub.ReviewMessageID,
	})
	return nil
}

// ApplyEdit consumes the open edit session with the moderator's replacement
// text. It reports false when the message was not an edit at all (wrong
// actor, or no session open) so the caller can fall through to ordinary
// intake handling.
func (e *Engine) ApplyEdit(actorID, newText string) (bool, error) {
	if !e.IsModerator(actorID) || !e.edit.active() {
		return false, nil
	}

	sess, ok := e.edit.take()
	if !ok {
		return false, nil
	}

	sub, ok := e.store.SetTranscript(sess.Key, e.clean(newText))
	if !ok {
		// The submission was decided or superseded while the moderator
		// was typing. The edit is discarded, the session is spent.
		log.Printf("edit for %s discarded, submission gone", sess.Key)
		return true, nil
	}

	if err := e.config.Messenger.UpdateReview(sess.ChannelID, sess.MessageID, sub); err != nil {
		return true, fmt.Errorf("update review message for %s: %w", sess.Key, err)
	}
	return true, nil
}

// EditPending reports whether an edit session is waiting for text.
func (e *Engine) EditPending() bool {
	return e.edit.active()
}

// Report is the moderator-facing statistics snapshot.
type Report struct {
	components.StatsSnapshot
	Banned  int `json:"banned"`
	Pending int `json:"pending"`
}

func (e *Engine) Report() Report {
	return Report{
		StatsSnapshot: e.stats.Report(),
		Banned:        e.bans.Count(),
		Pending:       e.store.Len(),
	}
}
