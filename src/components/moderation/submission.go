package moderation

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the closed set of submission content types.
type Kind string

const (
	KindText     Kind = "text"
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	KindVoice    Kind = "voice"
)

type kindSpec struct {
	// hasMedia marks kinds that carry a transport media handle.
	hasMedia bool
	// transcribes marks kinds that run speech-to-text before moderation.
	transcribes bool
}

// kinds is the single dispatch table for kind-specific behavior. Intake and
// delivery consult it once instead of re-branching at every call site.
var kinds = map[Kind]kindSpec{
	KindText:     {},
	KindPhoto:    {hasMedia: true},
	KindVideo:    {hasMedia: true},
	KindDocument: {hasMedia: true},
	KindVoice:    {hasMedia: true, transcribes: true},
}

func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

func (k Kind) HasMedia() bool {
	return kinds[k].hasMedia
}

func (k Kind) Transcribes() bool {
	return kinds[k].transcribes
}

// KindForContentType classifies an attachment by its MIME content type.
func KindForContentType(contentType string) Kind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return KindPhoto
	case strings.HasPrefix(contentType, "video/"):
		return KindVideo
	case strings.HasPrefix(contentType, "audio/"):
		return KindVoice
	default:
		return KindDocument
	}
}

// Submission is a user message waiting for a moderator decision. A submission
// is pending exactly as long as it is present in the store; both terminal
// transitions remove it, so no explicit state field is needed.
type Submission struct {
	Key             string
	Kind            Kind
	SubmitterID     string
	OriginMessageID string

	// MediaURL is the transport-level handle to the binary payload, empty
	// for text submissions.
	MediaURL string

	// Caption is the user-supplied text: the message body for text and
	// voice, the attachment caption otherwise.
	Caption string

	// Transcript holds speech-to-text output for voice submissions. A
	// moderator edit overwrites it, for any kind.
	Transcript string

	// ReviewChannelID/ReviewMessageID locate the moderator-facing review
	// message so it can be updated in place after an edit.
	ReviewChannelID string
	ReviewMessageID string

	ReceivedAt time.Time
}

// SubmissionKey derives the store key from the originating message and the
// submitter. It is reproducible, so button payloads can carry it and recover
// the submission later without a side table.
func SubmissionKey(originMessageID, submitterID string) string {
	return fmt.Sprintf("%s_%s", originMessageID, submitterID)
}

// Body returns the text to publish: the transcript when present, the caption
// otherwise.
func (s *Submission) Body() string {
	if s.Transcript != "" {
		return s.Transcript
	}
	return s.Caption
}
