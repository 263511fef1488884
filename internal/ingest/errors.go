package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mediavault/mediavault/internal/telegram"
)

var (
	// ErrUnauthorized is the parent of every authentication failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidWebhookSecret indicates a missing or mismatched secret header.
	ErrInvalidWebhookSecret = fmt.Errorf("%w: invalid webhook secret", ErrUnauthorized)
	// ErrMissingBotToken indicates no bot credential is configured.
	ErrMissingBotToken = fmt.Errorf("%w: missing bot token", ErrUnauthorized)
	// ErrUpstreamFetch indicates getFile or the file download failed.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	// ErrStorageWrite indicates an object upload or row write failed.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrMalformedPayload indicates the webhook body could not be decoded.
	ErrMalformedPayload = telegram.ErrMalformedPayload
)

// Step names one write in the ingestion sequence.
type Step string

const (
	StepChannelUpserted       Step = "channel_upserted"
	StepMessageSaved          Step = "message_saved"
	StepMessageReceivedLogged Step = "message_received_logged"
	StepMediaFetched          Step = "media_fetched"
	StepMediaUploaded         Step = "media_uploaded"
	StepMediaSaved            Step = "media_saved"
	StepMediaUpdated          Step = "media_updated"
	StepMessageMediaLinked    Step = "message_media_linked"
	StepMediaSavedLogged      Step = "media_saved_logged"
	StepGroupCaptionSynced    Step = "group_caption_synced"
)

// StepError reports the step that aborted ingestion and what was already committed.
// Committed steps are never rolled back.
type StepError struct {
	Step      Step
	Kind      error
	Err       error
	Committed []Step
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func joinSteps(steps []Step) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}
