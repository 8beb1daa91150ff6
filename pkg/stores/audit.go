package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowcanvas/flowcanvas/pkg/telemetry"
)

// DefaultAuditTimeout bounds a single audit write.
const DefaultAuditTimeout = 2 * time.Second

// NewAuditRecorder returns an event subscriber that journals every session
// event into the audit table. Write failures are logged and dropped so a
// slow or broken database never blocks editing.
func NewAuditRecorder(store Store, actor string, logger zerolog.Logger) telemetry.EventSubscriber {
	return func(event telemetry.Event) {
		entry := &AuditEntry{
			Action:    event.Type,
			Actor:     actor,
			Timestamp: event.Timestamp.UTC(),
		}

		target := event.NodeID
		if target == "" {
			target = event.EdgeID
		}
		if target != "" {
			entry.TargetID = &target
		}

		if len(event.Data) > 0 || event.Message != "" {
			payload := map[string]any{"message": event.Message}
			for k, v := range event.Data {
				payload[k] = v
			}
			if data, err := json.Marshal(payload); err == nil {
				details := string(data)
				entry.Details = &details
			} else {
				logger.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to encode audit details")
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), DefaultAuditTimeout)
		defer cancel()

		if err := store.CreateAuditEntry(ctx, entry); err != nil {
			logger.Error().Err(err).
				Str("event_type", event.Type).
				Str("event_id", event.ID).
				Msg("Failed to record audit entry")
		}
	}
}

// RestoreLatest returns the newest draft of workflowID, or nil when there is
// none or it no longer decodes.
func RestoreLatest(ctx context.Context, store Store, workflowID string, logger zerolog.Logger) *Draft {
	draft, err := store.LatestDraft(ctx, workflowID)
	if err != nil {
		logger.Debug().Err(err).Str("workflow_id", workflowID).Msg("No draft to restore")
		return nil
	}
	if _, err := draft.Decode(); err != nil {
		logger.Warn().Err(err).Str("draft_id", draft.ID).Msg("Ignoring undecodable draft")
		return nil
	}
	return draft
}
