package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/w-lukawski/gabinet/internal/storage"
)

// TopicActivityScheduled carries calendar activities announced by sibling
// modules. Ingested rows block the owning employee's availability.
const TopicActivityScheduled = "crm.activity.scheduled.v1"

type activityEvent struct {
	OrgID      string `json:"org_id"`
	ActivityID string `json:"activity_id"`
	EmployeeID string `json:"employee_id"`
	Title      string `json:"title"`
	StartsAt   string `json:"starts_at"`
	EndsAt     string `json:"ends_at"`
	Completed  bool   `json:"completed"`
	Module     string `json:"module"`
}

// NewActivityHandler ingests foreign calendar activities into the local
// scheduled_activities table.
func NewActivityHandler(calendar *storage.CalendarRepository, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt activityEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			// Malformed payloads are dropped, not retried.
			logger.Error("activity event unmarshal failed", "err", err)
			return nil
		}
		if evt.OrgID == "" || evt.ActivityID == "" || evt.EmployeeID == "" || evt.Module == "" {
			logger.Warn("activity event missing required fields", "activity_id", evt.ActivityID)
			return nil
		}

		startsAt, err := time.Parse(time.RFC3339, evt.StartsAt)
		if err != nil {
			return fmt.Errorf("parse starts_at: %w", err)
		}
		endsAt, err := time.Parse(time.RFC3339, evt.EndsAt)
		if err != nil {
			return fmt.Errorf("parse ends_at: %w", err)
		}
		if !endsAt.After(startsAt) {
			logger.Warn("activity event with empty window dropped", "activity_id", evt.ActivityID)
			return nil
		}

		return calendar.UpsertExternal(ctx, storage.ScheduledActivity{
			OrgID:          evt.OrgID,
			EmployeeID:     evt.EmployeeID,
			Title:          evt.Title,
			StartsAt:       startsAt.UTC(),
			EndsAt:         endsAt.UTC(),
			Completed:      evt.Completed,
			OriginModule:   evt.Module,
			OriginEntityID: evt.ActivityID,
		})
	}
}
