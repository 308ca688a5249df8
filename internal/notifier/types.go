package notifier

import (
	"fmt"
	"time"

	"taskmill/internal/task"
)

// Event type names published on the bus.
const (
	EventTaskStarted   = "task_started"
	EventTaskCompleted = "task_completed"
	EventTaskFailed    = "task_failed"
)

// Content is the notification envelope. Payload text is opaque to the
// engine; the metadata identifies the originating task.
type Content struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Type     string   `json:"type"` // info, success, warning, error
	Metadata Metadata `json:"metadata"`
}

type Metadata struct {
	TaskID    string    `json:"taskId"`
	TaskKind  string    `json:"taskType"`
	Timestamp time.Time `json:"timestamp"`
	Due       string    `json:"formattedDateTime,omitempty"`
}

// NewContent builds the envelope for a task: title from the description,
// message suffixed with the human-formatted due instant.
func NewContent(t *task.Task, scheduledAt time.Time, message, typ string) Content {
	due := formatDateTime(scheduledAt)
	return Content{
		Title:   fmt.Sprintf("Task %s", t.Description),
		Message: fmt.Sprintf("%s\nDue: %s", message, due),
		Type:    typ,
		Metadata: Metadata{
			TaskID:    t.ID,
			TaskKind:  string(t.Kind),
			Timestamp: time.Now(),
			Due:       due,
		},
	}
}

func formatDateTime(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}
