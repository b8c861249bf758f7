package index

import (
	"fmt"

	"github.com/PascalRepond/rero-mef/internal/model"
)

const maxPidLength = 64

// ValidateTask validates an index task payload.
func ValidateTask(task TaskPayload) error {
	if _, err := model.ParseEntity(task.Entity); err != nil {
		return fmt.Errorf("entity %q is unknown", task.Entity)
	}
	if task.Pid == "" {
		return fmt.Errorf("pid is required")
	}
	if len(task.Pid) > maxPidLength {
		return fmt.Errorf("pid too long")
	}
	if task.Op != OpIndex && task.Op != OpDelete {
		return fmt.Errorf("op %q is unknown", task.Op)
	}
	if task.EnqueuedAt <= 0 {
		return fmt.Errorf("enqueued_at must be set")
	}
	return nil
}
