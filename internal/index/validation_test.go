package index

import (
	"strings"
	"testing"
	"time"
)

func validTask() TaskPayload {
	return TaskPayload{
		Entity:     "gnd",
		Pid:        "118540238",
		Op:         OpIndex,
		EnqueuedAt: time.Now().UnixMilli(),
	}
}

func TestValidateTask_Valid(t *testing.T) {
	t.Parallel()

	for _, op := range []string{OpIndex, OpDelete} {
		task := validTask()
		task.Op = op
		if err := ValidateTask(task); err != nil {
			t.Errorf("ValidateTask(op=%s) = %v, want nil", op, err)
		}
	}
}

func TestValidateTask_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*TaskPayload)
	}{
		{"unknown entity", func(p *TaskPayload) { p.Entity = "loc" }},
		{"empty entity", func(p *TaskPayload) { p.Entity = "" }},
		{"empty pid", func(p *TaskPayload) { p.Pid = "" }},
		{"pid too long", func(p *TaskPayload) { p.Pid = strings.Repeat("x", 65) }},
		{"unknown op", func(p *TaskPayload) { p.Op = "upsert" }},
		{"missing timestamp", func(p *TaskPayload) { p.EnqueuedAt = 0 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			task := validTask()
			tt.mutate(&task)
			if err := ValidateTask(task); err == nil {
				t.Error("ValidateTask should fail")
			}
		})
	}
}

func TestNewConsumerID_Unique(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		id := NewConsumerID()
		if seen[id] {
			t.Fatalf("duplicate consumer id %q", id)
		}
		seen[id] = true
	}
}
