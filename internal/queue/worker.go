package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

// Nudger starts a dispatch cycle early. The dispatcher itself decides what is
// due, so a stale or duplicate task is harmless.
type Nudger interface {
	Nudge()
}

type Queue struct {
	dispatcher Nudger
}

func NewQueue(dispatcher Nudger) *Queue {
	return &Queue{dispatcher: dispatcher}
}

func (q *Queue) HandleSchedulePostTask(ctx context.Context, task *asynq.Task) error {
	var payload SchedulePostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid %s payload: %v: %w", TaskTypeSchedulePost, err, asynq.SkipRetry)
	}

	log.Printf("Post %s is due, waking the dispatcher", payload.PostID)
	q.dispatcher.Nudge()
	return nil
}

// NewServeMux routes the schedule task to q.
func (q *Queue) NewServeMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeSchedulePost, q.HandleSchedulePostTask)
	return mux
}
