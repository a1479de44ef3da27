package queue

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypeSchedulePost = "schedule:post"

type SchedulePostPayload struct {
	PostID string `json:"post_id"`
}

// Enqueuer is the part of *asynq.Client EnqueuePost needs.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueuePost schedules a wake-up for the dispatcher once the post is due.
// The task id is derived from the post and its due time, so rescheduling
// the same post to the same time does not pile up duplicate tasks.
func EnqueuePost(client Enqueuer, payload SchedulePostPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeSchedulePost, taskPayload)
	dueAt := time.Now().Add(delay).Truncate(time.Second)

	_, err = client.Enqueue(task,
		asynq.ProcessIn(delay),
		asynq.TaskID(payload.PostID+"@"+dueAt.Format(time.RFC3339)),
		asynq.MaxRetry(3),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return err
	}

	log.Printf("Task scheduled: %+v in %s", payload, delay)
	return nil
}
