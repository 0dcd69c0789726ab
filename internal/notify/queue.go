package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeLinePush = "notify:line"

// Queue defers delivery to the worker so a slow LINE API never holds up
// a request.
type Queue struct {
	client   *asynq.Client
	maxRetry int
}

func NewQueue(client *asynq.Client) *Queue {
	return &Queue{client: client, maxRetry: 5}
}

func NewLinePushTask(m Message) (*asynq.Task, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLinePush, b), nil
}

func (q *Queue) Send(ctx context.Context, m Message) error {
	const op = "notify.Queue.Send"

	task, err := NewLinePushTask(m)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if _, err := q.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(q.maxRetry),
		asynq.Timeout(30*time.Second),
	); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
