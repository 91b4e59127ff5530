package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/repository"
)

const deliveryTimeout = 15 * time.Second

type deliveryJob struct {
	note    domain.Notification
	retries int
	pushed  bool
}

// DeliveryQueue pushes committed notifications to devices and emails billing notices.
// Delivery is best-effort: failed jobs are retried with a growing backoff and then dropped.
type DeliveryQueue struct {
	push       PushSender
	email      EmailSender
	users      repository.UserRepository
	jobs       chan deliveryJob
	workers    int
	maxRetries int
	backoff    time.Duration

	wg sync.WaitGroup
}

// NewDeliveryQueue builds a queue; push and email may be nil to disable that channel.
func NewDeliveryQueue(push PushSender, email EmailSender, users repository.UserRepository, workers, queueSize, maxRetries int) *DeliveryQueue {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &DeliveryQueue{
		push:       push,
		email:      email,
		users:      users,
		jobs:       make(chan deliveryJob, queueSize),
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

// Start launches the workers. They stop when ctx is cancelled.
func (q *DeliveryQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (q *DeliveryQueue) Wait() {
	q.wg.Wait()
}

func (q *DeliveryQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	logger.Debug("Delivery worker started", "worker", id)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Delivery worker stopping", "worker", id)
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

// Enqueue never blocks; notifications that do not fit are dropped.
func (q *DeliveryQueue) Enqueue(notes ...domain.Notification) {
	if q.push == nil && q.email == nil {
		return
	}
	for _, note := range notes {
		q.offer(deliveryJob{note: note})
	}
}

func (q *DeliveryQueue) offer(job deliveryJob) {
	select {
	case q.jobs <- job:
	default:
		logger.Warn("Delivery queue full, dropping notification", "notificationID", job.note.ID, "userID", job.note.UserID)
	}
}

func (q *DeliveryQueue) process(workerCtx context.Context, job deliveryJob) {
	ctx, cancel := context.WithTimeout(workerCtx, deliveryTimeout)
	defer cancel()

	err := q.deliver(ctx, &job)
	if err == nil {
		return
	}
	if job.retries >= q.maxRetries {
		logger.Error("Notification delivery failed", "notificationID", job.note.ID, "retries", job.retries, "error", err)
		return
	}

	job.retries++
	wait := time.Duration(job.retries*job.retries) * q.backoff
	logger.Warn("Retrying notification delivery", "notificationID", job.note.ID, "attempt", job.retries, "in", wait, "error", err)
	time.AfterFunc(wait, func() {
		if workerCtx.Err() == nil {
			q.offer(job)
		}
	})
}

func (q *DeliveryQueue) deliver(ctx context.Context, job *deliveryJob) error {
	note := job.note
	if q.push != nil && !job.pushed {
		if err := q.push.Push(ctx, note); err != nil {
			return fmt.Errorf("push: %w", err)
		}
		job.pushed = true
	}
	if q.email == nil || note.Type != domain.NotificationBilling {
		return nil
	}

	user, err := q.users.GetByID(ctx, note.UserID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if user.Email == "" {
		return nil
	}
	html := fmt.Sprintf("<p>Hello %s,</p><p>%s</p><p>Thank you for using CoreShare.</p>", user.Name, note.Message)
	return q.email.SendEmail(ctx, user.Email, user.Name, note.Title, note.Message, html)
}
