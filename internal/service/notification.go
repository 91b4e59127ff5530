package service

import (
	"context"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type notificationService struct {
	noteRepo repository.NotificationRepository
}

func NewNotificationService(noteRepo repository.NotificationRepository) NotificationService {
	return &notificationService{noteRepo: noteRepo}
}

func (s *notificationService) GetNotifications(ctx context.Context, userID int32, page, pageSize int32) ([]domain.Notification, int32, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	offset := (page - 1) * pageSize
	return s.noteRepo.List(ctx, userID, pageSize, offset)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID int32) error {
	return notFound(s.noteRepo.MarkAsRead(ctx, notificationID, userID), "notification", notificationID)
}

// outbox records notification rows inside a transaction and hands them to the
// dispatcher once the transaction has committed.
type outbox struct {
	notes []domain.Notification
}

func (o *outbox) record(ctx context.Context, repo repository.NotificationRepository, userID int32, typ domain.NotificationType, title, message string, relatedID int32) error {
	note := &domain.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		RelatedID: &relatedID,
	}
	if err := repo.Create(ctx, note); err != nil {
		return err
	}
	o.notes = append(o.notes, *note)
	return nil
}

func (o *outbox) flush(d Dispatcher) {
	if d == nil || len(o.notes) == 0 {
		return
	}
	d.Enqueue(o.notes...)
	o.notes = nil
}
