package postgres

import (
	"context"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/repository"
)

type notificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	logger.EnterMethod("notificationRepository.Create", "userID", n.UserID, "type", n.Type, "title", n.Title)

	query := `INSERT INTO notifications (user_id, title, message, type, related_id, read)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
	logger.DatabaseCall("INSERT", "notifications", "userID", n.UserID)

	err := r.db.QueryRowContext(ctx, query, n.UserID, n.Title, n.Message, n.Type, n.RelatedID, n.Read).Scan(&n.ID, &n.CreatedAt)
	logger.DatabaseResult("INSERT", 1, err, "notificationID", n.ID)

	if err != nil {
		logger.ExitMethodWithError("notificationRepository.Create", err, "userID", n.UserID)
		return translateError(err)
	}
	logger.ExitMethod("notificationRepository.Create", "notificationID", n.ID)
	return nil
}

func (r *notificationRepository) List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	var count int32
	countQuery := `SELECT count(*) FROM notifications WHERE user_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&count); err != nil {
		return nil, 0, translateError(err)
	}

	query := `SELECT id, user_id, title, message, type, related_id, read, created_at
	          FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, translateError(err)
	}
	defer rows.Close()

	var notes []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.RelatedID, &n.Read, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		notes = append(notes, n)
	}
	return notes, count, rows.Err()
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id, userID int32) error {
	query := `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`
	return execOne(ctx, r.db, query, id, userID)
}
