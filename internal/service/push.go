package service

import (
	"context"
	"fmt"
	"strconv"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/logger"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushSender delivers a notification to the devices subscribed for its user.
type PushSender interface {
	Push(ctx context.Context, note domain.Notification) error
}

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type firebasePush struct {
	client messagingClient
}

// NewFirebasePush connects to Firebase Cloud Messaging. It returns nil when no
// credentials are configured; the dispatcher then skips push delivery.
func NewFirebasePush(ctx context.Context, projectID, credentialsFile string) (PushSender, error) {
	if credentialsFile == "" {
		return nil, nil
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging: %w", err)
	}
	return &firebasePush{client: client}, nil
}

// UserTopic is the messaging topic a user's devices subscribe to.
func UserTopic(userID int32) string {
	return "user-" + strconv.Itoa(int(userID))
}

func (p *firebasePush) Push(ctx context.Context, note domain.Notification) error {
	data := map[string]string{
		"notificationId": strconv.Itoa(int(note.ID)),
		"type":           string(note.Type),
	}
	if note.RelatedID != nil {
		data["relatedId"] = strconv.Itoa(int(*note.RelatedID))
	}
	msg := &messaging.Message{
		Topic: UserTopic(note.UserID),
		Notification: &messaging.Notification{
			Title: note.Title,
			Body:  note.Message,
		},
		Data: data,
	}

	logger.ExternalServiceCall("firebase", "send", "topic", msg.Topic, "type", note.Type)
	id, err := p.client.Send(ctx, msg)
	logger.ExternalServiceResult("firebase", "send", err, "messageID", id)
	return err
}
