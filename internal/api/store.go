package api

import (
	"context"

	"coderoom/internal/models"
)

// RoomStore captures the persistence operations required by the REST
// handlers.
type RoomStore interface {
	Create(ctx context.Context, name string, isPrivate bool, joinCode, adminID string) (*models.RoomRecord, error)
	FindByID(ctx context.Context, id string) (*models.RoomRecord, error)
	ListByMember(ctx context.Context, userID string) ([]*models.RoomRecord, error)
	AddMember(ctx context.Context, roomID, userID string) error
}
