package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"coderoom/internal/models"
	"coderoom/internal/session"
)

// roomDoc is the collection-level shape; the hex _id is exposed to callers
// as models.RoomRecord.ID.
type roomDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Name            string             `bson:"name"`
	IsPrivate       bool               `bson:"isPrivate"`
	JoinCode        string             `bson:"joinCode,omitempty"`
	AdminID         string             `bson:"admin"`
	MemberIDs       []string           `bson:"users"`
	CurrentTurnUser string             `bson:"currentTurnUser,omitempty"`
	CodeContent     string             `bson:"codeContent"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func (d *roomDoc) record() *models.RoomRecord {
	return &models.RoomRecord{
		ID:              d.ID.Hex(),
		Name:            d.Name,
		IsPrivate:       d.IsPrivate,
		JoinCode:        d.JoinCode,
		AdminID:         d.AdminID,
		MemberIDs:       d.MemberIDs,
		CurrentTurnUser: d.CurrentTurnUser,
		CodeContent:     d.CodeContent,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// RoomRepo wraps the rooms collection. It is both the REST layer's store and
// the coordinator's persistence gateway.
type RoomRepo struct{ col *mongo.Collection }

func NewRoomRepo(c *Client, dbName, colName string) (*RoomRepo, error) {
	db, err := c.DB(dbName)
	if err != nil {
		return nil, err
	}
	if colName == "" {
		colName = "rooms"
	}
	return &RoomRepo{col: db.Collection(colName)}, nil
}

// Create inserts a room. The creator becomes admin, first member, and the
// initial persisted turn holder.
func (r *RoomRepo) Create(ctx context.Context, name string, isPrivate bool, joinCode, adminID string) (*models.RoomRecord, error) {
	if name == "" {
		return nil, errors.New("room name required")
	}
	now := time.Now().UTC()
	doc := &roomDoc{
		Name:            name,
		IsPrivate:       isPrivate,
		JoinCode:        joinCode,
		AdminID:         adminID,
		MemberIDs:       []string{adminID},
		CurrentTurnUser: adminID,
		CodeContent:     session.PlaceholderDocument,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.record(), nil
}

func (r *RoomRepo) FindByID(ctx context.Context, id string) (*models.RoomRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, session.ErrRoomNotFound
	}
	var doc roomDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, session.ErrRoomNotFound
		}
		return nil, err
	}
	return doc.record(), nil
}

func (r *RoomRepo) ListByMember(ctx context.Context, userID string) ([]*models.RoomRecord, error) {
	cur, err := r.col.Find(ctx, bson.M{"users": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []roomDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*models.RoomRecord, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].record())
	}
	return out, nil
}

func (r *RoomRepo) AddMember(ctx context.Context, roomID, userID string) error {
	oid, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		return session.ErrRoomNotFound
	}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$addToSet": bson.M{"users": userID}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return session.ErrRoomNotFound
	}
	return nil
}

// LoadRoom implements session.PersistenceGateway.
func (r *RoomRepo) LoadRoom(ctx context.Context, roomID string) (models.RoomSnapshot, error) {
	room, err := r.FindByID(ctx, roomID)
	if err != nil {
		return models.RoomSnapshot{}, err
	}
	return models.RoomSnapshot{
		DocumentContent: room.CodeContent,
		TurnOwner:       room.CurrentTurnUser,
	}, nil
}

// SaveDocumentAndClearTurn implements session.PersistenceGateway. A single
// update sets the document and unsets the turn owner; MongoDB applies it
// atomically at document granularity, so both fields change together or
// neither does.
func (r *RoomRepo) SaveDocumentAndClearTurn(ctx context.Context, roomID, documentText string) error {
	oid, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		return session.ErrRoomNotFound
	}
	res := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$set":   bson.M{"codeContent": documentText, "updatedAt": time.Now().UTC()},
			"$unset": bson.M{"currentTurnUser": ""},
		},
	)
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return session.ErrRoomNotFound
		}
		return err
	}
	return nil
}
