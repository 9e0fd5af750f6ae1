package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"surveillance_backend/internal/feature/camera/domain/entity"
	"surveillance_backend/internal/feature/camera/usecase"
)

// CameraCollection is the MongoDB collection that stores cameras.
const CameraCollection = "cameras"

// cameraDocument is the MongoDB representation of a camera.
// Field names match the documents written by the dashboard's previous backend.
type cameraDocument struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	CameraID   string        `bson:"cameraId"`
	CameraName string        `bson:"cameraName"`
	People     counter       `bson:"people"`
	Threats    counter       `bson:"threats"`
	CreatedAt  time.Time     `bson:"createdAt,omitempty"`
}

// cameraMongo is the MongoDB implementation of CameraRepository.
type cameraMongo struct {
	coll *mongo.Collection
}

var _ usecase.CameraRepository = (*cameraMongo)(nil)

// NewCameraMongo creates a cameraMongo repository on db's cameras collection.
func NewCameraMongo(db *mongo.Database) *cameraMongo {
	return &cameraMongo{coll: db.Collection(CameraCollection)}
}

// EnsureIndexes creates the unique index on cameraId. It is idempotent.
func (r *cameraMongo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "cameraId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("cameraId_unique"),
	})
	if err != nil {
		return fmt.Errorf("create cameraId index: %w", err)
	}
	return nil
}

// Create inserts cam and sets cam.ID to the ObjectID hex string.
func (r *cameraMongo) Create(ctx context.Context, cam *entity.Camera) error {
	doc := toDocument(cam)
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return usecase.ErrCameraAlreadyExists
		}
		return err
	}
	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	cam.ID = oid.Hex()
	return nil
}

// List returns all cameras ordered by creation time, then insertion order.
func (r *cameraMongo) List(ctx context.Context) ([]entity.Camera, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	out := make([]entity.Camera, 0)
	for cur.Next(ctx) {
		var d cameraDocument
		if err := cur.Decode(&d); err != nil {
			slog.Warn("skipping undecodable camera document", "error", err, "_id", cur.Current.Lookup("_id").String())
			continue
		}
		out = append(out, d.toEntity())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByCameraID removes the camera with the given cameraId.
func (r *cameraMongo) DeleteByCameraID(ctx context.Context, cameraID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "cameraId", Value: cameraID}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return usecase.ErrCameraNotFound
	}
	return nil
}

// Ping verifies the MongoDB deployment is reachable.
func (r *cameraMongo) Ping(ctx context.Context) error {
	if r.coll == nil {
		return errors.New("mongo collection is not configured")
	}
	return r.coll.Database().Client().Ping(ctx, nil)
}

func toDocument(cam *entity.Camera) cameraDocument {
	return cameraDocument{
		CameraID:   cam.CameraID,
		CameraName: cam.CameraName,
		People:     counter(cam.People),
		Threats:    counter(cam.Threats),
		CreatedAt:  cam.CreatedAt,
	}
}

func (d cameraDocument) toEntity() entity.Camera {
	createdAt := d.CreatedAt
	// documents written before createdAt existed fall back to the ObjectID timestamp
	if createdAt.IsZero() && !d.ID.IsZero() {
		createdAt = d.ID.Timestamp()
	}
	return entity.Camera{
		ID:         d.ID.Hex(),
		CameraID:   d.CameraID,
		CameraName: d.CameraName,
		People:     int(d.People),
		Threats:    int(d.Threats),
		CreatedAt:  createdAt,
	}
}

// counter is a people/threats count. Older documents may hold the count as a
// double, a numeric string or null, so decoding accepts those and falls back to 0.
type counter int

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (c *counter) UnmarshalBSONValue(typ byte, data []byte) error {
	rv := bson.RawValue{Type: bson.Type(typ), Value: data}
	switch rv.Type {
	case bson.TypeInt32:
		*c = counter(rv.Int32())
	case bson.TypeInt64:
		*c = counter(rv.Int64())
	case bson.TypeDouble:
		f := rv.Double()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			*c = 0
			return nil
		}
		*c = counter(f)
	case bson.TypeString:
		n, err := strconv.Atoi(strings.TrimSpace(rv.StringValue()))
		if err != nil {
			*c = 0
			return nil
		}
		*c = counter(n)
	default:
		*c = 0
	}
	return nil
}
