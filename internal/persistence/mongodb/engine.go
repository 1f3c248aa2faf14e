package mongodb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/goevery/courier/internal/ierr"
	"github.com/goevery/courier/internal/notification"
	"github.com/goevery/courier/internal/persistence"
	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	collectionName = "notifications"
	retention      = 30 * 24 * time.Hour
)

type Record struct {
	Id             bson.ObjectID `bson:"_id"`
	ArchiveTime    time.Time     `bson:"archiveTime"`
	NotificationId string        `bson:"notificationId"`
	Notification   string        `bson:"notification"`
}

type PersistenceEngine struct {
	clock      clockwork.Clock
	collection *mongo.Collection
}

func NewPersistenceEngine(client *mongo.Client, database string, clock clockwork.Clock) *PersistenceEngine {
	collection := client.Database(database).Collection(collectionName)

	return &PersistenceEngine{
		clock,
		collection,
	}
}

func (e *PersistenceEngine) Setup(ctx context.Context) error {
	ttlIndexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "archiveTime", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
	}

	notificationIndexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "notificationId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	_, err := e.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{ttlIndexModel, notificationIndexModel})

	return err
}

func (e *PersistenceEngine) Save(ctx context.Context, n notification.Notification) error {
	notificationJson, err := json.Marshal(n)
	if err != nil {
		return err
	}

	_, err = e.collection.InsertOne(ctx, Record{
		Id:             bson.NewObjectID(),
		ArchiveTime:    e.clock.Now(),
		NotificationId: n.Id,
		Notification:   string(notificationJson),
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}

	return err
}

func (e *PersistenceEngine) List(ctx context.Context, lastSeenId string, limit int) ([]persistence.Record, error) {
	filter := bson.M{}
	if lastSeenId != "" {
		lastSeenObjectId, err := bson.ObjectIDFromHex(lastSeenId)
		if err != nil {
			return nil, ierr.New(ierr.ErrorCodeInvalidArgument, err)
		}

		filter["_id"] = bson.M{"$lt": lastSeenObjectId}
	}

	if limit <= 0 {
		limit = persistence.DefaultPageSize
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	result, err := e.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var mongoRecords []Record
	err = result.All(ctx, &mongoRecords)
	if err != nil {
		return nil, err
	}

	records := make([]persistence.Record, len(mongoRecords))
	for i, r := range mongoRecords {
		var n notification.Notification
		err := json.Unmarshal([]byte(r.Notification), &n)
		if err != nil {
			return nil, err
		}

		records[i] = persistence.Record{
			Id:           r.Id.Hex(),
			ArchiveTime:  r.ArchiveTime,
			Notification: n,
		}
	}

	return records, nil
}
