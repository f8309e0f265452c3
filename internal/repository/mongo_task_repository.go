package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yukikurage/taskhub-api/internal/models"
	"github.com/yukikurage/taskhub-api/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names in the document store
const (
	TasksCollection = "tasks"
	UsersCollection = "users"
)

// MongoTaskRepository is a MongoDB implementation of TaskRepository
type MongoTaskRepository struct {
	tasks *mongo.Collection
	users *mongo.Collection
}

// NewMongoTaskRepository creates a TaskRepository backed by db
func NewMongoTaskRepository(db *mongo.Database) TaskRepository {
	return &MongoTaskRepository{
		tasks: db.Collection(TasksCollection),
		users: db.Collection(UsersCollection),
	}
}

// Create inserts a new task
func (r *MongoTaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = utils.NewID()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err := r.tasks.InsertOne(ctx, task)
	return translateMongoError(err)
}

// FindByID finds a task by ID with its owner loaded
func (r *MongoTaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := r.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&task); err != nil {
		return nil, translateMongoError(err)
	}

	tasks := []models.Task{task}
	if err := r.attachOwners(ctx, tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// List retrieves tasks with filtering and pagination
func (r *MongoTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	query := taskQuery(filter)

	total, err := r.tasks.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(filter.Page.Offset)).
		SetLimit(int64(filter.Page.Limit))

	cursor, err := r.tasks.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}

	tasks := []models.Task{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, 0, err
	}
	if err := r.attachOwners(ctx, tasks); err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func taskQuery(filter TaskFilter) bson.M {
	query := bson.M{}
	if filter.OwnerID != nil {
		query["user"] = *filter.OwnerID
	}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	if filter.Priority != nil {
		query["priority"] = *filter.Priority
	}
	if !filter.IncludeArchived {
		query["isArchived"] = false
	}
	return query
}

// Update replaces a stored task
func (r *MongoTaskRepository) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()

	result, err := r.tasks.ReplaceOne(ctx, bson.M{"_id": task.ID}, task)
	if err != nil {
		return translateMongoError(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a task
func (r *MongoTaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.tasks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats groups tasks by status with an aggregation pipeline
func (r *MongoTaskRepository) Stats(ctx context.Context, filter StatsFilter) (*TaskStats, error) {
	match := bson.M{}
	if filter.OwnerID != nil {
		match["user"] = *filter.OwnerID
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.tasks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var groups []struct {
		Status models.TaskStatus `bson:"_id"`
		Count  int64             `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}

	stats := &TaskStats{ByStatus: make(map[models.TaskStatus]int64, len(groups))}
	for _, g := range groups {
		if g.Count > 0 {
			stats.ByStatus[g.Status] = g.Count
		}
	}

	if stats.Total, err = r.tasks.CountDocuments(ctx, match); err != nil {
		return nil, err
	}

	overdue := bson.M{
		"dueDate": bson.M{"$lt": filter.Now},
		"status":  bson.M{"$ne": models.TaskStatusCompleted},
	}
	for k, v := range match {
		overdue[k] = v
	}
	if stats.Overdue, err = r.tasks.CountDocuments(ctx, overdue); err != nil {
		return nil, err
	}

	return stats, nil
}

// attachOwners loads the name and email of every task owner in one query
func (r *MongoTaskRepository) attachOwners(ctx context.Context, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := seen[t.UserID]; ok {
			continue
		}
		seen[t.UserID] = struct{}{}
		ids = append(ids, t.UserID)
	}

	opts := options.Find().SetProjection(bson.M{"name": 1, "email": 1})
	cursor, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return err
	}

	var owners []models.User
	if err := cursor.All(ctx, &owners); err != nil {
		return err
	}

	byID := make(map[string]models.User, len(owners))
	for _, o := range owners {
		byID[o.ID] = o
	}
	for i := range tasks {
		tasks[i].Owner = byID[tasks[i].UserID]
	}

	return nil
}

func translateMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicateKey
	default:
		return err
	}
}
