// Package mongo hosts the MongoDB client used by the task store.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"goa.design/clue/health"

	"github.com/aionlabs/aion/a2a"
	"github.com/aionlabs/aion/runtime/session"
)

const (
	defaultTasksCollection  = "agent_tasks"
	defaultEventsCollection = "agent_session_events"
	defaultOpTimeout        = 5 * time.Second
	taskClientName          = "task-mongo"
)

// Client exposes Mongo-backed operations for tasks and session history.
type Client interface {
	health.Pinger

	UpsertTask(ctx context.Context, task a2a.Task) error
	LoadTask(ctx context.Context, taskID string) (*a2a.Task, error)
	DeleteTask(ctx context.Context, taskID string) error

	AppendEvent(ctx context.Context, contextID string, ev session.Event) error
	ListEvents(ctx context.Context, contextID string) ([]session.Event, error)
}

// Options configures the Mongo task client.
type Options struct {
	Client           *mongodriver.Client
	Database         string
	TasksCollection  string
	EventsCollection string
	Timeout          time.Duration
}

type client struct {
	mongo   *mongodriver.Client
	tasks   collection
	events  collection
	timeout time.Duration
}

// New returns a Client backed by MongoDB.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	tasksCollection := opts.TasksCollection
	if tasksCollection == "" {
		tasksCollection = defaultTasksCollection
	}
	eventsCollection := opts.EventsCollection
	if eventsCollection == "" {
		eventsCollection = defaultEventsCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	taskColl := opts.Client.Database(opts.Database).Collection(tasksCollection)
	eventColl := opts.Client.Database(opts.Database).Collection(eventsCollection)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	taskWrapper := mongoCollection{coll: taskColl}
	eventWrapper := mongoCollection{coll: eventColl}
	if err := ensureIndexes(ctx, taskWrapper, eventWrapper); err != nil {
		return nil, err
	}
	return newClientWithCollections(opts.Client, taskWrapper, eventWrapper, timeout)
}

func (c *client) Name() string {
	return taskClientName
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

func (c *client) UpsertTask(ctx context.Context, task a2a.Task) error {
	if task.ID == "" {
		return errors.New("task id is required")
	}
	doc := fromTask(task)
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"task_id": task.ID}
	update := bson.M{
		"$set": bson.M{
			"task_id":    doc.TaskID,
			"context_id": doc.ContextID,
			"status":     doc.Status,
			"history":    doc.History,
			"artifacts":  doc.Artifacts,
			"metadata":   doc.Metadata,
			"updated_at": doc.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": doc.UpdatedAt,
		},
	}
	_, err := c.tasks.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (c *client) LoadTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	if taskID == "" {
		return nil, errors.New("task id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"task_id": taskID}
	var doc taskDocument
	if err := c.tasks.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, a2a.ErrTaskNotFound
		}
		return nil, err
	}
	return doc.toTask(), nil
}

func (c *client) DeleteTask(ctx context.Context, taskID string) error {
	if taskID == "" {
		return errors.New("task id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if _, err := c.tasks.DeleteOne(ctx, bson.M{"task_id": taskID}); err != nil {
		return err
	}
	return nil
}

func (c *client) AppendEvent(ctx context.Context, contextID string, ev session.Event) error {
	if contextID == "" {
		return session.ErrContextRequired
	}
	doc := fromEvent(contextID, ev)
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.events.InsertOne(ctx, doc)
	return err
}

func (c *client) ListEvents(ctx context.Context, contextID string) ([]session.Event, error) {
	if contextID == "" {
		return nil, session.ErrContextRequired
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"context_id": contextID}
	cur, err := c.events.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	var out []session.Event
	for cur.Next(ctx) {
		var doc eventDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toEvent())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type taskDocument struct {
	TaskID    string         `bson:"task_id"`
	ContextID string         `bson:"context_id"`
	Status    a2a.TaskStatus `bson:"status"`
	History   []a2a.Message  `bson:"history,omitempty"`
	Artifacts []a2a.Artifact `bson:"artifacts,omitempty"`
	Metadata  map[string]any `bson:"metadata,omitempty"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type eventDocument struct {
	EventID   string         `bson:"event_id"`
	ContextID string         `bson:"context_id"`
	TaskID    string         `bson:"task_id"`
	Kind      string         `bson:"kind"`
	Role      a2a.Role       `bson:"role,omitempty"`
	Parts     []a2a.Part     `bson:"parts,omitempty"`
	Data      map[string]any `bson:"data,omitempty"`
	Timestamp time.Time      `bson:"timestamp"`
}

func fromTask(task a2a.Task) taskDocument {
	return taskDocument{
		TaskID:    task.ID,
		ContextID: task.ContextID,
		Status:    task.Status,
		History:   append([]a2a.Message(nil), task.History...),
		Artifacts: append([]a2a.Artifact(nil), task.Artifacts...),
		Metadata:  cloneMetadata(task.Metadata),
		UpdatedAt: time.Now().UTC(),
	}
}

func (doc taskDocument) toTask() *a2a.Task {
	return &a2a.Task{
		ID:        doc.TaskID,
		ContextID: doc.ContextID,
		Status:    doc.Status,
		History:   append([]a2a.Message(nil), doc.History...),
		Artifacts: append([]a2a.Artifact(nil), doc.Artifacts...),
		Metadata:  cloneMetadata(doc.Metadata),
	}
}

func fromEvent(contextID string, ev session.Event) eventDocument {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return eventDocument{
		EventID:   ev.ID,
		ContextID: contextID,
		TaskID:    ev.TaskID,
		Kind:      ev.Kind,
		Role:      ev.Role,
		Parts:     append([]a2a.Part(nil), ev.Parts...),
		Data:      cloneMetadata(ev.Data),
		Timestamp: ts.UTC(),
	}
}

func (doc eventDocument) toEvent() session.Event {
	return session.Event{
		ID:        doc.EventID,
		TaskID:    doc.TaskID,
		Kind:      doc.Kind,
		Role:      doc.Role,
		Parts:     append([]a2a.Part(nil), doc.Parts...),
		Data:      cloneMetadata(doc.Data),
		Timestamp: doc.Timestamp,
	}
}

func cloneMetadata(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func ensureIndexes(ctx context.Context, tasksColl, eventsColl collection) error {
	taskIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "task_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := tasksColl.Indexes().CreateOne(ctx, taskIndex); err != nil {
		return err
	}
	taskContextIndex := mongodriver.IndexModel{
		Keys: bson.D{{Key: "context_id", Value: 1}},
	}
	if _, err := tasksColl.Indexes().CreateOne(ctx, taskContextIndex); err != nil {
		return err
	}
	eventIndex := mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "context_id", Value: 1},
			{Key: "timestamp", Value: 1},
		},
	}
	if _, err := eventsColl.Indexes().CreateOne(ctx, eventIndex); err != nil {
		return err
	}
	return nil
}

func newClientWithCollections(mongoClient *mongodriver.Client, tasksColl, eventsColl collection, timeout time.Duration) (*client, error) {
	if tasksColl == nil || eventsColl == nil {
		return nil, errors.New("collections are required")
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &client{
		mongo:   mongoClient,
		tasks:   tasksColl,
		events:  eventsColl,
		timeout: timeout,
	}, nil
}

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (cursor, error)
	UpdateOne(ctx context.Context, filter any, update any,
		opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error)
	InsertOne(ctx context.Context, doc any,
		opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error)
	DeleteOne(ctx context.Context, filter any,
		opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel,
		opts ...*options.CreateIndexesOptions) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type cursor interface {
	Close(ctx context.Context) error
	Decode(val any) error
	Err() error
	Next(ctx context.Context) bool
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult {
	return mongoSingleResult{res: c.coll.FindOne(ctx, filter, opts...)}
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (cursor, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return mongoCursor{cur: cur}, nil
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter any, update any,
	opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c mongoCollection) InsertOne(ctx context.Context, doc any,
	opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, doc, opts...)
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter any,
	opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteOne(ctx, filter, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct {
	res *mongodriver.SingleResult
}

func (r mongoSingleResult) Decode(val any) error {
	return r.res.Decode(val)
}

type mongoCursor struct {
	cur *mongodriver.Cursor
}

func (c mongoCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

func (c mongoCursor) Decode(val any) error {
	return c.cur.Decode(val)
}

func (c mongoCursor) Err() error {
	return c.cur.Err()
}

func (c mongoCursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel,
	opts ...*options.CreateIndexesOptions) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
