package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"plk-instructions/pkg/domain"
)

// Client wraps the MongoDB client and database connection
type Client struct {
	mongoClient *mongo.Client
	database    *mongo.Database
	collection  *mongo.Collection
}

// fileDocument is the stored form of one instruction file of a listing page.
// (page, number) is unique.
type fileDocument struct {
	Page      string            `bson:"page"`
	PageTitle string            `bson:"page_title"`
	Number    string            `bson:"number"`
	Versions  []versionDocument `bson:"versions"`
	UpdatedAt time.Time         `bson:"updated_at"`
}

type versionDocument struct {
	Name        string     `bson:"name"`
	Number      string     `bson:"number"`
	ResourceURL string     `bson:"resource_url"`
	WCAG        bool       `bson:"wcag"`
	FromDate    *time.Time `bson:"from_date"`
	ToDate      *time.Time `bson:"to_date"`
}

// StoredFile is a file read back from MongoDB together with the page it belongs to
type StoredFile struct {
	Page      string
	PageTitle string
	File      domain.File
}

// NewClient creates a new database client
func NewClient(connectionString, databaseName, collectionName string) *Client {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		// Return client with nil - error will be caught during Connect()
		return &Client{}
	}

	database := mongoClient.Database(databaseName)
	collection := database.Collection(collectionName)

	return &Client{
		mongoClient: mongoClient,
		database:    database,
		collection:  collection,
	}
}

// Connect establishes connection to MongoDB
func (c *Client) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return c.mongoClient.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (c *Client) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// SaveFile upserts one scraped file of a listing page
func (c *Client) SaveFile(ctx context.Context, page, pageTitle string, file domain.File) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}

	doc := toFileDocument(page, pageTitle, file)
	doc.UpdatedAt = time.Now().UTC()

	filter := bson.M{"page": page, "number": file.Number}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	if _, err := c.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save file %s/%s: %w", page, file.Number, err)
	}
	return nil
}

// GetFiles returns the stored files of a page sorted by number
func (c *Client) GetFiles(ctx context.Context, page string) ([]domain.File, error) {
	stored, err := c.find(ctx, bson.M{"page": page})
	if err != nil {
		return nil, err
	}

	files := make([]domain.File, 0, len(stored))
	for _, s := range stored {
		files = append(files, s.File)
	}
	return files, nil
}

// GetAllFiles returns every stored file sorted by page, then number
func (c *Client) GetAllFiles(ctx context.Context) ([]StoredFile, error) {
	return c.find(ctx, bson.M{})
}

func (c *Client) find(ctx context.Context, filter bson.M) ([]StoredFile, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	opts := options.Find().SetSort(bson.D{{Key: "page", Value: 1}, {Key: "number", Value: 1}})
	cursor, err := c.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer cursor.Close(ctx)

	var files []StoredFile
	for cursor.Next(ctx) {
		var doc fileDocument
		if err := cursor.Decode(&doc); err != nil {
			continue // Skip invalid documents
		}
		files = append(files, doc.toStoredFile())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return files, nil
}

func toFileDocument(page, pageTitle string, file domain.File) fileDocument {
	versions := make([]versionDocument, 0, len(file.Versions))
	for _, v := range file.Versions {
		versions = append(versions, versionDocument{
			Name:        v.Name,
			Number:      v.Number,
			ResourceURL: v.ResourceURL,
			WCAG:        v.WCAG,
			FromDate:    datePtr(v.FromDate),
			ToDate:      datePtr(v.ToDate),
		})
	}
	return fileDocument{
		Page:      page,
		PageTitle: pageTitle,
		Number:    file.Number,
		Versions:  versions,
	}
}

func (d fileDocument) toStoredFile() StoredFile {
	versions := make([]domain.FileVersion, 0, len(d.Versions))
	for _, v := range d.Versions {
		versions = append(versions, domain.FileVersion{
			Name:        v.Name,
			Number:      v.Number,
			ResourceURL: v.ResourceURL,
			WCAG:        v.WCAG,
			FromDate:    fromPtr(v.FromDate),
			ToDate:      fromPtr(v.ToDate),
		})
	}
	return StoredFile{
		Page:      d.Page,
		PageTitle: d.PageTitle,
		File:      domain.File{Number: d.Number, Versions: versions},
	}
}

func datePtr(d domain.Date) *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.UTC()
	return &t
}

func fromPtr(t *time.Time) domain.Date {
	if t == nil {
		return domain.Date{}
	}
	return domain.NewDate(t.UTC())
}
