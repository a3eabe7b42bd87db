package storage

import (
	"context"
	"fmt"
	"time"

	"loanapi/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const loansCollection = "loans"

// loanDocument is the BSON shape of a loan. The document's ObjectID doubles as the loan ID.
type loanDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Amount       float64            `bson:"amount"`
	Borrower     string             `bson:"borrower"`
	InterestRate float64            `bson:"interestRate"`
	Status       string             `bson:"status"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func (d loanDocument) toModel() *models.Loan {
	return &models.Loan{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Amount:       d.Amount,
		Borrower:     d.Borrower,
		InterestRate: d.InterestRate,
		Status:       d.Status,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

func documentFromLoan(oid primitive.ObjectID, loan *models.Loan) loanDocument {
	return loanDocument{
		ID:           oid,
		Name:         loan.Name,
		Amount:       loan.Amount,
		Borrower:     loan.Borrower,
		InterestRate: loan.InterestRate,
		Status:       loan.Status,
		CreatedAt:    loan.CreatedAt,
	}
}

// MongoStorage implements the Storage interface on a MongoDB collection.
//
// mongo.Connect does not wait for a server, so construction succeeds while the cluster
// is unreachable and operations fail until it comes back.
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStorage creates a client for the configured URI and database.
func NewMongoStorage(config Config) (*MongoStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for MongoDB storage")
	}
	if config.Database == "" {
		return nil, fmt.Errorf("database name is required for MongoDB storage")
	}

	opts := options.Client().
		ApplyURI(config.ConnectionString).
		SetConnectTimeout(config.connectTimeout()).
		SetServerSelectionTimeout(config.connectTimeout())
	if config.MaxOpenConns > 0 {
		opts.SetMaxPoolSize(uint64(config.MaxOpenConns))
	}

	client, err := mongo.Connect(context.Background(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	return &MongoStorage{
		client:     client,
		collection: client.Database(config.Database).Collection(loansCollection),
	}, nil
}

// Loans returns all loans ordered by creation time.
func (ms *MongoStorage) Loans(ctx context.Context) ([]*models.Loan, error) {
	cursor, err := ms.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []loanDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode loans: %w", err)
	}

	loans := make([]*models.Loan, 0, len(docs))
	for _, d := range docs {
		loans = append(loans, d.toModel())
	}
	return loans, nil
}

// CreateLoan validates and inserts a new loan document.
func (ms *MongoStorage) CreateLoan(ctx context.Context, req *models.CreateLoanRequest) (*models.Loan, error) {
	oid := primitive.NewObjectID()
	loan, err := prepareLoan(req, oid.Hex())
	if err != nil {
		return nil, err
	}

	// BSON dates carry millisecond precision.
	loan.CreatedAt = loan.CreatedAt.Truncate(time.Millisecond)

	if _, err := ms.collection.InsertOne(ctx, documentFromLoan(oid, loan)); err != nil {
		return nil, fmt.Errorf("failed to insert loan: %w", err)
	}

	return loan, nil
}

// Ping checks that the primary is reachable.
func (ms *MongoStorage) Ping(ctx context.Context) error {
	return ms.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (ms *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ms.client.Disconnect(ctx)
}
