package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/samobrien878/Williams-Data-Pipline/internal/config"
	apperrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

// MongoStore writes to a raw-trials collection and a daily-summaries
// collection in one database.
type MongoStore struct {
	client    *mongo.Client
	raw       *mongo.Collection
	summaries *mongo.Collection
	upsert    bool
	logger    *slog.Logger
}

// NewMongoStore connects to cfg.URI and verifies the connection. A failure
// here is fatal for the ingestor.
func NewMongoStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, apperrors.NewStorageError("connect mongo", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperrors.NewStorageError("ping mongo", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:    client,
		raw:       db.Collection(cfg.RawCollection),
		summaries: db.Collection(cfg.SummaryCollection),
		upsert:    cfg.WriteMode != config.WriteModeInsert,
		logger:    logger.With(slog.String("component", "mongo_store")),
	}

	if s.upsert {
		if err := s.ensureIndexes(ctx); err != nil {
			s.logger.WarnContext(ctx, "index creation failed", slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "connected to mongo",
		slog.String("database", cfg.Database),
		slog.String("raw_collection", cfg.RawCollection),
		slog.String("summary_collection", cfg.SummaryCollection),
		slog.Bool("upsert", s.upsert))

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.raw.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "RatID", Value: 1}, {Key: "Date", Value: 1}, {Key: "Session", Value: 1}, {Key: "Trial", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("raw trials index: %w", err)
	}
	_, err = s.summaries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "source_file", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("summaries index: %w", err)
	}
	return nil
}

// trialDocument flattens a record the way the dashboard reads raw rows: rig
// columns, identity fields and derived fields side by side. Identity fields
// are written last; a rig column of the same name does not replace them.
func trialDocument(r domain.TrialRecord) (bson.M, error) {
	doc := bson.M{}
	for col, v := range r.Measured {
		doc[col] = v
	}
	for col, v := range r.Labels {
		doc[col] = v
	}

	var outcome any
	switch {
	case r.HeadHold != nil:
		outcome = r.HeadHold
	case r.SampleOnly != nil:
		outcome = r.SampleOnly
	case r.SampleMatch != nil:
		outcome = r.SampleMatch
	}

	if outcome != nil {
		data, err := bson.Marshal(outcome)
		if err != nil {
			return nil, err
		}
		var derived bson.M
		if err := bson.Unmarshal(data, &derived); err != nil {
			return nil, err
		}
		for k, v := range derived {
			doc[k] = v
		}
	}

	doc["RatID"] = r.RatID
	doc["Session"] = r.Session
	doc["Stage"] = int(r.Stage)
	doc["Date"] = r.Date
	doc["Trial"] = r.Trial
	doc["source_file"] = r.SourceFile
	return doc, nil
}

func trialFilter(r domain.TrialRecord) bson.D {
	return bson.D{
		{Key: "RatID", Value: r.RatID},
		{Key: "Date", Value: r.Date},
		{Key: "Session", Value: r.Session},
		{Key: "Trial", Value: r.Trial},
	}
}

// WriteTrials implements Store.
func (s *MongoStore) WriteTrials(ctx context.Context, records []domain.TrialRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	docs := make([]bson.M, len(records))
	for i, r := range records {
		doc, err := trialDocument(r)
		if err != nil {
			return 0, apperrors.NewStorageError("encode trial", err).WithContext("key", r.Key())
		}
		docs[i] = doc
	}

	if !s.upsert {
		res, err := s.raw.InsertMany(ctx, docs)
		if err != nil {
			return 0, apperrors.NewStorageError("insert trials", err)
		}
		return len(res.InsertedIDs), nil
	}

	models := make([]mongo.WriteModel, len(records))
	for i, r := range records {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(trialFilter(r)).
			SetReplacement(docs[i]).
			SetUpsert(true)
	}
	res, err := s.raw.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, apperrors.NewStorageError("upsert trials", err)
	}
	return int(res.UpsertedCount + res.MatchedCount), nil
}

// summaryRecord is the stored shape of a SummaryDocument.
type summaryRecord struct {
	SourceFile   string    `bson:"source_file"`
	IngestedAt   time.Time `bson:"ingested_at"`
	DailySummary []bson.M  `bson:"daily_summary"`
}

// WriteSummary implements Store.
func (s *MongoStore) WriteSummary(ctx context.Context, doc domain.SummaryDocument) error {
	rec := summaryRecord{
		SourceFile:   doc.SourceFile,
		IngestedAt:   doc.IngestedAt.UTC(),
		DailySummary: make([]bson.M, len(doc.DailySummary)),
	}
	for i, row := range doc.DailySummary {
		rec.DailySummary[i] = bson.M(row.Flatten())
	}

	if !s.upsert {
		if _, err := s.summaries.InsertOne(ctx, rec); err != nil {
			return apperrors.NewStorageError("insert summary", err).WithContext("file", doc.SourceFile)
		}
		return nil
	}

	_, err := s.summaries.ReplaceOne(ctx,
		bson.D{{Key: "source_file", Value: doc.SourceFile}},
		rec,
		options.Replace().SetUpsert(true))
	if err != nil {
		return apperrors.NewStorageError("upsert summary", err).WithContext("file", doc.SourceFile)
	}
	return nil
}

// ListSummaries implements Store.
func (s *MongoStore) ListSummaries(ctx context.Context, filter SummaryFilter) ([]domain.DailySummary, error) {
	cur, err := s.summaries.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "ingested_at", Value: 1}}))
	if err != nil {
		return nil, apperrors.NewStorageError("query summaries", err)
	}

	var recs []summaryRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, apperrors.NewStorageError("decode summaries", err)
	}

	docs := make([]domain.SummaryDocument, 0, len(recs))
	for _, rec := range recs {
		doc := domain.SummaryDocument{SourceFile: rec.SourceFile, IngestedAt: rec.IngestedAt}
		for _, row := range rec.DailySummary {
			summary, err := domain.SummaryFromFlat(map[string]any(row))
			if err != nil {
				s.logger.WarnContext(ctx, "skipping malformed summary row",
					slog.String("source_file", rec.SourceFile),
					slog.String("error", err.Error()))
				continue
			}
			doc.DailySummary = append(doc.DailySummary, summary)
		}
		docs = append(docs, doc)
	}
	return collectSummaries(docs, filter), nil
}

// Subjects implements Store.
func (s *MongoStore) Subjects(ctx context.Context) ([]int, error) {
	rows, err := s.ListSummaries(ctx, SummaryFilter{})
	if err != nil {
		return nil, err
	}
	return subjectsOf(rows), nil
}

// CountTrials implements Store.
func (s *MongoStore) CountTrials(ctx context.Context) (int64, error) {
	n, err := s.raw.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, apperrors.NewStorageError("count trials", err)
	}
	return n, nil
}

// Ping implements Store.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return apperrors.NewStorageError("ping mongo", err)
	}
	return nil
}

// Close implements Store.
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	s.logger.Debug("mongo store closed")
	return nil
}
