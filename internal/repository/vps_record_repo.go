package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tradecopia/vps-service/internal/models"
)

var ErrNotFound = errors.New("not found")

// ErrInvalidPeriod is returned for unrecognized dashboard period filters.
var ErrInvalidPeriod = errors.New("invalid period, use today, this_month, last_month, or all")

const (
	DefaultListLimit = 200
	MaxListLimit     = 500
)

// VpsRecordRepository journals provisioning outcomes, one document per
// customer email. Documents are upserted in place and never removed; a torn
// down server leaves a record with the credential fields unset.
type VpsRecordRepository struct {
	collection *mongo.Collection
}

func NewVpsRecordRepository(collection *mongo.Collection) *VpsRecordRepository {
	return &VpsRecordRepository{collection: collection}
}

// SaveCreation upserts the record for email with the new server's
// credentials. The id is only assigned on first insert, so a customer keeps
// one stable record id across re-provisioning. Returns the persisted record.
func (r *VpsRecordRepository) SaveCreation(ctx context.Context, email, ipAddress, password, planID string) (*models.VpsRecord, error) {
	update := bson.M{
		"$set": bson.M{
			"email":       email,
			"ip_address":  ipAddress,
			"password":    password,
			"plan_id":     planID,
			"create_date": models.Now(),
			"delete_date": nil,
		},
		"$setOnInsert": bson.M{
			"id": newRecordID(),
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var record models.VpsRecord
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"email": email}, update, opts).Decode(&record); err != nil {
		return nil, fmt.Errorf("save vps creation for %s: %w", email, err)
	}

	record.Localize()
	return &record, nil
}

// MarkDeleted stamps delete_date and removes the credential fields. A record
// is created when none exists (with a null create_date) so teardown always
// leaves an audit trail. Safe to repeat; a second call just refreshes
// delete_date. Returns the post-update record.
func (r *VpsRecordRepository) MarkDeleted(ctx context.Context, email string) (*models.VpsRecord, error) {
	update := bson.M{
		"$set": bson.M{
			"delete_date": models.Now(),
		},
		"$unset": bson.M{
			"ip_address": "",
			"password":   "",
		},
		"$setOnInsert": bson.M{
			"id":          newRecordID(),
			"email":       email,
			"create_date": nil,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var record models.VpsRecord
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"email": email}, update, opts).Decode(&record); err != nil {
		return nil, fmt.Errorf("mark vps deleted for %s: %w", email, err)
	}

	record.Localize()
	return &record, nil
}

// GetByEmail fetches a single record.
func (r *VpsRecordRepository) GetByEmail(ctx context.Context, email string) (*models.VpsRecord, error) {
	var record models.VpsRecord
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find record for %s: %w", email, err)
	}

	record.Localize()
	return &record, nil
}

// ListQuery filters the dashboard listing. Period bounds are computed in the
// record timezone so "today" means the operators' day, not the UTC day.
type ListQuery struct {
	Period string
	Search string
	Limit  int64
}

// ListResult is the listing plus the period window it was computed for.
type ListResult struct {
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	Summary     models.RecordsSummary
	Records     []*models.VpsRecord
}

// List returns records whose create or delete date falls in the period,
// newest first, with summary counts for the same window.
func (r *VpsRecordRepository) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	start, end, err := periodRange(q.Period, time.Now())
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var search bson.M
	if s := strings.TrimSpace(q.Search); s != "" {
		regex := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		search = bson.M{"$or": bson.A{
			bson.M{"email": regex},
			bson.M{"ip_address": regex},
		}}
	}

	var filters []bson.M
	if search != nil {
		filters = append(filters, search)
	}
	if created, deleted := dateRange("create_date", start, end), dateRange("delete_date", start, end); created != nil {
		filters = append(filters, bson.M{"$or": bson.A{created, deleted}})
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "create_date", Value: -1}, {Key: "delete_date", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, andAll(filters), opts)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*models.VpsRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	for _, record := range records {
		record.Localize()
	}

	summary, err := r.summarize(ctx, search, start, end)
	if err != nil {
		return nil, err
	}

	result := &ListResult{
		PeriodStart: start,
		PeriodEnd:   end,
		Summary:     summary,
		Records:     records,
	}
	if records == nil {
		result.Records = []*models.VpsRecord{}
	}
	return result, nil
}

func (r *VpsRecordRepository) summarize(ctx context.Context, search bson.M, start, end *time.Time) (models.RecordsSummary, error) {
	var summary models.RecordsSummary

	active := []bson.M{
		{"ip_address": bson.M{"$exists": true, "$nin": bson.A{nil, ""}}},
		{"$or": bson.A{
			bson.M{"delete_date": nil},
			bson.M{"delete_date": bson.M{"$exists": false}},
		}},
	}
	created := []bson.M{{"create_date": bson.M{"$ne": nil}}}
	deleted := []bson.M{{"delete_date": bson.M{"$ne": nil}}}

	if createdRange := dateRange("create_date", start, end); createdRange != nil {
		active = append(active, createdRange)
		created = append(created, createdRange)
	}
	if deletedRange := dateRange("delete_date", start, end); deletedRange != nil {
		deleted = append(deleted, deletedRange)
	}
	if search != nil {
		active = append(active, search)
		created = append(created, search)
		deleted = append(deleted, search)
	}

	var err error
	if summary.ActiveCount, err = r.collection.CountDocuments(ctx, andAll(active)); err != nil {
		return summary, fmt.Errorf("count active records: %w", err)
	}
	if summary.CreatedCount, err = r.collection.CountDocuments(ctx, andAll(created)); err != nil {
		return summary, fmt.Errorf("count created records: %w", err)
	}
	if summary.DeletedCount, err = r.collection.CountDocuments(ctx, andAll(deleted)); err != nil {
		return summary, fmt.Errorf("count deleted records: %w", err)
	}

	return summary, nil
}

// periodRange computes the [start, end) window for a period keyword in the
// record timezone. An empty period defaults to today; "all" has no bounds.
func periodRange(period string, now time.Time) (*time.Time, *time.Time, error) {
	local := now.In(models.RecordTZ)
	year, month, _ := local.Date()

	switch strings.ToLower(period) {
	case "", "today":
		start := time.Date(year, month, local.Day(), 0, 0, 0, 0, models.RecordTZ)
		end := start.AddDate(0, 0, 1)
		return &start, &end, nil
	case "this_month":
		start := time.Date(year, month, 1, 0, 0, 0, 0, models.RecordTZ)
		end := start.AddDate(0, 1, 0)
		return &start, &end, nil
	case "last_month":
		end := time.Date(year, month, 1, 0, 0, 0, 0, models.RecordTZ)
		start := end.AddDate(0, -1, 0)
		return &start, &end, nil
	case "all":
		return nil, nil, nil
	default:
		return nil, nil, ErrInvalidPeriod
	}
}

func dateRange(field string, start, end *time.Time) bson.M {
	bounds := bson.M{}
	if start != nil {
		bounds["$gte"] = *start
	}
	if end != nil {
		bounds["$lt"] = *end
	}
	if len(bounds) == 0 {
		return nil
	}
	return bson.M{field: bounds}
}

func andAll(filters []bson.M) bson.M {
	switch len(filters) {
	case 0:
		return bson.M{}
	case 1:
		return filters[0]
	default:
		clauses := make(bson.A, 0, len(filters))
		for _, f := range filters {
			clauses = append(clauses, f)
		}
		return bson.M{"$and": clauses}
	}
}

// newRecordID mirrors the historical record id format (uuid4 hex, no dashes).
func newRecordID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
