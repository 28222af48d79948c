package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/geocoder89/casehub/internal/domain/legalcase"
	"github.com/geocoder89/casehub/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CasesRepo struct {
	cases    *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
	observer
}

func NewCasesRepo(db *mongo.Database, prom *observability.Prom) *CasesRepo {
	return &CasesRepo{
		cases:    db.Collection(casesCollection),
		counters: db.Collection(countersCollection),
		now:      time.Now,
		observer: observer{prom: prom},
	}
}

type counter struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// nextCaseNumber reserves the next number for year. The counter document is
// bumped atomically, so concurrent creates never share a number.
func (r *CasesRepo) nextCaseNumber(ctx context.Context, year int) (string, error) {
	var c counter
	err := r.observe("cases.next_number", func() error {
		opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
		return r.counters.FindOneAndUpdate(ctx,
			bson.M{"_id": fmt.Sprintf("case:%d", year)},
			bson.M{"$inc": bson.M{"seq": 1}},
			opts,
		).Decode(&c)
	})
	if err != nil {
		return "", err
	}
	return legalcase.FormatCaseNumber(c.Seq, year), nil
}

func (r *CasesRepo) Create(ctx context.Context, req legalcase.CreateCaseRequest) (legalcase.Case, error) {
	now := r.now().UTC()

	number, err := r.nextCaseNumber(ctx, now.Year())
	if err != nil {
		return legalcase.Case{}, err
	}

	c := legalcase.NewFromCreateRequest(req, number, now)
	err = r.observe("cases.create", func() error {
		_, err := r.cases.InsertOne(ctx, c)
		return err
	})
	if err != nil {
		return legalcase.Case{}, err
	}
	return c, nil
}

func listQuery(f legalcase.ListFilter) bson.M {
	q := bson.M{}
	if f.Status != nil {
		q["status"] = *f.Status
	}
	if f.CaseType != nil {
		q["caseType"] = *f.CaseType
	}
	if f.Search != nil && *f.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(*f.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"caseNumber": rx},
			bson.M{"title": rx},
			bson.M{"client.name": rx},
		}
	}
	return q
}

func (r *CasesRepo) List(ctx context.Context, f legalcase.ListFilter) ([]legalcase.Case, int, error) {
	q := listQuery(f)

	var total int64
	err := r.observe("cases.count", func() error {
		var err error
		total, err = r.cases.CountDocuments(ctx, q)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]legalcase.Case, 0, f.Limit)
	err = r.observe("cases.list", func() error {
		opts := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
			SetSkip(int64(f.Offset)).
			SetLimit(int64(f.Limit))

		cur, err := r.cases.Find(ctx, q, opts)
		if err != nil {
			return err
		}
		return cur.All(ctx, &out)
	})
	if err != nil {
		return nil, 0, err
	}

	return out, int(total), nil
}

func (r *CasesRepo) GetByID(ctx context.Context, id string) (legalcase.Case, error) {
	var c legalcase.Case
	err := r.observe("cases.get_by_id", func() error {
		return r.cases.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return legalcase.Case{}, legalcase.ErrNotFound
		}
		return legalcase.Case{}, err
	}
	return c, nil
}

func updateSet(req legalcase.UpdateCaseRequest) bson.M {
	set := bson.M{}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Client != nil {
		set["client"] = *req.Client
	}
	if req.OpposingParty != nil {
		set["opposingParty"] = *req.OpposingParty
	}
	if req.Court != nil {
		set["court"] = *req.Court
	}
	if req.Judge != nil {
		set["judge"] = *req.Judge
	}
	if req.CaseType != nil {
		set["caseType"] = *req.CaseType
	}
	if req.FilingDate != nil {
		set["filingDate"] = req.FilingDate.UTC()
	}
	if req.Status != nil {
		set["status"] = *req.Status
	}
	if req.Priority != nil {
		set["priority"] = *req.Priority
	}
	if req.AssignedTo != nil {
		set["assignedTo"] = *req.AssignedTo
	}
	return set
}

func (r *CasesRepo) Update(ctx context.Context, id string, req legalcase.UpdateCaseRequest) (legalcase.Case, error) {
	set := updateSet(req)
	if len(set) == 0 {
		return legalcase.Case{}, legalcase.ErrNoChanges
	}
	set["updatedAt"] = r.now().UTC()
	return r.findAndUpdate(ctx, "cases.update", bson.M{"_id": id}, bson.M{"$set": set})
}

func (r *CasesRepo) AddHearing(ctx context.Context, id string, h legalcase.Hearing) (legalcase.Case, error) {
	return r.push(ctx, "cases.add_hearing", id, "hearings", h)
}

func (r *CasesRepo) AddDocument(ctx context.Context, id string, d legalcase.Document) (legalcase.Case, error) {
	return r.push(ctx, "cases.add_document", id, "documents", d)
}

func (r *CasesRepo) AddNote(ctx context.Context, id string, n legalcase.Note) (legalcase.Case, error) {
	return r.push(ctx, "cases.add_note", id, "notes", n)
}

func (r *CasesRepo) UpdateHearingStatus(ctx context.Context, id, hearingID, status string) (legalcase.Case, error) {
	c, err := r.findAndUpdate(ctx, "cases.update_hearing_status",
		bson.M{"_id": id, "hearings.id": hearingID},
		bson.M{"$set": bson.M{"hearings.$.status": status, "updatedAt": r.now().UTC()}},
	)
	if errors.Is(err, legalcase.ErrNotFound) {
		// tell a missing case apart from a missing hearing
		if _, gerr := r.GetByID(ctx, id); gerr == nil {
			return legalcase.Case{}, legalcase.ErrHearingNotFound
		}
	}
	return c, err
}

func (r *CasesRepo) push(ctx context.Context, op, id, field string, item any) (legalcase.Case, error) {
	return r.findAndUpdate(ctx, op, bson.M{"_id": id}, bson.M{
		"$push": bson.M{field: item},
		"$set":  bson.M{"updatedAt": r.now().UTC()},
	})
}

func (r *CasesRepo) findAndUpdate(ctx context.Context, op string, filter, update bson.M) (legalcase.Case, error) {
	var c legalcase.Case
	err := r.observe(op, func() error {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		return r.cases.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return legalcase.Case{}, legalcase.ErrNotFound
		}
		return legalcase.Case{}, err
	}
	return c, nil
}
