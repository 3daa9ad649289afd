package rawstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/kdimtricp/moviewarehouse/internal/models"
	"github.com/kdimtricp/moviewarehouse/pkg/metrics"
)

// WriteResult summarises one batch upsert.
type WriteResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Errors   int `json:"errors"`
}

func (r WriteResult) Add(o WriteResult) WriteResult {
	return WriteResult{
		Inserted: r.Inserted + o.Inserted,
		Updated:  r.Updated + o.Updated,
		Errors:   r.Errors + o.Errors,
	}
}

// CreditResult counts the cast and crew records written for one movie.
type CreditResult struct {
	Cast   int `json:"cast"`
	Crew   int `json:"crew"`
	Errors int `json:"errors"`
}

func (r CreditResult) Total() int { return r.Cast + r.Crew }

func idKey(id int) bson.D {
	return bson.D{{Key: "id", Value: id}}
}

// CreditKey selects the upsert filter for a credit: the natural credit_id
// when present, otherwise movie, person and credit type, plus job for crew.
func CreditKey(c models.Credit) bson.D {
	if c.CreditID != "" {
		return bson.D{{Key: "credit_id", Value: c.CreditID}}
	}

	key := bson.D{
		{Key: "movie_id", Value: c.MovieID},
		{Key: "person_id", Value: c.PersonID},
		{Key: "credit_type", Value: c.CreditType},
	}
	if c.CreditType == models.CreditCrew {
		key = append(key, bson.E{Key: "job", Value: c.Job})
	}
	return key
}

func upsertModel(filter bson.D, doc interface{}) mongo.WriteModel {
	return mongo.NewUpdateOneModel().
		SetFilter(filter).
		SetUpdate(bson.D{{Key: "$set", Value: doc}}).
		SetUpsert(true)
}

func (s *Store) UpsertGenres(ctx context.Context, genres []models.Genre) WriteResult {
	if len(genres) == 0 {
		return WriteResult{}
	}

	ts := s.now()
	writes := make([]mongo.WriteModel, 0, len(genres))
	for _, g := range genres {
		g.LoadedAt = ts
		writes = append(writes, upsertModel(idKey(g.ID), g))
	}

	res, _ := s.bulkUpsert(ctx, GenresCollection, writes)
	return res
}

func (s *Store) UpsertMovies(ctx context.Context, movies []models.Movie) WriteResult {
	if len(movies) == 0 {
		return WriteResult{}
	}

	ts := s.now()
	writes := make([]mongo.WriteModel, 0, len(movies))
	for _, m := range movies {
		m.LoadedAt = ts
		writes = append(writes, upsertModel(idKey(m.ID), m))
	}

	res, _ := s.bulkUpsert(ctx, MoviesCollection, writes)
	return res
}

// UpsertCompanies writes production companies. Companies without an id are
// dropped.
func (s *Store) UpsertCompanies(ctx context.Context, companies []models.Company) WriteResult {
	ts := s.now()
	writes := make([]mongo.WriteModel, 0, len(companies))
	for _, c := range companies {
		if c.ID == 0 {
			continue
		}
		c.LoadedAt = ts
		writes = append(writes, upsertModel(idKey(c.ID), c))
	}
	if len(writes) == 0 {
		return WriteResult{}
	}

	res, _ := s.bulkUpsert(ctx, CompaniesCollection, writes)
	return res
}

// UpsertCredits writes the cast and crew of one movie, tagging each record
// with the movie id and its credit type.
func (s *Store) UpsertCredits(ctx context.Context, movieID int, credits *models.Credits) CreditResult {
	if credits.Total() == 0 {
		return CreditResult{}
	}

	ts := s.now()
	writes := make([]mongo.WriteModel, 0, credits.Total())
	stamp := func(c models.Credit, kind models.CreditType) {
		c.MovieID = movieID
		c.CreditType = kind
		c.LoadedAt = ts
		writes = append(writes, upsertModel(CreditKey(c), c))
	}
	for _, c := range credits.Cast {
		stamp(c, models.CreditCast)
	}
	for _, c := range credits.Crew {
		stamp(c, models.CreditCrew)
	}

	_, failed := s.bulkUpsert(ctx, CreditsCollection, writes)

	castN := len(credits.Cast)
	result := CreditResult{Errors: len(failed)}
	for i := range writes {
		if failed[i] {
			continue
		}
		if i < castN {
			result.Cast++
		} else {
			result.Crew++
		}
	}

	if result.Total() > 0 {
		s.log.Debug("credits written",
			zap.Int("movie_id", movieID),
			zap.Int("cast", result.Cast),
			zap.Int("crew", result.Crew),
			zap.Int("errors", result.Errors))
	}
	return result
}

// bulkUpsert runs one unordered bulk write. Per-record failures are counted
// and returned by index; they never abort the batch.
func (s *Store) bulkUpsert(ctx context.Context, name string, writes []mongo.WriteModel) (WriteResult, map[int]bool) {
	failed := make(map[int]bool)
	allFailed := func() (WriteResult, map[int]bool) {
		for i := range writes {
			failed[i] = true
		}
		metrics.RecordRawWrites(name, 0, 0, 0, len(writes))
		return WriteResult{Errors: len(writes)}, failed
	}

	c, err := s.collection(name)
	if err != nil {
		s.log.Error("bulk write skipped", zap.String("collection", name), zap.Error(err))
		return allFailed()
	}

	res, err := c.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) {
			s.log.Error("bulk write failed", zap.String("collection", name), zap.Int("records", len(writes)), zap.Error(err))
			return allFailed()
		}
		for _, we := range bwe.WriteErrors {
			failed[we.Index] = true
		}
		if bwe.WriteConcernError != nil {
			s.log.Warn("write concern not satisfied", zap.String("collection", name), zap.String("message", bwe.WriteConcernError.Message))
		}
	}

	out := WriteResult{Errors: len(failed)}
	if res != nil {
		out.Inserted = int(res.UpsertedCount)
		out.Updated = int(res.ModifiedCount)
	}
	unchanged := len(writes) - out.Inserted - out.Updated - out.Errors
	if unchanged < 0 {
		unchanged = 0
	}
	metrics.RecordRawWrites(name, out.Inserted, out.Updated, unchanged, out.Errors)

	if out.Errors > 0 {
		s.log.Warn("bulk write partially failed",
			zap.String("collection", name),
			zap.Int("inserted", out.Inserted),
			zap.Int("updated", out.Updated),
			zap.Int("errors", out.Errors))
	} else {
		s.log.Debug("bulk write done",
			zap.String("collection", name),
			zap.Int("inserted", out.Inserted),
			zap.Int("updated", out.Updated))
	}

	return out, failed
}
