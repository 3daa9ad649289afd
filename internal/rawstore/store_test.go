package rawstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/kdimtricp/moviewarehouse/internal/models"
	"github.com/kdimtricp/moviewarehouse/internal/rawstore"
	"github.com/kdimtricp/moviewarehouse/internal/rawstore/rawstoretest"
)

func tickingClock() func() time.Time {
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newStore(t *testing.T) (*rawstore.Store, map[string]*rawstoretest.Collection) {
	t.Helper()
	colls := rawstoretest.NewCollections()
	store := rawstore.NewWithCollections(rawstoretest.AsStoreCollections(colls), zap.NewNop(), rawstore.WithClock(tickingClock()))
	return store, colls
}

func intPtr(i int) *int { return &i }

func TestUpsertGenres_SecondWriteUpdates(t *testing.T) {
	store, colls := newStore(t)
	ctx := context.Background()
	genres := []models.Genre{{ID: 28, Name: "Action"}}

	first := store.UpsertGenres(ctx, genres)
	assert.Equal(t, rawstore.WriteResult{Inserted: 1}, first)

	second := store.UpsertGenres(ctx, genres)
	assert.Equal(t, rawstore.WriteResult{Inserted: 0, Updated: 1}, second)
	assert.Equal(t, 1, colls[rawstore.GenresCollection].Len())
}

func TestUpsertGenres_StampsLoadedAt(t *testing.T) {
	store, colls := newStore(t)

	store.UpsertGenres(context.Background(), []models.Genre{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}})

	docs := colls[rawstore.GenresCollection].Docs()
	require.Len(t, docs, 2)
	assert.NotNil(t, docs[0]["loaded_at"])
	assert.Equal(t, docs[0]["loaded_at"], docs[1]["loaded_at"])
}

func TestUpsertMovies_LaterWriteWinsPerField(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	store.UpsertMovies(ctx, []models.Movie{{
		ID:          550,
		Title:       "Fight Club",
		Overview:    "An insomniac office worker...",
		VoteAverage: 8.4,
		VoteCount:   26280,
		Budget:      63000000,
		Runtime:     139,
	}})
	res := store.UpsertMovies(ctx, []models.Movie{{
		ID:          550,
		Title:       "Fight Club",
		Overview:    "An insomniac office worker...",
		VoteAverage: 8.8,
		VoteCount:   26301,
	}})
	assert.Equal(t, 1, res.Updated)

	movies, err := store.Movies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 1)

	got := movies[0]
	assert.Equal(t, 550, got.ID)
	assert.Equal(t, 8.8, got.VoteAverage)
	assert.Equal(t, 26301, got.VoteCount)
	assert.Equal(t, "Fight Club", got.Title)
	assert.Equal(t, int64(63000000), got.Budget)
	assert.Equal(t, 139, got.Runtime)
}

func TestUpsertMovies_LaterWriteCanResetSharedFields(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	store.UpsertMovies(ctx, []models.Movie{{ID: 550, Title: "Fight Club", Overview: "old", VoteAverage: 8.4, Adult: true}})
	store.UpsertMovies(ctx, []models.Movie{{ID: 550, Title: "Fight Club", VoteAverage: 0, Adult: false}})

	movies, err := store.Movies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Zero(t, movies[0].VoteAverage)
	assert.False(t, movies[0].Adult)
	assert.Empty(t, movies[0].Overview)
}

func TestUpsertMovies_DetailSupersedesSummary(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	store.UpsertMovies(ctx, []models.Movie{{ID: 7, Title: "Summary", GenreIDs: []int{18}}})
	store.UpsertMovies(ctx, []models.Movie{{
		ID:      7,
		Title:   "Full",
		Budget:  1000,
		Genres:  []models.Genre{{ID: 18, Name: "Drama"}},
		Credits: &models.Credits{Cast: []models.Credit{{PersonID: 1}}},
	}})

	movies, err := store.Movies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "Full", movies[0].Title)
	assert.Equal(t, int64(1000), movies[0].Budget)
	assert.Equal(t, []int{18}, movies[0].GenreIDs)
	assert.Equal(t, "Drama", movies[0].Genres[0].Name)
	assert.Nil(t, movies[0].Credits)
}

func TestUpsertCredits_NaturalKeyCollapses(t *testing.T) {
	store, colls := newStore(t)
	ctx := context.Background()
	credits := &models.Credits{Cast: []models.Credit{{CreditID: "abc123", PersonID: 819, Name: "Edward Norton", CastOrder: intPtr(0)}}}

	store.UpsertCredits(ctx, 550, credits)
	res := store.UpsertCredits(ctx, 550, credits)

	assert.Equal(t, rawstore.CreditResult{Cast: 1}, res)
	assert.Equal(t, 1, colls[rawstore.CreditsCollection].Len())
}

func TestUpsertCredits_CompositeKeyCollapses(t *testing.T) {
	store, colls := newStore(t)
	ctx := context.Background()
	credits := &models.Credits{Crew: []models.Credit{{PersonID: 2, Job: "Director", Department: "Directing"}}}

	store.UpsertCredits(ctx, 1, credits)
	store.UpsertCredits(ctx, 1, credits)

	docs := colls[rawstore.CreditsCollection].Docs()
	require.Len(t, docs, 1)
	assert.Equal(t, "crew", docs[0]["credit_type"])
	assert.Equal(t, "Director", docs[0]["job"])
	assert.EqualValues(t, 1, docs[0]["movie_id"])
	assert.EqualValues(t, 2, docs[0]["person_id"])
}

func TestUpsertCredits_DistinctJobsStaySeparate(t *testing.T) {
	store, colls := newStore(t)

	res := store.UpsertCredits(context.Background(), 1, &models.Credits{Crew: []models.Credit{
		{PersonID: 2, Job: "Director"},
		{PersonID: 2, Job: "Writer"},
	}})

	assert.Equal(t, rawstore.CreditResult{Crew: 2}, res)
	assert.Equal(t, 2, colls[rawstore.CreditsCollection].Len())
}

func TestUpsertCredits_CountsCastAndCrewSeparately(t *testing.T) {
	store, colls := newStore(t)
	colls[rawstore.CreditsCollection].Reject = func(doc bson.M) bool {
		return doc["name"] == "broken"
	}

	res := store.UpsertCredits(context.Background(), 9, &models.Credits{
		Cast: []models.Credit{{CreditID: "c1", Name: "a"}, {CreditID: "c2", Name: "broken"}},
		Crew: []models.Credit{{CreditID: "c3", Name: "b"}},
	})

	assert.Equal(t, rawstore.CreditResult{Cast: 1, Crew: 1, Errors: 1}, res)
	assert.Equal(t, 2, colls[rawstore.CreditsCollection].Len())
}

func TestUpsertCredits_Empty(t *testing.T) {
	store, _ := newStore(t)
	assert.Equal(t, rawstore.CreditResult{}, store.UpsertCredits(context.Background(), 1, nil))
	assert.Equal(t, rawstore.CreditResult{}, store.UpsertCredits(context.Background(), 1, &models.Credits{}))
}

func TestUpsertCompanies_DropsMissingIDs(t *testing.T) {
	store, colls := newStore(t)

	res := store.UpsertCompanies(context.Background(), []models.Company{
		{ID: 508, Name: "Regency Enterprises", OriginCountry: "US"},
		{ID: 0, Name: "Unknown"},
	})

	assert.Equal(t, rawstore.WriteResult{Inserted: 1}, res)
	assert.Equal(t, 1, colls[rawstore.CompaniesCollection].Len())

	res = store.UpsertCompanies(context.Background(), []models.Company{{Name: "Only unknown"}})
	assert.Equal(t, rawstore.WriteResult{}, res)
}

func TestUpsert_PartialFailureIsCounted(t *testing.T) {
	store, colls := newStore(t)
	colls[rawstore.GenresCollection].Reject = func(doc bson.M) bool {
		return doc["name"] == "bad"
	}

	res := store.UpsertGenres(context.Background(), []models.Genre{
		{ID: 1, Name: "good"},
		{ID: 2, Name: "bad"},
		{ID: 3, Name: "also good"},
	})

	assert.Equal(t, rawstore.WriteResult{Inserted: 2, Errors: 1}, res)
}

func TestUpsert_DriverErrorFailsWholeBatch(t *testing.T) {
	store, colls := newStore(t)
	colls[rawstore.MoviesCollection].Err = errors.New("connection reset")

	res := store.UpsertMovies(context.Background(), []models.Movie{{ID: 1}, {ID: 2}})

	assert.Equal(t, rawstore.WriteResult{Errors: 2}, res)
}

func TestReaders_RoundTrip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	store.UpsertGenres(ctx, []models.Genre{{ID: 18, Name: "Drama"}})
	store.UpsertCompanies(ctx, []models.Company{{ID: 508, Name: "Regency", LogoPath: "/logo.png"}})
	store.UpsertCredits(ctx, 550, &models.Credits{Cast: []models.Credit{{CreditID: "x", PersonID: 819, Character: "Narrator", CastOrder: intPtr(0)}}})

	genres, err := store.Genres(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Drama", genres[0].Name)

	companies, err := store.Companies(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/logo.png", companies[0].LogoPath)

	credits, err := store.Credits(ctx)
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.Equal(t, 550, credits[0].MovieID)
	assert.Equal(t, 819, credits[0].PersonID)
	assert.Equal(t, models.CreditCast, credits[0].CreditType)
	require.NotNil(t, credits[0].CastOrder)
	assert.Equal(t, 0, *credits[0].CastOrder)
}

func TestCounts(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	store.UpsertGenres(ctx, []models.Genre{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}})
	store.UpsertMovies(ctx, []models.Movie{{ID: 10, Title: "x"}})

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		rawstore.GenresCollection:    2,
		rawstore.MoviesCollection:    1,
		rawstore.CreditsCollection:   0,
		rawstore.CompaniesCollection: 0,
	}, counts)
}

func TestEnsureIndexes_RequiresConnection(t *testing.T) {
	store, _ := newStore(t)
	assert.Error(t, store.EnsureIndexes(context.Background()))
}
