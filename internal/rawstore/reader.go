package rawstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kdimtricp/moviewarehouse/internal/models"
)

func (s *Store) readAll(ctx context.Context, name string, out interface{}) error {
	c, err := s.collection(name)
	if err != nil {
		return err
	}

	cur, err := c.Find(ctx, bson.D{}, options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}}))
	if err != nil {
		return fmt.Errorf("querying %s: %w", name, err)
	}
	defer cur.Close(ctx)

	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}

func (s *Store) Genres(ctx context.Context) ([]models.Genre, error) {
	var out []models.Genre
	err := s.readAll(ctx, GenresCollection, &out)
	return out, err
}

func (s *Store) Companies(ctx context.Context) ([]models.Company, error) {
	var out []models.Company
	err := s.readAll(ctx, CompaniesCollection, &out)
	return out, err
}

func (s *Store) Movies(ctx context.Context) ([]models.Movie, error) {
	var out []models.Movie
	err := s.readAll(ctx, MoviesCollection, &out)
	return out, err
}

func (s *Store) Credits(ctx context.Context) ([]models.Credit, error) {
	var out []models.Credit
	err := s.readAll(ctx, CreditsCollection, &out)
	return out, err
}
