package rawstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/kdimtricp/moviewarehouse/internal/models"
)

func TestCreditKey(t *testing.T) {
	tests := []struct {
		name   string
		credit models.Credit
		want   bson.D
	}{
		{
			name:   "natural credit id wins",
			credit: models.Credit{CreditID: "abc123", MovieID: 1, PersonID: 2, CreditType: models.CreditCrew, Job: "Director"},
			want:   bson.D{{Key: "credit_id", Value: "abc123"}},
		},
		{
			name:   "cast fallback",
			credit: models.Credit{MovieID: 1, PersonID: 2, CreditType: models.CreditCast, Character: "Tyler"},
			want: bson.D{
				{Key: "movie_id", Value: 1},
				{Key: "person_id", Value: 2},
				{Key: "credit_type", Value: models.CreditCast},
			},
		},
		{
			name:   "crew fallback includes job",
			credit: models.Credit{MovieID: 1, PersonID: 2, CreditType: models.CreditCrew, Job: "Director"},
			want: bson.D{
				{Key: "movie_id", Value: 1},
				{Key: "person_id", Value: 2},
				{Key: "credit_type", Value: models.CreditCrew},
				{Key: "job", Value: "Director"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CreditKey(tt.credit))
		})
	}
}

func TestWriteResult_Add(t *testing.T) {
	got := WriteResult{Inserted: 1, Updated: 2, Errors: 3}.Add(WriteResult{Inserted: 4, Updated: 5, Errors: 6})
	assert.Equal(t, WriteResult{Inserted: 5, Updated: 7, Errors: 9}, got)
}
