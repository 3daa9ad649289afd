package models

import "time"

type Genre struct {
	ID       int       `json:"id" bson:"id"`
	Name     string    `json:"name" bson:"name,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitzero" bson:"loaded_at,omitempty"`
}

type Company struct {
	ID            int       `json:"id" bson:"id"`
	Name          string    `json:"name" bson:"name,omitempty"`
	OriginCountry string    `json:"origin_country" bson:"origin_country,omitempty"`
	LogoPath      string    `json:"logo_path" bson:"logo_path,omitempty"`
	LoadedAt      time.Time `json:"loaded_at,omitzero" bson:"loaded_at,omitempty"`
}

type Country struct {
	ISO31661 string `json:"iso_3166_1" bson:"iso_3166_1"`
	Name     string `json:"name" bson:"name"`
}

type Language struct {
	ISO6391     string `json:"iso_639_1" bson:"iso_639_1"`
	EnglishName string `json:"english_name" bson:"english_name,omitempty"`
	Name        string `json:"name" bson:"name"`
}

type Keyword struct {
	ID   int    `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

// KeywordList mirrors the nested shape TMDb returns for append_to_response=keywords.
type KeywordList struct {
	Keywords []Keyword `json:"keywords" bson:"keywords"`
}

// Movie is stored as one document per TMDb id. Summary records from the
// popular listing and full detail records share this type. Fields both
// payloads carry are always written, so a later write can reset them to
// zero; detail-only fields are omitted when empty so a later summary does
// not erase them.
type Movie struct {
	ID                  int          `json:"id" bson:"id"`
	Title               string       `json:"title" bson:"title"`
	OriginalTitle       string       `json:"original_title" bson:"original_title"`
	OriginalLanguage    string       `json:"original_language" bson:"original_language"`
	Overview            string       `json:"overview" bson:"overview"`
	ReleaseDate         string       `json:"release_date" bson:"release_date"`
	Popularity          float64      `json:"popularity" bson:"popularity"`
	VoteAverage         float64      `json:"vote_average" bson:"vote_average"`
	VoteCount           int          `json:"vote_count" bson:"vote_count"`
	Budget              int64        `json:"budget" bson:"budget,omitempty"`
	Revenue             int64        `json:"revenue" bson:"revenue,omitempty"`
	Runtime             int          `json:"runtime" bson:"runtime,omitempty"`
	Status              string       `json:"status" bson:"status,omitempty"`
	Tagline             string       `json:"tagline" bson:"tagline,omitempty"`
	PosterPath          string       `json:"poster_path" bson:"poster_path"`
	BackdropPath        string       `json:"backdrop_path" bson:"backdrop_path"`
	Adult               bool         `json:"adult" bson:"adult"`
	GenreIDs            []int        `json:"genre_ids,omitempty" bson:"genre_ids,omitempty"`
	Genres              []Genre      `json:"genres,omitempty" bson:"genres,omitempty"`
	ProductionCompanies []Company    `json:"production_companies,omitempty" bson:"production_companies,omitempty"`
	ProductionCountries []Country    `json:"production_countries,omitempty" bson:"production_countries,omitempty"`
	SpokenLanguages     []Language   `json:"spoken_languages,omitempty" bson:"spoken_languages,omitempty"`
	Keywords            *KeywordList `json:"keywords,omitempty" bson:"keywords,omitempty"`
	LoadedAt            time.Time    `json:"loaded_at,omitzero" bson:"loaded_at,omitempty"`

	// Credits arrive embedded in detail responses but are stored in their own
	// collection by the credits stage.
	Credits *Credits `json:"credits,omitempty" bson:"-"`
}

type CreditType string

const (
	CreditCast CreditType = "cast"
	CreditCrew CreditType = "crew"
)

// Credit is one cast or crew assignment. PersonID is TMDb's person "id" and
// CastOrder its "order" field.
type Credit struct {
	CreditID    string     `json:"credit_id" bson:"credit_id,omitempty"`
	MovieID     int        `json:"movie_id" bson:"movie_id"`
	PersonID    int        `json:"id" bson:"person_id"`
	Name        string     `json:"name" bson:"name,omitempty"`
	Character   string     `json:"character" bson:"character,omitempty"`
	Job         string     `json:"job" bson:"job,omitempty"`
	Department  string     `json:"department" bson:"department,omitempty"`
	CreditType  CreditType `json:"credit_type" bson:"credit_type"`
	Gender      int        `json:"gender" bson:"gender,omitempty"`
	ProfilePath string     `json:"profile_path" bson:"profile_path,omitempty"`
	CastOrder   *int       `json:"order,omitempty" bson:"cast_order,omitempty"`
	LoadedAt    time.Time  `json:"loaded_at,omitzero" bson:"loaded_at,omitempty"`
}

type Credits struct {
	ID   int      `json:"id,omitempty"`
	Cast []Credit `json:"cast"`
	Crew []Credit `json:"crew"`
}

// Total returns the number of cast and crew assignments.
func (c *Credits) Total() int {
	if c == nil {
		return 0
	}
	return len(c.Cast) + len(c.Crew)
}
