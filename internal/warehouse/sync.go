package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kdimtricp/moviewarehouse/internal/models"
	"github.com/kdimtricp/moviewarehouse/internal/rawstore"
	"github.com/kdimtricp/moviewarehouse/pkg/metrics"
)

// JSONMode selects how nested fields are stored.
type JSONMode string

const (
	// JSONText stores nested fields as serialized JSON strings.
	JSONText JSONMode = "text"
	// JSONVariant parses them server side with PARSE_JSON. Snowflake only.
	JSONVariant JSONMode = "variant"
)

// Rows per commit while loading.
const (
	MovieCommitEvery = 50
	CreditBatchSize  = 1000
)

// Source is the raw store read side.
type Source interface {
	Genres(ctx context.Context) ([]models.Genre, error)
	Companies(ctx context.Context) ([]models.Company, error)
	Movies(ctx context.Context) ([]models.Movie, error)
	Credits(ctx context.Context) ([]models.Credit, error)
}

type TableReport struct {
	Table    string `json:"table"`
	Read     int    `json:"read"`
	Inserted int    `json:"inserted"`
	Failed   int    `json:"failed"`
}

type Report struct {
	Tables   []TableReport `json:"tables"`
	Duration time.Duration `json:"duration"`
}

type table struct {
	name        string
	columns     []string
	jsonColumns map[string]bool
	commitEvery int
}

var (
	genresTable = table{
		name:    rawstore.GenresCollection,
		columns: []string{"id", "name", "loaded_at"},
	}
	companiesTable = table{
		name:    rawstore.CompaniesCollection,
		columns: []string{"id", "name", "origin_country", "logo_path", "loaded_at"},
	}
	moviesTable = table{
		name: rawstore.MoviesCollection,
		columns: []string{
			"id", "title", "original_title", "original_language", "overview", "release_date",
			"popularity", "vote_average", "vote_count", "budget", "revenue",
			"runtime", "status", "tagline", "poster_path", "backdrop_path",
			"genres", "production_companies", "production_countries", "spoken_languages", "keywords",
			"loaded_at",
		},
		jsonColumns: map[string]bool{
			"genres":               true,
			"production_companies": true,
			"production_countries": true,
			"spoken_languages":     true,
			"keywords":             true,
		},
		commitEvery: MovieCommitEvery,
	}
	creditsTable = table{
		name: rawstore.CreditsCollection,
		columns: []string{
			"credit_id", "movie_id", "person_id", "name", "character",
			"job", "department", "credit_type", "gender", "profile_path", "cast_order",
			"loaded_at",
		},
		commitEvery: CreditBatchSize,
	}
)

// ErrJSONColumns means variant mode found nested JSON columns that were not
// created as VARIANT. PARSE_JSON output would be stored back as text.
var ErrJSONColumns = errors.New("json columns are not VARIANT")

const variantColumnsQuery = `SELECT COUNT(*) FROM information_schema.columns
WHERE table_schema = CURRENT_SCHEMA() AND table_name = ? AND data_type = 'VARIANT'`

// Table names accepted by SyncTables, in sync order.
var Tables = []string{"genres", "companies", "movies", "credits"}

type Syncer struct {
	db       *DB
	source   Source
	jsonMode JSONMode
	log      *zap.Logger
}

func NewSyncer(db *DB, source Source, mode JSONMode, log *zap.Logger) (*Syncer, error) {
	if mode == "" {
		mode = JSONText
	}
	switch mode {
	case JSONText:
	case JSONVariant:
		if db.dbType != TypeSnowflake {
			return nil, fmt.Errorf("json mode %q requires snowflake, got %s", mode, db.dbType)
		}
	default:
		return nil, fmt.Errorf("unknown json mode %q", mode)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Syncer{
		db:       db,
		source:   source,
		jsonMode: mode,
		log:      log.Named("sync"),
	}, nil
}

// SyncAll reloads every table in the order genres, companies, movies,
// credits. It stops at the first table that cannot be loaded.
func (s *Syncer) SyncAll(ctx context.Context) (Report, error) {
	return s.SyncTables(ctx, Tables)
}

func (s *Syncer) SyncTables(ctx context.Context, names []string) (Report, error) {
	start := time.Now()
	steps := map[string]func(context.Context) (TableReport, error){
		"genres":    s.SyncGenres,
		"companies": s.SyncCompanies,
		"movies":    s.SyncMovies,
		"credits":   s.SyncCredits,
	}

	want := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := steps[name]; !ok {
			return Report{}, fmt.Errorf("unknown table %q", name)
		}
		want[name] = true
	}

	var report Report
	for _, name := range Tables {
		if !want[name] {
			continue
		}
		tr, err := steps[name](ctx)
		report.Tables = append(report.Tables, tr)
		if err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("syncing %s: %w", name, err)
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (s *Syncer) SyncGenres(ctx context.Context) (TableReport, error) {
	genres, err := s.source.Genres(ctx)
	if err != nil {
		return TableReport{Table: genresTable.name}, fmt.Errorf("reading genres: %w", err)
	}

	rows := make([][]any, 0, len(genres))
	for _, g := range genres {
		rows = append(rows, []any{g.ID, g.Name, loadedAt(g.LoadedAt)})
	}
	return s.load(ctx, genresTable, rows)
}

func (s *Syncer) SyncCompanies(ctx context.Context) (TableReport, error) {
	companies, err := s.source.Companies(ctx)
	if err != nil {
		return TableReport{Table: companiesTable.name}, fmt.Errorf("reading companies: %w", err)
	}

	rows := make([][]any, 0, len(companies))
	for _, c := range companies {
		rows = append(rows, []any{c.ID, nullString(c.Name), nullString(c.OriginCountry), nullString(c.LogoPath), loadedAt(c.LoadedAt)})
	}
	return s.load(ctx, companiesTable, rows)
}

func (s *Syncer) SyncMovies(ctx context.Context) (TableReport, error) {
	if s.jsonMode == JSONVariant {
		if err := s.checkVariantColumns(ctx, moviesTable); err != nil {
			return TableReport{Table: moviesTable.name}, err
		}
	}

	movies, err := s.source.Movies(ctx)
	if err != nil {
		return TableReport{Table: moviesTable.name}, fmt.Errorf("reading movies: %w", err)
	}

	rows := make([][]any, 0, len(movies))
	for _, m := range movies {
		var keywords []models.Keyword
		if m.Keywords != nil {
			keywords = m.Keywords.Keywords
		}
		rows = append(rows, []any{
			m.ID,
			nullString(m.Title),
			nullString(m.OriginalTitle),
			nullString(m.OriginalLanguage),
			nullString(m.Overview),
			nullString(m.ReleaseDate),
			m.Popularity,
			m.VoteAverage,
			m.VoteCount,
			m.Budget,
			m.Revenue,
			m.Runtime,
			nullString(m.Status),
			nullString(m.Tagline),
			nullString(m.PosterPath),
			nullString(m.BackdropPath),
			jsonList(m.Genres),
			jsonList(m.ProductionCompanies),
			jsonList(m.ProductionCountries),
			jsonList(m.SpokenLanguages),
			jsonList(keywords),
			loadedAt(m.LoadedAt),
		})
	}
	return s.load(ctx, moviesTable, rows)
}

func (s *Syncer) SyncCredits(ctx context.Context) (TableReport, error) {
	credits, err := s.source.Credits(ctx)
	if err != nil {
		return TableReport{Table: creditsTable.name}, fmt.Errorf("reading credits: %w", err)
	}

	rows := make([][]any, 0, len(credits))
	for _, c := range credits {
		var order any
		if c.CastOrder != nil {
			order = *c.CastOrder
		}
		rows = append(rows, []any{
			nullString(c.CreditID),
			c.MovieID,
			c.PersonID,
			nullString(c.Name),
			nullString(c.Character),
			nullString(c.Job),
			nullString(c.Department),
			string(c.CreditType),
			c.Gender,
			nullString(c.ProfilePath),
			order,
			loadedAt(c.LoadedAt),
		})
	}
	return s.load(ctx, creditsTable, rows)
}

// checkVariantColumns fails when t was migrated in text mode. Snowflake
// stores unquoted identifiers upper case.
func (s *Syncer) checkVariantColumns(ctx context.Context, t table) error {
	var n int
	err := s.db.conn.QueryRowContext(ctx, variantColumnsQuery, strings.ToUpper(t.name)).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to inspect %s columns: %w", t.name, err)
	}
	if n < len(t.jsonColumns) {
		return fmt.Errorf("%w: %s has %d of %d, migrate with json mode %q", ErrJSONColumns, t.name, n, len(t.jsonColumns), JSONVariant)
	}
	return nil
}

// insertSQL builds the row insert for t. Snowflake rejects PARSE_JSON inside
// VALUES, so variant mode inserts from a SELECT.
func (s *Syncer) insertSQL(t table) string {
	marks := s.db.placeholders(len(t.columns))
	cols := strings.Join(t.columns, ", ")

	if s.jsonMode != JSONVariant || len(t.jsonColumns) == 0 {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, cols, strings.Join(marks, ", "))
	}

	for i, col := range t.columns {
		if t.jsonColumns[col] {
			marks[i] = "PARSE_JSON(" + marks[i] + ")"
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s", t.name, cols, strings.Join(marks, ", "))
}

// load truncates t and inserts rows one by one, committing every
// t.commitEvery rows (or once at the end when zero). Rows that fail are
// logged and skipped. On postgres each row runs under a savepoint so a
// failure does not poison the transaction.
func (s *Syncer) load(ctx context.Context, t table, rows [][]any) (TableReport, error) {
	report := TableReport{Table: t.name, Read: len(rows)}
	log := s.log.With(zap.String("table", t.name))
	log.Info("syncing table", zap.Int("documents", len(rows)))

	// Committed rows count even when a later chunk aborts the load.
	defer func() {
		metrics.RecordWarehouseRows(t.name, report.Inserted, report.Failed)
	}()

	if err := s.db.truncate(ctx, t.name); err != nil {
		return report, err
	}
	if len(rows) == 0 {
		log.Info("table synced", zap.Int("inserted", 0))
		return report, nil
	}

	query := s.insertSQL(t)
	savepoints := s.db.dbType == TypePostgres

	tx, stmt, err := s.begin(ctx, query)
	if err != nil {
		return report, err
	}
	defer func() {
		if tx != nil {
			stmt.Close()
			tx.Rollback()
		}
	}()

	pending := 0
	for i, row := range rows {
		if err := s.insertRow(ctx, tx, stmt, row, savepoints); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			if report.Failed <= 5 {
				log.Warn("row skipped", zap.Int("row", i), zap.Error(err))
			}
		} else {
			pending++
		}

		if t.commitEvery > 0 && (i+1)%t.commitEvery == 0 && i+1 < len(rows) {
			stmt.Close()
			if err := tx.Commit(); err != nil {
				tx = nil
				return report, fmt.Errorf("failed to commit %s: %w", t.name, err)
			}
			report.Inserted += pending
			pending = 0
			log.Debug("progress", zap.Int("done", i+1), zap.Int("total", len(rows)))

			if tx, stmt, err = s.begin(ctx, query); err != nil {
				tx = nil
				return report, err
			}
		}
	}

	stmt.Close()
	err = tx.Commit()
	tx = nil
	if err != nil {
		return report, fmt.Errorf("failed to commit %s: %w", t.name, err)
	}
	report.Inserted += pending

	log.Info("table synced", zap.Int("inserted", report.Inserted), zap.Int("failed", report.Failed))
	return report, nil
}

func (s *Syncer) begin(ctx context.Context, query string) (*sql.Tx, *sql.Stmt, error) {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	return tx, stmt, nil
}

func (s *Syncer) insertRow(ctx context.Context, tx *sql.Tx, stmt *sql.Stmt, row []any, savepoint bool) error {
	if !savepoint {
		_, err := stmt.ExecContext(ctx, row...)
		return err
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT sync_row"); err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, row...); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT sync_row"); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT sync_row")
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// loadedAt writes NULL for documents that were never stamped.
func loadedAt(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// jsonList serializes a nested list, writing [] for a missing one.
func jsonList[T any](items []T) string {
	if items == nil {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}
