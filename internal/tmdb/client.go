package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kdimtricp/moviewarehouse/internal/models"
	"github.com/kdimtricp/moviewarehouse/pkg/metrics"
)

const (
	DefaultBaseURL   = "https://api.themoviedb.org/3"
	DefaultPageDelay = 250 * time.Millisecond
	DefaultTimeout   = 30 * time.Second
)

type Config struct {
	APIKey    string
	BaseURL   string
	Language  string
	PageDelay time.Duration
	Timeout   time.Duration
}

type Client struct {
	apiKey     string
	baseURL    string
	language   string
	pageDelay  time.Duration
	httpClient *http.Client
	log        *zap.Logger
}

type genreList struct {
	Genres []models.Genre `json:"genres"`
}

type popularPage struct {
	Page         int            `json:"page"`
	Results      []models.Movie `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// PageError records a listing page that could not be fetched.
type PageError struct {
	Page int
	Err  error
}

func (e PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

// PageResult is the concatenation of every listing page that succeeded.
type PageResult struct {
	Movies    []models.Movie
	Requested int
	Failed    []PageError
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		language:  cfg.Language,
		pageDelay: cfg.PageDelay,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log.Named("tmdb"),
	}
}

// Close releases idle keep-alive connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(endpoint, false)
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordAPIRequest(endpoint, false)
		return fmt.Errorf("TMDb API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.RecordAPIRequest(endpoint, false)
		return fmt.Errorf("decoding response: %w", err)
	}

	metrics.RecordAPIRequest(endpoint, true)
	return nil
}

// Genres returns the movie genre list. On failure it returns an empty list
// together with the error.
func (c *Client) Genres(ctx context.Context) ([]models.Genre, error) {
	var list genreList
	if err := c.get(ctx, "genres", "/genre/movie/list", nil, &list); err != nil {
		c.log.Warn("fetching genres failed", zap.Error(err))
		return []models.Genre{}, err
	}
	if list.Genres == nil {
		list.Genres = []models.Genre{}
	}

	c.log.Info("fetched genres", zap.Int("count", len(list.Genres)))
	return list.Genres, nil
}

// PopularMovies fetches pages 1..pages of the popular listing. A page that
// fails is logged, recorded in the result and skipped. Successive page
// requests are separated by the configured page delay.
func (c *Client) PopularMovies(ctx context.Context, pages int) PageResult {
	result := PageResult{Requested: pages}
	limiter := c.pageLimiter()

	for page := 1; page <= pages; page++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				for p := page; p <= pages; p++ {
					result.Failed = append(result.Failed, PageError{Page: p, Err: err})
				}
				break
			}
		}

		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		if c.language != "" {
			params.Set("language", c.language)
		}

		var body popularPage
		if err := c.get(ctx, "popular", "/movie/popular", params, &body); err != nil {
			c.log.Warn("fetching popular page failed", zap.Int("page", page), zap.Error(err))
			result.Failed = append(result.Failed, PageError{Page: page, Err: err})
			continue
		}

		result.Movies = append(result.Movies, body.Results...)
		c.log.Debug("fetched popular page", zap.Int("page", page), zap.Int("movies", len(body.Results)))
	}

	c.log.Info("fetched popular movies",
		zap.Int("pages", pages),
		zap.Int("failed_pages", len(result.Failed)),
		zap.Int("movies", len(result.Movies)))

	return result
}

// MovieDetails fetches one movie with credits, keywords and production
// companies embedded in the same response.
func (c *Client) MovieDetails(ctx context.Context, movieID int) (*models.Movie, error) {
	params := url.Values{}
	params.Set("append_to_response", "credits,keywords,production_companies")

	var movie models.Movie
	if err := c.get(ctx, "details", fmt.Sprintf("/movie/%d", movieID), params, &movie); err != nil {
		return nil, fmt.Errorf("fetching movie %d: %w", movieID, err)
	}

	return &movie, nil
}

func (c *Client) MovieCredits(ctx context.Context, movieID int) (*models.Credits, error) {
	var credits models.Credits
	if err := c.get(ctx, "credits", fmt.Sprintf("/movie/%d/credits", movieID), nil, &credits); err != nil {
		return nil, fmt.Errorf("fetching credits for %d: %w", movieID, err)
	}

	return &credits, nil
}

// pageLimiter paces listing requests. The first token is free so page 1 is
// requested immediately.
func (c *Client) pageLimiter() *rate.Limiter {
	if c.pageDelay <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(c.pageDelay), 1)
}
