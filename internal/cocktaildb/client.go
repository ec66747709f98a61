// Package cocktaildb provides a client for TheCocktailDB REST API and
// normalizes its flat wire records into typed results.
package cocktaildb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://www.thecocktaildb.com/api/json/v1/1"

// Client talks to TheCocktailDB. A zero API key is fine; the free tier
// is keyed into the base URL path.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// listResponse covers every endpoint: each returns a single-key object
// whose value is a list of records or JSON null.
type listResponse struct {
	Drinks      json.RawMessage `json:"drinks"`
	Ingredients json.RawMessage `json:"ingredients"`
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values) (*listResponse, error) {
	u := c.baseURL + "/" + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cocktaildb %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cocktaildb %s: status %d", endpoint, resp.StatusCode)
	}

	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("cocktaildb %s: decode: %w", endpoint, err)
	}
	return &parsed, nil
}

func (c *Client) drinks(ctx context.Context, endpoint string, query url.Values) ([]Cocktail, error) {
	parsed, err := c.get(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(parsed.Drinks)
	if err != nil {
		return nil, err
	}
	cocktails := make([]Cocktail, 0, len(records))
	for _, raw := range records {
		cocktail, err := mapRawCocktail(raw)
		if err != nil {
			c.logger.Warn("skipping malformed drink record", "endpoint", endpoint, "error", err)
			continue
		}
		cocktails = append(cocktails, cocktail)
	}
	return cocktails, nil
}

// SearchByName looks up cocktails whose name matches the query.
func (c *Client) SearchByName(ctx context.Context, name string) ([]Cocktail, error) {
	return c.drinks(ctx, "search.php", url.Values{"s": {name}})
}

// GetByID fetches a single cocktail by its numeric ID. Returns nil when
// the ID is unknown.
func (c *Client) GetByID(ctx context.Context, id string) (*Cocktail, error) {
	cocktails, err := c.drinks(ctx, "lookup.php", url.Values{"i": {id}})
	if err != nil {
		return nil, err
	}
	if len(cocktails) == 0 {
		return nil, nil
	}
	return &cocktails[0], nil
}

// Random fetches one random cocktail.
func (c *Client) Random(ctx context.Context) (*Cocktail, error) {
	cocktails, err := c.drinks(ctx, "random.php", nil)
	if err != nil {
		return nil, err
	}
	if len(cocktails) == 0 {
		return nil, fmt.Errorf("cocktaildb random.php: empty result")
	}
	return &cocktails[0], nil
}

// FilterCocktails returns reduced records matching a single filter
// criterion. The API only honors one criterion per request; when several
// are set, precedence is ingredient, category, glass, type.
func (c *Client) FilterCocktails(ctx context.Context, filter Filter) ([]FilterResult, error) {
	query := url.Values{}
	switch {
	case filter.Ingredient != "":
		query.Set("i", filter.Ingredient)
	case filter.Category != "":
		query.Set("c", filter.Category)
	case filter.Glass != "":
		query.Set("g", filter.Glass)
	case filter.Type != "":
		query.Set("a", filter.Type)
	default:
		return nil, fmt.Errorf("filter requires at least one criterion")
	}

	parsed, err := c.get(ctx, "filter.php", query)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(parsed.Drinks)
	if err != nil {
		return nil, err
	}
	results := make([]FilterResult, 0, len(records))
	for _, raw := range records {
		id, name := raw.str("idDrink"), raw.str("strDrink")
		if id == "" || name == "" {
			continue
		}
		results = append(results, FilterResult{ID: id, Name: name, Image: raw.str("strDrinkThumb")})
	}
	return results, nil
}

// SearchIngredient looks up ingredient details by name.
func (c *Client) SearchIngredient(ctx context.Context, name string) ([]Ingredient, error) {
	parsed, err := c.get(ctx, "search.php", url.Values{"i": {name}})
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(parsed.Ingredients)
	if err != nil {
		return nil, err
	}
	ingredients := make([]Ingredient, 0, len(records))
	for _, raw := range records {
		ing, err := mapRawIngredient(raw)
		if err != nil {
			c.logger.Warn("skipping malformed ingredient record", "error", err)
			continue
		}
		ingredients = append(ingredients, ing)
	}
	return ingredients, nil
}

// ListCategories returns the known drink categories.
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	return c.list(ctx, "strCategory", url.Values{"c": {"list"}})
}

// ListGlasses returns the known glass types.
func (c *Client) ListGlasses(ctx context.Context) ([]string, error) {
	return c.list(ctx, "strGlass", url.Values{"g": {"list"}})
}

// ListIngredients returns the known ingredient names.
func (c *Client) ListIngredients(ctx context.Context) ([]string, error) {
	return c.list(ctx, "strIngredient1", url.Values{"i": {"list"}})
}

func (c *Client) list(ctx context.Context, field string, query url.Values) ([]string, error) {
	parsed, err := c.get(ctx, "list.php", query)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(parsed.Drinks)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(records))
	for _, raw := range records {
		if v := raw.str(field); v != "" {
			values = append(values, v)
		}
	}
	return values, nil
}
