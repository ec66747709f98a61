package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rubenqba/llm-assistant-api/internal/cocktaildb"
)

// DrinkSource is the slice of the cocktaildb client the tools consume.
type DrinkSource interface {
	SearchByName(ctx context.Context, name string) ([]cocktaildb.Cocktail, error)
	GetByID(ctx context.Context, id string) (*cocktaildb.Cocktail, error)
	Random(ctx context.Context) (*cocktaildb.Cocktail, error)
	FilterCocktails(ctx context.Context, filter cocktaildb.Filter) ([]cocktaildb.FilterResult, error)
	ListCategories(ctx context.Context) ([]string, error)
	ListGlasses(ctx context.Context) ([]string, error)
	ListIngredients(ctx context.Context) ([]string, error)
	SearchIngredient(ctx context.Context, name string) ([]cocktaildb.Ingredient, error)
}

// RegisterCocktailTools registers the full bartending toolset against
// one data source.
func RegisterCocktailTools(r *Registry, source DrinkSource) {
	r.Register(&ListIngredients{source: source})
	r.Register(&ListCategories{source: source})
	r.Register(&ListGlasses{source: source})
	r.Register(&GetCocktailByName{source: source})
	r.Register(&GetRandomCocktail{source: source})
	r.Register(&GetCocktailByID{source: source})
	r.Register(&FilterCocktails{source: source})
}

// notFound is what the model sees when a lookup legitimately matches
// nothing. Transport failures degrade to the same text so the model can
// recover conversationally instead of the turn aborting.
const notFound = "No cocktail found."

func asJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

// ListIngredients returns every ingredient name the database knows.
type ListIngredients struct {
	source DrinkSource
}

func (t *ListIngredients) Name() string { return "list_ingredients" }
func (t *ListIngredients) Description() string {
	return "List all ingredient names available in the cocktail database"
}
func (t *ListIngredients) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Optional ingredient name to look up in detail instead of listing everything"}
		}
	}`)
}

func (t *ListIngredients) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query string `json:"query"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", &ArgumentError{Tool: t.Name(), Err: err}
		}
	}

	if params.Query != "" {
		details, err := t.source.SearchIngredient(ctx, params.Query)
		if err != nil || len(details) == 0 {
			return fmt.Sprintf("No ingredient named %q found.", params.Query), nil
		}
		return asJSON(details)
	}

	names, err := t.source.ListIngredients(ctx)
	if err != nil || len(names) == 0 {
		return "The ingredient list is unavailable right now.", nil
	}
	return strings.Join(names, ", "), nil
}

// ListCategories returns every drink category.
type ListCategories struct {
	source DrinkSource
}

func (t *ListCategories) Name() string { return "list_categories" }
func (t *ListCategories) Description() string {
	return "List all cocktail categories available in the database"
}
func (t *ListCategories) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *ListCategories) Execute(ctx context.Context, _ json.RawMessage) (string, error) {
	categories, err := t.source.ListCategories(ctx)
	if err != nil || len(categories) == 0 {
		return "The category list is unavailable right now.", nil
	}
	return strings.Join(categories, ", "), nil
}

// ListGlasses returns every glass type. Pairs with filter_cocktails'
// glass criterion.
type ListGlasses struct {
	source DrinkSource
}

func (t *ListGlasses) Name() string { return "list_glasses" }
func (t *ListGlasses) Description() string {
	return "List all glass types in the database, usable as the glass criterion of filter_cocktails"
}
func (t *ListGlasses) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *ListGlasses) Execute(ctx context.Context, _ json.RawMessage) (string, error) {
	glasses, err := t.source.ListGlasses(ctx)
	if err != nil || len(glasses) == 0 {
		return "The glass list is unavailable right now.", nil
	}
	return strings.Join(glasses, ", "), nil
}

// GetCocktailByName searches recipes by drink name.
type GetCocktailByName struct {
	source DrinkSource
}

func (t *GetCocktailByName) Name() string { return "get_cocktail_by_name" }
func (t *GetCocktailByName) Description() string {
	return "Search cocktail recipes by name, returning full details including ingredients and instructions"
}
func (t *GetCocktailByName) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "The cocktail name to search for"}
		},
		"required": ["name"]
	}`)
}

func (t *GetCocktailByName) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", &ArgumentError{Tool: t.Name(), Err: err}
	}
	if params.Name == "" {
		return "", &ArgumentError{Tool: t.Name(), Err: fmt.Errorf("name is required")}
	}

	cocktails, err := t.source.SearchByName(ctx, params.Name)
	if err != nil || len(cocktails) == 0 {
		return notFound, nil
	}
	return asJSON(cocktails)
}

// GetRandomCocktail fetches one random recipe.
type GetRandomCocktail struct {
	source DrinkSource
}

func (t *GetRandomCocktail) Name() string { return "get_random_cocktail" }
func (t *GetRandomCocktail) Description() string {
	return "Get a random cocktail recipe, useful when the guest wants a surprise"
}
func (t *GetRandomCocktail) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *GetRandomCocktail) Execute(ctx context.Context, _ json.RawMessage) (string, error) {
	cocktail, err := t.source.Random(ctx)
	if err != nil || cocktail == nil {
		return notFound, nil
	}
	return asJSON(cocktail)
}

// GetCocktailByID fetches one recipe by database ID.
type GetCocktailByID struct {
	source DrinkSource
}

func (t *GetCocktailByID) Name() string { return "get_cocktail_by_id" }
func (t *GetCocktailByID) Description() string {
	return "Get full cocktail details by its database ID, as returned by filter_cocktails"
}
func (t *GetCocktailByID) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"id": {"type": "string", "description": "The cocktail database ID"}
		},
		"required": ["id"]
	}`)
}

func (t *GetCocktailByID) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", &ArgumentError{Tool: t.Name(), Err: err}
	}
	if params.ID == "" {
		return "", &ArgumentError{Tool: t.Name(), Err: fmt.Errorf("id is required")}
	}

	cocktail, err := t.source.GetByID(ctx, params.ID)
	if err != nil || cocktail == nil {
		return notFound, nil
	}
	return asJSON(cocktail)
}

// FilterCocktails finds drinks by ingredient, category, glass, or
// alcohol content.
type FilterCocktails struct {
	source DrinkSource
}

func (t *FilterCocktails) Name() string { return "filter_cocktails" }
func (t *FilterCocktails) Description() string {
	return "Filter cocktails by ingredient, category, glass, or alcoholic type. Returns names and IDs; use get_cocktail_by_id for full recipes"
}
func (t *FilterCocktails) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"ingredient": {"type": "string", "description": "Filter by ingredient, e.g. Gin"},
			"category": {"type": "string", "description": "Filter by category, e.g. Cocktail"},
			"glass": {"type": "string", "description": "Filter by glass, e.g. Highball glass"},
			"type": {"type": "string", "enum": ["Alcoholic", "Non_Alcoholic"], "description": "Filter by alcohol content"}
		}
	}`)
}

func (t *FilterCocktails) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Ingredient string `json:"ingredient"`
		Category   string `json:"category"`
		Glass      string `json:"glass"`
		Type       string `json:"type"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", &ArgumentError{Tool: t.Name(), Err: err}
	}
	filter := cocktaildb.Filter{
		Ingredient: params.Ingredient,
		Category:   params.Category,
		Glass:      params.Glass,
		Type:       params.Type,
	}
	if filter == (cocktaildb.Filter{}) {
		return "", &ArgumentError{Tool: t.Name(), Err: fmt.Errorf("at least one filter criterion is required")}
	}

	results, err := t.source.FilterCocktails(ctx, filter)
	if err != nil || len(results) == 0 {
		return notFound, nil
	}
	return asJSON(results)
}
