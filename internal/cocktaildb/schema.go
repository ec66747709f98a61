package cocktaildb

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Cocktail is the cleaned-up view of one drink record. TheCocktailDB wire
// format is a flat bag of str* fields with up to 15 numbered ingredient
// slots; mapRawCocktail normalizes it into this shape.
type Cocktail struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Category     string            `json:"category"`
	Type         string            `json:"type"`
	Glass        string            `json:"glass"`
	Image        string            `json:"image,omitempty"`
	Tags         []string          `json:"tags"`
	Instructions string            `json:"instructions"`
	Translations map[string]string `json:"translations,omitempty"`
	Ingredients  []Measure         `json:"ingredients"`
}

// Measure pairs an ingredient with its (possibly absent) measure.
type Measure struct {
	Name    string `json:"name"`
	Measure string `json:"measure,omitempty"`
}

// Ingredient is the cleaned-up view of one ingredient record.
type Ingredient struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Type        string  `json:"type,omitempty"`
	IsAlcoholic bool    `json:"is_alcoholic"`
	ABV         float64 `json:"abv,omitempty"`
}

// FilterResult is the reduced record returned by the filter endpoint.
type FilterResult struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Filter holds the criteria accepted by the filter endpoint. Zero-value
// fields are omitted from the query.
type Filter struct {
	Ingredient string `json:"ingredient,omitempty"`
	Category   string `json:"category,omitempty"`
	Glass      string `json:"glass,omitempty"`
	Type       string `json:"type,omitempty"` // "Alcoholic" or "Non_Alcoholic"
}

// rawRecord is one wire record: every field is a string or null.
type rawRecord map[string]*string

func (r rawRecord) str(key string) string {
	if v, ok := r[key]; ok && v != nil {
		return strings.TrimSpace(*v)
	}
	return ""
}

var newlines = regexp.MustCompile(`[\r\n]+`)

// mapRawCocktail converts one wire record into a Cocktail. The numbered
// strIngredientN/strMeasureN slots are folded into the Ingredients slice;
// empty slots are skipped.
func mapRawCocktail(raw rawRecord) (Cocktail, error) {
	id := raw.str("idDrink")
	name := raw.str("strDrink")
	if id == "" || name == "" {
		return Cocktail{}, fmt.Errorf("record missing idDrink or strDrink")
	}

	c := Cocktail{
		ID:           id,
		Name:         name,
		Category:     raw.str("strCategory"),
		Glass:        raw.str("strGlass"),
		Image:        raw.str("strDrinkThumb"),
		Instructions: raw.str("strInstructions"),
	}

	switch t := raw.str("strAlcoholic"); t {
	case "Alcoholic", "Non_Alcoholic", "Optional_Alcohol":
		c.Type = t
	case "Non alcoholic":
		c.Type = "Non_Alcoholic"
	case "Optional alcohol":
		c.Type = "Optional_Alcohol"
	default:
		c.Type = "Unknown"
	}

	if tags := raw.str("strTags"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				c.Tags = append(c.Tags, t)
			}
		}
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}

	translations := map[string]string{}
	for lang, key := range map[string]string{
		"es": "strInstructionsES",
		"de": "strInstructionsDE",
		"fr": "strInstructionsFR",
		"it": "strInstructionsIT",
	} {
		if v := raw.str(key); v != "" {
			translations[lang] = v
		}
	}
	if len(translations) > 0 {
		c.Translations = translations
	}

	for i := 1; i <= 15; i++ {
		ingredient := raw.str("strIngredient" + strconv.Itoa(i))
		if ingredient == "" {
			continue
		}
		c.Ingredients = append(c.Ingredients, Measure{
			Name:    ingredient,
			Measure: raw.str("strMeasure" + strconv.Itoa(i)),
		})
	}
	if c.Ingredients == nil {
		c.Ingredients = []Measure{}
	}

	return c, nil
}

// mapRawIngredient converts one wire record into an Ingredient. The API
// reports alcohol content as "Yes"/"No" and ABV as a numeric string.
func mapRawIngredient(raw rawRecord) (Ingredient, error) {
	id := raw.str("idIngredient")
	name := raw.str("strIngredient")
	if id == "" || name == "" {
		return Ingredient{}, fmt.Errorf("record missing idIngredient or strIngredient")
	}

	ing := Ingredient{
		ID:          id,
		Name:        name,
		Type:        raw.str("strType"),
		IsAlcoholic: strings.EqualFold(raw.str("strAlcohol"), "yes"),
	}
	if desc := raw.str("strDescription"); desc != "" {
		ing.Description = strings.TrimSpace(newlines.ReplaceAllString(desc, " "))
	}
	if abv := raw.str("strABV"); abv != "" {
		if parsed, err := strconv.ParseFloat(abv, 64); err == nil {
			ing.ABV = parsed
		}
	}
	return ing, nil
}

// decodeRecords parses a wire list that may be JSON null (the API's way of
// saying "no results") into raw records.
func decodeRecords(data json.RawMessage) ([]rawRecord, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var records []rawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	return records, nil
}
