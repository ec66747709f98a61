package cocktaildb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const margaritaJSON = `{"drinks":[{
	"idDrink":"11007",
	"strDrink":"Margarita",
	"strCategory":"Ordinary Drink",
	"strAlcoholic":"Alcoholic",
	"strGlass":"Cocktail glass",
	"strDrinkThumb":"https://example.test/margarita.jpg",
	"strTags":"IBA,ContemporaryClassic",
	"strInstructions":"Rub the rim of the glass with the lime slice.",
	"strInstructionsES":"Frota el borde del vaso con la rodaja de lima.",
	"strInstructionsDE":"Reiben Sie den Rand des Glases mit der Limettenscheibe.",
	"strIngredient1":"Tequila",
	"strIngredient2":"Triple sec",
	"strIngredient3":"Lime juice",
	"strIngredient4":null,
	"strMeasure1":"1 1/2 oz ",
	"strMeasure2":"1/2 oz ",
	"strMeasure3":"1 oz ",
	"strMeasure4":null
}]}`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, nil)
}

func TestSearchByName(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.php" || r.URL.Query().Get("s") != "margarita" {
			t.Errorf("unexpected request: %s", r.URL)
		}
		w.Write([]byte(margaritaJSON))
	})

	cocktails, err := client.SearchByName(context.Background(), "margarita")
	if err != nil {
		t.Fatal(err)
	}
	if len(cocktails) != 1 {
		t.Fatalf("expected 1 cocktail, got %d", len(cocktails))
	}

	c := cocktails[0]
	if c.ID != "11007" || c.Name != "Margarita" {
		t.Errorf("unexpected identity: %s %s", c.ID, c.Name)
	}
	if c.Type != "Alcoholic" || c.Glass != "Cocktail glass" {
		t.Errorf("unexpected type/glass: %s %s", c.Type, c.Glass)
	}
	if len(c.Tags) != 2 || c.Tags[0] != "IBA" {
		t.Errorf("unexpected tags: %v", c.Tags)
	}
	if len(c.Ingredients) != 3 {
		t.Fatalf("expected 3 ingredients, got %d", len(c.Ingredients))
	}
	if c.Ingredients[0].Name != "Tequila" || c.Ingredients[0].Measure != "1 1/2 oz" {
		t.Errorf("unexpected first ingredient: %+v", c.Ingredients[0])
	}
	if c.Translations["es"] == "" || c.Translations["de"] == "" {
		t.Errorf("translations not mapped: %v", c.Translations)
	}
	if _, ok := c.Translations["fr"]; ok {
		t.Error("absent translation should not be present")
	}
}

func TestSearchByNameNoResults(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"drinks":null}`))
	})

	cocktails, err := client.SearchByName(context.Background(), "nothing")
	if err != nil {
		t.Fatal(err)
	}
	if len(cocktails) != 0 {
		t.Errorf("expected no cocktails, got %d", len(cocktails))
	}
}

func TestGetByIDUnknown(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"drinks":null}`))
	})

	cocktail, err := client.GetByID(context.Background(), "99999")
	if err != nil {
		t.Fatal(err)
	}
	if cocktail != nil {
		t.Errorf("expected nil for unknown id, got %+v", cocktail)
	}
}

func TestFilterCocktails(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("i") != "Gin" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"drinks":[
			{"idDrink":"11410","strDrink":"Gin Fizz","strDrinkThumb":"x.jpg"},
			{"idDrink":"11417","strDrink":"Gin Sling","strDrinkThumb":"y.jpg"}
		]}`))
	})

	results, err := client.FilterCocktails(context.Background(), Filter{Ingredient: "Gin"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "Gin Fizz" || results[0].ID != "11410" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
}

func TestFilterRequiresCriterion(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := client.FilterCocktails(context.Background(), Filter{}); err == nil {
		t.Error("expected error for empty filter")
	}
}

func TestSearchIngredient(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ingredients":[{
			"idIngredient":"2",
			"strIngredient":"Gin",
			"strDescription":"Gin is a spirit.\r\nIt is flavoured with juniper.",
			"strType":"Gin",
			"strAlcohol":"Yes",
			"strABV":"40"
		}]}`))
	})

	ingredients, err := client.SearchIngredient(context.Background(), "gin")
	if err != nil {
		t.Fatal(err)
	}
	if len(ingredients) != 1 {
		t.Fatalf("expected 1 ingredient, got %d", len(ingredients))
	}
	ing := ingredients[0]
	if !ing.IsAlcoholic || ing.ABV != 40 {
		t.Errorf("unexpected alcohol data: %+v", ing)
	}
	if ing.Description != "Gin is a spirit. It is flavoured with juniper." {
		t.Errorf("description not normalized: %q", ing.Description)
	}
}

func TestListCategories(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list.php" || r.URL.Query().Get("c") != "list" {
			t.Errorf("unexpected request: %s", r.URL)
		}
		w.Write([]byte(`{"drinks":[{"strCategory":"Ordinary Drink"},{"strCategory":"Cocktail"}]}`))
	})

	categories, err := client.ListCategories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(categories) != 2 || categories[1] != "Cocktail" {
		t.Errorf("unexpected categories: %v", categories)
	}
}

func TestListGlasses(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list.php" || r.URL.Query().Get("g") != "list" {
			t.Errorf("unexpected request: %s", r.URL)
		}
		w.Write([]byte(`{"drinks":[{"strGlass":"Highball glass"},{"strGlass":"Coupe"}]}`))
	})

	glasses, err := client.ListGlasses(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(glasses) != 2 || glasses[0] != "Highball glass" {
		t.Errorf("unexpected glasses: %v", glasses)
	}
}

func TestServerError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := client.SearchByName(context.Background(), "margarita"); err == nil {
		t.Error("expected error on 502")
	}
}
