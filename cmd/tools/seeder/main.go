package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	tierIDs := seedCatalog(db)
	seedPartners(db, tierIDs)

	log.Println("Seeding completed successfully!")
}

type tierSeed struct {
	Name          string
	Slug          string
	BasePrice     string
	UsageUnit     sql.NullString
	UsagePrice    sql.NullString
	UsageIncluded sql.NullString
}

type productSeed struct {
	Name     string
	Slug     string
	Category string
	Model    string
	Tiers    []tierSeed
}

func usage(unit, price, included string) (sql.NullString, sql.NullString, sql.NullString) {
	return sql.NullString{String: unit, Valid: true},
		sql.NullString{String: price, Valid: true},
		sql.NullString{String: included, Valid: true}
}

// seedCatalog upserts the demo catalog and returns tier ids keyed by "product/tier".
func seedCatalog(db *sql.DB) map[string]string {
	categories := []struct {
		Name  string
		Slug  string
		Order int
	}{
		{"Network", "network", 1},
		{"Storage", "storage", 2},
		{"Compute", "compute", 3},
	}

	fmt.Println("Seeding Categories...")
	catIDs := make(map[string]string)
	for _, c := range categories {
		var id string
		err := db.QueryRow(`
			INSERT INTO categories (name, slug, display_order)
			VALUES ($1, $2, $3)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
			RETURNING id;
		`, c.Name, c.Slug, c.Order).Scan(&id)
		if err != nil {
			log.Printf("Failed to upsert category %s: %v", c.Name, err)
			continue
		}
		catIDs[c.Slug] = id
	}

	r2Unit, r2Price, r2Included := usage("GB", "0.015", "10")
	reqUnit, reqPrice, reqIncluded := usage("1M requests", "0.30", "10")
	products := []productSeed{
		{"CDN", "cdn", "network", "tier", []tierSeed{
			{Name: "Free", Slug: "free", BasePrice: "0"},
			{Name: "Pro", Slug: "pro", BasePrice: "20"},
			{Name: "Business", Slug: "business", BasePrice: "200"},
		}},
		{"R2 Object Storage", "r2", "storage", "usage", []tierSeed{
			{Name: "Standard", Slug: "standard", BasePrice: "0", UsageUnit: r2Unit, UsagePrice: r2Price, UsageIncluded: r2Included},
		}},
		{"Workers", "workers", "compute", "tier_plus_usage", []tierSeed{
			{Name: "Paid", Slug: "paid", BasePrice: "5", UsageUnit: reqUnit, UsagePrice: reqPrice, UsageIncluded: reqIncluded},
		}},
	}

	fmt.Println("Seeding Products...")
	tierIDs := make(map[string]string)
	for i, p := range products {
		catID, ok := catIDs[p.Category]
		if !ok {
			log.Printf("Missing category ID for %s", p.Category)
			continue
		}

		var prodID string
		err := db.QueryRow(`
			INSERT INTO products (category_id, name, slug, pricing_model, display_order)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (slug) DO UPDATE SET
				name = EXCLUDED.name,
				category_id = EXCLUDED.category_id,
				pricing_model = EXCLUDED.pricing_model
			RETURNING id;
		`, catID, p.Name, p.Slug, p.Model, i+1).Scan(&prodID)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Name, err)
			continue
		}

		for j, t := range p.Tiers {
			var tierID string
			err := db.QueryRow(`
				INSERT INTO product_tiers (product_id, name, slug, base_price, usage_unit, usage_unit_price, usage_included, display_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT ON CONSTRAINT product_tiers_product_slug_key DO UPDATE SET
					base_price = EXCLUDED.base_price,
					usage_unit = EXCLUDED.usage_unit,
					usage_unit_price = EXCLUDED.usage_unit_price,
					usage_included = EXCLUDED.usage_included
				RETURNING id;
			`, prodID, t.Name, t.Slug, t.BasePrice, t.UsageUnit, t.UsagePrice, t.UsageIncluded, j+1).Scan(&tierID)
			if err != nil {
				log.Printf("Failed to seed tier %s/%s: %v", p.Slug, t.Slug, err)
				continue
			}
			tierIDs[p.Slug+"/"+t.Slug] = tierID
		}
	}
	return tierIDs
}

func seedPartners(db *sql.DB, tierIDs map[string]string) {
	fmt.Println("Seeding Partners...")
	var partnerID string
	err := db.QueryRow(`
		INSERT INTO partners (name, slug, contact_email, default_markup_type, default_markup_value)
		VALUES ('Acme Cloud', 'acme', 'sales@acme.example', 'percentage', 20)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id;
	`).Scan(&partnerID)
	if err != nil {
		log.Printf("Failed to seed partner acme: %v", err)
		return
	}

	proTier, ok := tierIDs["cdn/pro"]
	if !ok {
		log.Println("Skipping markup rule seed: tier cdn/pro not found")
		return
	}
	_, err = db.Exec(`
		INSERT INTO markup_rules (partner_id, product_id, tier_id, markup_type, markup_value)
		SELECT $1, product_id, id, 'fixed', 5 FROM product_tiers WHERE id = $2
		ON CONFLICT DO NOTHING;
	`, partnerID, proTier)
	if err != nil {
		log.Printf("Failed to seed markup rule: %v", err)
	}
}
