package main

import (
	"database/sql"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lib/pq"

	"github.com/noah-isme/backend-bloom/internal/migrations"
)

type seedDiscount struct {
	code       string
	name       string
	kind       string
	trigger    string
	valueCents int64
	percentBps int32
	minimum    int64
	products   []string
	categories []string
	posOnly    bool
	priority   int
}

type seedZone struct {
	name    string
	minKm   float64
	maxKm   *float64
	feeCent int64
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	tenantFlag := flag.String("tenant", envOr("TENANT_DEFAULT", "main"), "tenant to seed")
	migrate := flag.Bool("migrate", true, "apply schema migrations first")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	if *migrate {
		version, err := migrations.Up(dbURL)
		if err != nil {
			log.Fatalf("Failed to migrate: %v", err)
		}
		log.Printf("Schema at version %d", version)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	tenantID := strings.TrimSpace(*tenantFlag)
	log.Printf("Seeding tenant %q", tenantID)

	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("Failed to begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	seedTaxRates(tx, tenantID)
	seedDiscounts(tx, tenantID)
	seedDelivery(tx, tenantID)
	seedGuest(tx, tenantID)

	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}
	log.Println("Seeding completed successfully!")
}

func seedTaxRates(tx *sql.Tx, tenantID string) {
	rates := []struct {
		name, description string
		percent           float64
		sort              int
	}{
		{"GST", "Goods and Services Tax", envFloat("TAX_STATIC_GST_PERCENT", 5), 1},
		{"PST", "Provincial Sales Tax", envFloat("TAX_STATIC_PST_PERCENT", 7), 2},
	}
	for _, r := range rates {
		_, err := tx.Exec(`INSERT INTO tax_rates (tenant_id, name, rate, is_active, sort_order, description)
VALUES ($1, $2, $3, true, $4, $5)
ON CONFLICT (tenant_id, name) DO UPDATE SET rate = EXCLUDED.rate, sort_order = EXCLUDED.sort_order`,
			tenantID, r.name, r.percent, r.sort, r.description)
		if err != nil {
			log.Fatalf("Failed to seed tax rate %s: %v", r.name, err)
		}
	}
	log.Printf("Seeded %d tax rates", len(rates))
}

func seedDiscounts(tx *sql.Tx, tenantID string) {
	discounts := []seedDiscount{
		{code: "SPRING10", name: "Spring 10% off", kind: "PERCENTAGE", trigger: "COUPON_CODE", percentBps: 1000, minimum: 2000},
		{code: "FIVEOFF", name: "$5 off", kind: "FIXED_AMOUNT", trigger: "COUPON_CODE", valueCents: 500},
		{code: "FREESHIP", name: "Free delivery", kind: "FREE_SHIPPING", trigger: "COUPON_CODE", minimum: 5000},
		{name: "Roses by the dozen", kind: "BUY_X_GET_Y_FREE", trigger: "AUTOMATIC_PRODUCT", products: []string{"rose-stem"}, priority: 10},
		{name: "Succulent sale", kind: "SALE_PRICE", trigger: "AUTOMATIC_CATEGORY", valueCents: 899, categories: []string{"succulents"}, posOnly: true, priority: 5},
	}
	for _, d := range discounts {
		var code any
		if d.code != "" {
			code = d.code
		}
		_, err := tx.Exec(`DELETE FROM discounts WHERE tenant_id = $1 AND name = $2`, tenantID, d.name)
		if err != nil {
			log.Fatalf("Failed to clear discount %s: %v", d.name, err)
		}
		_, err = tx.Exec(`INSERT INTO discounts (tenant_id, code, name, kind, trigger, value_cents, percent_bps,
minimum_order_cents, applicable_products, applicable_categories, pos_only, priority)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			tenantID, code, d.name, d.kind, d.trigger, d.valueCents, d.percentBps, d.minimum,
			pq.Array(nonNil(d.products)), pq.Array(nonNil(d.categories)), d.posOnly, d.priority)
		if err != nil {
			log.Fatalf("Failed to seed discount %s: %v", d.name, err)
		}
	}
	log.Printf("Seeded %d discounts", len(discounts))
}

func seedDelivery(tx *sql.Tx, tenantID string) {
	_, err := tx.Exec(`INSERT INTO delivery_settings (tenant_id, enabled, max_radius_km, free_delivery_minimum_cents)
VALUES ($1, true, 25, 15000)
ON CONFLICT (tenant_id) DO UPDATE SET enabled = EXCLUDED.enabled, max_radius_km = EXCLUDED.max_radius_km,
free_delivery_minimum_cents = EXCLUDED.free_delivery_minimum_cents`, tenantID)
	if err != nil {
		log.Fatalf("Failed to seed delivery settings: %v", err)
	}
	if _, err := tx.Exec(`DELETE FROM delivery_zones WHERE tenant_id = $1`, tenantID); err != nil {
		log.Fatalf("Failed to clear delivery zones: %v", err)
	}
	five, fifteen := 5.0, 15.0
	zones := []seedZone{
		{name: "Downtown", minKm: 0, maxKm: &five, feeCent: 800},
		{name: "City", minKm: 5, maxKm: &fifteen, feeCent: 1500},
		{name: "Outskirts", minKm: 15, feeCent: 2500},
	}
	for _, z := range zones {
		_, err := tx.Exec(`INSERT INTO delivery_zones (tenant_id, name, min_distance_km, max_distance_km, fee_cents)
VALUES ($1, $2, $3, $4, $5)`, tenantID, z.name, z.minKm, z.maxKm, z.feeCent)
		if err != nil {
			log.Fatalf("Failed to seed zone %s: %v", z.name, err)
		}
	}
	log.Printf("Seeded %d delivery zones", len(zones))
}

func seedGuest(tx *sql.Tx, tenantID string) {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS (SELECT 1 FROM customers WHERE tenant_id = $1 AND is_guest)`, tenantID).Scan(&exists); err != nil {
		log.Fatalf("Failed to check guest customer: %v", err)
	}
	if exists {
		return
	}
	if _, err := tx.Exec(`INSERT INTO customers (tenant_id, name, is_guest) VALUES ($1, 'Walk-in Customer', true)`, tenantID); err != nil {
		log.Fatalf("Failed to seed guest customer: %v", err)
	}
	log.Println("Seeded guest customer")
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64); err == nil {
		return v
	}
	return fallback
}
