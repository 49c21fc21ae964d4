package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/zfogg/reelrank/internal/database"
	"github.com/zfogg/reelrank/internal/seed"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	command := "dev"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	defaults := seed.DefaultOptions()
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	users := fs.Int("users", defaults.Users, "number of seed users")
	posts := fs.Int("posts", defaults.Posts, "number of seed posts")
	interactions := fs.Int("interactions", defaults.Interactions, "number of seed interactions")
	randSeed := fs.Int64("seed", 0, "random seed (0 = time based)")
	_ = fs.Parse(args)

	switch command {
	case "dev":
		seedDB(*randSeed, seed.Options{Users: *users, Posts: *posts, Interactions: *interactions})
	case "test":
		seedDB(*randSeed, seed.Options{Users: 5, Posts: 20, Interactions: 50})
	case "clean":
		cleanSeed()
	case "verify":
		verifySeed()
	default:
		fmt.Println("Usage: seed [dev|test|clean|verify] [-users N] [-posts N] [-interactions N] [-seed N]")
		fmt.Println("  dev    - Seed development database with realistic data")
		fmt.Println("  test   - Seed test database with minimal data")
		fmt.Println("  clean  - Remove all seed data (real users and posts are kept)")
		fmt.Println("  verify - Print seed row counts and sample posts")
		os.Exit(1)
	}
}

func connect() {
	if err := database.Initialize(); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	if err := database.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database connected")
}

func seedDB(randSeed int64, opts seed.Options) {
	log.Println("🌱 Seeding database...")
	connect()
	defer database.Close()

	seeder := seed.NewSeeder(database.DB, randSeed)
	if err := seeder.SeedDev(context.Background(), opts); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✅ Seeded %d users, %d posts, %d interactions", opts.Users, opts.Posts, opts.Interactions)
}

func cleanSeed() {
	log.Println("🧹 Cleaning seed data...")
	connect()
	defer database.Close()

	seeder := seed.NewSeeder(database.DB, 0)
	if err := seeder.Clean(context.Background()); err != nil {
		log.Fatalf("❌ Clean failed: %v", err)
	}

	log.Println("✅ Seed data cleaned successfully!")
}

func verifySeed() {
	connect()
	defer database.Close()

	sum, err := seed.NewSeeder(database.DB, 0).Verify(context.Background())
	if err != nil {
		log.Fatalf("❌ Verify failed: %v", err)
	}

	fmt.Println("📊 Seed Record Counts:")
	fmt.Printf("  Users:        %d\n", sum.Users)
	fmt.Printf("  Posts:        %d\n", sum.Posts)
	fmt.Printf("  Interactions: %d\n", sum.Interactions)
	fmt.Println()

	fmt.Println("📝 Most viewed seed posts:")
	for _, p := range sum.Samples {
		fmt.Printf("  - [%d] %s (%s, %d views)\n", p.ID, p.Title, p.CategoryLabel(), p.ViewCount)
	}
}
