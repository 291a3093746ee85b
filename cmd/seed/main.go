// Command main seeds the travel desk database with demo data.
package main

import (
	"flag"
	"log"

	"traveldesk/internal/config"
	"traveldesk/internal/database"
	"traveldesk/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	numRequests := flag.Int("requests", 30, "Number of travel requests to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	skipBcrypt := flag.Bool("fast", false, "Skip bcrypt hashing for faster seeding")
	verbose := flag.Bool("verbose", false, "Log every seeded record")
	flag.Parse()

	log.Printf("Seeding: %d users, %d travel requests, clean=%v", *numUsers, *numRequests, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(db, seed.Options{
		NumUsers:    *numUsers,
		NumRequests: *numRequests,
		ShouldClean: *shouldClean,
		SkipBcrypt:  *skipBcrypt,
		Verbose:     *verbose,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Done")
}
