// Command seed populates the database with demo data.
package main

import (
	"flag"
	"log"

	"dispatch/internal/config"
	"dispatch/internal/database"
	"dispatch/internal/seed"
)

func main() {
	// Parse command line flags
	numPartners := flag.Int("partners", 4, "Number of partners to create")
	numCustomers := flag.Int("customers", 10, "Number of customers to create")
	numRequests := flag.Int("requests", 20, "Number of requests to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d partners, %d customers, %d requests, clean=%v\n",
		*numPartners, *numCustomers, *numRequests, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Run(db, seed.Options{
		NumPartners:  *numPartners,
		NumCustomers: *numCustomers,
		NumRequests:  *numRequests,
		ShouldClean:  *shouldClean,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println("Seeding complete")
}
