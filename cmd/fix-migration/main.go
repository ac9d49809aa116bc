// Package main is a repair tool for dirty migration state in the tenantry
// database. Dirty state occurs when golang-migrate marks a version as
// in-progress but the process was interrupted before it completed. This tool
// reports the current version and, when dirty, forces the same version clean so
// the migration runner can retry on the next server startup.
//
// Usage: fix-migration [version]
//
// With a version argument the schema is forced to that version instead.
package main

import (
	"log"
	"os"
	"strconv"

	"github.com/tenantry/tenantry/internal/config"
	"github.com/tenantry/tenantry/internal/db"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), 2, 1)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database successfully")

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to check migration state: %v", err)
	}
	log.Printf("Current migration state: version=%d, dirty=%v", version, dirty)

	target := int(version)
	if len(os.Args) > 1 {
		target, err = strconv.Atoi(os.Args[1])
		if err != nil || target < 0 {
			log.Fatalf("Invalid version %q", os.Args[1])
		}
	} else if !dirty {
		log.Println("Migration state is already clean")
		return
	}

	log.Printf("Forcing migration version %d", target)
	if err := db.ForceVersion(database, target); err != nil {
		log.Fatalf("Failed to fix migration state: %v", err)
	}

	version, dirty, err = db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to check final migration state: %v", err)
	}
	log.Printf("Final migration state: version=%d, dirty=%v", version, dirty)
}
