package main

import (
	"log"

	"campus-rag-be/internal/config"
	"campus-rag-be/internal/model"
	"campus-rag-be/pkg/database"

	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"
)

func strPtr(s string) *string { return &s }

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	color.Cyan("Seeding demo accounts...")

	// Demo accounts, one per role. Passwords are for local development only.
	users := []struct {
		Username string
		Password string
		FullName string
		Role     string
		DeptId   *string
	}{
		{Username: "u1001", Password: "password123", FullName: "Zhang Wei", Role: "student", DeptId: strPtr("CS")},
		{Username: "u2001", Password: "password123", FullName: "Li Na", Role: "teacher", DeptId: strPtr("CS")},
		{Username: "u2002", Password: "password123", FullName: "Wang Fang", Role: "teacher", DeptId: strPtr("SE")},
		{Username: "u3001", Password: "password123", FullName: "Chen Jing", Role: "scholar", DeptId: nil},
	}

	for _, u := range users {
		var existing model.User
		if err := db.Where("username = ?", u.Username).First(&existing).Error; err == nil {
			log.Printf("User '%s' already exists, skipping...", u.Username)
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Error hashing password for '%s': %v", u.Username, err)
		}

		user := model.User{
			Username:     u.Username,
			PasswordHash: string(hash),
			FullName:     u.FullName,
			Role:         u.Role,
			DeptId:       u.DeptId,
			IsActive:     true,
		}
		if err := db.Create(&user).Error; err != nil {
			color.Red("Error creating user '%s': %v", u.Username, err)
		} else {
			log.Printf("Created user: %s (%s)", u.Username, u.Role)
		}
	}

	color.Cyan("Registering vector collections...")

	collections := []string{
		cfg.Rag.CollectionFAQ,
		cfg.Rag.CollectionStandard,
		cfg.Rag.CollectionResearch,
		cfg.Rag.CollectionInternal,
		cfg.Rag.CollectionPersonal,
	}
	for _, name := range collections {
		c := model.VectorCollection{Name: name}
		if err := db.Where("name = ?", name).FirstOrCreate(&c).Error; err != nil {
			color.Red("Error registering collection '%s': %v", name, err)
		} else {
			log.Printf("Registered collection: %s", name)
		}
	}

	color.Cyan("Seeding demo documents...")
	SeedDocuments(db, cfg)

	color.Green("Seeding completed.")
}
