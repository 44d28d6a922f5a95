package main

import (
	"log"
	"os"

	"campus-rag-be/internal/model"
	"campus-rag-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting GORM Migration...")

	// 3. Pre-Migration: extensions GORM AutoMigrate doesn't handle
	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	}
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Fatalf("Error: Failed to run setup SQL (%s): %v", sql, err)
		}
	}

	// 4. AutoMigrate models
	if err := db.AutoMigrate(
		&model.User{},
		&model.VectorCollection{},
		&model.DocumentEmbedding{},
	); err != nil {
		log.Fatal("Error: Migration failed:", err)
	}

	// 5. ANN index for the embedding column
	if err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_document_embeddings_embedding
		 ON document_embeddings USING hnsw (embedding vector_cosine_ops);`,
	).Error; err != nil {
		log.Printf("Warning: Failed to create hnsw index (is pgvector >= 0.5?): %v", err)
	}

	log.Println("Migration completed successfully")
}
