package main

import (
	"context"
	"log"
	"time"

	"campus-rag-be/internal/config"
	"campus-rag-be/internal/model"
	dashscopeembed "campus-rag-be/pkg/embedding/dashscope"

	"github.com/fatih/color"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type seedDocument struct {
	Collection string
	Content    string
	Answer     string
	Source     string
	DeptId     string
	UserId     string
}

// SeedDocuments embeds and upserts the demo corpus. Rows are matched on
// (collection, content) so re-running the seeder is safe.
func SeedDocuments(db *gorm.DB, cfg *config.Config) {
	if cfg.Ai.APIKey == "" {
		color.Red("DASHSCOPE_API_KEY is not set, skipping document seeding")
		return
	}

	embedder := dashscopeembed.NewProvider(cfg.Ai.BaseURL, cfg.Ai.APIKey, cfg.Ai.EmbeddingModel)

	// Personal records belong to the demo student account.
	var student model.User
	studentId := ""
	if err := db.Where("username = ?", "u1001").First(&student).Error; err == nil {
		studentId = student.Id.String()
	} else {
		color.Red("Demo student 'u1001' not found, personal records will be skipped")
	}

	docs := []seedDocument{
		// Public campus facts.
		{
			Collection: cfg.Rag.CollectionStandard,
			Content:    "The university library is open from 8:00 to 22:00 on weekdays and from 9:00 to 21:00 on weekends. During final exam weeks the main reading room stays open until midnight.",
			Source:     "library_handbook.pdf",
		},
		{
			Collection: cfg.Rag.CollectionStandard,
			Content:    "Course registration for the autumn semester opens on August 25 and closes on September 5. Late registration requires approval from the academic affairs office.",
			Source:     "academic_calendar.pdf",
		},
		{
			Collection: cfg.Rag.CollectionStandard,
			Content:    "Campus shuttle buses run between the north and south gates every 15 minutes from 7:00 to 19:00 on teaching days. The route map is posted at every stop.",
			Source:     "campus_services.pdf",
		},

		// Research literature excerpts.
		{
			Collection: cfg.Rag.CollectionResearch,
			Content:    "The Transformer architecture replaces recurrence with self-attention, allowing every position in the sequence to attend to every other position in a single layer. Multi-head attention projects queries, keys and values into several subspaces and attends in each independently.",
			Source:     "attention_is_all_you_need.pdf",
		},
		{
			Collection: cfg.Rag.CollectionResearch,
			Content:    "Retrieval-augmented generation combines a parametric language model with a non-parametric memory of dense passage vectors. At inference time the retriever supplies top-k passages that condition the generator, improving factuality on knowledge-intensive tasks.",
			Source:     "rag_survey_2024.pdf",
		},
		{
			Collection: cfg.Rag.CollectionResearch,
			Content:    "Contrastive pre-training of dual encoders with in-batch negatives remains the dominant recipe for dense retrieval. Hard negative mining and late interaction variants trade index size against ranking quality.",
			Source:     "dense_retrieval_notes.pdf",
		},

		// Internal notices, department scoped.
		{
			Collection: cfg.Rag.CollectionInternal,
			Content:    "CS department notice: the weekly faculty meeting moves to Room 305 starting next Monday. Graduate thesis proposal reviews are scheduled for the third week of October.",
			Source:     "cs_dept_notice_0912",
			DeptId:     "CS",
		},
		{
			Collection: cfg.Rag.CollectionInternal,
			Content:    "CS department notice: the GPU cluster will be down for maintenance this Saturday from 6:00 to 18:00. Queued jobs will be requeued automatically after the window.",
			Source:     "cs_dept_notice_0920",
			DeptId:     "CS",
		},
		{
			Collection: cfg.Rag.CollectionInternal,
			Content:    "SE department notice: submissions for the software engineering capstone showcase close on November 1. Each team must register a demo slot with the department office.",
			Source:     "se_dept_notice_1001",
			DeptId:     "SE",
		},

		// FAQ entries with curated answers.
		{
			Collection: cfg.Rag.CollectionFAQ,
			Content:    "How do I reset my campus account password?",
			Answer:     "Visit the identity portal at id.campus.edu, click \"Forgot password\", and verify with your bound phone number. If the number is out of date, bring your student card to the IT service desk in the library, room 101.",
			Source:     "it_faq",
		},
		{
			Collection: cfg.Rag.CollectionFAQ,
			Content:    "What are the library opening hours?",
			Answer:     "The library opens 8:00-22:00 on weekdays and 9:00-21:00 on weekends. During final exam weeks the main reading room stays open until midnight.",
			Source:     "library_faq",
		},
		{
			Collection: cfg.Rag.CollectionFAQ,
			Content:    "How can I apply for a dormitory change?",
			Answer:     "Submit a dormitory change application in the student affairs system before the 5th of each month. Approvals are announced on the 15th and moves happen on the following weekend.",
			Source:     "housing_faq",
		},
	}

	if studentId != "" {
		docs = append(docs,
			seedDocument{
				Collection: cfg.Rag.CollectionPersonal,
				Content:    "Student Zhang Wei (u1001), School of Computer Science. Current GPA 3.7. Enrolled courses this semester: Distributed Systems, Machine Learning, Database Internals.",
				Source:     "student_profile",
				UserId:     studentId,
			},
			seedDocument{
				Collection: cfg.Rag.CollectionPersonal,
				Content:    "Zhang Wei's scholarship record: National Encouragement Scholarship 2024, First-class Academic Scholarship 2025. Outstanding volunteer award, spring 2025.",
				Source:     "student_awards",
				UserId:     studentId,
			},
		)
	}

	for _, d := range docs {
		var existing model.DocumentEmbedding
		if err := db.Where("collection = ? AND content = ?", d.Collection, d.Content).First(&existing).Error; err == nil {
			log.Printf("Document already seeded in %s, skipping...", d.Collection)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		vec, err := embedder.Embed(ctx, d.Content)
		cancel()
		if err != nil {
			color.Red("Error embedding document for %s: %v", d.Collection, err)
			continue
		}

		row := model.DocumentEmbedding{
			Collection: d.Collection,
			Content:    d.Content,
			Answer:     d.Answer,
			Source:     d.Source,
			DeptId:     d.DeptId,
			UserId:     d.UserId,
			Embedding:  pgvector.NewVector(vec),
		}
		if err := db.Create(&row).Error; err != nil {
			color.Red("Error inserting document into %s: %v", d.Collection, err)
		} else {
			log.Printf("Seeded document into %s (%s)", d.Collection, d.Source)
		}
	}
}
