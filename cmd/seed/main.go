// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"encaissement/internal/domain/auth"
	"encaissement/internal/domain/student"
	"encaissement/internal/infrastructure/storage/postgres"
	"encaissement/internal/infrastructure/storage/postgres/auth_repo"
	"encaissement/internal/infrastructure/storage/postgres/migrations"
	"encaissement/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	if err := migrations.Run(ctx, dsn); err != nil {
		log.Fatalw("failed to apply migrations", "error", err)
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)

	if err := seedAdminUser(ctx, txManager, log); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedStudents(ctx, txManager, log); err != nil {
			log.Fatalw("failed to seed students", "error", err)
		}
	}

	log.Info("seeding complete")
}

func seedAdminUser(ctx context.Context, txManager *postgres.TxManager, log *logger.Logger) error {
	userRepo := auth_repo.NewUserRepo(txManager)

	email := auth.NormalizeEmail(getEnv("ADMIN_EMAIL", "admin@encaissement.local"))
	password := getEnv("ADMIN_PASSWORD", "admin12345")

	exists, err := userRepo.Exists(ctx, email)
	if err != nil {
		return fmt.Errorf("check admin exists: %w", err)
	}
	if exists {
		log.Infow("admin user already present", "email", email)
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	admin := auth.NewUser(email, string(hash))
	admin.Role = auth.RoleAdmin

	if err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	log.Infow("admin user created", "email", email, "id", admin.ID)
	return nil
}

func seedStudents(ctx context.Context, txManager *postgres.TxManager, log *logger.Logger) error {
	service := student.NewService(postgres.NewStudentRepo(txManager))

	samples := []student.CreateInput{
		{Nom: "Diallo", Prenom: "Amadou", Faculte: student.FaculteInformatique, Email: "amadou.diallo@example.org"},
		{Nom: "Ndiaye", Prenom: "Fatou", Faculte: student.FaculteGestion, Email: "fatou.ndiaye@example.org"},
		{Nom: "Traoré", Prenom: "Moussa", Faculte: student.FaculteDroit, Email: "moussa.traore@example.org"},
		{Nom: "Koné", Prenom: "Awa", Faculte: student.FaculteMedecine, Email: "awa.kone@example.org"},
	}

	for _, in := range samples {
		st, err := service.Create(ctx, in)
		if err != nil {
			// Re-running the seeder must not fail on existing rows.
			log.Warnw("skipping student", "email", in.Email, "error", err)
			continue
		}
		log.Infow("student created", "id", st.ID, "email", st.Email)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
