package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"calmiverse/internal/domain"
	"calmiverse/internal/infra"
	"calmiverse/internal/sqlinline"
)

func main() {
	var (
		idFlag    string
		emailFlag string
		planFlag  string
		quotaFlag int
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email to update")
	flag.StringVar(&planFlag, "plan", "premium", "plan to assign (free, premium, family)")
	flag.IntVar(&quotaFlag, "quota", 0, "daily story quota (0 assigns the plan default)")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(emailFlag)
	plan := domain.UserPlan(strings.TrimSpace(strings.ToLower(planFlag)))

	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}
	if err := validatePlan(plan); err != nil {
		exitWithError(err)
	}

	quota := quotaFlag
	if quota <= 0 {
		quota = domain.DefaultQuotaFor(plan)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", "userplan").With().Str("plan", string(plan)).Logger()
	runner := infra.NewSQLRunner(pool, logger)

	updateCtx, cancelUpdate := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelUpdate()

	query := sqlinline.QUpdateUserPlanByEmail
	key := email
	if userID != "" {
		query = sqlinline.QUpdateUserPlanByID
		key = userID
	}

	var (
		updatedID    string
		updatedEmail string
		updatedPlan  string
		updatedQuota int
	)
	row := runner.QueryRow(updateCtx, query, key, string(plan), quota)
	if err := row.Scan(&updatedID, &updatedEmail, &updatedPlan, &updatedQuota); err != nil {
		if infra.IsNoRows(err) {
			exitWithError(errors.New("user not found"))
		}
		exitWithError(fmt.Errorf("failed to update user plan: %w", err))
	}

	fmt.Printf("User %s (%s) updated to plan %s, quota_daily=%d\n", updatedID, updatedEmail, updatedPlan, updatedQuota)
}

func validatePlan(plan domain.UserPlan) error {
	switch plan {
	case domain.UserPlanFree, domain.UserPlanPremium, domain.UserPlanFamily:
		return nil
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedPlan, string(plan))
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
