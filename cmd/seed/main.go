package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"trinity/internal/billing"
	"trinity/internal/funnel"
	"trinity/internal/onboarding"
	"trinity/internal/shared/config"
	"trinity/internal/shared/database"
	"trinity/internal/shared/kvstore"
	"trinity/internal/users"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting Trinity Database Seeder...")

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	// Clean database
	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	// Seed data
	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(cfg); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in the correct order (respecting foreign key constraints)
func (s *Seeder) CleanDatabase() error {
	// Order matters due to foreign key constraints
	// Delete in reverse dependency order
	tables := []string{
		"billing_subscriptions",
		"billing_plans",
		"onboarding_events",
		"onboarding_progress",
		"onboarding_templates",
		"onboarding_steps",
		"funnel_audit_log",
		"app_config",
		"users",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit().Error
}

// SeedAll seeds all required data
func (s *Seeder) SeedAll(cfg *config.Config) error {
	ctx := context.Background()

	if _, err := s.SeedUsers(cfg); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	stepKeys, err := s.SeedOnboardingSteps()
	if err != nil {
		return fmt.Errorf("failed to seed onboarding steps: %w", err)
	}

	if err := s.SeedOnboardingTemplates(stepKeys); err != nil {
		return fmt.Errorf("failed to seed onboarding templates: %w", err)
	}

	if err := s.SeedBillingPlans(); err != nil {
		return fmt.Errorf("failed to seed billing plans: %w", err)
	}

	if err := s.SeedFunnelMetrics(); err != nil {
		return fmt.Errorf("failed to seed funnel metrics: %w", err)
	}

	// Clear Redis cache to ensure fresh state
	if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
		log.Printf("Warning: Failed to clear Redis cache: %v", err)
	}

	return nil
}

// SeedUsers creates 1 admin and 2 trial users
func (s *Seeder) SeedUsers(cfg *config.Config) (map[string]uuid.UUID, error) {
	fmt.Println("  👤 Seeding users...")

	userIDs := make(map[string]uuid.UUID)

	// Hash password for all users (using "qwerty")
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("qwerty"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	trialEnds := now.Add(cfg.Trial.Duration)

	usersData := []struct {
		key         string
		firstName   string
		lastName    string
		email       string
		role        users.Role
		industry    string
		companySize string
		jobRole     string
	}{
		{"admin", "Admin", "User", "admin@x3o.ai", users.RoleAdmin, "", "", ""},
		{"user1", "Ada", "Nguyen", "ada@example.com", users.RoleUser, "saas", "11-50", "founder"},
		{"user2", "Ben", "Ortiz", "ben@example.com", users.RoleUser, "ecommerce", "51-200", "marketing"},
	}

	for _, userData := range usersData {
		user := users.User{
			ID:           uuid.New(),
			FirstName:    userData.firstName,
			LastName:     userData.lastName,
			Email:        userData.email,
			Password:     string(hashedPassword),
			Role:         userData.role,
			Industry:     userData.industry,
			CompanySize:  userData.companySize,
			JobRole:      userData.jobRole,
			Status:       users.AccountStatusTrial,
			TrialStartAt: &now,
			TrialEndsAt:  &trialEnds,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := s.db.PostgreSQL.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", userData.email, err)
		}

		userIDs[userData.key] = user.ID
		fmt.Printf("    ✅ Created user: %s (%s)\n", user.Email, user.Role)
	}

	return userIDs, nil
}

// SeedOnboardingSteps creates the default step catalog
func (s *Seeder) SeedOnboardingSteps() ([]string, error) {
	fmt.Println("  📋 Seeding onboarding steps...")

	stepsData := []struct {
		stepKey     string
		title       string
		description string
		stepType    onboarding.StepType
		category    string
		required    bool
		skipAllowed bool
		minutes     int
	}{
		{"welcome", "Welcome to Trinity", "A quick tour of what your agents can do", onboarding.StepTypeWelcome, "getting_started", true, false, 2},
		{"profile_setup", "Set up your profile", "Tell us about your company so we can tailor your agents", onboarding.StepTypeProfileSetup, "getting_started", true, false, 3},
		{"meet_oracle", "Meet Oracle", "Your business intelligence agent", onboarding.StepTypeAgentIntroduction, "agents", true, true, 4},
		{"connect_data", "Connect your data", "Link an analytics or CRM source", onboarding.StepTypeIntegrationSetup, "agents", false, true, 8},
		{"first_interaction", "Ask your first question", "Get your first insight from a Trinity agent", onboarding.StepTypeFirstInteraction, "agents", true, false, 5},
		{"explore_dashboard", "Explore the dashboard", "Find reports, alerts and agent settings", onboarding.StepTypeFeatureDiscovery, "discovery", false, true, 5},
		{"invite_team", "Invite your team", "Trinity works better with your whole team on board", onboarding.StepTypeSuccessMilestone, "discovery", false, true, 3},
		{"upgrade_account", "Choose a plan", "Keep your agents after the trial ends", onboarding.StepTypeConversion, "conversion", false, true, 4},
	}

	keys := make([]string, 0, len(stepsData))
	for i, stepData := range stepsData {
		step := onboarding.Step{
			ID:               uuid.New(),
			StepKey:          stepData.stepKey,
			Title:            stepData.title,
			Description:      stepData.description,
			Type:             stepData.stepType,
			Category:         stepData.category,
			SortOrder:        (i + 1) * 10,
			Required:         stepData.required,
			SkipAllowed:      stepData.skipAllowed,
			EstimatedMinutes: stepData.minutes,
			Active:           true,
		}

		if err := s.db.PostgreSQL.Create(&step).Error; err != nil {
			return nil, fmt.Errorf("failed to create step %s: %w", stepData.stepKey, err)
		}

		keys = append(keys, step.StepKey)
		fmt.Printf("    ✅ Created step: %s\n", step.StepKey)
	}

	return keys, nil
}

// SeedOnboardingTemplates creates targeted step orderings
func (s *Seeder) SeedOnboardingTemplates(stepKeys []string) error {
	fmt.Println("  🗂️ Seeding onboarding templates...")

	saas := "saas"
	founder := "founder"
	marketing := "marketing"

	templatesData := []struct {
		name        string
		description string
		stepKeys    []string
		industry    *string
		jobRole     *string
		weight      int
		stats       onboarding.TemplateStats
	}{
		{
			name:        "Founder fast track",
			description: "Gets founders to their first insight before anything else",
			stepKeys:    []string{"welcome", "first_interaction", "meet_oracle", "profile_setup"},
			industry:    &saas,
			jobRole:     &founder,
			weight:      100,
			stats:       onboarding.TemplateStats{UsersAssigned: 120, UsersCompleted: 78, UsersConverted: 31},
		},
		{
			name:        "Marketing deep dive",
			description: "Leads with data connection for analytics-heavy teams",
			stepKeys:    []string{"welcome", "profile_setup", "connect_data", "meet_oracle"},
			jobRole:     &marketing,
			weight:      80,
			stats:       onboarding.TemplateStats{UsersAssigned: 95, UsersCompleted: 52, UsersConverted: 17},
		},
	}

	for _, templateData := range templatesData {
		keysJSON, err := json.Marshal(templateData.stepKeys)
		if err != nil {
			return fmt.Errorf("failed to marshal step keys: %w", err)
		}

		template := onboarding.Template{
			ID:            uuid.New(),
			Name:          templateData.name,
			Description:   templateData.description,
			StepKeys:      datatypes.JSON(keysJSON),
			Industry:      templateData.industry,
			JobRole:       templateData.jobRole,
			TrafficWeight: templateData.weight,
			Active:        true,
			Stats:         templateData.stats,
		}
		template.Stats.Recompute()

		if err := s.db.PostgreSQL.Create(&template).Error; err != nil {
			return fmt.Errorf("failed to create template %s: %w", templateData.name, err)
		}
		fmt.Printf("    ✅ Created template: %s\n", template.Name)
	}

	return nil
}

// SeedBillingPlans creates the purchasable plans
func (s *Seeder) SeedBillingPlans() error {
	fmt.Println("  💳 Seeding billing plans...")

	plansData := []struct {
		planKey    string
		name       string
		priceCents int64
		interval   string
		agentLimit int
		features   []string
	}{
		{"starter", "Starter", 9900, "month", 1, []string{"1 Trinity agent", "Email support"}},
		{"professional", "Professional", 24900, "month", 3, []string{"All 3 Trinity agents", "Priority support", "Custom integrations"}},
		{"enterprise", "Enterprise", 99900, "month", 10, []string{"Unlimited agents", "Dedicated success manager", "SSO"}},
	}

	for _, planData := range plansData {
		featuresJSON, err := json.Marshal(planData.features)
		if err != nil {
			return fmt.Errorf("failed to marshal features: %w", err)
		}

		plan := billing.Plan{
			ID:         uuid.New(),
			PlanKey:    planData.planKey,
			Name:       planData.name,
			PriceCents: planData.priceCents,
			Currency:   "USD",
			Interval:   planData.interval,
			AgentLimit: planData.agentLimit,
			Features:   datatypes.JSON(featuresJSON),
			Active:     true,
		}

		if err := s.db.PostgreSQL.Create(&plan).Error; err != nil {
			return fmt.Errorf("failed to create plan %s: %w", planData.planKey, err)
		}
		fmt.Printf("    ✅ Created plan: %s ($%.2f/%s)\n", plan.PlanKey, float64(plan.PriceCents)/100, plan.Interval)
	}

	return nil
}

// SeedFunnelMetrics writes the bootstrap metrics singleton
func (s *Seeder) SeedFunnelMetrics() error {
	fmt.Println("  📈 Seeding funnel metrics singleton...")

	store := kvstore.NewStore(s.db.PostgreSQL)
	if err := store.Put(funnel.MetricsKey, funnel.DefaultMetrics()); err != nil {
		return fmt.Errorf("failed to seed funnel metrics: %w", err)
	}

	fmt.Println("    ✅ Created funnel metrics entry")
	return nil
}
