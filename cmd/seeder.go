package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/frahmantamala/hr-ops/internal/auth"
	rulesPostgres "github.com/frahmantamala/hr-ops/internal/core/rules/postgres"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		if clearData {
			if err := db.Exec(`TRUNCATE settlement_rule_sets, settlements, card_assignments, vehicle_assignments,
				asset_assignments, attendance_records, salary_structures, leave_balances, expenses,
				user_permissions, permissions, users RESTART IDENTITY CASCADE`).Error; err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared existing data")
		}

		hash, err := auth.HashPassword("password", cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		permissions := []struct {
			Name string
			Desc string
		}{
			{auth.PermissionAdmin, "full administrator"},
			{auth.PermissionManageSettlements, "Can initiate, calculate and cancel settlements"},
			{auth.PermissionApproveSettlements, "Can approve and complete settlements"},
			{auth.PermissionApproveExpenses, "Can approve expenses"},
			{auth.PermissionRejectExpenses, "Can reject expenses"},
		}
		for _, p := range permissions {
			if err := db.Exec("INSERT INTO permissions (name, description, created_at) VALUES (?, ?, now()) ON CONFLICT (name) DO NOTHING", p.Name, p.Desc).Error; err != nil {
				log.Fatalf("failed to insert permission %s: %v", p.Name, err)
			}
		}

		joined := time.Date(2019, time.March, 1, 0, 0, 0, 0, time.UTC)
		users := []struct {
			Email       string
			Name        string
			Department  string
			Designation string
			Grants      []string
		}{
			{"admin@mail.com", "HR Admin", "People", "HR Director", []string{auth.PermissionAdmin}},
			{"hr@mail.com", "HR Partner", "People", "HR Business Partner", []string{auth.PermissionManageSettlements}},
			{"finance@mail.com", "Finance Lead", "Finance", "Finance Controller", []string{auth.PermissionApproveSettlements, auth.PermissionApproveExpenses, auth.PermissionRejectExpenses}},
			{"employee@mail.com", "Leaving Employee", "Engineering", "Software Engineer", nil},
		}

		ids := make(map[string]int64, len(users))
		for _, u := range users {
			id, err := ensureUser(db, u.Email, u.Name, hash, u.Department, u.Designation, joined)
			if err != nil {
				log.Fatalf("failed to seed user %s: %v", u.Email, err)
			}
			ids[u.Email] = id
			for _, name := range u.Grants {
				if err := grantPermission(db, id, name); err != nil {
					log.Fatalf("failed to grant %s to %s: %v", name, u.Email, err)
				}
			}
			fmt.Println("Seeded user:", u.Email)
		}

		employeeID := ids["employee@mail.com"]
		year := time.Now().UTC().Year()
		stmts := []struct {
			SQL  string
			Args []interface{}
		}{
			{"INSERT INTO salary_structures (user_id, monthly_gross, monthly_deductions, effective_from) SELECT ?, 31000, 3100, ? WHERE NOT EXISTS (SELECT 1 FROM salary_structures WHERE user_id = ?)", []interface{}{employeeID, joined, employeeID}},
			{"INSERT INTO leave_balances (user_id, category, year, allocated, consumed) VALUES (?, 'earned', ?, 18, 6) ON CONFLICT DO NOTHING", []interface{}{employeeID, year}},
			{"INSERT INTO leave_balances (user_id, category, year, allocated, consumed) VALUES (?, 'casual', ?, 8, 8) ON CONFLICT DO NOTHING", []interface{}{employeeID, year}},
			{"INSERT INTO asset_assignments (user_id, asset_tag, description) SELECT ?, 'LAP-0042', 'Laptop' WHERE NOT EXISTS (SELECT 1 FROM asset_assignments WHERE user_id = ?)", []interface{}{employeeID, employeeID}},
			{"INSERT INTO card_assignments (user_id, card_number, card_type) SELECT ?, 'ACC-7781', 'ACCESS' WHERE NOT EXISTS (SELECT 1 FROM card_assignments WHERE user_id = ?)", []interface{}{employeeID, employeeID}},
		}
		for _, s := range stmts {
			if err := db.Exec(s.SQL, s.Args...).Error; err != nil {
				log.Fatalf("failed to seed employee data: %v", err)
			}
		}
		fmt.Println("Seeded salary, leave and assignments for:", "employee@mail.com")

		if cfg.SettlementRules == nil {
			fmt.Println("No settlement_rules in config; skipping rule set publish")
			return
		}
		adminID := ids["admin@mail.com"]
		repo := rulesPostgres.NewRuleSetRepository(db)
		if err := repo.Publish(context.Background(), cfg.SettlementRules, &adminID); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				fmt.Println("Settlement rules version already published:", cfg.SettlementRules.Version)
				return
			}
			log.Fatalf("failed to publish settlement rules: %v", err)
		}
		fmt.Println("Published settlement rules version:", cfg.SettlementRules.Version)
	},
}

func ensureUser(db *gorm.DB, email, name, hash, department, designation string, joined time.Time) (int64, error) {
	var id int64
	if err := db.Raw("SELECT id FROM users WHERE email = ?", email).Row().Scan(&id); err == nil {
		return id, nil
	}
	err := db.Raw(`INSERT INTO users (email, name, password_hash, department, designation, date_of_joining, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, true, now(), now()) RETURNING id`,
		email, name, hash, department, designation, joined).Row().Scan(&id)
	return id, err
}

func grantPermission(db *gorm.DB, userID int64, name string) error {
	return db.Exec(`INSERT INTO user_permissions (user_id, permission_id, granted_by, created_at)
		SELECT ?, id, NULL, now() FROM permissions WHERE name = ?
		ON CONFLICT (user_id, permission_id) DO NOTHING`, userID, name).Error
}
