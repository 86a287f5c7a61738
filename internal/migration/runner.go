package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// appliedMigration records a SQL file that has already run.
type appliedMigration struct {
	Filename  string `gorm:"primaryKey;type:varchar(255)"`
	AppliedAt time.Time
}

func (appliedMigration) TableName() string { return "schema_migrations" }

type Runner struct {
	db          *gorm.DB
	autoMigrate func() error
	logger      *logrus.Logger
}

// NewRunner runs autoMigrate first, then the SQL files. autoMigrate may be nil.
func NewRunner(db *gorm.DB, autoMigrate func() error, logger *logrus.Logger) *Runner {
	return &Runner{
		db:          db,
		autoMigrate: autoMigrate,
		logger:      logger,
	}
}

// RunMigrations executes all pending migrations
func (r *Runner) RunMigrations(migrationsPath string) error {
	r.logger.Info("Starting database migrations...")

	if r.autoMigrate != nil {
		if err := r.autoMigrate(); err != nil {
			return fmt.Errorf("GORM auto-migration failed: %w", err)
		}
	}

	if err := r.runSQLMigrations(migrationsPath); err != nil {
		return fmt.Errorf("SQL migrations failed: %w", err)
	}

	r.logger.Info("Database migrations completed successfully")
	return nil
}

func (r *Runner) runSQLMigrations(migrationsPath string) error {
	entries, err := os.ReadDir(migrationsPath)
	if os.IsNotExist(err) {
		r.logger.WithField("path", migrationsPath).Warn("Migrations directory not found, skipping SQL migrations")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	if err := r.db.AutoMigrate(&appliedMigration{}); err != nil {
		return fmt.Errorf("failed to prepare schema_migrations: %w", err)
	}

	var applied []appliedMigration
	if err := r.db.Find(&applied).Error; err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, m := range applied {
		done[m.Filename] = true
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, fileName := range sqlFiles {
		if done[fileName] {
			continue
		}
		if err := r.runSQLFile(filepath.Join(migrationsPath, fileName)); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", fileName, err)
		}
		if err := r.db.Create(&appliedMigration{Filename: fileName, AppliedAt: time.Now()}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", fileName, err)
		}
		r.logger.WithField("file", fileName).Info("Migration executed successfully")
	}

	return nil
}

func (r *Runner) runSQLFile(filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	sqlContent := string(content)

	// Dollar-quoted function bodies contain semicolons, so such files run
	// as a single batch.
	if strings.Contains(sqlContent, "$$") {
		return r.db.Exec(removeComments(sqlContent)).Error
	}

	for i, stmt := range splitSQLStatements(sqlContent) {
		r.logger.WithFields(logrus.Fields{
			"file":      filepath.Base(filePath),
			"statement": i + 1,
		}).Debug("Executing SQL statement")

		if err := r.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}

func removeComments(sql string) string {
	lines := strings.Split(sql, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func splitSQLStatements(sql string) []string {
	var statements []string
	for _, stmt := range strings.Split(removeComments(sql), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
