package database

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// MigrationLogger adapts ectologger to migrate.Logger
type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

// MigrationConfig controls a migration run
type MigrationConfig struct {
	MigrationFolderPath string
	Version             uint // Target version; 0 migrates to the latest
	Force               int  // Forces this version before migrating when non-zero
	AutoRollback        bool // Force the previous version when a migration leaves the schema dirty
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

// resolveMigrationFolder accepts absolute paths and paths relative to the working directory
func (ms *MigrationService) resolveMigrationFolder() (string, error) {
	folder := ms.config.MigrationFolderPath
	if !filepath.IsAbs(folder) {
		wd, err := os.Getwd()
		if err != nil {
			return "", errors.Wrap(err, "failed to resolve working directory")
		}
		folder = filepath.Join(wd, folder)
	}
	if _, err := os.Stat(folder); err != nil {
		return "", errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", folder))
	}
	return folder, nil
}

// Migrate applies the migrations in the configured folder to a Postgres database
func (ms *MigrationService) Migrate(db *sql.DB) error {
	folder, err := ms.resolveMigrationFolder()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to create postgres migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, "postgres", driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return errors.Wrap(err, "failed to create migrate instance")
	}
	m.Log = MigrationLogger{Logger: ms.logger}

	return ms.runMigration(m, folder)
}

func (ms *MigrationService) runMigration(m *migrate.Migrate, folder string) error {
	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return errors.Wrapf(err, "failed to force version %d", ms.config.Force)
		}
	}

	previous, _, err := m.Version()
	if err != nil && !stderrors.Is(err, migrate.ErrNilVersion) {
		ms.logger.WithError(err).Warn("Failed to get current migration version")
	}

	start := time.Now()
	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}
	ms.logger.Infof("Database migrations finished in %v", time.Since(start))

	return ms.handleMigrationError(m, err, previous, folder)
}

func (ms *MigrationService) handleMigrationError(m *migrate.Migrate, err error, previous uint, folder string) error {
	if err == nil {
		ms.logger.Info("Successfully applied migrations")
		return nil
	}
	if stderrors.Is(err, migrate.ErrNoChange) {
		ms.logger.Info("No new migrations to apply")
		return nil
	}

	ms.logger.WithError(err).Error("Migration failed")

	version, dirty, versionErr := m.Version()
	if versionErr != nil && !stderrors.Is(versionErr, migrate.ErrNilVersion) {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
		return errors.Wrap(err, "migration failed")
	}

	if dirty && ms.config.AutoRollback {
		target := int(previous)
		if target == 0 {
			latest, latestErr := latestVersion(folder)
			if latestErr == nil && uint(latest) < version {
				target = latest
			} else {
				target = int(version) - 1
			}
		}
		ms.logger.Warnf("Database is dirty at version %d. Forcing version %d", version, target)
		if forceErr := m.Force(target); forceErr != nil {
			ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", target)
		}
	}

	// the error is returned even after a rollback so the service does not start on a broken schema
	return errors.Wrapf(err, "migration failed at version %d (dirty=%t)", version, dirty)
}

var migrationFile = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

// latestVersion returns the highest version found among the up migrations in folder
func latestVersion(folder string) (int, error) {
	files, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}

	var versions []int
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := migrationFile.FindStringSubmatch(file.Name())
		if len(matches) < 2 {
			continue
		}
		v, err := strconv.Atoi(matches[1])
		if err != nil {
			return 0, err
		}
		versions = append(versions, v)
	}

	if len(versions) == 0 {
		return 0, fmt.Errorf("no migration files found in %s", folder)
	}
	sort.Ints(versions)
	return versions[len(versions)-1], nil
}
