// Package testutil provides shared test utilities for packages that need a
// database or a running node.
package testutil

import (
	"io"
	"log"
	"net"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bbernstein/dmxnet-go/internal/database"
	"github.com/bbernstein/dmxnet-go/internal/database/repositories"
	"github.com/bbernstein/dmxnet-go/internal/services/network"
)

// TestDB holds the test database and repositories.
type TestDB struct {
	DB             *gorm.DB
	ControllerRepo *repositories.ControllerRepository
}

// SetupTestDB creates an in-memory SQLite database for testing.
// It returns a TestDB with all repositories initialized and a cleanup function.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()

	// Each test gets its own named in-memory database
	dsn := "file:" + cuid.New() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	testDB := &TestDB{
		DB:             db,
		ControllerRepo: repositories.NewControllerRepository(db),
	}

	cleanup := func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}

	return testDB, cleanup
}

// QuietLogger returns a logger that discards everything.
func QuietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// TestInterface returns a fixed 10.0.0.2/8 interface for node tests.
func TestInterface(t *testing.T) network.Interface {
	t.Helper()
	mac, _ := net.ParseMAC("de:ad:be:ef:00:01")
	iface, ok := network.NewInterface("eth0", net.ParseIP("10.0.0.2"), net.IPv4Mask(255, 0, 0, 0), mac)
	if !ok {
		t.Fatal("failed to build test interface")
	}
	return iface
}
