package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bbernstein/dmxnet-go/internal/database/models"
)

func TestConnect_MigratesControllers(t *testing.T) {
	DB = nil

	db, err := Connect(Config{URL: ":memory:", MaxIdleConn: 1, MaxOpenConn: 1})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer func() { _ = Close() }()

	if !db.Migrator().HasTable(&models.Controller{}) {
		t.Error("Expected controllers table to exist after Connect")
	}
	for _, column := range []string{"ip", "last_poll", "poll_count", "priority"} {
		if !db.Migrator().HasColumn(&models.Controller{}, column) {
			t.Errorf("Expected column %q on controllers", column)
		}
	}

	// Migrating twice is harmless
	if err := Migrate(db); err != nil {
		t.Errorf("Migrate failed: %v", err)
	}
}

// History written before a restart is readable after it, whichever form
// DATABASE_URL takes.
func TestConnect_HistorySurvivesReconnect(t *testing.T) {
	tests := []struct {
		name string
		url  func(dir string) string
	}{
		{"file prefix", func(dir string) string { return "file:" + filepath.Join(dir, "dmxnet.db") }},
		{"plain nested path", func(dir string) string { return filepath.Join(dir, "var", "lib", "dmxnet.db") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			DB = nil
			url := tt.url(t.TempDir())
			cfg := Config{URL: url, MaxIdleConn: 1, MaxOpenConn: 1}

			db, err := Connect(cfg)
			if err != nil {
				t.Fatalf("Connect failed: %v", err)
			}
			seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			row := models.Controller{ID: "c1", IP: "10.0.0.5", Family: "IPv4", FirstSeen: seen, LastPoll: seen, PollCount: 3}
			if err := db.Create(&row).Error; err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if err := Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			if _, err := os.Stat(strings.TrimPrefix(url, "file:")); err != nil {
				t.Fatalf("Expected database file: %v", err)
			}

			db, err = Connect(cfg)
			if err != nil {
				t.Fatalf("Reconnect failed: %v", err)
			}
			defer func() { _ = Close() }()

			var got models.Controller
			if err := db.First(&got, "ip = ?", "10.0.0.5").Error; err != nil {
				t.Fatalf("Expected stored controller after reconnect: %v", err)
			}
			if got.PollCount != 3 || !got.LastPoll.Equal(seen) {
				t.Errorf("Unexpected controller after reconnect: %+v", got)
			}
		})
	}
}

func TestClose_NilDB(t *testing.T) {
	DB = nil

	if err := Close(); err != nil {
		t.Errorf("Close with nil DB should not error: %v", err)
	}
}

