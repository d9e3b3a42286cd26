package postgres

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"under_score", `under\_score`},
		{`back\slash`, `back\\slash`},
		{`%_\`, `\%\_\\`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerRow{IP: "10.0.0.1", Port: 5500}
	if got := s.Addr(); got != "10.0.0.1:5500" {
		t.Errorf("Addr() = %q, want 10.0.0.1:5500", got)
	}

	r := SearchRow{ServerIP: "192.168.1.20", ServerPort: 5501}
	if got := r.ServerAddr(); got != "192.168.1.20:5501" {
		t.Errorf("ServerAddr() = %q, want 192.168.1.20:5501", got)
	}
}

type fakeRow struct {
	values []any
}

func (f fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch v := d.(type) {
		case *string:
			*v = f.values[i].(string)
		case *int:
			*v = f.values[i].(int)
		case *time.Time:
			*v = f.values[i].(time.Time)
		}
	}
	return nil
}

func TestScanServerSplitsMirrors(t *testing.T) {
	now := time.Now().UTC()
	row := fakeRow{values: []any{
		"srv1", "Haven", "a vault", "10.0.0.1", 5500, 3, "HL", now,
		"tracker.example.com,hltracker.net",
	}}

	s, err := scanServer(row)
	if err != nil {
		t.Fatalf("scanServer: %v", err)
	}
	if len(s.MirrorSources) != 2 || s.MirrorSources[0] != "tracker.example.com" {
		t.Errorf("MirrorSources = %v, want two entries", s.MirrorSources)
	}

	row.values[8] = ""
	s, err = scanServer(row)
	if err != nil {
		t.Fatalf("scanServer: %v", err)
	}
	if s.MirrorSources != nil {
		t.Errorf("MirrorSources = %v, want nil for empty column", s.MirrorSources)
	}
}

// TestStoreRoundTrip exercises the store against a real database. It is
// skipped unless TEST_DATABASE_URL is set.
func TestStoreRoundTrip(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	store, err := New(dbURL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	ctx := context.Background()
	db := store.DB()

	t.Cleanup(func() {
		db.Exec(`DELETE FROM hotline_files WHERE server_id LIKE 'test-%'`)
		db.Exec(`DELETE FROM hotline_servers WHERE unique_id LIKE 'test-%'`)
	})

	if _, err := db.Exec(
		`INSERT INTO hotline_servers (unique_id, name, description, ip, port, user_count, server_type, last_checked_in)
		 VALUES ('test-srv', 'Test Haven', 'round trip', '10.9.9.9', 5500, 1, 'HL', NOW())
		 ON CONFLICT (unique_id) DO NOTHING`); err != nil {
		t.Fatalf("insert server: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO hotline_files (server_id, name, full_path, parent_path, size, is_folder, type_code, creator_code)
		 VALUES ('test-srv', 'Games', '/Files/Games/', '/Files/', 0, TRUE, '', ''),
		        ('test-srv', 'Apeiron.sit', '/Files/Apeiron.sit', '/Files/', 1048576, FALSE, 'SIT!', 'SIT!')`); err != nil {
		t.Fatalf("insert files: %v", err)
	}

	srv, err := store.GetServer(ctx, "test-srv")
	if err != nil {
		t.Fatalf("GetServer: %v", err)
	}
	if srv.Name != "Test Haven" || srv.Addr() != "10.9.9.9:5500" {
		t.Errorf("GetServer = %+v", srv)
	}

	if _, err := store.GetServer(ctx, "test-missing"); err != ErrServerNotFound {
		t.Errorf("GetServer(missing) error = %v, want ErrServerNotFound", err)
	}

	folders, err := store.FolderEntries(ctx, "test-srv", "/Files/")
	if err != nil {
		t.Fatalf("FolderEntries: %v", err)
	}
	if len(folders) != 1 || folders[0].Name != "Games" {
		t.Errorf("FolderEntries = %+v, want the Games folder", folders)
	}

	files, err := store.FileEntries(ctx, "test-srv", "/Files/", 20, 0)
	if err != nil {
		t.Fatalf("FileEntries: %v", err)
	}
	if len(files) != 1 || files[0].Name != "Apeiron.sit" {
		t.Errorf("FileEntries = %+v, want Apeiron.sit", files)
	}

	n, err := store.CountFiles(ctx, "test-srv", "/Files/")
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}
	if n != 1 {
		t.Errorf("CountFiles = %d, want 1", n)
	}

	results, err := store.SearchFiles(ctx, "apeiron", 100)
	if err != nil {
		t.Fatalf("SearchFiles: %v", err)
	}
	found := false
	for _, r := range results {
		if r.ServerID == "test-srv" && r.Name == "Apeiron.sit" {
			found = true
			if r.ServerName != "Test Haven" || r.ServerAddr() != "10.9.9.9:5500" {
				t.Errorf("search join = %+v", r)
			}
		}
	}
	if !found {
		t.Error("SearchFiles did not return the inserted file")
	}

	if _, err := store.Totals(ctx); err != nil {
		t.Fatalf("Totals: %v", err)
	}
}
