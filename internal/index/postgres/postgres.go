// Package postgres provides a read-only PostgreSQL store over the tables
// maintained by the external tracker/indexer.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"hlbrowse/internal/logging"
	"hlbrowse/internal/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrServerNotFound is returned when a server unique_id has no row.
var ErrServerNotFound = errors.New("server not found")

// Store is a PostgreSQL index store.
type Store struct {
	db *sql.DB
}

// ServerRow maps to the hotline_servers table.
type ServerRow struct {
	UniqueID      string
	Name          string
	Description   string
	IP            string
	Port          int
	UserCount     int
	ServerType    string
	LastCheckedIn time.Time
	MirrorSources []string
}

// Addr returns the server's network address as host:port.
func (s *ServerRow) Addr() string {
	return fmt.Sprintf("%s:%d", s.IP, s.Port)
}

// FileRow maps to the hotline_files table.
type FileRow struct {
	ServerID    string
	Name        string
	FullPath    string
	ParentPath  string
	Size        int64
	IsFolder    bool
	TypeCode    string
	CreatorCode string
}

// SearchRow is a file match joined with its owning server.
type SearchRow struct {
	FileRow
	ServerName string
	ServerIP   string
	ServerPort int
}

// ServerAddr returns the owning server's network address.
func (r *SearchRow) ServerAddr() string {
	return fmt.Sprintf("%s:%d", r.ServerIP, r.ServerPort)
}

// New creates a new PostgreSQL index store.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpdateConnectionMetrics updates the database connection metrics.
func (s *Store) UpdateConnectionMetrics() {
	stats := s.db.Stats()
	metrics.SetDBConnectionsOpen(stats.OpenConnections)
}

// Migrate runs the embedded SQL migration files in lexical order.
func (s *Store) Migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		logging.Info("running migration", zap.String("file", f))
		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}

	return nil
}

// ─── Servers ─────────────────────────────────────────────────────────────────

const serverColumns = `unique_id, name, COALESCE(description, ''), ip, port,
	user_count, COALESCE(server_type, ''), last_checked_in, COALESCE(mirror_sources, '')`

func scanServer(row interface{ Scan(...any) error }) (*ServerRow, error) {
	var s ServerRow
	var mirrors string
	if err := row.Scan(&s.UniqueID, &s.Name, &s.Description, &s.IP, &s.Port,
		&s.UserCount, &s.ServerType, &s.LastCheckedIn, &mirrors); err != nil {
		return nil, err
	}
	if mirrors != "" {
		s.MirrorSources = strings.Split(mirrors, ",")
	}
	return &s, nil
}

// GetServer returns the server with the given unique_id, or ErrServerNotFound.
func (s *Store) GetServer(ctx context.Context, uniqueID string) (*ServerRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_server", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM hotline_servers WHERE unique_id = $1`, uniqueID)
	srv, err := scanServer(row)
	if err == sql.ErrNoRows {
		return nil, ErrServerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query server: %w", err)
	}
	return srv, nil
}

// ListServers returns all real servers ordered by name. Placeholder entries
// and loopback mirrors are excluded, matching the indexer's own filter.
func (s *Store) ListServers(ctx context.Context) ([]*ServerRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_servers", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+serverColumns+` FROM hotline_servers
		 WHERE COALESCE(server_type, '') <> 'FAKE' AND ip NOT LIKE '127.0.0.%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query servers: %w", err)
	}
	defer rows.Close()

	var servers []*ServerRow
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

// ─── Listing ─────────────────────────────────────────────────────────────────

const fileColumns = `server_id, name, full_path, parent_path, COALESCE(size, 0),
	is_folder, COALESCE(type_code, ''), COALESCE(creator_code, '')`

func scanFile(rows *sql.Rows) (FileRow, error) {
	var f FileRow
	err := rows.Scan(&f.ServerID, &f.Name, &f.FullPath, &f.ParentPath,
		&f.Size, &f.IsFolder, &f.TypeCode, &f.CreatorCode)
	return f, err
}

// FolderEntries returns all folders directly under dirPath, sorted by name.
// dirPath must be normalized (leading and trailing separator).
func (s *Store) FolderEntries(ctx context.Context, serverID, dirPath string) ([]FileRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("folder_entries", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM hotline_files
		 WHERE server_id = $1 AND parent_path = $2 AND is_folder
		 ORDER BY name`, serverID, dirPath)
	if err != nil {
		return nil, fmt.Errorf("query folders: %w", err)
	}
	defer rows.Close()

	var folders []FileRow
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// FileEntries returns non-folder entries directly under dirPath, sorted by
// name, windowed by limit/offset.
func (s *Store) FileEntries(ctx context.Context, serverID, dirPath string, limit, offset int) ([]FileRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("file_entries", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM hotline_files
		 WHERE server_id = $1 AND parent_path = $2 AND NOT is_folder
		 ORDER BY name LIMIT $3 OFFSET $4`, serverID, dirPath, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []FileRow
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// CountFiles returns the number of non-folder entries directly under dirPath.
func (s *Store) CountFiles(ctx context.Context, serverID, dirPath string) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("count_files", time.Since(start)) }()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hotline_files
		 WHERE server_id = $1 AND parent_path = $2 AND NOT is_folder`,
		serverID, dirPath).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return count, nil
}

// ─── Search ──────────────────────────────────────────────────────────────────

// escapeLike escapes LIKE metacharacters so they match literally.
func escapeLike(q string) string {
	q = strings.ReplaceAll(q, `\`, `\\`)
	q = strings.ReplaceAll(q, `%`, `\%`)
	q = strings.ReplaceAll(q, `_`, `\_`)
	return q
}

// SearchFiles returns file entries whose name contains the query substring,
// joined with their owning server, ordered by name and capped at limit.
// Matching is case-insensitive (ILIKE).
func (s *Store) SearchFiles(ctx context.Context, query string, limit int) ([]SearchRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("search_files", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT f.server_id, f.name, f.full_path, f.parent_path, COALESCE(f.size, 0),
		        f.is_folder, COALESCE(f.type_code, ''), COALESCE(f.creator_code, ''),
		        srv.name, srv.ip, srv.port
		 FROM hotline_files f
		 JOIN hotline_servers srv ON srv.unique_id = f.server_id
		 WHERE f.name ILIKE '%' || $1 || '%' ESCAPE '\'
		 ORDER BY f.name LIMIT $2`, escapeLike(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	defer rows.Close()

	var results []SearchRow
	for rows.Next() {
		var r SearchRow
		if err := rows.Scan(&r.ServerID, &r.Name, &r.FullPath, &r.ParentPath, &r.Size,
			&r.IsFolder, &r.TypeCode, &r.CreatorCode,
			&r.ServerName, &r.ServerIP, &r.ServerPort); err != nil {
			return nil, fmt.Errorf("scan search: %w", err)
		}
		results = append(results, r)
	}

	logging.Debug("search executed",
		zap.String("query", query),
		zap.Int("rows", len(results)))
	return results, rows.Err()
}

// ─── Stats ───────────────────────────────────────────────────────────────────

// IndexTotals holds whole-index aggregate counts.
type IndexTotals struct {
	Servers    int
	Files      int64
	Folders    int64
	TotalBytes int64
}

// ServerFileCount is a per-server file count and size aggregate.
type ServerFileCount struct {
	UniqueID   string
	ServerName string
	Files      int64
	TotalBytes int64
}

// TypeCount is a per-type-code aggregate.
type TypeCount struct {
	TypeCode   string
	Files      int64
	TotalBytes int64
}

// IndexerRun is one row of the indexer's script_log table.
type IndexerRun struct {
	ScriptName string
	LastRunUTC time.Time
}

// UserSighting is one row of the hotline_users table.
type UserSighting struct {
	ServerName string
	UserName   string
	IconID     int
	SeenAt     time.Time
}

// Totals returns whole-index aggregate counts.
func (s *Store) Totals(ctx context.Context) (*IndexTotals, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("totals", time.Since(start)) }()

	var t IndexTotals
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hotline_servers
		 WHERE COALESCE(server_type, '') <> 'FAKE' AND ip NOT LIKE '127.0.0.%'`).
		Scan(&t.Servers)
	if err != nil {
		return nil, fmt.Errorf("count servers: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FILTER (WHERE NOT is_folder),
		        COUNT(*) FILTER (WHERE is_folder),
		        COALESCE(SUM(size) FILTER (WHERE NOT is_folder), 0)
		 FROM hotline_files`).
		Scan(&t.Files, &t.Folders, &t.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}
	return &t, nil
}

// TopServersByFiles returns the n servers with the most indexed files.
func (s *Store) TopServersByFiles(ctx context.Context, n int) ([]ServerFileCount, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("top_servers", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT f.server_id, srv.name,
		        COUNT(*) FILTER (WHERE NOT f.is_folder),
		        COALESCE(SUM(f.size) FILTER (WHERE NOT f.is_folder), 0)
		 FROM hotline_files f
		 JOIN hotline_servers srv ON srv.unique_id = f.server_id
		 GROUP BY f.server_id, srv.name
		 ORDER BY 3 DESC
		 LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("top servers: %w", err)
	}
	defer rows.Close()

	var result []ServerFileCount
	for rows.Next() {
		var c ServerFileCount
		if err := rows.Scan(&c.UniqueID, &c.ServerName, &c.Files, &c.TotalBytes); err != nil {
			return nil, fmt.Errorf("scan top server: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// TypeBreakdown returns the n most common file type codes by count.
func (s *Store) TypeBreakdown(ctx context.Context, n int) ([]TypeCount, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("type_breakdown", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(NULLIF(type_code, ''), 'none'),
		        COUNT(*), COALESCE(SUM(size), 0)
		 FROM hotline_files
		 WHERE NOT is_folder
		 GROUP BY 1
		 ORDER BY COUNT(*) DESC
		 LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("type breakdown: %w", err)
	}
	defer rows.Close()

	var result []TypeCount
	for rows.Next() {
		var c TypeCount
		if err := rows.Scan(&c.TypeCode, &c.Files, &c.TotalBytes); err != nil {
			return nil, fmt.Errorf("scan type: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// IndexerRuns returns the indexer jobs' last completion times.
func (s *Store) IndexerRuns(ctx context.Context) ([]IndexerRun, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("indexer_runs", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT script_name, last_run_utc FROM script_log ORDER BY script_name`)
	if err != nil {
		return nil, fmt.Errorf("indexer runs: %w", err)
	}
	defer rows.Close()

	var runs []IndexerRun
	for rows.Next() {
		var r IndexerRun
		if err := rows.Scan(&r.ScriptName, &r.LastRunUTC); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecentUsers returns the n most recently sighted users across all servers.
func (s *Store) RecentUsers(ctx context.Context, n int) ([]UserSighting, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("recent_users", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT server_name, user_name, user_icon_id, timestamp
		 FROM hotline_users
		 ORDER BY timestamp DESC
		 LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("recent users: %w", err)
	}
	defer rows.Close()

	var users []UserSighting
	for rows.Next() {
		var u UserSighting
		if err := rows.Scan(&u.ServerName, &u.UserName, &u.IconID, &u.SeenAt); err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
