package rdns

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// CacheFile is the persisted state interface the resolver orchestrator
// consumes for fake-IP durability (§6). The core only requires these two
// logical columns; layout beyond that is adapter-defined.
type CacheFile interface {
	PutFakeIPHost(host, ip string) error
	PutFakeIPReverse(ip, host string) error
	GetFakeIPByHost(host string) (ip string, ok bool)
	GetFakeIPByAddr(ip string) (host string, ok bool)
	Close() error
}

// sqliteCacheFile is a pure-Go, file-backed CacheFile using
// modernc.org/sqlite (no cgo). Writes are best-effort: a failed write is
// logged and the in-memory mapping still wins for the lifetime of the
// process, matching §4.G's "writes are best-effort, read-through on misses".
type sqliteCacheFile struct {
	mu   sync.RWMutex
	conn *sql.DB
}

var _ CacheFile = &sqliteCacheFile{}

// OpenCacheFile opens or creates a sqlite-backed cache file at path.
func OpenCacheFile(path string) (*sqliteCacheFile, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache file %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	cf := &sqliteCacheFile{conn: conn}
	if err := cf.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return cf, nil
}

func (cf *sqliteCacheFile) migrate() error {
	_, err := cf.conn.Exec(`
		CREATE TABLE IF NOT EXISTS fakeip_host (
			host TEXT PRIMARY KEY,
			ip   TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS fakeip_ip (
			ip   TEXT PRIMARY KEY,
			host TEXT NOT NULL
		);
	`)
	return err
}

func (cf *sqliteCacheFile) PutFakeIPHost(host, ip string) error {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	_, err := cf.conn.Exec(`INSERT INTO fakeip_host(host, ip) VALUES (?, ?)
		ON CONFLICT(host) DO UPDATE SET ip = excluded.ip`, host, ip)
	if err != nil {
		Log.WithError(err).WithField("host", host).Warn("failed to persist fake-ip host mapping")
	}
	return err
}

func (cf *sqliteCacheFile) PutFakeIPReverse(ip, host string) error {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	_, err := cf.conn.Exec(`INSERT INTO fakeip_ip(ip, host) VALUES (?, ?)
		ON CONFLICT(ip) DO UPDATE SET host = excluded.host`, ip, host)
	if err != nil {
		Log.WithError(err).WithField("ip", ip).Warn("failed to persist fake-ip reverse mapping")
	}
	return err
}

func (cf *sqliteCacheFile) GetFakeIPByHost(host string) (string, bool) {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	var ip string
	err := cf.conn.QueryRow(`SELECT ip FROM fakeip_host WHERE host = ?`, host).Scan(&ip)
	if err != nil {
		return "", false
	}
	return ip, true
}

func (cf *sqliteCacheFile) GetFakeIPByAddr(ip string) (string, bool) {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	var host string
	err := cf.conn.QueryRow(`SELECT host FROM fakeip_ip WHERE ip = ?`, ip).Scan(&host)
	if err != nil {
		return "", false
	}
	return host, true
}

func (cf *sqliteCacheFile) Close() error {
	return cf.conn.Close()
}
