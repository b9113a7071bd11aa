package scylla

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"skillswap-auth/internal/config"
	"skillswap-auth/internal/util"
)

//go:embed schema.cql
var schemaCQL string

// PreparedStatements holds the statements the account repository runs
type PreparedStatements struct {
	InsertAccount     *gocql.Query
	GetAccountByID    *gocql.Query
	UpdateAccount     *gocql.Query
	ClaimEmail        *gocql.Query
	ReleaseEmail      *gocql.Query
	GetAccountByEmail *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Hosts...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.Timeout = scyllaConfig.Timeout
	cluster.ConnectTimeout = scyllaConfig.ConnectTimeout
	cluster.NumConns = scyllaConfig.NumConns
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.MaxRoutingKeyInfo = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Datacenter != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(
			gocql.DCAwareRoundRobinPolicy(scyllaConfig.Datacenter),
		)
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.EnsureSchema(context.Background()); err != nil {
		session.Close()
		return nil, err
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("hosts", scyllaConfig.Hosts),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

// EnsureSchema creates the account tables when missing
func (s *ScyllaClient) EnsureSchema(ctx context.Context) error {
	for _, stmt := range SchemaStatements() {
		if err := s.Session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("failed to apply scylla schema: %w", err)
		}
	}
	return nil
}

// SchemaStatements splits the embedded schema into single statements
func SchemaStatements() []string {
	var out []string
	for _, stmt := range strings.Split(schemaCQL, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.InsertAccount = s.Session.Query(`
    INSERT INTO accounts (
        account_bucket, account_id, name, email, password_hash, password_history,
        password_changed_at, failed_login_attempts, lock_until, mfa_code, mfa_code_expires,
        reset_code, reset_code_expires, created_at, updated_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetAccountByID = s.Session.Query(`
        SELECT account_id, name, email, password_hash, password_history,
            password_changed_at, failed_login_attempts, lock_until, mfa_code, mfa_code_expires,
            reset_code, reset_code_expires, created_at, updated_at
        FROM accounts WHERE account_bucket = ? AND account_id = ?`)

	prepared.UpdateAccount = s.Session.Query(`
        UPDATE accounts SET name = ?, email = ?, password_hash = ?, password_history = ?,
            password_changed_at = ?, failed_login_attempts = ?, lock_until = ?,
            mfa_code = ?, mfa_code_expires = ?, reset_code = ?, reset_code_expires = ?,
            updated_at = ?
        WHERE account_bucket = ? AND account_id = ? IF EXISTS`)

	prepared.ClaimEmail = s.Session.Query(`
        INSERT INTO account_email_index (email, account_bucket, account_id, created_at)
        VALUES (?, ?, ?, ?) IF NOT EXISTS`)

	prepared.ReleaseEmail = s.Session.Query(`
        DELETE FROM account_email_index WHERE email = ?`)

	prepared.GetAccountByEmail = s.Session.Query(`
        SELECT account_bucket, account_id FROM account_email_index WHERE email = ?`)

	s.Prepared = prepared
	s.isPrepared = true

	util.Info("ScyllaDB prepared statements created successfully")
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

func (s *ScyllaClient) ScanWithRetry(query *gocql.Query, dest ...interface{}) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if err := query.Scan(dest...); err != nil {
			if err == gocql.ErrNotFound {
				return err
			}
			lastErr = err
			if i < 2 {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}
