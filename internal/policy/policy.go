// Package policy holds the password rules: complexity, reuse, rotation and expiry.
package policy

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"skillswap-auth/internal/models"
)

const (
	MinLength          = 8
	DefaultHistorySize = 5
	DefaultMaxAge      = 90 * 24 * time.Hour

	// Symbols is the set of special characters a password must draw from
	Symbols = "@$!%*?&"
)

// ComplexityMessage is shown to users whose password fails ValidateComplexity
const ComplexityMessage = "Password must be at least 8 characters long and include uppercase, lowercase, number, and special character"

// Comparer checks a candidate password against a stored hash
type Comparer interface {
	Compare(encoded, password string) (bool, error)
}

// ValidateComplexity requires MinLength characters drawn only from letters,
// digits and Symbols, with at least one of each class.
func ValidateComplexity(candidate string) bool {
	if len(candidate) < MinLength {
		return false
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, c := range candidate {
		switch {
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= '0' && c <= '9':
			hasDigit = true
		case strings.ContainsRune(Symbols, c):
			hasSymbol = true
		default:
			return false
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}

type Engine struct {
	comparer    Comparer
	historySize int
	maxAge      time.Duration
	logger      *zap.Logger
}

type Option func(*Engine)

func WithHistorySize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historySize = n
		}
	}
}

func WithMaxAge(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.maxAge = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(comparer Comparer, opts ...Option) *Engine {
	e := &Engine{
		comparer:    comparer,
		historySize: DefaultHistorySize,
		maxAge:      DefaultMaxAge,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) HistorySize() int {
	return e.historySize
}

// IsReused scans hashes in order and stops at the first match. A hash that
// cannot be compared counts as no match.
func (e *Engine) IsReused(candidate string, hashes []string) bool {
	for i, h := range hashes {
		ok, err := e.comparer.Compare(h, candidate)
		if err != nil {
			e.logger.Warn("Skipping unreadable password history entry",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// RecordPasswordChange rotates the current hash into history and installs newHash
func (e *Engine) RecordPasswordChange(account models.Account, newHash string, now time.Time) models.Account {
	next := account.Clone()

	history := next.PasswordHistory
	if account.PasswordHash != "" {
		history = append(history, account.PasswordHash)
	}
	if len(history) > e.historySize {
		history = history[len(history)-e.historySize:]
	}
	next.PasswordHistory = history

	changedAt := now.UTC()
	next.PasswordHash = newHash
	next.PasswordChangedAt = &changedAt
	next.UpdatedAt = changedAt
	return next
}

// IsExpired reports whether the password is at least maxAge old
func (e *Engine) IsExpired(account models.Account, now time.Time) bool {
	return now.Sub(account.PasswordAnchor()) >= e.maxAge
}
