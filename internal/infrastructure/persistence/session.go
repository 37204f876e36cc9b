package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/notification"
	"github.com/formhub/backend/internal/domain/submission"
	"gorm.io/gorm"
)

// ErrNoTransaction is returned by Commit when the transaction already ended
var ErrNoTransaction = errors.New("persistence: no active transaction")

// GormSessionFactory opens sessions backed by GORM transactions
type GormSessionFactory struct {
	db *gorm.DB
}

// NewGormSessionFactory creates a new GormSessionFactory
func NewGormSessionFactory(db *gorm.DB) *GormSessionFactory {
	return &GormSessionFactory{db: db}
}

// OpenSession begins a transaction. Cancelling ctx aborts it.
func (f *GormSessionFactory) OpenSession(ctx context.Context) (uow.Session, error) {
	tx := f.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("persistence: failed to begin transaction: %w", tx.Error)
	}
	return &GormSession{tx: tx, active: true}, nil
}

// GormSession is a unit of work over one GORM transaction.
// Repositories it hands out are bound to that transaction.
type GormSession struct {
	tx     *gorm.DB
	mu     sync.Mutex
	active bool
	closed bool
}

// Commit commits the transaction
func (s *GormSession) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return uow.ErrSessionClosed
	}
	if !s.active {
		return ErrNoTransaction
	}
	s.active = false
	if err := s.tx.Commit().Error; err != nil {
		return fmt.Errorf("persistence: commit failed: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back twice is a no-op.
func (s *GormSession) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbackLocked()
}

func (s *GormSession) rollbackLocked() error {
	if !s.active {
		return nil
	}
	s.active = false
	if err := s.tx.Rollback().Error; err != nil {
		return fmt.Errorf("persistence: rollback failed: %w", err)
	}
	return nil
}

// Close releases the session, rolling back an open transaction.
// Closing an already closed session is a no-op.
func (s *GormSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rollbackLocked()
}

// IsActive reports whether the transaction is still open
func (s *GormSession) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Users returns the user repository scoped to the current transaction.
func (s *GormSession) Users() identity.UserRepository {
	return NewGormUserRepository(s.tx)
}

// Forms returns the form repository scoped to the current transaction.
func (s *GormSession) Forms() form.FormRepository {
	return NewGormFormRepository(s.tx)
}

// Submissions returns the submission repository scoped to the current transaction.
func (s *GormSession) Submissions() submission.SubmissionRepository {
	return NewGormSubmissionRepository(s.tx)
}

// Files returns the file repository scoped to the current transaction.
func (s *GormSession) Files() submission.FileRepository {
	return NewGormFileRepository(s.tx)
}

// NotificationChannels returns the channel repository scoped to the current transaction.
func (s *GormSession) NotificationChannels() notification.ChannelRepository {
	return NewGormChannelRepository(s.tx)
}

var (
	_ uow.SessionFactory = (*GormSessionFactory)(nil)
	_ uow.Session        = (*GormSession)(nil)
)
