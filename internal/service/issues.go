package service

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/linker-back/internal/db"
)

type Issues struct {
	db *gorm.DB
}

func NewIssues(db *gorm.DB) *Issues {
	return &Issues{db: db}
}

func (s *Issues) IssueExists(ctx context.Context, id uint64) (bool, error) {
	var count int64
	res := s.db.WithContext(ctx).Model(&db.Issue{}).Where("id = ?", id).Count(&count)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "count issues")
	}
	return count > 0, nil
}

// IssueList returns all issues for the link form selector.
func (s *Issues) IssueList(ctx context.Context) ([]db.Issue, error) {
	issues := make([]db.Issue, 0)
	res := s.db.WithContext(ctx).Order("id").Find(&issues)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "find issues")
	}
	return issues, nil
}
