package service

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/linker-back/internal/db"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/policy"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/validation"
)

const PageSize = 10

var (
	ErrNotFound  = errors.New("link not found")
	ErrForbidden = errors.New("link belongs to another user")
)

var updatableColumns = []string{"url", "title", "description", "position", "issue_id"}

type ValidationError struct {
	Errors validation.Errors
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Errors.Error()
}

type Page struct {
	Items    []db.Link
	Total    int64
	Page     int
	PerPage  int
	LastPage int
}

// Links is the link resource. Every operation takes the acting user
// explicitly and fails with ErrUnauthenticated when it is nil.
type Links struct {
	db        *gorm.DB
	validator *validation.Validator
	logger    *zap.SugaredLogger
}

func NewLinks(db *gorm.DB, issues *Issues, l *zap.SugaredLogger) *Links {
	return &Links{
		db:        db,
		validator: validation.New(issues),
		logger:    l,
	}
}

// List returns one page of the user's links, lowest position first.
// Links without a position come last; ties are broken by id.
func (s *Links) List(ctx context.Context, user *db.User, page int) (*Page, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	if page < 1 {
		page = 1
	}

	w := squirrel.Eq{
		"user_id": user.ID,
	}

	countSQL, countArgs, err := squirrel.Select("COUNT(*)").From("links").Where(w).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build count sql")
	}
	var total int64
	res := s.db.WithContext(ctx).Raw(countSQL, countArgs...).Scan(&total)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "count")
	}

	lastPage := int((total + PageSize - 1) / PageSize)
	if lastPage < 1 {
		lastPage = 1
	}
	result := &Page{
		Items:    []db.Link{},
		Total:    total,
		Page:     page,
		PerPage:  PageSize,
		LastPage: lastPage,
	}
	// pages past the end are empty; this also bounds the offset below
	if page > lastPage {
		return result, nil
	}

	sql, args, err := squirrel.
		Select("id", "url", "title", "description", "position", "issue_id", "user_id", "created_at", "updated_at").
		From("links").
		Where(w).
		OrderBy("position IS NULL", "position", "id").
		Limit(PageSize).
		Offset(uint64((page - 1) * PageSize)).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	res = s.db.WithContext(ctx).Raw(sql, args...).Scan(&result.Items)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}

	return result, nil
}

// Create stores a new link owned by user. Any owner in fields is ignored.
func (s *Links) Create(ctx context.Context, user *db.User, fields map[string]interface{}) (*db.Link, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}

	valid, err := s.validate(ctx, fields)
	if err != nil {
		return nil, err
	}

	model := db.Link{
		UserID: user.ID,
	}
	apply(&model, valid)

	res := s.db.WithContext(ctx).Omit("User", "Issue").Create(&model)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "create link")
	}

	s.logger.Infow("link created", "user_id", user.ID, "link_id", model.ID)
	return &model, nil
}

// Edit fetches a link for editing by its owner.
func (s *Links) Edit(ctx context.Context, user *db.User, linkID uint64) (*db.Link, error) {
	return s.find(ctx, user, linkID, policy.CanEdit)
}

// Update overwrites the validated fields of an owned link. The owner
// never changes.
func (s *Links) Update(ctx context.Context, user *db.User, linkID uint64, fields map[string]interface{}) (*db.Link, error) {
	model, err := s.find(ctx, user, linkID, policy.CanEdit)
	if err != nil {
		return nil, err
	}

	valid, err := s.validate(ctx, fields)
	if err != nil {
		return nil, err
	}
	apply(model, valid)

	res := s.db.WithContext(ctx).Model(model).Select(updatableColumns).Updates(model)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update model")
	}

	s.logger.Infow("link updated", "user_id", user.ID, "link_id", model.ID)
	return model, nil
}

func (s *Links) Delete(ctx context.Context, user *db.User, linkID uint64) error {
	model, err := s.find(ctx, user, linkID, policy.CanDelete)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Delete(&db.Link{}, model.ID)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete link")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Infow("link deleted", "user_id", user.ID, "link_id", model.ID)
	return nil
}

func (s *Links) find(ctx context.Context, user *db.User, linkID uint64, allowed func(*db.User, *db.Link) bool) (*db.Link, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}

	model := db.Link{}
	res := s.db.WithContext(ctx).First(&model, linkID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(res.Error, "get model")
	}

	if !allowed(user, &model) {
		return nil, ErrForbidden
	}
	return &model, nil
}

func (s *Links) validate(ctx context.Context, fields map[string]interface{}) (*validation.Link, error) {
	result, err := s.validator.Link(ctx, fields)
	if err != nil {
		return nil, errors.Wrap(err, "validate")
	}
	if !result.Valid() {
		return nil, &ValidationError{Errors: result.Errors}
	}
	return result.Link, nil
}

func apply(model *db.Link, valid *validation.Link) {
	model.URL = valid.URL
	model.Title = valid.Title
	if valid.DescriptionSet {
		model.Description = valid.Description
	}
	if valid.PositionSet {
		model.Position = valid.Position
	}
	if valid.IssueIDSet {
		model.IssueID = valid.IssueID
	}
}
