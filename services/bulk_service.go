package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg"
	"github.com/akinalp/custodian/repository"
)

// BulkService, çok satırlı işlemleri eleman eleman uygular.
//
// Semantik best-effort'tur: bir elemanın hatası failed'a yazılır, kalanlar
// işlenmeye devam eder. Elemanlar caller sırasıyla işlenir. Aynı key'e sahip
// elemanlardan ilk başarılı olan kazanır; sonrakiler "duplicate" ile düşer.
//
// Her eleman tek-eleman işlemin yolundan geçer (cache'li repo, lifecycle
// service), dolayısıyla invalidation da aynıdır. Başarısız eleman hiçbir
// invalidation tetiklemez.
type BulkService interface {
	Apply(ctx context.Context, kind models.BulkKind, items []models.BulkItem) *models.BulkOperationResult
}

type bulkService struct {
	users     repository.UserRepository
	lifecycle LifecycleService
	clock     clock.Clock
	log       *zap.Logger
}

// NewBulkService, constructor. users cache'li repo olmalıdır.
func NewBulkService(users repository.UserRepository, lifecycle LifecycleService, clk clock.Clock, log *zap.Logger) BulkService {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &bulkService{users: users, lifecycle: lifecycle, clock: clk, log: log.Named("bulk")}
}

var errDuplicateItem = errors.New("duplicate item in batch")

func (s *bulkService) Apply(ctx context.Context, kind models.BulkKind, items []models.BulkItem) *models.BulkOperationResult {
	result := &models.BulkOperationResult{
		Succeeded: []string{},
		Failed:    []models.BulkFailure{},
	}
	done := make(map[string]bool, len(items))

	for i, item := range items {
		key := item.Key()

		var (
			id  string
			err error
		)
		switch {
		case ctx.Err() != nil:
			err = ctx.Err()
		case key == "":
			err = fmt.Errorf("%w: item %d has no id", pkg.ErrBadRequest, i)
		case done[key]:
			err = errDuplicateItem
		default:
			id, err = s.applyOne(ctx, kind, item)
		}

		if err != nil {
			if key == "" {
				key = fmt.Sprintf("#%d", i)
			}
			result.Failed = append(result.Failed, models.BulkFailure{ID: key, Reason: err.Error()})
			continue
		}

		done[key] = true
		result.Succeeded = append(result.Succeeded, id)
	}

	s.log.Info("bulk operation applied",
		zap.String("kind", string(kind)),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	)
	return result
}

func (s *bulkService) applyOne(ctx context.Context, kind models.BulkKind, item models.BulkItem) (string, error) {
	switch kind {
	case models.BulkCreate:
		return s.create(ctx, item)
	case models.BulkUpdate:
		return item.ID, s.update(ctx, item)
	case models.BulkDelete:
		_, err := s.lifecycle.Transition(ctx, item.ID, models.EventSoftDelete)
		return item.ID, err
	default:
		return "", fmt.Errorf("%w: unknown bulk kind %q", pkg.ErrBadRequest, kind)
	}
}

func (s *bulkService) create(ctx context.Context, item models.BulkItem) (string, error) {
	if item.Create == nil {
		return "", fmt.Errorf("%w: create payload is required", pkg.ErrBadRequest)
	}
	req := *item.Create
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return "", err
	}

	now := s.clock.Now().UTC()
	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.DisplayName != "" {
		user.DisplayName = &req.DisplayName
	}

	if err := s.users.Create(ctx, user); err != nil {
		return "", err
	}
	return user.ID, nil
}

func (s *bulkService) update(ctx context.Context, item models.BulkItem) error {
	_, err := applyProfileUpdate(ctx, s.users, item.ID, item.Update, s.clock.Now())
	return err
}
