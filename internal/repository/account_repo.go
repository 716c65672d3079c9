package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bulkwave/bulkwave/internal/domain"
	"github.com/bulkwave/bulkwave/internal/provider"
	"gorm.io/gorm"
)

// CredentialResolver maps a tenant to its sending account. Resolved
// once per job, never per recipient.
type CredentialResolver interface {
	Resolve(ctx context.Context, ownerID string) (provider.Credentials, error)
}

type GormAccountRepo struct {
	db *gorm.DB
}

func NewGormAccountRepo(db *gorm.DB) *GormAccountRepo {
	return &GormAccountRepo{db: db}
}

func (r *GormAccountRepo) Resolve(ctx context.Context, ownerID string) (provider.Credentials, error) {
	trimmed := strings.TrimSpace(ownerID)
	if trimmed == "" {
		return provider.Credentials{}, fmt.Errorf("%w: ownerId is required", domain.ErrValidation)
	}

	var model WAAccountModel
	err := r.db.WithContext(ctx).First(&model, "owner_id = ?", trimmed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return provider.Credentials{}, fmt.Errorf("%w: no messaging account for owner %q", domain.ErrNotFound, trimmed)
	}
	if err != nil {
		return provider.Credentials{}, err
	}

	return provider.Credentials{
		PhoneNumberID: model.PhoneNumberID,
		AccessToken:   model.AccessToken,
	}, nil
}

// StaticCredentialResolver serves one fixed account for every owner;
// used for single-tenant deployments configured via environment.
type StaticCredentialResolver struct {
	creds provider.Credentials
}

func NewStaticCredentialResolver(creds provider.Credentials) (*StaticCredentialResolver, error) {
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid static credentials: %w", err)
	}
	return &StaticCredentialResolver{creds: creds}, nil
}

func (r *StaticCredentialResolver) Resolve(ctx context.Context, ownerID string) (provider.Credentials, error) {
	if strings.TrimSpace(ownerID) == "" {
		return provider.Credentials{}, fmt.Errorf("%w: ownerId is required", domain.ErrValidation)
	}
	return r.creds, nil
}
