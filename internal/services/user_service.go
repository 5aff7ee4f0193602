package services

import (
	"context"
	"strings"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/repositories"
)

// ===== USER CATEGORIES =====

type userCategoryService struct {
	baseService[models.UserCategory]
	categories repositories.UserCategoryRepository
}

func NewUserCategoryService(deps *ServiceDeps) UserCategoryService {
	s := &userCategoryService{
		baseService: newBaseService[models.UserCategory](deps, deps.Repo.UserCategory(), authz.KindUserCategory, "user category"),
		categories:  deps.Repo.UserCategory(),
	}
	s.onChange = deps.Lookups.InvalidateUserCategories
	return s
}

func (s *userCategoryService) Create(ctx context.Context, actor authz.Actor, req *models.UserCategoryCreateRequest) (*models.UserCategory, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionCreate, authz.Resource{Kind: s.kind}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}
	if err := s.ensureUnique("name", req.Name, func() (bool, error) {
		return s.categories.ExistsByName(ctx, nil, req.Name, nil)
	}); err != nil {
		return nil, err
	}

	category := &models.UserCategory{}
	if err := copyInto(category, req); err != nil {
		return nil, err
	}
	if err := s.create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *userCategoryService) Update(ctx context.Context, actor authz.Actor, id uint, req *models.UserCategoryUpdateRequest) (*models.UserCategory, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	category, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if err := s.ensureUnique("name", *req.Name, func() (bool, error) {
			return s.categories.ExistsByName(ctx, nil, *req.Name, &id)
		}); err != nil {
			return nil, err
		}
	}

	if err := copyInto(category, req); err != nil {
		return nil, err
	}
	if err := s.save(ctx, category, id); err != nil {
		return nil, err
	}
	return category, nil
}

// ===== USERS =====

type userService struct {
	baseService[models.User]
	users repositories.UserRepository
}

func NewUserService(deps *ServiceDeps) UserService {
	s := &userService{
		baseService: newBaseService[models.User](deps, deps.Repo.User(), authz.KindUser, "user"),
		users:       deps.Repo.User(),
	}
	s.onChange = deps.Lookups.InvalidateStats
	return s
}

func (s *userService) Create(ctx context.Context, actor authz.Actor, req *models.UserCreateRequest) (*models.User, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionCreate, authz.Resource{Kind: s.kind}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureUnique("email", req.Email, func() (bool, error) {
		return s.users.ExistsByEmail(ctx, nil, req.Email, nil)
	}); err != nil {
		return nil, err
	}
	if req.UserCategoryID != nil {
		if err := requireRef(ctx, s.deps.Repo.UserCategory(), "user_category_id", *req.UserCategoryID); err != nil {
			return nil, err
		}
	}

	user := &models.User{Role: models.RoleCandidate, Status: models.UserActive}
	if err := copyInto(user, req); err != nil {
		return nil, err
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}

	s.deps.Logger.InfoContext(ctx, "User created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *userService) Get(ctx context.Context, actor authz.Actor, id uint) (*models.User, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionRead, authz.Resource{Kind: s.kind, ID: id, OwnerID: id}); err != nil {
		return nil, err
	}
	return s.fetch(ctx, id)
}

func (s *userService) Update(ctx context.Context, actor authz.Actor, id uint, req *models.UserUpdateRequest) (*models.User, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	user, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
		if err := s.ensureUnique("email", email, func() (bool, error) {
			return s.users.ExistsByEmail(ctx, nil, email, &id)
		}); err != nil {
			return nil, err
		}
	}
	if req.UserCategoryID != nil {
		if err := requireRef(ctx, s.deps.Repo.UserCategory(), "user_category_id", *req.UserCategoryID); err != nil {
			return nil, err
		}
	}

	if err := copyInto(user, req); err != nil {
		return nil, err
	}
	user.UserCategory = nil
	if err := s.save(ctx, user, id); err != nil {
		return nil, err
	}
	return s.fetch(ctx, id)
}

// ResolveExternal returns the local user bound to an identity provider subject,
// creating it the first time the subject signs in.
func (s *userService) ResolveExternal(ctx context.Context, externalID, name, email string, role models.UserRole) (*models.User, error) {
	now := s.deps.now()

	user, err := s.users.GetByExternalID(ctx, nil, externalID)
	if err == nil {
		if err := s.users.TouchLastLogin(ctx, nil, user.ID, now); err != nil {
			s.deps.Logger.WarnContext(ctx, "Failed to record login", "user_id", user.ID, "error", err)
		}
		return user, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, s.mapError(err, 0)
	}

	if !role.IsValid() {
		role = models.RoleCandidate
	}
	if name == "" {
		name = externalID
	}
	email = strings.ToLower(strings.TrimSpace(email))

	subject := externalID
	user = &models.User{
		Name:        name,
		Email:       email,
		ExternalID:  &subject,
		Role:        role,
		Status:      models.UserActive,
		LastLoginAt: &now,
	}
	if err := s.create(ctx, user); err != nil {
		if !isConflict(err) {
			return nil, err
		}
		// another request created it first
		existing, getErr := s.users.GetByExternalID(ctx, nil, externalID)
		if getErr != nil {
			return nil, err
		}
		return existing, nil
	}

	s.deps.Logger.InfoContext(ctx, "User provisioned from identity provider", "user_id", user.ID, "external_id", externalID, "role", role)
	return user, nil
}
