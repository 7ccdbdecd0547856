package businessflow

import (
	"context"
	"strconv"

	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/repository"
)

// TargetResolver turns a list of target group specs into a deduplicated
// recipient set. Resolution is a pure function of the directory snapshot the
// repository exposes: a user reachable through several specs appears once,
// explicit exclusions and opted-out users are removed, and an empty result is
// an error because a campaign must have at least one recipient to launch.
type TargetResolver interface {
	Resolve(ctx context.Context, tenantID uint, specs []models.TargetGroupSpec, exclusions []uint) ([]*models.DirectoryUser, error)
}

// TargetResolverImpl implements TargetResolver against the directory repository
type TargetResolverImpl struct {
	directoryRepo repository.DirectoryRepository
}

// NewTargetResolver creates a target resolver instance
func NewTargetResolver(directoryRepo repository.DirectoryRepository) TargetResolver {
	return &TargetResolverImpl{directoryRepo: directoryRepo}
}

// Resolve unions all specs, dedupes by user id in first-seen order, then
// subtracts exclusions.
func (r *TargetResolverImpl) Resolve(ctx context.Context, tenantID uint, specs []models.TargetGroupSpec, exclusions []uint) ([]*models.DirectoryUser, error) {
	excluded := make(map[uint]struct{}, len(exclusions))
	for _, id := range exclusions {
		excluded[id] = struct{}{}
	}

	seen := make(map[uint]struct{})
	var resolved []*models.DirectoryUser

	for _, spec := range specs {
		users, err := r.resolveSpec(ctx, tenantID, spec)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			if _, ok := seen[user.ID]; ok {
				continue
			}
			seen[user.ID] = struct{}{}
			if _, ok := excluded[user.ID]; ok {
				continue
			}
			if user.OptedOut != nil && *user.OptedOut {
				continue
			}
			resolved = append(resolved, user)
		}
	}

	if len(resolved) == 0 {
		return nil, NewBusinessError("EMPTY_TARGET_SET", "Target specs resolve to zero recipients", ErrEmptyTargetSet)
	}

	return resolved, nil
}

func (r *TargetResolverImpl) resolveSpec(ctx context.Context, tenantID uint, spec models.TargetGroupSpec) ([]*models.DirectoryUser, error) {
	switch spec.Type {
	case models.TargetGroupSpecDepartment:
		var users []*models.DirectoryUser
		for _, department := range spec.Values {
			exists, err := r.directoryRepo.DepartmentExists(ctx, tenantID, department)
			if err != nil {
				return nil, NewBusinessError("DIRECTORY_LOOKUP_FAILED", "Failed to check department", err)
			}
			if !exists {
				return nil, NewBusinessError("UNKNOWN_DEPARTMENT", "Unknown department: "+department, ErrUnknownDepartment)
			}
			members, err := r.directoryRepo.UsersByDepartment(ctx, tenantID, department)
			if err != nil {
				return nil, NewBusinessError("DIRECTORY_LOOKUP_FAILED", "Failed to list department members", err)
			}
			users = append(users, members...)
		}
		return users, nil

	case models.TargetGroupSpecRole:
		var users []*models.DirectoryUser
		for _, role := range spec.Values {
			exists, err := r.directoryRepo.RoleExists(ctx, tenantID, role)
			if err != nil {
				return nil, NewBusinessError("DIRECTORY_LOOKUP_FAILED", "Failed to check role", err)
			}
			if !exists {
				return nil, NewBusinessError("UNKNOWN_ROLE", "Unknown role: "+role, ErrUnknownRole)
			}
			members, err := r.directoryRepo.UsersByRole(ctx, tenantID, role)
			if err != nil {
				return nil, NewBusinessError("DIRECTORY_LOOKUP_FAILED", "Failed to list role members", err)
			}
			users = append(users, members...)
		}
		return users, nil

	case models.TargetGroupSpecUserList:
		ids := make([]uint, 0, len(spec.Values))
		for _, raw := range spec.Values {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, NewBusinessError("UNKNOWN_USER", "Invalid user id: "+raw, ErrUnknownUser)
			}
			ids = append(ids, uint(id))
		}
		users, err := r.directoryRepo.UsersByIDs(ctx, tenantID, ids)
		if err != nil {
			return nil, NewBusinessError("DIRECTORY_LOOKUP_FAILED", "Failed to list users", err)
		}
		if len(users) != len(ids) {
			return nil, NewBusinessError("UNKNOWN_USER", "User list references unknown users", ErrUnknownUser)
		}
		return users, nil

	default:
		return nil, NewBusinessError("INVALID_SPEC_TYPE", "Invalid target spec type: "+string(spec.Type), ErrInvalidSpecType)
	}
}
