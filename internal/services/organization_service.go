package services

import (
	"context"
	"strings"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/repositories"
)

// ===== DEPARTMENTS =====

type departmentService struct {
	baseService[models.Department]
	departments repositories.DepartmentRepository
}

func NewDepartmentService(deps *ServiceDeps) DepartmentService {
	s := &departmentService{
		baseService: newBaseService[models.Department](deps, deps.Repo.Department(), authz.KindDepartment, "department"),
		departments: deps.Repo.Department(),
	}
	s.onChange = deps.Lookups.InvalidateDepartments
	return s
}

func (s *departmentService) Create(ctx context.Context, actor authz.Actor, req *models.DepartmentCreateRequest) (*models.Department, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionCreate, authz.Resource{Kind: s.kind}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if err := s.checkUnique(ctx, &req.Name, &req.Code, nil); err != nil {
		return nil, err
	}

	department := &models.Department{}
	if err := copyInto(department, req); err != nil {
		return nil, err
	}
	if err := s.create(ctx, department); err != nil {
		return nil, err
	}

	s.deps.Logger.InfoContext(ctx, "Department created", "department_id", department.ID, "code", department.Code)
	return department, nil
}

func (s *departmentService) Update(ctx context.Context, actor authz.Actor, id uint, req *models.DepartmentUpdateRequest) (*models.Department, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	department, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		req.Code = &code
	}
	if err := s.checkUnique(ctx, req.Name, req.Code, &id); err != nil {
		return nil, err
	}

	if err := copyInto(department, req); err != nil {
		return nil, err
	}
	if err := s.save(ctx, department, id); err != nil {
		return nil, err
	}
	return department, nil
}

func (s *departmentService) checkUnique(ctx context.Context, name, code *string, excludeID *uint) error {
	if name != nil {
		if err := s.ensureUnique("name", *name, func() (bool, error) {
			return s.departments.ExistsByName(ctx, nil, *name, excludeID)
		}); err != nil {
			return err
		}
	}
	if code != nil {
		if err := s.ensureUnique("code", *code, func() (bool, error) {
			return s.departments.ExistsByCode(ctx, nil, *code, excludeID)
		}); err != nil {
			return err
		}
	}
	return nil
}

// ===== FACULTY MEMBERS =====

type facultyMemberService struct {
	baseService[models.FacultyMember]
	members repositories.FacultyMemberRepository
}

func NewFacultyMemberService(deps *ServiceDeps) FacultyMemberService {
	return &facultyMemberService{
		baseService: newBaseService[models.FacultyMember](deps, deps.Repo.FacultyMember(), authz.KindFacultyMember, "faculty member"),
		members:     deps.Repo.FacultyMember(),
	}
}

func (s *facultyMemberService) Create(ctx context.Context, actor authz.Actor, req *models.FacultyMemberCreateRequest) (*models.FacultyMember, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionCreate, authz.Resource{Kind: s.kind}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := requireRef(ctx, s.deps.Repo.Department(), "department_id", req.DepartmentID); err != nil {
		return nil, err
	}
	if err := s.ensureUnique("email", req.Email, func() (bool, error) {
		return s.members.ExistsByEmail(ctx, nil, req.Email, nil)
	}); err != nil {
		return nil, err
	}

	member := &models.FacultyMember{}
	if err := copyInto(member, req); err != nil {
		return nil, err
	}
	if err := s.create(ctx, member); err != nil {
		return nil, err
	}
	return s.fetch(ctx, member.ID)
}

func (s *facultyMemberService) Update(ctx context.Context, actor authz.Actor, id uint, req *models.FacultyMemberUpdateRequest) (*models.FacultyMember, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	member, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DepartmentID != nil {
		if err := requireRef(ctx, s.deps.Repo.Department(), "department_id", *req.DepartmentID); err != nil {
			return nil, err
		}
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
		if err := s.ensureUnique("email", email, func() (bool, error) {
			return s.members.ExistsByEmail(ctx, nil, email, &id)
		}); err != nil {
			return nil, err
		}
	}

	if err := copyInto(member, req); err != nil {
		return nil, err
	}
	member.Department = nil
	if err := s.save(ctx, member, id); err != nil {
		return nil, err
	}
	return s.fetch(ctx, id)
}

// ===== SUBJECTS =====

type subjectService struct {
	baseService[models.Subject]
	subjects repositories.SubjectRepository
}

func NewSubjectService(deps *ServiceDeps) SubjectService {
	s := &subjectService{
		baseService: newBaseService[models.Subject](deps, deps.Repo.Subject(), authz.KindSubject, "subject"),
		subjects:    deps.Repo.Subject(),
	}
	s.onChange = deps.Lookups.InvalidateSubjects
	return s
}

func (s *subjectService) Create(ctx context.Context, actor authz.Actor, req *models.SubjectCreateRequest) (*models.Subject, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionCreate, authz.Resource{Kind: s.kind}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if err := requireRef(ctx, s.deps.Repo.Department(), "department_id", req.DepartmentID); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, req.DepartmentID, &req.Name, &req.Code, nil); err != nil {
		return nil, err
	}

	subject := &models.Subject{}
	if err := copyInto(subject, req); err != nil {
		return nil, err
	}
	if err := s.create(ctx, subject); err != nil {
		return nil, err
	}
	return s.fetch(ctx, subject.ID)
}

func (s *subjectService) Update(ctx context.Context, actor authz.Actor, id uint, req *models.SubjectUpdateRequest) (*models.Subject, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	subject, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	departmentID := subject.DepartmentID
	if req.DepartmentID != nil {
		if err := requireRef(ctx, s.deps.Repo.Department(), "department_id", *req.DepartmentID); err != nil {
			return nil, err
		}
		departmentID = *req.DepartmentID
	}
	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		req.Code = &code
	}

	name := req.Name
	if name == nil && req.DepartmentID != nil {
		// moving departments re-checks the current name in the new one
		name = &subject.Name
	}
	if err := s.checkUnique(ctx, departmentID, name, req.Code, &id); err != nil {
		return nil, err
	}

	if err := copyInto(subject, req); err != nil {
		return nil, err
	}
	subject.Department = nil
	if err := s.save(ctx, subject, id); err != nil {
		return nil, err
	}
	return s.fetch(ctx, id)
}

// names are unique per department, codes globally
func (s *subjectService) checkUnique(ctx context.Context, departmentID uint, name, code *string, excludeID *uint) error {
	if name != nil {
		if err := s.ensureUnique("name", *name, func() (bool, error) {
			return s.subjects.ExistsByNameInDepartment(ctx, nil, departmentID, *name, excludeID)
		}); err != nil {
			return err
		}
	}
	if code != nil {
		if err := s.ensureUnique("code", *code, func() (bool, error) {
			return s.subjects.ExistsByCode(ctx, nil, *code, excludeID)
		}); err != nil {
			return err
		}
	}
	return nil
}

// ===== PAPER CATEGORIES =====

type paperCategoryService struct {
	baseService[models.PaperCategory]
	categories repositories.PaperCategoryRepository
}

func NewPaperCategoryService(deps *ServiceDeps) PaperCategoryService {
	s := &paperCategoryService{
		baseService: newBaseService[models.PaperCategory](deps, deps.Repo.PaperCategory(), authz.KindPaperCategory, "paper category"),
		categories:  deps.Repo.PaperCategory(),
	}
	s.onChange = deps.Lookups.InvalidatePaperCategories
	return s
}

func (s *paperCategoryService) Create(ctx context.Context, actor authz.Actor, req *models.PaperCategoryCreateRequest) (*models.PaperCategory, error) {
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

	category := &models.PaperCategory{}
	if err := copyInto(category, req); err != nil {
		return nil, err
	}
	if err := s.create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *paperCategoryService) Update(ctx context.Context, actor authz.Actor, id uint, req *models.PaperCategoryUpdateRequest) (*models.PaperCategory, error) {
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
