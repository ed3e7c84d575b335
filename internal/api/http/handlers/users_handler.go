package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/issuedesk/issue-service/internal/api/dto"
	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/service"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

// UsersHandler exposes account administration.
type UsersHandler struct {
	users    *service.UserService
	profiles *service.ProfileService
	catalog  *catalog.Catalog
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService, profiles *service.ProfileService, c *catalog.Catalog) *UsersHandler {
	return &UsersHandler{users: users, profiles: profiles, catalog: c}
}

// List GET /users returns active accounts for the assignment picker.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	summaries, err := h.users.ListActiveUsers(c.UserContext(), p.Actor())
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(summaries))
	for i := range summaries {
		items = append(items, userResponse(h.catalog, &summaries[i].User, summaries[i].Role))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	summary, err := h.users.CreateUser(c.UserContext(), p.Actor(), service.AccountInput{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}, req.Role)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(h.catalog, &summary.User, summary.Role)})
}

// SetRole PUT /users/:id/role.
func (h *UsersHandler) SetRole(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.SetRoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	profile, err := h.profiles.SetRole(c.UserContext(), p.Actor(), id, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"user_id":    profile.UserID,
		"role":       profile.Role,
		"role_label": h.catalog.RoleLabel(profile.Role),
	}})
}

// SetActive PUT /users/:id/active.
func (h *UsersHandler) SetActive(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.SetActiveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Active == nil {
		return apperrors.NewValidationError("active required", nil)
	}
	user, err := h.users.SetActive(c.UserContext(), p.Actor(), id, *req.Active)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":        user.ID,
		"username":  user.Username,
		"is_active": user.IsActive,
	}})
}
