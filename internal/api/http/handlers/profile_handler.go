package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/issuedesk/issue-service/internal/api/dto"
	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/service"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	profiles *service.ProfileService
	catalog  *catalog.Catalog
}

// NewProfileHandler constructs handler.
func NewProfileHandler(profiles *service.ProfileService, c *catalog.Catalog) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, catalog: c}
}

// Get GET /profile.
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(p.User, p.Profile, p.Role)})
}

// Update PUT /profile.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, profile, err := h.profiles.UpdateProfile(c.UserContext(), p.User.ID, service.ProfileUpdate{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		PhoneNumber:       req.PhoneNumber,
		Department:        req.Department,
		Bio:               req.Bio,
		ProfilePictureKey: req.ProfilePictureKey,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(user, profile, p.Role)})
}

func (h *ProfileHandler) response(user *domain.User, profile *domain.UserProfile, role domain.Role) dto.ProfileResponse {
	return dto.ProfileResponse{
		User:              userResponse(h.catalog, user, role),
		PhoneNumber:       profile.PhoneNumber,
		Department:        profile.Department,
		Bio:               profile.Bio,
		ProfilePictureKey: profile.ProfilePictureKey,
	}
}
