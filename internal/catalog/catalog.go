// Package catalog holds the role, status, priority and category tables used to validate
// issues. A Catalog is loaded once at startup and passed to whoever needs it.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/issuedesk/issue-service/internal/domain"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

//go:embed default.yaml
var defaultYAML []byte

// Entry is a named value with a display label.
type Entry struct {
	Name    string   `yaml:"name"`
	Label   string   `yaml:"label"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Category lists the subcategories allowed under one category key. Aliases are other
// spellings accepted for the key.
type Category struct {
	Key           string   `yaml:"key"`
	Label         string   `yaml:"label"`
	Aliases       []string `yaml:"aliases,omitempty"`
	Subcategories []string `yaml:"subcategories"`
}

type document struct {
	Roles           []Entry    `yaml:"roles"`
	Statuses        []Entry    `yaml:"statuses"`
	Priorities      []Entry    `yaml:"priorities"`
	DefaultPriority string     `yaml:"default_priority"`
	Categories      []Category `yaml:"categories"`
}

// Catalog is an immutable registry of the enumerations issues are validated against.
type Catalog struct {
	roles           map[string]domain.Role
	roleLabels      map[domain.Role]string
	statusLabels    map[domain.IssueStatus]string
	priorityLabels  map[domain.IssuePriority]string
	defaultPriority domain.IssuePriority
	categories      []Category
	categoryIndex   map[string]map[string]struct{}
	categoryAliases map[string]string
}

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default invalid: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path yields the embedded default.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse builds a catalog from YAML. Roles and statuses must be ones the lifecycle knows.
func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		roles:           make(map[string]domain.Role),
		roleLabels:      make(map[domain.Role]string),
		statusLabels:    make(map[domain.IssueStatus]string),
		priorityLabels:  make(map[domain.IssuePriority]string),
		categoryIndex:   make(map[string]map[string]struct{}),
		categoryAliases: make(map[string]string),
	}

	for _, entry := range doc.Roles {
		role := domain.Role(entry.Name)
		if !knownRole(role) {
			return nil, fmt.Errorf("catalog: unknown role %q", entry.Name)
		}
		c.roleLabels[role] = labelOr(entry)
		c.roles[strings.ToLower(entry.Name)] = role
		for _, alias := range entry.Aliases {
			c.roles[strings.ToLower(strings.TrimSpace(alias))] = role
		}
	}
	if len(c.roleLabels) == 0 {
		return nil, fmt.Errorf("catalog: no roles defined")
	}

	for _, entry := range doc.Statuses {
		status := domain.IssueStatus(entry.Name)
		if !status.Valid() {
			return nil, fmt.Errorf("catalog: status %q is not part of the issue lifecycle", entry.Name)
		}
		c.statusLabels[status] = labelOr(entry)
	}
	for _, status := range domain.IssueStatuses {
		if _, ok := c.statusLabels[status]; !ok {
			c.statusLabels[status] = string(status)
		}
	}

	for _, entry := range doc.Priorities {
		priority := domain.IssuePriority(entry.Name)
		if !priority.Valid() {
			return nil, fmt.Errorf("catalog: unknown priority %q", entry.Name)
		}
		c.priorityLabels[priority] = labelOr(entry)
	}
	if len(c.priorityLabels) == 0 {
		return nil, fmt.Errorf("catalog: no priorities defined")
	}
	c.defaultPriority = domain.IssuePriority(doc.DefaultPriority)
	if c.defaultPriority == "" {
		c.defaultPriority = domain.IssuePriorityMedium
	}
	if _, ok := c.priorityLabels[c.defaultPriority]; !ok {
		return nil, fmt.Errorf("catalog: default priority %q not listed", doc.DefaultPriority)
	}

	for _, category := range doc.Categories {
		key := normalizeKey(category.Key)
		if key == "" {
			return nil, fmt.Errorf("catalog: category without key")
		}
		if _, dup := c.categoryIndex[key]; dup {
			return nil, fmt.Errorf("catalog: duplicate category %q", key)
		}
		subs := make(map[string]struct{}, len(category.Subcategories))
		for _, sub := range category.Subcategories {
			subs[sub] = struct{}{}
		}
		category.Key = key
		if category.Label == "" {
			category.Label = key
		}
		c.categoryIndex[key] = subs
		c.categories = append(c.categories, category)
	}
	for _, category := range c.categories {
		for _, alias := range category.Aliases {
			alias = normalizeKey(alias)
			if _, taken := c.categoryIndex[alias]; taken {
				return nil, fmt.Errorf("catalog: category alias %q shadows a category", alias)
			}
			if owner, dup := c.categoryAliases[alias]; dup && owner != category.Key {
				return nil, fmt.Errorf("catalog: category alias %q used twice", alias)
			}
			c.categoryAliases[alias] = category.Key
		}
	}

	return c, nil
}

// NormalizeRole resolves a stored role string (or alias) to a Role.
func (c *Catalog) NormalizeRole(raw string) (domain.Role, bool) {
	role, ok := c.roles[strings.ToLower(strings.TrimSpace(raw))]
	return role, ok
}

// RoleLabel returns the display label for role.
func (c *Catalog) RoleLabel(role domain.Role) string {
	if label, ok := c.roleLabels[role]; ok {
		return label
	}
	return string(role)
}

// IsStatus reports whether raw names a lifecycle status.
func (c *Catalog) IsStatus(raw string) bool {
	_, ok := c.statusLabels[domain.IssueStatus(raw)]
	return ok
}

// StatusLabel returns the display label for status.
func (c *Catalog) StatusLabel(status domain.IssueStatus) string {
	if label, ok := c.statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// IsPriority reports whether raw names an enabled priority.
func (c *Catalog) IsPriority(raw string) bool {
	_, ok := c.priorityLabels[domain.IssuePriority(raw)]
	return ok
}

// PriorityLabel returns the display label for priority.
func (c *Catalog) PriorityLabel(priority domain.IssuePriority) string {
	if label, ok := c.priorityLabels[priority]; ok {
		return label
	}
	return string(priority)
}

// DefaultPriority is applied to issues raised without one.
func (c *Catalog) DefaultPriority() domain.IssuePriority {
	return c.defaultPriority
}

// Categories returns the configured categories in file order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// NormalizeCategory returns the canonical key for raw, resolving aliases. Unknown values
// come back lower-cased and trimmed.
func (c *Catalog) NormalizeCategory(raw string) string {
	key := normalizeKey(raw)
	if canonical, ok := c.categoryAliases[key]; ok {
		return canonical
	}
	return key
}

func normalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateCategory checks that category is known and subcategory belongs to it.
// Both may be empty; a subcategory without a category is rejected.
func (c *Catalog) ValidateCategory(category, subcategory string) error {
	category = c.NormalizeCategory(category)
	subcategory = strings.TrimSpace(subcategory)
	if category == "" {
		if subcategory != "" {
			return apperrors.NewValidationError("subcategory requires a category", map[string]any{"subcategory": subcategory})
		}
		return nil
	}
	subs, ok := c.categoryIndex[category]
	if !ok {
		return apperrors.NewValidationError("unknown category", map[string]any{"category": category})
	}
	if subcategory == "" {
		return nil
	}
	if _, ok := subs[subcategory]; !ok {
		return apperrors.NewValidationError("subcategory not allowed for category", map[string]any{
			"category":    category,
			"subcategory": subcategory,
		})
	}
	return nil
}

func knownRole(role domain.Role) bool {
	switch role {
	case domain.RoleUser, domain.RoleHardware, domain.RoleManager, domain.RoleAdmin:
		return true
	}
	return false
}

func labelOr(entry Entry) string {
	if entry.Label != "" {
		return entry.Label
	}
	return entry.Name
}
