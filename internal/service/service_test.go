package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/config"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/events"
	"github.com/issuedesk/issue-service/internal/lifecycle"
	"github.com/issuedesk/issue-service/internal/observability"
	"github.com/issuedesk/issue-service/internal/persistence"
	"github.com/issuedesk/issue-service/internal/repository"
	"github.com/issuedesk/issue-service/internal/repository/sqlite"
)

var testAuthConfig = config.AuthConfig{
	JWTSecret:             "test-secret",
	AccessTokenTTLMinutes: 5,
	BcryptCost:            4,
	MinPasswordLength:     8,
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, event := range r.events {
		out[i] = event.Type
	}
	return out
}

type fixture struct {
	store    *repository.Store
	metrics  *observability.Metrics
	recorder *eventRecorder
	issues   *IssueService
	profiles *ProfileService
	users    *UserService
	auth     *AuthService
	reports  *ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := persistence.OpenSQLite(context.Background(), config.StoreConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "issues.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	store := sqlite.NewStore(db)
	t.Cleanup(func() { _ = store.Close() })

	return newFixtureWithIssues(t, store, store.Issues)
}

func newFixtureWithIssues(t *testing.T, store *repository.Store, issues repository.IssueRepository) *fixture {
	t.Helper()
	return newFixtureWithRepos(t, store, issues, store.History)
}

// newFixtureWithRepos builds services on store with the issue and history repositories
// replaced, sharing store's transactions.
func newFixtureWithRepos(t *testing.T, store *repository.Store, issues repository.IssueRepository, history repository.HistoryRepository) *fixture {
	t.Helper()
	cat := catalog.Default()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	recorder := &eventRecorder{}
	events.SubscribeAll(dispatcher, events.AllIssueEvents, recorder.handle)

	profiles := NewProfileService(store.Profiles, store.Users, cat)
	return &fixture{
		store:    store,
		metrics:  metrics,
		recorder: recorder,
		profiles: profiles,
		issues: NewIssueService(config.IssuesConfig{MaxWriteRetries: 5}, IssueDependencies{
			IssueRepo:   issues,
			CommentRepo: store.Comments,
			HistoryRepo: history,
			UserRepo:    store.Users,
			Tx:          store,
			Engine:      lifecycle.NewEngine(cat),
			Dispatcher:  dispatcher,
			Metrics:     metrics,
		}),
		users: NewUserService(testAuthConfig, UserDependencies{
			UserRepo:       store.Users,
			ProfileRepo:    store.Profiles,
			ProfileService: profiles,
		}),
		auth: NewAuthService(testAuthConfig, AuthDependencies{
			UserRepo:       store.Users,
			ProfileRepo:    store.Profiles,
			ProfileService: profiles,
		}),
		reports: NewReportService(config.ReportsConfig{PDFRowLimit: 50}, ReportDependencies{
			IssueRepo:      issues,
			UserRepo:       store.Users,
			ProfileService: profiles,
			Catalog:        cat,
		}),
	}
}

// account creates an active user with role and returns its actor.
func (f *fixture) account(t *testing.T, username string, role domain.Role) lifecycle.Actor {
	t.Helper()
	created, err := f.users.CreateUser(context.Background(), SystemActor(), AccountInput{
		Username:  username,
		Password:  "password123",
		FirstName: username,
	}, string(role))
	require.NoError(t, err)
	return lifecycle.Actor{UserID: created.User.ID, Role: created.Role}
}

func (f *fixture) raise(t *testing.T, actor lifecycle.Actor, title string) *domain.Issue {
	t.Helper()
	issue, err := f.issues.CreateIssue(context.Background(), actor, lifecycle.IssueFields{
		Title:       title,
		Description: "details for " + title,
	})
	require.NoError(t, err)
	return issue
}

func ptr[T any](v T) *T {
	return &v
}
