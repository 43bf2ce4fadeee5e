package di

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/plugsmith/plugsmith/internal/application/services"
	"github.com/plugsmith/plugsmith/internal/infrastructure/apply"
	"github.com/plugsmith/plugsmith/internal/infrastructure/auth"
	"github.com/plugsmith/plugsmith/internal/infrastructure/backup"
	"github.com/plugsmith/plugsmith/internal/infrastructure/fsutil"
	"github.com/plugsmith/plugsmith/internal/infrastructure/gitremote"
	"github.com/plugsmith/plugsmith/internal/infrastructure/registry"
	"github.com/plugsmith/plugsmith/internal/infrastructure/update"
	"github.com/plugsmith/plugsmith/internal/logging"
)

// DefaultHome is where plugsmith keeps its state unless PLUGSMITH_HOME
// overrides it.
const DefaultHome = "~/.plugsmith"

// Container holds all application dependencies, constructed once at
// process start and passed by reference to whoever needs them. Nothing in
// the codebase resolves services through ambient global lookup.
type Container struct {
	Logger hclog.Logger

	Registry    *registry.Service
	Git         *gitremote.Client
	API         *gitremote.APIClient
	Credentials *auth.FileCredentialStore
	Backups     *backup.Manager
	Engine      *update.Engine
	Executor    *apply.Executor

	Service *services.PluginService
}

// NewContainer creates and wires the dependency container.
func NewContainer(logLevel string) (*Container, error) {
	home := os.Getenv("PLUGSMITH_HOME")
	if home == "" {
		home = DefaultHome
	}
	home = fsutil.ExpandPath(home)

	logger := logging.New(logLevel)

	creds, err := auth.NewFileCredentialStore(home)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	reg := registry.NewService(filepath.Join(home, "plugins"), logger)
	git := gitremote.NewClient(logger)
	api := gitremote.NewAPIClient(logger)
	backups := backup.NewManager(reg, backup.DefaultRetention, logger)
	engine := update.NewEngine(reg, git, logger)
	executor := apply.NewExecutor(reg, git, backups, logger)

	return &Container{
		Logger:      logger,
		Registry:    reg,
		Git:         git,
		API:         api,
		Credentials: creds,
		Backups:     backups,
		Engine:      engine,
		Executor:    executor,
		Service:     services.NewPluginService(reg, engine, executor, backups, git, api, creds, logger),
	}, nil
}
