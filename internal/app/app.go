// Package app wires every core package into the operations cmd/jin's
// command tree calls: one App per command invocation (spec §5's "one
// command invocation = one process" model), holding already-open
// collaborators rather than re-deriving them per call.
package app

import (
	"os/user"
	"path/filepath"
	"time"

	"github.com/dabstractor/jin/internal/audit"
	"github.com/dabstractor/jin/internal/conflict"
	"github.com/dabstractor/jin/internal/config"
	"github.com/dabstractor/jin/internal/context"
	"github.com/dabstractor/jin/internal/hostvcs"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/merge"
	"github.com/dabstractor/jin/internal/stage"
	"github.com/dabstractor/jin/internal/store"
	"github.com/dabstractor/jin/internal/txn"
	"github.com/dabstractor/jin/internal/workspace"
)

// App bundles the collaborators one `jin` invocation needs, each already
// opened against the same workspace/object store.
type App struct {
	WorkspaceRoot string
	Config        *config.Config

	Store     *store.Store
	Stage     *stage.Index
	Ctx       *context.Manager
	Workspace *workspace.Workspace
	Conflicts *conflict.Manager
	Committer *txn.Committer
	Merge     *merge.Engine
	Host      *hostvcs.Host
	Audit     *audit.Log

	signature store.Signature
}

// Open constructs an App rooted at workspaceRoot, opening (and where
// necessary, creating) every collaborator's on-disk state.
func Open(workspaceRoot string, cfg *config.Config) (*App, error) {
	s, err := store.Open(cfg.JinDir, cfg.LockTimeout)
	if err != nil {
		return nil, err
	}

	host, err := hostvcs.Detect(workspaceRoot)
	if err != nil {
		return nil, err
	}

	idx, err := stage.Open(workspaceRoot, host, cfg.MaxStagedFileSize)
	if err != nil {
		return nil, err
	}

	ctxMgr, err := context.Open(workspaceRoot, s)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.Open(workspaceRoot)
	if err != nil {
		return nil, err
	}

	conflicts, err := conflict.Open(workspaceRoot)
	if err != nil {
		return nil, err
	}

	auditDir := cfg.AuditDir
	if auditDir == "" {
		auditDir = filepath.Join(workspaceRoot, ".jin")
	}
	auditLog, err := audit.Open(filepath.Join(auditDir, "audit.log"))
	if err != nil {
		return nil, err
	}

	return &App{
		WorkspaceRoot: workspaceRoot,
		Config:        cfg,
		Store:         s,
		Stage:         idx,
		Ctx:           ctxMgr,
		Workspace:     ws,
		Conflicts:     conflicts,
		Committer:     txn.New(s),
		Merge:         merge.New(s),
		Host:          host,
		Audit:         auditLog,
		signature:     commitSignature(),
	}, nil
}

// commitSignature derives a committer identity from the OS user account,
// the only identity source available without a host VCS config file to
// read (spec §4.K's audit "user" field draws from the same source).
func commitSignature() store.Signature {
	name := "jin"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	return store.Signature{Name: name, Email: name + "@localhost", When: time.Now()}
}

// ActiveContext loads the active mode/scope and fills in the project
// identity from the host VCS origin, the one piece layer.Context needs
// that internal/context's Manager (by design) does not persist (spec
// §4.H: "Project identity is read once per command invocation via the
// host-VCS boundary ... cached for the command lifetime").
func (a *App) ActiveContext() (layer.Context, error) {
	ctx, err := a.Ctx.Active()
	if err != nil {
		return layer.Context{}, err
	}
	origin, err := a.Host.OriginURL()
	if err != nil {
		return layer.Context{}, jinerr.Wrap(err)
	}
	ctx.Project = context.ProjectIdentity(origin)
	return ctx, nil
}

// Signature is the committer identity used for every commit this App
// creates.
func (a *App) Signature() store.Signature { return a.signature }
