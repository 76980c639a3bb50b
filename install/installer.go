package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4/database"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"constructlink/config"
	"constructlink/db"
	"constructlink/models"
	"constructlink/security"
)

// MsgPrivileges is shown when the database user may not create objects.
const MsgPrivileges = "Database user lacks the privileges required to create tables. Grant CREATE privileges (e.g. GRANT ALL ON SCHEMA public TO %s) and try again."

const sqlstateInsufficientPrivilege = "42501"

// Installer provisions the database and marks the installation complete.
type Installer struct {
	// Ping opens a fresh connection and round-trips a trivial query.
	Ping func(ctx context.Context) error
	// Migrate creates the schema and seed data; it must be idempotent.
	Migrate func(ctx context.Context) error

	DB     *gorm.DB
	Users  *db.Repo
	Cfg    config.Install
	DBUser string
	Now    func() time.Time
}

func New(gdb *gorm.DB, cfg config.Config) *Installer {
	dsn := cfg.Database.DSN()
	return &Installer{
		Ping:    PostgresPing(dsn),
		Migrate: PostgresMigrator(dsn),
		DB:      gdb,
		Users:   db.NewRepo(gdb),
		Cfg:     cfg.Install,
		DBUser:  cfg.Database.User,
		Now:     time.Now,
	}
}

// Run executes action. The returned outcome carries the step to show next:
// the following step on success, the action's own step on failure, and the
// submitted step for an unknown action.
func (in *Installer) Run(ctx context.Context, step Step, action string) Outcome {
	switch action {
	case ActionTestDatabase:
		return in.TestConnection(ctx)
	case ActionInstallDatabase:
		return in.InstallSchema(ctx)
	case ActionCompleteInstall:
		return in.Complete(ctx)
	}
	return Outcome{Step: step, Message: fmt.Sprintf("Unknown installer action %q.", action)}
}

func (in *Installer) TestConnection(ctx context.Context) Outcome {
	if err := in.Ping(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("install: connection test failed")
		return Outcome{
			Step:    StepConnection,
			Message: "Database connection failed: " + err.Error(),
		}
	}
	return Outcome{Step: StepSchema, Success: true, Message: "Database connection successful."}
}

// InstallSchema runs the migrations and makes sure an administrator exists.
func (in *Installer) InstallSchema(ctx context.Context) Outcome {
	log := zerolog.Ctx(ctx)
	fail := func(err error) Outcome {
		if isPrivilegeError(err) {
			log.Warn().Err(err).Msg("install: insufficient privileges")
			return Outcome{Step: StepSchema, Message: fmt.Sprintf(MsgPrivileges, in.dbUser())}
		}
		log.Error().Err(err).Msg("install: schema installation failed")
		return Outcome{Step: StepSchema, Message: "Database installation failed: " + err.Error()}
	}

	if err := in.Migrate(ctx); err != nil {
		return fail(err)
	}
	details, err := in.seedAdmin(ctx)
	if err != nil {
		return fail(err)
	}
	return Outcome{
		Step:    StepFinalize,
		Success: true,
		Message: "Database installed successfully.",
		Details: details,
	}
}

func (in *Installer) dbUser() string {
	if in.DBUser == "" {
		return "<user>"
	}
	return in.DBUser
}

func (in *Installer) seedAdmin(ctx context.Context) ([]string, error) {
	ok, err := in.Users.AdminExists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return []string{"Administrator account already present."}, nil
	}

	password := in.Cfg.AdminPassword
	generated := password == ""
	if generated {
		if password, err = security.RandomToken(8); err != nil {
			return nil, err
		}
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin := &models.User{
		Username:     in.Cfg.AdminUsername,
		FullName:     "System Administrator",
		Email:        in.Cfg.AdminEmail,
		Role:         models.RoleSystemAdmin,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := in.Users.CreateUser(ctx, admin); err != nil {
		return nil, fmt.Errorf("create administrator: %w", err)
	}

	details := []string{fmt.Sprintf("Administrator account %q created.", admin.Username)}
	if generated {
		zerolog.Ctx(ctx).Warn().Str("username", admin.Username).Msg("install: generated administrator password, change it after first login")
		details = append(details, "Generated administrator password: "+password+" (change it after first login).")
	}
	return details, nil
}

// Verify lists everything missing for a complete installation.
func (in *Installer) Verify(ctx context.Context) ([]string, error) {
	var missing []string
	m := in.DB.WithContext(ctx).Migrator()
	for _, t := range models.RequiredTables {
		if !m.HasTable(t) {
			missing = append(missing, "Missing table: "+t)
		}
	}
	if len(missing) > 0 {
		// 表不全时无法检查管理员
		return append(missing, "No System Admin user found"), nil
	}
	ok, err := in.Users.AdminExists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		missing = append(missing, "No System Admin user found")
	}
	return missing, nil
}

// Complete verifies the installation and writes the sentinel file.
func (in *Installer) Complete(ctx context.Context) Outcome {
	missing, err := in.Verify(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("install: verification failed")
		return Outcome{Step: StepFinalize, Message: "Installation verification failed: " + err.Error()}
	}
	if len(missing) > 0 {
		return Outcome{Step: StepFinalize, Message: "Installation is incomplete.", Details: missing}
	}
	if err := in.writeSentinel(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", in.Cfg.Sentinel).Msg("install: write sentinel failed")
		return Outcome{Step: StepFinalize, Message: "Could not write installation marker: " + err.Error()}
	}
	zerolog.Ctx(ctx).Info().Str("path", in.Cfg.Sentinel).Msg("install: completed")
	return Outcome{
		Step:     StepDone,
		Success:  true,
		Message:  "Installation completed successfully.",
		Redirect: "/?route=auth/login&installed=1",
	}
}

func (in *Installer) writeSentinel() error {
	if err := os.MkdirAll(filepath.Dir(in.Cfg.Sentinel), 0o755); err != nil {
		return err
	}
	content := "installed_at=" + in.Now().UTC().Format(time.RFC3339) + "\n"
	return os.WriteFile(in.Cfg.Sentinel, []byte(content), 0o644)
}

// IsInstalled holds only when the sentinel exists, every required table
// exists and an active System Admin exists. Any error counts as not installed.
func (in *Installer) IsInstalled(ctx context.Context) bool {
	if _, err := os.Stat(in.Cfg.Sentinel); err != nil {
		return false
	}
	missing, err := in.Verify(ctx)
	return err == nil && len(missing) == 0
}

type DirStatus struct {
	Path     string
	Writable bool
}

// Environment is shown on the first wizard page for information only.
type Environment struct {
	GoVersion string
	OS        string
	Dirs      []DirStatus
}

func (in *Installer) Environment() Environment {
	env := Environment{GoVersion: runtime.Version(), OS: runtime.GOOS + "/" + runtime.GOARCH}
	for _, d := range in.Cfg.WritableDirs {
		env.Dirs = append(env.Dirs, DirStatus{Path: d, Writable: writable(d)})
	}
	return env
}

func writable(dir string) bool {
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return false
	}
	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

func isPrivilegeError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == sqlstateInsufficientPrivilege
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlstateInsufficientPrivilege
	}
	// golang-migrate 的错误不实现 Unwrap
	var dbErr database.Error
	if errors.As(err, &dbErr) {
		return isPrivilegeError(dbErr.OrigErr)
	}
	var dbErrPtr *database.Error
	if errors.As(err, &dbErrPtr) && dbErrPtr != nil {
		return isPrivilegeError(dbErrPtr.OrigErr)
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "access denied")
}
