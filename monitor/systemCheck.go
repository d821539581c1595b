package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/sirupsen/logrus"
)

// CheckStore is what the system check reads and, in fix mode, repairs.
type CheckStore interface {
	Reader
	MaintenanceStore
}

// Environment carries the deployment settings the system check inspects.
type Environment struct {
	Production      bool
	Debug           bool
	SecretKey       string
	AllowedHosts    []string
	DBEngine        string
	MediaRoot       string
	StaticRoot      string
	LogDir          string
	CacheConfigured bool
}

type CheckResult struct {
	Name   string   `json:"name"`
	Issues []string `json:"issues"`
	Fixed  []string `json:"fixed"`
	Notes  []string `json:"notes"`
	Err    string   `json:"error,omitempty"`
}

type CheckReport struct {
	Results []CheckResult `json:"results"`
	Fix     bool          `json:"fix"`
}

// TotalIssues counts issues plus categories that could not complete.
func (r CheckReport) TotalIssues() int {
	n := 0
	for _, c := range r.Results {
		n += len(c.Issues)
		if c.Err != "" {
			n++
		}
	}
	return n
}

type SystemChecker struct {
	store   CheckStore
	env     Environment
	cfg     Config
	logger  *logrus.Logger
	cache   CacheProbe
	verbose bool
}

func NewSystemChecker(store CheckStore, env Environment, cfg Config, logger *logrus.Logger, cache CacheProbe) *SystemChecker {
	return &SystemChecker{store: store, env: env, cfg: cfg, logger: logger, cache: cache}
}

// Run executes the check categories in order. With fix set it repairs what it
// safely can: orphan users, privileged producer accounts, broken networks and
// missing directories.
func (c *SystemChecker) Run(ctx context.Context, fix, verbose bool) CheckReport {
	c.verbose = verbose
	categories := []struct {
		name string
		run  func(context.Context, bool, *CheckResult) error
	}{
		{"Database", c.checkDatabase},
		{"Models", c.checkModels},
		{"Files", c.checkFiles},
		{"Settings", c.checkSettings},
		{"Security", c.checkSecurity},
		{"Performance", c.checkPerformance},
	}
	report := CheckReport{Fix: fix}
	for _, cat := range categories {
		res := CheckResult{Name: cat.name}
		if err := cat.run(ctx, fix, &res); err != nil {
			c.logger.WithFields(logrus.Fields{"module": "monitor", "check": cat.name}).Error(err.Error())
			res.Err = err.Error()
		}
		report.Results = append(report.Results, res)
	}
	return report
}

func (c *SystemChecker) note(res *CheckResult, format string, args ...interface{}) {
	if c.verbose {
		res.Notes = append(res.Notes, fmt.Sprintf(format, args...))
	}
}

func (c *SystemChecker) checkDatabase(ctx context.Context, fix bool, res *CheckResult) error {
	if err := c.store.Ping(ctx); err != nil {
		res.Issues = append(res.Issues, fmt.Sprintf("database connection problem: %v", err))
		return nil
	}
	if c.verbose {
		users, err := c.store.CountUsers(ctx, models.UserQuery{})
		if err != nil {
			return err
		}
		centers, err := c.store.CountCenters(ctx, models.CenterFilter{})
		if err != nil {
			return err
		}
		producers, err := c.store.CountProducers(ctx, models.ProducerFilter{})
		if err != nil {
			return err
		}
		molds, err := c.store.CountMolds(ctx, 0, nil)
		if err != nil {
			return err
		}
		c.note(res, "users: %d", users)
		c.note(res, "centers: %d", centers)
		c.note(res, "producers: %d", producers)
		c.note(res, "molds: %d", molds)
	}
	orphans, err := c.store.CountUsers(ctx, models.UserQuery{Orphans: true})
	if err != nil {
		return err
	}
	if orphans > 0 {
		res.Issues = append(res.Issues, fmt.Sprintf("%d orphan users found", orphans))
		if fix {
			n, err := c.store.DeleteOrphanUsers(ctx)
			if err != nil {
				return err
			}
			res.Fixed = append(res.Fixed, fmt.Sprintf("removed %d orphan users", n))
		}
	}
	return nil
}

func (c *SystemChecker) checkModels(ctx context.Context, fix bool, res *CheckResult) error {
	privileged, err := c.store.CountProducers(ctx, models.ProducerFilter{Privileged: true})
	if err != nil {
		return err
	}
	if privileged > 0 {
		res.Issues = append(res.Issues, fmt.Sprintf("%d producer accounts are a security risk", privileged))
		if fix {
			n, err := c.store.DemotePrivilegedProducerUsers(ctx)
			if err != nil {
				return err
			}
			res.Fixed = append(res.Fixed, fmt.Sprintf("removed admin privileges from %d producer accounts", n))
		}
	}
	dups, err := c.store.DuplicateTaxNumbers(ctx)
	if err != nil {
		return err
	}
	if dups > 0 {
		res.Issues = append(res.Issues, fmt.Sprintf("%d duplicate tax numbers", dups))
	}
	broken, err := c.store.CountBrokenNetworks(ctx)
	if err != nil {
		return err
	}
	if broken > 0 {
		res.Issues = append(res.Issues, fmt.Sprintf("%d broken network relations", broken))
		if fix {
			n, err := c.store.DeleteBrokenNetworks(ctx)
			if err != nil {
				return err
			}
			res.Fixed = append(res.Fixed, fmt.Sprintf("deleted %d broken network relations", n))
		}
	}
	return nil
}

func (c *SystemChecker) checkFiles(ctx context.Context, fix bool, res *CheckResult) error {
	dirs := []struct {
		label string
		path  string
	}{
		{"media", c.env.MediaRoot},
		{"static", c.env.StaticRoot},
		{"log", c.env.LogDir},
	}
	for _, d := range dirs {
		if d.path == "" {
			continue
		}
		_, err := os.Stat(d.path)
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		res.Issues = append(res.Issues, fmt.Sprintf("%s directory not found", d.label))
		if fix {
			if err := os.MkdirAll(d.path, 0o755); err != nil {
				return err
			}
			res.Fixed = append(res.Fixed, fmt.Sprintf("created %s directory", d.label))
		}
	}

	if c.env.MediaRoot == "" {
		return nil
	}
	if _, err := os.Stat(c.env.MediaRoot); err != nil {
		return nil
	}
	referenced, err := c.store.ScanFiles(ctx)
	if err != nil {
		return err
	}
	orphans, err := OrphanMediaFiles(c.env.MediaRoot, referenced)
	if err != nil {
		return err
	}
	if len(orphans) > 0 {
		res.Issues = append(res.Issues, fmt.Sprintf("%d orphan files found", len(orphans)))
		for i, f := range orphans {
			if i == 5 {
				break
			}
			c.note(res, "orphan file: %s", f)
		}
	}
	return nil
}

// OrphanMediaFiles lists files under root, slash separated and relative to
// it, that no record references.
func OrphanMediaFiles(root string, referenced []string) ([]string, error) {
	known := make(map[string]bool, len(referenced))
	for _, r := range referenced {
		known[filepath.ToSlash(strings.TrimPrefix(r, "/"))] = true
	}
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !known[rel] {
			out = append(out, rel)
		}
		return nil
	})
	return out, err
}

func (c *SystemChecker) checkSettings(ctx context.Context, fix bool, res *CheckResult) error {
	if c.env.Debug && c.env.Production {
		res.Issues = append(res.Issues, "DEBUG is enabled in production")
	}
	if c.env.SecretKey == "" || strings.Contains(c.env.SecretKey, "insecure") {
		res.Issues = append(res.Issues, "an insecure SECRET_KEY is in use")
	}
	if !c.env.Debug {
		for _, h := range c.env.AllowedHosts {
			if h == "*" {
				res.Issues = append(res.Issues, `ALLOWED_HOSTS="*" is not safe in production`)
				break
			}
		}
	}
	if !c.env.Debug && strings.EqualFold(c.env.DBEngine, "sqlite") {
		res.Issues = append(res.Issues, "SQLite is not recommended in production")
	}
	return nil
}

func (c *SystemChecker) checkSecurity(ctx context.Context, fix bool, res *CheckResult) error {
	superusers, err := c.store.CountUsers(ctx, models.UserQuery{Superusers: true})
	if err != nil {
		return err
	}
	switch {
	case superusers == 0:
		res.Issues = append(res.Issues, "no superuser found")
	case superusers > 3:
		res.Issues = append(res.Issues, fmt.Sprintf("too many superusers (%d)", superusers))
	}

	if len(c.cfg.WeakPasswords) > 0 {
		users, err := c.store.SampleUsers(ctx, models.UserQuery{}, 10)
		if err != nil {
			return err
		}
		weak := 0
		for _, u := range users {
			for _, pw := range c.cfg.WeakPasswords {
				if u.CheckPassword(pw) {
					weak++
					break
				}
			}
		}
		if weak > 0 {
			res.Issues = append(res.Issues, fmt.Sprintf("%d weak passwords detected", weak))
		}
	}

	staff, err := c.store.CountProducerAdmins(ctx)
	if err != nil {
		return err
	}
	privileged, err := c.store.CountProducers(ctx, models.ProducerFilter{Privileged: true})
	if err != nil {
		return err
	}
	if privileged > 0 {
		res.Issues = append(res.Issues, fmt.Sprintf("%d producer accounts have admin privileges (%d staff)", privileged, staff))
	}
	return nil
}

func (c *SystemChecker) checkPerformance(ctx context.Context, fix bool, res *CheckResult) error {
	molds, err := c.store.CountMolds(ctx, 0, nil)
	if err != nil {
		return err
	}
	if molds > 10000 {
		res.Issues = append(res.Issues, fmt.Sprintf("large tables: ear_molds %d records", molds))
	}
	if !c.env.CacheConfigured {
		res.Issues = append(res.Issues, "cache is not configured")
	} else if c.cache != nil {
		if st := c.cache.Check(ctx); st != CacheHealthy {
			res.Issues = append(res.Issues, "cache round trip failed")
		}
	}
	missing, err := c.store.MissingIndexes(ctx)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		res.Issues = append(res.Issues, "missing indexes: "+strings.Join(missing, ", "))
	}
	return nil
}

// RenderCheckReport writes the system check result as text.
func RenderCheckReport(w io.Writer, r CheckReport, st Style) {
	fmt.Fprintln(w, st.Title("MoldPark system check"))
	for _, res := range r.Results {
		fmt.Fprintf(w, "\n%s check:\n%s\n", res.Name, strings.Repeat("-", 40))
		for _, n := range res.Notes {
			fmt.Fprintf(w, "  %s\n", n)
		}
		if res.Err != "" {
			fmt.Fprintln(w, st.Error("  check failed: "+res.Err))
		}
		if len(res.Issues) == 0 && res.Err == "" {
			fmt.Fprintln(w, st.Success("  no problems found"))
		}
		for _, is := range res.Issues {
			fmt.Fprintln(w, st.Warning("  ! "+is))
		}
		for _, f := range res.Fixed {
			fmt.Fprintln(w, st.Info("  fixed: "+f))
		}
	}
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 50))
	total := r.TotalIssues()
	if total == 0 {
		fmt.Fprintln(w, st.Success("System check complete, no problems found."))
		return
	}
	fmt.Fprintln(w, st.Warning(fmt.Sprintf("%d problems detected.", total)))
	if !r.Fix {
		fmt.Fprintln(w, st.Info("Run with --fix to repair them automatically."))
	}
}

// String renders r without decoration.
func (r CheckReport) String() string {
	var buf bytes.Buffer
	RenderCheckReport(&buf, r, PlainStyle())
	return buf.String()
}
