// Package collision finds and removes the package version that already
// carries a tag, so the tag can be pushed again.
package collision

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mkoepf/ghcrpush/internal/display"
	"github.com/mkoepf/ghcrpush/internal/gh"
	"github.com/sirupsen/logrus"
)

// DefaultPageSize is the number of versions requested per page.
const DefaultPageSize = 100

// DefaultMaxPages bounds the scan; versions beyond it are never inspected.
const DefaultMaxPages = 20

// PackageAPI lists and deletes versions of a container package.
type PackageAPI interface {
	ListPackageVersionsPage(ctx context.Context, owner, ownerType, packageName string, page, perPage int) ([]gh.PackageVersionInfo, int, error)
	DeletePackageVersion(ctx context.Context, owner, ownerType, packageName string, versionID int64) (int, error)
}

// QueryError reports a failed version listing other than "not found".
type QueryError struct {
	Page   int
	Status int
	Err    error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unable to query package versions (page %d): %v", e.Page, e.Err)
	}
	return fmt.Sprintf("unable to query package versions (page %d): unexpected status %d", e.Page, e.Status)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// DeleteError reports a version delete that did not answer 204.
type DeleteError struct {
	VersionID int64
	Status    int
	Err       error
}

func (e *DeleteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unable to delete package version %d: %v", e.VersionID, e.Err)
	}
	return fmt.Sprintf("unable to delete package version %d: unexpected status %d", e.VersionID, e.Status)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

// Target identifies the package and tag to resolve.
type Target struct {
	Owner     string
	OwnerType string
	Package   string
	Tag       string
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s:%s", t.Owner, t.Package, t.Tag)
}

// Resolver scans package versions page by page for a tag.
type Resolver struct {
	API      PackageAPI
	Log      logrus.FieldLogger
	PageSize int
	MaxPages int
}

// NewResolver returns a Resolver using the default page size and bound.
func NewResolver(api PackageAPI, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{
		API:      api,
		Log:      log,
		PageSize: DefaultPageSize,
		MaxPages: DefaultMaxPages,
	}
}

// Find returns the first active version carrying t.Tag. Scanning stops at
// the first match, at a short page, or after MaxPages pages. A package that
// does not exist has no versions.
func (r *Resolver) Find(ctx context.Context, t Target) (gh.PackageVersionInfo, bool, error) {
	pageSize := r.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	maxPages := r.MaxPages
	if maxPages < 1 {
		maxPages = DefaultMaxPages
	}

	for page := 1; page <= maxPages; page++ {
		r.Log.Debugf("Listing versions of %s/%s (page %d)", t.Owner, t.Package, page)

		versions, status, err := r.API.ListPackageVersionsPage(ctx, t.Owner, t.OwnerType, t.Package, page, pageSize)
		if err != nil {
			if gh.IsNotFound(err) {
				r.Log.Debugf("Package %s/%s not found", t.Owner, t.Package)
				return gh.PackageVersionInfo{}, false, nil
			}
			return gh.PackageVersionInfo{}, false, &QueryError{Page: page, Status: status, Err: err}
		}
		if status != http.StatusOK {
			return gh.PackageVersionInfo{}, false, &QueryError{Page: page, Status: status}
		}

		for _, v := range versions {
			if v.HasTag(t.Tag) {
				return v, true, nil
			}
		}

		if len(versions) < pageSize {
			return gh.PackageVersionInfo{}, false, nil
		}
	}

	r.Log.Warnf("Stopped looking for %s after %d pages of versions", t, maxPages)
	return gh.PackageVersionInfo{}, false, nil
}

// Resolve deletes the version carrying t.Tag, if any. It reports the ID of
// the deleted version and whether one was deleted.
func (r *Resolver) Resolve(ctx context.Context, t Target) (int64, bool, error) {
	v, found, err := r.Find(ctx, t)
	if err != nil {
		return 0, false, err
	}
	if !found {
		r.Log.Infof("No existing version tagged %s", t.Tag)
		return 0, false, nil
	}

	id := v.ID
	r.Log.Infof("Deleting version %d %s", id, display.FormatTags(v.Tags))

	status, err := r.API.DeletePackageVersion(ctx, t.Owner, t.OwnerType, t.Package, id)
	if err != nil {
		if gh.IsNotFound(err) {
			r.Log.Debugf("Version %d already gone", id)
			return id, false, nil
		}
		return id, false, &DeleteError{VersionID: id, Status: status, Err: err}
	}
	if status != http.StatusNoContent {
		return id, false, &DeleteError{VersionID: id, Status: status}
	}

	return id, true, nil
}
