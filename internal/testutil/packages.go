package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"github.com/mkoepf/ghcrpush/internal/gh"
)

var versionsPath = regexp.MustCompile(`^/(orgs|users)/([^/]+)/packages/container/([^/]+)/versions(?:/(\d+))?$`)

// PackagesAPI is a fake of the GitHub packages API serving the versions of a
// single container package.
type PackagesAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	versions []gh.PackageVersionInfo
	requests []string
	deleted  []int64

	// ListStatus, when set, is returned for every list request instead of a page.
	ListStatus int
	// DeleteStatus is returned for delete requests (204 when zero).
	DeleteStatus int
}

// NewPackagesAPI starts a fake serving versions, oldest first.
func NewPackagesAPI(t testing.TB, versions []gh.PackageVersionInfo) *PackagesAPI {
	t.Helper()
	api := &PackagesAPI{versions: versions}
	api.server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.server.Close)
	return api
}

// URL returns the API root to pass to gh.Client.SetBaseURL.
func (a *PackagesAPI) URL() string {
	return a.server.URL
}

// Requests returns "METHOD path?query" for every request received.
func (a *PackagesAPI) Requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

// Deleted returns the version IDs that were deleted.
func (a *PackagesAPI) Deleted() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int64(nil), a.deleted...)
}

func (a *PackagesAPI) handle(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	req := r.Method + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		req += "?" + r.URL.RawQuery
	}
	a.requests = append(a.requests, req)

	m := versionsPath.FindStringSubmatch(r.URL.Path)
	if m == nil {
		writeError(w, http.StatusNotFound)
		return
	}

	switch {
	case r.Method == http.MethodGet && m[4] == "":
		a.list(w, r)
	case r.Method == http.MethodDelete && m[4] != "":
		id, _ := strconv.ParseInt(m[4], 10, 64)
		a.delete(w, id)
	default:
		writeError(w, http.StatusMethodNotAllowed)
	}
}

func (a *PackagesAPI) list(w http.ResponseWriter, r *http.Request) {
	if a.ListStatus != 0 && a.ListStatus != http.StatusOK {
		if a.ListStatus >= 400 {
			writeError(w, a.ListStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(a.ListStatus)
		fmt.Fprint(w, "[]")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = 30
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(a.versions) {
		start = len(a.versions)
	}
	if end > len(a.versions) {
		end = len(a.versions)
	}

	type container struct {
		Tags []string `json:"tags"`
	}
	type metadata struct {
		PackageType string    `json:"package_type"`
		Container   container `json:"container"`
	}
	type version struct {
		ID       int64    `json:"id"`
		Name     string   `json:"name"`
		Metadata metadata `json:"metadata"`
	}

	body := make([]version, 0, end-start)
	for _, v := range a.versions[start:end] {
		body = append(body, version{
			ID:       v.ID,
			Name:     v.Name,
			Metadata: metadata{PackageType: "container", Container: container{Tags: v.Tags}},
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (a *PackagesAPI) delete(w http.ResponseWriter, id int64) {
	status := a.DeleteStatus
	if status == 0 {
		status = http.StatusNoContent
	}
	if status >= 400 {
		writeError(w, status)
		return
	}

	a.deleted = append(a.deleted, id)
	w.WriteHeader(status)
}

func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"message": %q}`, http.StatusText(status))
}
