package collision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-github/v58/github"
	"github.com/mkoepf/ghcrpush/internal/gh"
	"github.com/mkoepf/ghcrpush/internal/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	pages        [][]gh.PackageVersionInfo
	listStatus   int
	listErr      error
	deleteStatus int
	deleteErr    error

	listedPages []int
	deletedIDs  []int64
}

func (f *fakeAPI) ListPackageVersionsPage(ctx context.Context, owner, ownerType, packageName string, page, perPage int) ([]gh.PackageVersionInfo, int, error) {
	f.listedPages = append(f.listedPages, page)
	if f.listErr != nil {
		return nil, f.listStatus, f.listErr
	}
	status := f.listStatus
	if status == 0 {
		status = http.StatusOK
	}
	if page > len(f.pages) {
		return nil, status, nil
	}
	return f.pages[page-1], status, nil
}

func (f *fakeAPI) DeletePackageVersion(ctx context.Context, owner, ownerType, packageName string, versionID int64) (int, error) {
	f.deletedIDs = append(f.deletedIDs, versionID)
	if f.deleteErr != nil {
		return f.deleteStatus, f.deleteErr
	}
	status := f.deleteStatus
	if status == 0 {
		status = http.StatusNoContent
	}
	return status, nil
}

// page returns n versions with IDs starting at first, none of them tagged.
func page(first int64, n int) []gh.PackageVersionInfo {
	versions := make([]gh.PackageVersionInfo, n)
	for i := range versions {
		id := first + int64(i)
		versions[i] = gh.PackageVersionInfo{ID: id, Name: fmt.Sprintf("sha256:%064d", id)}
	}
	return versions
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func notFoundErr() error {
	return &github.ErrorResponse{
		Response: &http.Response{StatusCode: http.StatusNotFound, Request: httptest.NewRequest(http.MethodGet, "/", nil)},
		Message:  "Not Found",
	}
}

var target = Target{Owner: "acme", OwnerType: "org", Package: "app", Tag: "v1"}

func TestFind_StopsAtFirstMatch(t *testing.T) {
	second := page(101, 100)
	second[2].Tags = []string{"latest", "v1"}
	second[5].Tags = []string{"v1"}

	api := &fakeAPI{pages: [][]gh.PackageVersionInfo{page(1, 100), second, page(201, 100)}}
	r := NewResolver(api, quietLogger())

	v, found, err := r.Find(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(103), v.ID)
	assert.Equal(t, []string{"latest", "v1"}, v.Tags)
	assert.Equal(t, []int{1, 2}, api.listedPages, "page 3 must not be requested")
}

func TestFind_NoMatchScansUntilShortPage(t *testing.T) {
	api := &fakeAPI{pages: [][]gh.PackageVersionInfo{page(1, 100), page(101, 100), page(201, 40)}}
	r := NewResolver(api, quietLogger())

	v, found, err := r.Find(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, v.ID)
	assert.Equal(t, []int{1, 2, 3}, api.listedPages)
}

func TestFind_EmptyPackage(t *testing.T) {
	api := &fakeAPI{}
	r := NewResolver(api, quietLogger())

	_, found, err := r.Find(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, []int{1}, api.listedPages)
}

func TestFind_BoundedByMaxPages(t *testing.T) {
	pages := make([][]gh.PackageVersionInfo, 5)
	for i := range pages {
		pages[i] = page(int64(i*100+1), 100)
	}
	pages[4][0].Tags = []string{"v1"}

	api := &fakeAPI{pages: pages}
	r := NewResolver(api, quietLogger())
	r.MaxPages = 3

	_, found, err := r.Find(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, []int{1, 2, 3}, api.listedPages)
}

func TestFind_Errors(t *testing.T) {
	tests := []struct {
		name       string
		api        *fakeAPI
		wantErr    bool
		wantStatus int
	}{
		{
			name:    "not found is no match",
			api:     &fakeAPI{listErr: fmt.Errorf("failed to list package versions: %w", notFoundErr()), listStatus: 404},
			wantErr: false,
		},
		{
			name:       "forbidden",
			api:        &fakeAPI{listErr: errors.New("403 Forbidden"), listStatus: 403},
			wantErr:    true,
			wantStatus: 403,
		},
		{
			name:       "unexpected success status",
			api:        &fakeAPI{listStatus: http.StatusAccepted, pages: [][]gh.PackageVersionInfo{page(1, 3)}},
			wantErr:    true,
			wantStatus: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.api, quietLogger())

			_, found, err := r.Find(context.Background(), target)
			assert.False(t, found)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			var qErr *QueryError
			require.ErrorAs(t, err, &qErr)
			assert.Equal(t, 1, qErr.Page)
			assert.Equal(t, tt.wantStatus, qErr.Status)
		})
	}
}

func TestResolve_DeletesMatch(t *testing.T) {
	versions := page(40, 5)
	versions[2].Tags = []string{"v1"}

	api := &fakeAPI{pages: [][]gh.PackageVersionInfo{versions}}
	r := NewResolver(api, quietLogger())

	id, deleted, err := r.Resolve(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, []int64{42}, api.deletedIDs)
}

func TestResolve_NoMatchDeletesNothing(t *testing.T) {
	api := &fakeAPI{pages: [][]gh.PackageVersionInfo{page(1, 10)}}
	r := NewResolver(api, quietLogger())

	_, deleted, err := r.Resolve(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, api.deletedIDs)
}

func TestResolve_DeleteErrors(t *testing.T) {
	tagged := page(7, 1)
	tagged[0].Tags = []string{"v1"}

	tests := []struct {
		name    string
		status  int
		err     error
		wantErr bool
	}{
		{name: "204 is success", status: http.StatusNoContent},
		{name: "200 is a failure", status: http.StatusOK, wantErr: true},
		{name: "not found is tolerated", status: http.StatusNotFound, err: notFoundErr()},
		{name: "forbidden", status: http.StatusForbidden, err: errors.New("403 Forbidden"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{
				pages:        [][]gh.PackageVersionInfo{tagged},
				deleteStatus: tt.status,
				deleteErr:    tt.err,
			}
			r := NewResolver(api, quietLogger())

			id, _, err := r.Resolve(context.Background(), target)
			assert.Equal(t, int64(7), id)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			var dErr *DeleteError
			require.ErrorAs(t, err, &dErr)
			assert.Equal(t, int64(7), dErr.VersionID)
			assert.Equal(t, tt.status, dErr.Status)
		})
	}
}

func TestResolve_ListErrorSkipsDelete(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("boom"), listStatus: 500}
	r := NewResolver(api, quietLogger())

	_, _, err := r.Resolve(context.Background(), target)
	var qErr *QueryError
	require.ErrorAs(t, err, &qErr)
	assert.Empty(t, api.deletedIDs)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "unable to query package versions (page 2): unexpected status 202",
		(&QueryError{Page: 2, Status: 202}).Error())
	assert.Equal(t, "unable to delete package version 9: unexpected status 200",
		(&DeleteError{VersionID: 9, Status: 200}).Error())

	inner := errors.New("boom")
	assert.ErrorIs(t, &QueryError{Page: 1, Err: inner}, inner)
	assert.ErrorIs(t, &DeleteError{VersionID: 1, Err: inner}, inner)
}

// TestResolve_GitHubAPI runs the resolver against the packages API fake
// through the real client.
func TestResolve_GitHubAPI(t *testing.T) {
	versions := page(1, 250)
	versions[120].Tags = []string{"v1", "stable"}

	api := testutil.NewPackagesAPI(t, versions)
	client, err := gh.NewClient("test-token")
	require.NoError(t, err)
	require.NoError(t, client.SetBaseURL(api.URL()))

	r := NewResolver(client, quietLogger())

	id, deleted, err := r.Resolve(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, int64(121), id)
	assert.Equal(t, []int64{121}, api.Deleted())
	assert.Equal(t, []string{
		"GET /orgs/acme/packages/container/app/versions?package_type=container&page=1&per_page=100&state=active",
		"GET /orgs/acme/packages/container/app/versions?package_type=container&page=2&per_page=100&state=active",
		"DELETE /orgs/acme/packages/container/app/versions/121",
	}, api.Requests())
}

func TestResolve_GitHubAPIPackageMissing(t *testing.T) {
	api := testutil.NewPackagesAPI(t, nil)
	api.ListStatus = http.StatusNotFound

	client, err := gh.NewClient("test-token")
	require.NoError(t, err)
	require.NoError(t, client.SetBaseURL(api.URL()))

	r := NewResolver(client, quietLogger())
	_, deleted, err := r.Resolve(context.Background(), Target{Owner: "octocat", OwnerType: "user", Package: "app", Tag: "v1"})
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, api.Deleted())
}
