package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/browser/browsertest"
	"github.com/jobsweep/backend/internal/domain"
)

func testSession() *domain.Session {
	posted := "2024-05-01"
	return &domain.Session{
		ID: "s1",
		Config: domain.SearchConfig{
			Keywords:  "go developer",
			Location:  "Sydney",
			Country:   "au",
			Platforms: []domain.PlatformID{domain.PlatformSeek, domain.PlatformIndeed},
		},
		Status: domain.SessionStatusCompleted,
		Jobs: []domain.JobRecord{
			{Title: "Go Developer", Company: "Acme", Platform: domain.PlatformSeek, PostedDate: &posted},
			{Title: "Backend Engineer", Company: "Globex", Platform: domain.PlatformIndeed},
		},
	}
}

func TestBackend_PostsSubmission(t *testing.T) {
	var (
		got  map[string]interface{}
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	b := NewBackend(srv.URL+"/api/jobs/bulk", "secret", time.Second)
	err := b.Deliver(context.Background(), testSession(), domain.JobStatistics{TotalJobsFound: 3, UniqueJobsFound: 2})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", auth)
	stats := got["statistics"].(map[string]interface{})
	assert.EqualValues(t, 3, stats["totalJobsFound"])
	assert.EqualValues(t, 2, stats["uniqueJobsFound"])

	cfg := got["scrapingConfig"].(map[string]interface{})
	assert.Equal(t, "go developer", cfg["jobTitle"])
	assert.Equal(t, "au", cfg["country"])
	assert.Equal(t, "Sydney", cfg["location"])
	assert.Len(t, cfg["platforms"], 2)

	jobs := got["jobs"].([]interface{})
	require.Len(t, jobs, 2)
	second := jobs[1].(map[string]interface{})
	assert.Contains(t, second, "postedDate")
	assert.Nil(t, second["postedDate"])
}

func TestBackend_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/rejected") {
			_, _ = w.Write([]byte(`{"success":false,"error":"quota exceeded"}`))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewBackend(srv.URL+"/fail", "", time.Second).Deliver(context.Background(), testSession(), domain.JobStatistics{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")

	err = NewBackend(srv.URL+"/rejected", "", time.Second).Deliver(context.Background(), testSession(), domain.JobStatistics{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewBackend(srv.URL, "", time.Second).Deliver(ctx, testSession(), domain.JobStatistics{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInjector_PushesIntoResultsPage(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.AddTab("https://example.org/other")
	tabID := driver.AddTab("http://localhost:5173/jobs?view=latest")

	inj := NewInjector(driver, "http://localhost:5173/jobs", "jobsweep:jobs", "jobsweep:lastResults")
	require.NoError(t, inj.Deliver(context.Background(), testSession(), domain.JobStatistics{}))

	page, ok := driver.Page(tabID)
	require.True(t, ok)
	require.Len(t, page.Scripts, 1)
	script := page.Scripts[0]
	assert.Contains(t, script, `new CustomEvent("jobsweep:jobs"`)
	assert.Contains(t, script, `localStorage.setItem("jobsweep:lastResults"`)
	assert.Contains(t, script, `"sessionId":"s1"`)
	assert.Contains(t, script, `"totalJobs":2`)
}

func TestInjector_NoResultsPage(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.AddTab("https://example.org/")

	inj := NewInjector(driver, "http://localhost:5173/jobs", "e", "k")
	assert.NoError(t, inj.Deliver(context.Background(), testSession(), domain.JobStatistics{}))
}

func TestService_RunsEveryTarget(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(name string, err error) Target {
		return TargetFunc(func(ctx context.Context, s *domain.Session, stats domain.JobStatistics) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, name)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return err
		})
	}

	svc := NewService(time.Second, zap.NewNop()).
		Add("backend", record("backend", errors.New("unreachable"))).
		Add("results", record("results", nil))
	assert.Equal(t, []string{"backend", "results"}, svc.Targets())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Deliver(ctx, testSession(), domain.JobStatistics{})

	assert.ElementsMatch(t, []string{"backend", "results"}, calls)
}
