package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgbook/internal/auth"
	"shgbook/internal/core"
	"shgbook/internal/services"
	"shgbook/internal/store"
	"shgbook/internal/store/memory"
)

const (
	adminToken  = "admin-token"
	memberToken = "member-token"
)

type fakeImporter struct {
	year int
	err  error
}

func (f *fakeImporter) Import(_ context.Context, _ core.Actor, year int) (core.YearLedger, error) {
	f.year = year
	if f.err != nil {
		return core.YearLedger{}, f.err
	}
	return core.YearLedger{Year: year}, nil
}

type testServer struct {
	srv      *Server
	repo     *store.Repository
	importer *fakeImporter
}

func newTestServer(t *testing.T, rateLimit int) testServer {
	t.Helper()
	ctx := context.Background()
	repo := store.NewRepository(memory.New(), "g1", core.DefaultMaxAmount)
	_, err := repo.SaveGroupInfo(ctx, core.GroupInfo{NameEN: "Test Group", InterestRate: 0.02, MonthlySaving: 500}, "seed")
	require.NoError(t, err)
	_, err = repo.SaveUser(ctx, core.User{UID: "u-admin", Username: "admin", FullName: "Admin", Role: core.RoleAdmin, Status: core.StatusActive}, "seed")
	require.NoError(t, err)
	_, err = repo.SaveUser(ctx, core.User{UID: "u-member", Username: "meena", FullName: "Meena", Role: core.RoleMember, Status: core.StatusActive}, "seed")
	require.NoError(t, err)

	svc := services.New(services.Deps{Repo: repo, DefaultInterestRate: 0.02})
	verifier := auth.NewStaticVerifier(map[string]string{adminToken: "u-admin", memberToken: "u-member"})
	importer := &fakeImporter{}

	srv, err := NewServer(Options{
		Addr:               ":0",
		Services:           svc,
		Ready:              repo,
		Auth:               auth.NewMiddleware(verifier, repo, nil, WriteError),
		Importer:           importer,
		RateLimitPerMinute: rateLimit,
		HeartbeatInterval:  50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testServer{srv: srv, repo: repo, importer: importer}
}

func (ts testServer) do(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seedYear enrols two members and creates year 2024.
func (ts testServer) seedYear(t *testing.T) {
	t.Helper()
	for _, name := range []string{"Lakshmi", "Meena"} {
		rec := ts.do(t, adminToken, http.MethodPost, "/api/members", memberRequest{Name: name})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := ts.do(t, adminToken, http.MethodPost, "/api/years", addYearRequest{Year: 2024})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, 100)

	rec := ts.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])

	rec = ts.do(t, "", http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "ok", body["checks"].(map[string]any)["store"])

	rec = ts.do(t, "", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), `cache_entries{cache="summaries"}`)
}

func TestAPIRequiresAuthentication(t *testing.T) {
	ts := newTestServer(t, 100)

	rec := ts.do(t, "", http.MethodGet, "/api/years", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decode[errorBody](t, rec).Kind)

	rec = ts.do(t, "wrong", http.MethodGet, "/api/years", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, memberToken, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]any](t, rec)
	assert.Equal(t, "meena", me["username"])
	assert.Equal(t, false, me["isAdmin"])
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	ts := newTestServer(t, 100)
	rec := ts.do(t, adminToken, http.MethodGet, "/api/group", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "Test Group", decode[core.GroupInfo](t, rec).NameEN)
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	ts := newTestServer(t, 100)
	rec := ts.do(t, adminToken, http.MethodGet, "/api/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, rec).Kind)
}

func TestMonthEntryRecalculatesYear(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.seedYear(t)

	rec := ts.do(t, adminToken, http.MethodPut, "/api/years/2024/months/0", monthRequest{
		Entries: []core.RawEntry{{MemberID: 1, Saving: 500, LoanTaken: 10000}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	y := decode[core.YearLedger](t, rec)
	first := y.Months[0].Members[0]
	assert.Equal(t, int64(500), first.Cumulative)
	assert.Equal(t, int64(200), first.CurrentInterest)
	assert.Equal(t, int64(10000), first.Balance)
	assert.Equal(t, int64(10000), y.Months[1].Members[0].OldLoan)
	assert.Equal(t, int64(200), y.Months[1].Members[0].OldInterest)

	rec = ts.do(t, adminToken, http.MethodGet, "/api/years/2024/members/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(10000), decode[core.MemberTotals](t, rec).TotalBorrowed)
}

func TestMonthEntryRejections(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.seedYear(t)

	cases := []struct {
		name   string
		token  string
		path   string
		body   any
		status int
		msg    string
	}{
		{"member cannot edit", memberToken, "/api/years/2024/months/0", monthRequest{}, http.StatusForbidden, "only admins may"},
		{"month out of range", adminToken, "/api/years/2024/months/12", monthRequest{}, http.StatusBadRequest, ""},
		{"negative repayment", adminToken, "/api/years/2024/months/0",
			monthRequest{Entries: []core.RawEntry{{MemberID: 1, LoanRepayment: -1}}}, http.StatusBadRequest, "cannot be negative"},
		{"unknown year", adminToken, "/api/years/2031/months/0", monthRequest{}, http.StatusNotFound, ""},
		{"bad year", adminToken, "/api/years/abc/months/0", monthRequest{}, http.StatusBadRequest, "Invalid year"},
		{"unknown field", adminToken, "/api/years/2024/months/0", map[string]any{"rows": 1}, http.StatusBadRequest, "unknown field"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, tc.token, http.MethodPut, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.msg != "" {
				assert.Contains(t, decode[errorBody](t, rec).Error, tc.msg)
			}
		})
	}
}

func TestSummaryIsCachedAndInvalidatedOnWrite(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.seedYear(t)

	rec := ts.do(t, adminToken, http.MethodGet, "/api/years/2024/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, int64(0), decode[core.YearSummary](t, rec).TotalSavings)

	rec = ts.do(t, adminToken, http.MethodGet, "/api/years/2024/summary", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	rec = ts.do(t, adminToken, http.MethodPut, "/api/years/2024/months/3", monthRequest{
		Entries: []core.RawEntry{{MemberID: 2, Saving: 700}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, adminToken, http.MethodGet, "/api/years/2024/summary", nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, int64(700), decode[core.YearSummary](t, rec).TotalSavings)

	rec = ts.do(t, adminToken, http.MethodGet, "/api/years/2024/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.MemberTotals](t, rec), 2)
}

func TestYearsListingAndCurrent(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.seedYear(t)

	rec := ts.do(t, memberToken, http.MethodGet, "/api/years", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	refs := decode[[]yearRef](t, rec)
	require.Len(t, refs, 1)
	assert.Equal(t, 2024, refs[0].Year)

	rec = ts.do(t, memberToken, http.MethodGet, "/api/years/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec), "exists")

	rec = ts.do(t, adminToken, http.MethodPost, "/api/years", addYearRequest{Year: 2024})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportAndRecalculate(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.seedYear(t)

	rec := ts.do(t, adminToken, http.MethodPost, "/api/years/2024/import", importRequest{
		Months: []core.MonthInput{{MonthIndex: 0, Entries: []core.RawEntry{{MemberID: 1, Saving: 300}}}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(300), decode[core.YearLedger](t, rec).Months[11].Members[0].Cumulative)

	rec = ts.do(t, adminToken, http.MethodPost, "/api/years/2024/recalculate", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, adminToken, http.MethodPost, "/api/years/2024/import/sheets", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2024, ts.importer.year)

	ts.importer.err = core.NotFound("No sheets found for year %d", 2025)
	rec = ts.do(t, adminToken, http.MethodPost, "/api/years/2025/import/sheets", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMemberLifecycle(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.seedYear(t)

	rec := ts.do(t, adminToken, http.MethodPatch, "/api/members/2", memberRequest{Name: "Meenakshi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Meenakshi", decode[core.Member](t, rec).Name)

	rec = ts.do(t, adminToken, http.MethodDelete, "/api/members/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, adminToken, http.MethodGet, "/api/members/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, adminToken, http.MethodGet, "/api/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decode[[]core.Member](t, rec)
	require.Len(t, members, 1)
	assert.Equal(t, 2, members[0].ID)

	rec = ts.do(t, memberToken, http.MethodPost, "/api/members", memberRequest{Name: "X"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClosedGroupBlocksLedgerWrites(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.seedYear(t)

	rec := ts.do(t, adminToken, http.MethodPost, "/api/group/close", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[core.GroupInfo](t, rec).IsClosed)

	rec = ts.do(t, adminToken, http.MethodPut, "/api/years/2024/months/0", monthRequest{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "group is closed", decode[errorBody](t, rec).Error)

	rec = ts.do(t, adminToken, http.MethodPost, "/api/group/reopen", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rate := 0.03
	rec = ts.do(t, adminToken, http.MethodPatch, "/api/group", core.GroupPatch{InterestRate: &rate})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 0.03, decode[core.GroupInfo](t, rec).InterestRate, 1e-9)
}

func TestUserManagement(t *testing.T) {
	ts := newTestServer(t, 100)

	username, role := "kavya", "member"
	rec := ts.do(t, adminToken, http.MethodPost, "/api/users", createUserRequest{
		UID:       "u-kavya",
		UserPatch: core.UserPatch{Username: &username, FullName: strPtr("Kavya"), Role: &role},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, adminToken, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.User](t, rec), 3)

	rec = ts.do(t, memberToken, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, memberToken, http.MethodGet, "/api/users/u-member", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, adminToken, http.MethodPost, "/api/users/u-kavya/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.StatusDisabled, decode[core.User](t, rec).Status)

	rec = ts.do(t, adminToken, http.MethodPost, "/api/users/u-kavya/reactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, adminToken, http.MethodPatch, "/api/users/u-kavya", core.UserPatch{FullName: strPtr("Kavya S")})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Kavya S", decode[core.User](t, rec).FullName)

	rec = ts.do(t, adminToken, http.MethodDelete, "/api/users/u-kavya", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, adminToken, http.MethodDelete, "/api/users/u-admin", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSessionEventsAppearInActivity(t *testing.T) {
	ts := newTestServer(t, 100)

	rec := ts.do(t, memberToken, http.MethodPost, "/api/session/login", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, memberToken, http.MethodGet, "/api/activity?count=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	acts := decode[[]core.Activity](t, rec)
	require.NotEmpty(t, acts)
	assert.Equal(t, core.ActivityLogin, acts[0].Kind())
	assert.Equal(t, "meena", acts[0].User)

	rec = ts.do(t, memberToken, http.MethodGet, "/api/activity?count=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWritesAreRateLimited(t *testing.T) {
	ts := newTestServer(t, 1)

	rec := ts.do(t, memberToken, http.MethodPost, "/api/session/login", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, memberToken, http.MethodPost, "/api/session/logout", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 60, retry, 1)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// Reads are not limited.
	for i := 0; i < 3; i++ {
		rec = ts.do(t, memberToken, http.MethodGet, "/api/me", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestStatusForKinds(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          core.Invalid("x"),
		http.StatusForbidden:           core.Forbidden("x"),
		http.StatusNotFound:            core.NotFound("x"),
		http.StatusInternalServerError: core.Persistence("save year", errors.New("disk full")),
		http.StatusUnauthorized:        &core.Error{Kind: core.KindAuthorization, Err: auth.ErrUnauthenticated},
	}
	for want, err := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
	assert.Equal(t, http.StatusForbidden, statusFor(core.Persistence("save year", errors.New("insufficient permissions"))))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

// openStream connects to an event stream and returns a reader of event names.
func openStream(t *testing.T, hs *httptest.Server, token, path string) func() string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hs.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := hs.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 16)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				events <- name
			}
		}
	}()

	return func() string {
		select {
		case name, ok := <-events:
			require.True(t, ok, "stream closed")
			return name
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
			return ""
		}
	}
}

func TestYearEventsStream(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.seedYear(t)

	hs := httptest.NewServer(ts.srv.Handler)
	defer hs.Close()

	next := openStream(t, hs, memberToken, "/api/years/2024/events")
	assert.Equal(t, "year", next())

	rec := ts.do(t, adminToken, http.MethodPut, "/api/years/2024/months/1", monthRequest{
		Entries: []core.RawEntry{{MemberID: 1, Saving: 100}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "year", next())
}

func TestMemberAndActivityStreams(t *testing.T) {
	ts := newTestServer(t, 100)
	hs := httptest.NewServer(ts.srv.Handler)
	defer hs.Close()

	members := openStream(t, hs, memberToken, "/api/members/events")
	assert.Equal(t, "members", members())
	activity := openStream(t, hs, memberToken, "/api/activity/events?count=5")
	assert.Equal(t, "activity", activity())

	rec := ts.do(t, adminToken, http.MethodPost, "/api/members", memberRequest{Name: "Kavitha"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "members", members())
	assert.Equal(t, "activity", activity())

	rec = ts.do(t, memberToken, http.MethodGet, "/api/activity/events?count=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestYearEventsForMissingYear(t *testing.T) {
	ts := newTestServer(t, 100)
	hs := httptest.NewServer(ts.srv.Handler)
	defer hs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hs.URL+"/api/years/2030/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+adminToken)

	resp, err := hs.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "event: ") {
			assert.Equal(t, "event: missing", sc.Text())
			return
		}
	}
	t.Fatal("stream ended without an event")
}

func TestNewServerRequiresCollaborators(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}

func strPtr(s string) *string { return &s }
