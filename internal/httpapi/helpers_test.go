package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"hydro360/internal/testutil"
	"hydro360/internal/upload"
	"hydro360/internal/weather"
	"hydro360/models"
	"hydro360/repository"
)

const testSecret = "test-secret"

type testEnv struct {
	t         *testing.T
	store     *repository.Store
	srv       *Server
	handler   http.Handler
	uploadDir string
	notifier  *captureNotifier
}

type envOption func(*Options, **weather.Client)

func withRateLimit(n int) envOption {
	return func(o *Options, _ **weather.Client) { o.RateLimitRequests = n }
}

func withWeather(c *weather.Client) envOption {
	return func(_ *Options, wc **weather.Client) { *wc = c }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store := testutil.OpenStore(t, name)

	dir := t.TempDir()
	uploads, err := upload.NewLocalStore(dir)
	if err != nil {
		t.Fatalf("upload store: %v", err)
	}

	o := Options{JWTSecret: testSecret, BcryptCost: bcrypt.MinCost}
	var wc *weather.Client
	for _, fn := range opts {
		fn(&o, &wc)
	}
	notifier := &captureNotifier{}
	srv := New(store, uploads, wc, o).WithNotifier(notifier)
	return &testEnv{t: t, store: store, srv: srv, handler: srv.Handler(), uploadDir: dir, notifier: notifier}
}

func (e *testEnv) seed(first string, role models.Role, grants ...models.Permission) (*models.User, string) {
	e.t.Helper()
	u := testutil.SeedUser(e.t, e.store.Users, first, role, grants...)
	return u, testutil.GenerateJWTHS256(e.t, testSecret, u.ID, u.Role)
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				e.t.Fatalf("marshal body: %v", err)
			}
			rdr = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createReport(reporter *models.User, title string, typ models.ReportType, prio models.Priority, lat, lng float64) *models.Report {
	e.t.Helper()
	rep, err := e.store.Reports.Create(context.Background(), &models.Report{
		Title:       title,
		Description: "Water has been pouring onto the road since morning.",
		Type:        typ,
		Priority:    prio,
		Location:    models.Location{Lat: lat, Lng: lng},
		ReportedBy:  reporter.Ref(),
	})
	if err != nil {
		e.t.Fatalf("create report: %v", err)
	}
	return rep
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, want, rec.Body.String())
	}
}

func expectMessage(t *testing.T, rec *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	expectStatus(t, rec, status)
	if got := decode[messageResponse](t, rec).Message; got != msg {
		t.Fatalf("message = %q, want %q", got, msg)
	}
}

type sentReset struct {
	userID  string
	token   string
	expires time.Time
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []sentReset
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, u *models.User, token string, expires time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentReset{userID: u.ID, token: token, expires: expires})
	return nil
}

func (n *captureNotifier) last() (sentReset, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentReset{}, false
	}
	return n.sent[len(n.sent)-1], true
}
