package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/pkg/distlock"
	"github.com/ignite/debt-recovery/internal/poller"
	"github.com/ignite/debt-recovery/internal/service/confirmation"
	"github.com/ignite/debt-recovery/internal/service/debts"
	"github.com/ignite/debt-recovery/internal/service/debts/debtstest"
	"github.com/ignite/debt-recovery/internal/service/importer"
	"github.com/ignite/debt-recovery/internal/service/payment"
)

type mockGateway struct {
	err error
}

func (g *mockGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Session{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
}

// mockVerifier accepts the signature "valid" and returns its event.
type mockVerifier struct {
	ev *confirmation.Event
}

func (v *mockVerifier) Verify(_ []byte, sig string) (*confirmation.Event, error) {
	if sig != "valid" {
		return nil, apperr.E(apperr.Authentication, "test", "invalid signature")
	}
	cp := *v.ev
	return &cp, nil
}

type mockS3 struct {
	body string
}

func (m *mockS3) GetObject(_ context.Context, _ *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(m.body))}, nil
}

type testEnv struct {
	repo     *debtstest.Repo
	verifier *mockVerifier
	gateway  *mockGateway
	s3       *mockS3
	router   http.Handler
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	repo := debtstest.New()
	env := &testEnv{
		repo:     repo,
		verifier: &mockVerifier{},
		gateway:  &mockGateway{},
		s3:       &mockS3{},
	}
	lockKey := fmt.Sprintf("api-test-%d", time.Now().UnixNano())
	h := NewHandlers(Deps{
		Debts:     debts.NewService(repo),
		Payments:  payment.NewService(repo, env.gateway, payment.Config{BaseURL: "https://pay.example.com"}),
		Processor: confirmation.NewProcessor(repo, env.verifier),
		Importer: importer.NewRunner(importer.NewReconciler(repo), func() distlock.DistLock {
			return distlock.NewLocalLock(lockKey)
		}),
		Poller:          poller.New(repo, poller.Config{Interval: 5 * time.Millisecond, Timeout: 50 * time.Millisecond}),
		S3:              env.s3,
		AllowPathImport: true,
	})
	env.router = SetupRoutes(h, NewHealthChecker(nil, nil), nil)
	return env
}

func (e *testEnv) seed(email, amount string) int64 {
	return e.repo.Seed(domain.Debt{Name: "Jane", Email: email, Subject: "Invoice 1",
		Amount: decimal.RequireFromString(amount)})
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	var body map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	}
	return rr, body
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGetDebt(t *testing.T) {
	env := setupTestServer(t)
	env.seed("jane@example.com", "120.50")

	rr, body := env.do(t, httptest.NewRequest("GET", "/api/debts/JANE@example.com", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "jane@example.com", body["email"])
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, "120.5", body["amount"])
	require.Contains(t, body, "externalRef")
	assert.Nil(t, body["externalRef"])

	rr, _ = env.do(t, httptest.NewRequest("GET", "/api/debts/nobody@example.com", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, body = env.do(t, httptest.NewRequest("GET", "/api/debts/not-an-email", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, string(apperr.Validation), body["code"])
}

func TestCreatePayment(t *testing.T) {
	env := setupTestServer(t)
	env.seed("jane@example.com", "10.00")

	rr, body := env.do(t, jsonRequest("POST", "/api/payments/create", `{"email":"jane@example.com"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "cs_1", body["sessionId"])
	assert.Equal(t, "https://checkout.example/cs_1", body["redirectUrl"])

	rr, _ = env.do(t, jsonRequest("POST", "/api/payments/create", `{}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = env.do(t, jsonRequest("POST", "/api/payments/create", `{not json`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreatePayment_ProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider apperr.Provider
		status   int
	}{
		{"declined", apperr.CardDeclined, http.StatusPaymentRequired},
		{"rate limited", apperr.RateLimited, http.StatusTooManyRequests},
		{"invalid", apperr.InvalidRequest, http.StatusBadRequest},
		{"unavailable", apperr.Unavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t)
			env.seed("jane@example.com", "10.00")
			env.gateway.err = apperr.External(tt.provider, "test", fmt.Errorf("boom"), "provider said no")

			rr, _ := env.do(t, jsonRequest("POST", "/api/payments/create", `{"email":"jane@example.com"}`))
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestCreatePayment_AlreadyPaid(t *testing.T) {
	env := setupTestServer(t)
	ref := "pi_done"
	env.repo.Seed(domain.Debt{Name: "Jane", Email: "paid@example.com", Subject: "S",
		Amount: decimal.RequireFromString("5"), Status: domain.StatusPaid, ExternalRef: &ref})

	rr, body := env.do(t, jsonRequest("POST", "/api/payments/create", `{"email":"paid@example.com"}`))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, string(apperr.Conflict), body["code"])
}

func webhookRequest(sig string) *http.Request {
	req := httptest.NewRequest("POST", "/api/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	return req
}

func TestStripeWebhook(t *testing.T) {
	env := setupTestServer(t)
	id := env.seed("jane@example.com", "10.00")
	env.verifier.ev = &confirmation.Event{
		ID: "evt_1", Type: confirmation.TypeCheckoutCompleted, Created: time.Now(),
		Metadata:      map[string]string{"debtId": fmt.Sprint(id)},
		PaymentStatus: confirmation.PaymentStatusPaid, Reference: "pi_1",
	}

	rr, body := env.do(t, webhookRequest("valid"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["received"])

	d, err := env.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, d.Status)
	assert.Len(t, env.repo.Payments(id), 1)

	// redelivery is acknowledged and changes nothing
	rr, _ = env.do(t, webhookRequest("valid"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, env.repo.Payments(id), 1)
}

func TestStripeWebhook_Rejected(t *testing.T) {
	env := setupTestServer(t)
	env.verifier.ev = &confirmation.Event{ID: "evt_x", Type: "customer.created"}

	rr, body := env.do(t, webhookRequest(""))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, string(apperr.Authentication), body["code"])

	rr, _ = env.do(t, webhookRequest("forged"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// unrelated event types are acknowledged
	rr, _ = env.do(t, webhookRequest("valid"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStripeWebhook_StoreFailureIsRetryable(t *testing.T) {
	env := setupTestServer(t)
	id := env.seed("jane@example.com", "10.00")
	env.verifier.ev = &confirmation.Event{
		ID: "evt_1", Type: confirmation.TypeCheckoutCompleted,
		Metadata:      map[string]string{"debtId": fmt.Sprint(id)},
		PaymentStatus: confirmation.PaymentStatusPaid, Reference: "pi_1",
	}
	env.repo.FailTransition = func(int64) error { return fmt.Errorf("connection reset") }

	rr, body := env.do(t, webhookRequest("valid"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal server error", body["error"])
}

func uploadRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/debts/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImportDebts_Multipart(t *testing.T) {
	env := setupTestServer(t)

	rr, body := env.do(t, uploadRequest(t, "debts.csv",
		"name,email,debtSubject,debtAmount\nJane,jane@example.com,Invoice,10.50\nBad,not-an-email,X,1\n"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.EqualValues(t, 2, body["totalRows"])
	assert.EqualValues(t, 1, body["created"])
	assert.EqualValues(t, 1, body["invalidRows"])

	d, err := env.repo.FindByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.True(t, d.Amount.Equal(decimal.RequireFromString("10.50")))
}

func TestImportDebts_PathAndS3(t *testing.T) {
	env := setupTestServer(t)

	path := filepath.Join(t.TempDir(), "feed.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,email,debtSubject,debtAmount\nA,a@example.com,S,1\n"), 0o644))

	rr, body := env.do(t, jsonRequest("POST", "/api/debts/import", fmt.Sprintf(`{"path":%q}`, path)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.EqualValues(t, 1, body["created"])

	env.s3.body = "name,email,debtSubject,debtAmount\nA,a@example.com,S,2\n"
	rr, body = env.do(t, jsonRequest("POST", "/api/debts/import", `{"s3Uri":"s3://feeds/debts.csv"}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.EqualValues(t, 1, body["updated"])

	rr, _ = env.do(t, jsonRequest("POST", "/api/debts/import", `{}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = env.do(t, jsonRequest("POST", "/api/debts/import", `{"path":"/tmp/debts.pdf"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAwaitSettlement(t *testing.T) {
	env := setupTestServer(t)
	id := env.seed("jane@example.com", "10.00")

	rr, body := env.do(t, httptest.NewRequest("GET", "/api/debts/jane@example.com/await", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, false, body["settled"])

	_, err := env.repo.TransitionToPaidIfPending(context.Background(), id, "pi_1")
	require.NoError(t, err)

	rr, body = env.do(t, httptest.NewRequest("GET", "/api/debts/jane@example.com/await", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["settled"])
	debt := body["debt"].(map[string]any)
	assert.Equal(t, "PAID", debt["status"])
	assert.Equal(t, "pi_1", debt["externalRef"])
}

func TestListDebts(t *testing.T) {
	env := setupTestServer(t)
	for i := 0; i < 12; i++ {
		env.seed(fmt.Sprintf("user%02d@example.com", i), "10")
	}

	rr, body := env.do(t, httptest.NewRequest("GET", "/api/admin/debts?page=2&limit=5&sortBy=email&sortOrder=asc", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	data := body["data"].([]any)
	require.Len(t, data, 5)
	assert.Equal(t, "user05@example.com", data[0].(map[string]any)["email"])
	assert.Equal(t, []any{}, data[0].(map[string]any)["payments"])

	meta := body["pagination"].(map[string]any)
	assert.EqualValues(t, 12, meta["total"])
	assert.EqualValues(t, 3, meta["totalPages"])
	assert.Equal(t, true, meta["hasMore"])

	rr, _ = env.do(t, httptest.NewRequest("GET", "/api/admin/debts?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = env.do(t, httptest.NewRequest("GET", "/api/admin/debts?sortOrder=sideways", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hc := NewHealthChecker(nil, client)
	router := SetupRoutes(NewHandlers(Deps{}), hc, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "up", status.Checks["redis"].Status)
	assert.Equal(t, "not configured", status.Checks["database"].Message)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	mr.Close()
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"degraded"`)
}

func TestDetermineOverallStatus(t *testing.T) {
	assert.Equal(t, "unhealthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "down", Message: "ping failed"},
	}))
	assert.Equal(t, "healthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "up"}, "redis": {Status: "down", Message: "not configured"},
	}))
	assert.Equal(t, "degraded", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "degraded"},
	}))
}

func TestImportPayRedeliverReimport(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	rr, body := env.do(t, uploadRequest(t, "debts.csv", "name,email,debtSubject,debtAmount\nJane,jane@example.com,Invoice,10.00\n"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.EqualValues(t, 1, body["created"])

	d, err := env.repo.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)

	rr, _ = env.do(t, jsonRequest("POST", "/api/payments/create", `{"email":"jane@example.com"}`))
	require.Equal(t, http.StatusOK, rr.Code)

	env.verifier.ev = &confirmation.Event{
		ID: "evt_9", Type: confirmation.TypeCheckoutCompleted, Created: time.Now(),
		Metadata:      map[string]string{"debtId": fmt.Sprint(d.ID)},
		PaymentStatus: confirmation.PaymentStatusPaid, Reference: "pi_9",
	}
	for i := 0; i < 2; i++ {
		rr, _ = env.do(t, webhookRequest("valid"))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Len(t, env.repo.Payments(d.ID), 1)

	// a later feed updates the details but never reopens the debt
	rr, body = env.do(t, uploadRequest(t, "debts.csv", "name,email,debtSubject,debtAmount\nJane D,jane@example.com,Invoice,20.00\n"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, body["updated"])

	rr, body = env.do(t, httptest.NewRequest("GET", "/api/debts/jane@example.com", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "PAID", body["status"])
	assert.Equal(t, "pi_9", body["externalRef"])
	assert.Equal(t, "Jane D", body["name"])

	rr, _ = env.do(t, jsonRequest("POST", "/api/payments/create", `{"email":"jane@example.com"}`))
	assert.Equal(t, http.StatusConflict, rr.Code)
}
