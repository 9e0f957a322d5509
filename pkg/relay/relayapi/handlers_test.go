package relayapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/raffleport/relay/pkg/jobx"
	"github.com/raffleport/relay/pkg/relay"
	"github.com/raffleport/relay/pkg/relay/relayapi"
)

const (
	testAPIKey      = "test-operator-key"
	blockedTestAddr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

var testQueues = relay.QueueNames{Main: "main", Retry: "main-retry"}

// fakeJobs records enqueued jobs and serves stored ones.
type fakeJobs struct {
	enqueued []jobx.Job
	stored   map[string]*jobx.JobInfo
	err      error
}

func (f *fakeJobs) Enqueue(_ context.Context, job jobx.Job) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.enqueued = append(f.enqueued, job)
	return "job-123", nil
}

func (f *fakeJobs) EnqueueDelayed(_ context.Context, job jobx.Job, _ time.Duration) (string, error) {
	return f.Enqueue(context.Background(), job)
}

func (f *fakeJobs) GetJob(_ context.Context, jobID string) (*jobx.JobInfo, error) {
	if info, ok := f.stored[jobID]; ok {
		return info, nil
	}
	return nil, errors.New("not found")
}

// fakeReader serves canned contract state.
type fakeReader struct {
	status  string
	paused  bool
	blocked map[common.Address]bool
}

func (r *fakeReader) RaffleStatus(context.Context, *big.Int) (string, error) {
	return r.status, nil
}

func (r *fakeReader) Paused(context.Context) (bool, error) { return r.paused, nil }

func (r *fakeReader) AccumulatedFees(context.Context) (*big.Int, error) {
	return big.NewInt(42_000_000), nil
}

func (r *fakeReader) IsBlocklisted(_ context.Context, account common.Address) (bool, error) {
	return r.blocked[account], nil
}

func (r *fakeReader) SignerBalance(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

type stubInspector struct{}

func (stubInspector) Counts(_ context.Context, queue string) (jobx.QueueCounts, error) {
	if queue == testQueues.Main {
		return jobx.QueueCounts{Active: 1}, nil
	}
	return jobx.QueueCounts{}, nil
}

func newTestApp(jobs *fakeJobs) *fiber.App {
	monitor := relay.NewMonitor(stubInspector{}, testQueues, nil)
	reader := &fakeReader{
		status:  "open",
		blocked: map[common.Address]bool{common.HexToAddress(blockedTestAddr): true},
	}
	svc := relayapi.NewService(jobs, monitor, reader, testQueues.Main, 6)

	app := fiber.New()
	svc.RegisterRoutes(app, relayapi.APIKeyAuth(testAPIKey))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, apiKey string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func validCreateBody() map[string]interface{} {
	return map[string]interface{}{
		"referenceId":     "42",
		"templateId":      "7",
		"ticketPrice":     "1.50",
		"maxTickets":      100,
		"minTickets":      10,
		"durationSeconds": 3600,
	}
}

func TestCreateRaffle_EnqueuesSingleAttemptJob(t *testing.T) {
	jobs := &fakeJobs{}
	app := newTestApp(jobs)

	resp, body := doJSON(t, app, "POST", "/api/v1/raffles/", validCreateBody(), testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
	if body["jobId"] != "job-123" {
		t.Fatalf("jobId = %v", body["jobId"])
	}
	if body["referenceId"] != "42" {
		t.Fatalf("referenceId echo = %v", body["referenceId"])
	}

	if len(jobs.enqueued) != 1 {
		t.Fatalf("enqueued = %d jobs, want 1", len(jobs.enqueued))
	}
	job := jobs.enqueued[0]
	if job.Type != string(relay.JobCreateRaffle) {
		t.Fatalf("job type = %s", job.Type)
	}
	if job.Queue != testQueues.Main {
		t.Fatalf("job queue = %s, want main", job.Queue)
	}
	if job.MaxAttempts != 1 {
		t.Fatalf("max attempts = %d, want 1 (retries belong to the retry queue)", job.MaxAttempts)
	}
}

func TestCreateRaffle_RejectsInvalidPayload(t *testing.T) {
	jobs := &fakeJobs{}
	app := newTestApp(jobs)

	invalid := validCreateBody()
	invalid["ticketPrice"] = "-1"

	resp, body := doJSON(t, app, "POST", "/api/v1/raffles/", invalid, testAPIKey)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["success"] != false {
		t.Fatalf("success = %v", body["success"])
	}
	if body["error"] != "RELAY_VALIDATION" {
		t.Fatalf("error = %v", body["error"])
	}
	if len(jobs.enqueued) != 0 {
		t.Fatal("invalid payload must not be enqueued")
	}
}

func TestMutatingRoutes_RequireAPIKey(t *testing.T) {
	app := newTestApp(&fakeJobs{})

	resp, body := doJSON(t, app, "POST", "/api/v1/raffles/", validCreateBody(), "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", resp.StatusCode)
	}
	if body["error"] != "UNAUTHORIZED" {
		t.Fatalf("error = %v", body["error"])
	}

	resp, _ = doJSON(t, app, "POST", "/api/v1/raffles/", validCreateBody(), "wrong-key")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status with wrong key = %d, want 401", resp.StatusCode)
	}
}

func TestExecuteRaffle_UsesPathID(t *testing.T) {
	jobs := &fakeJobs{}
	app := newTestApp(jobs)

	resp, body := doJSON(t, app, "POST", "/api/v1/raffles/9/execute", nil, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if body["raffleId"] != "9" {
		t.Fatalf("raffleId echo = %v", body["raffleId"])
	}

	job := jobs.enqueued[0]
	if job.Type != string(relay.JobExecuteRaffle) {
		t.Fatalf("job type = %s", job.Type)
	}
	var payload relay.RafflePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.RaffleID != "9" {
		t.Fatalf("payload = %s", job.Payload)
	}
}

func TestExecuteRaffle_RejectsNonNumericID(t *testing.T) {
	app := newTestApp(&fakeJobs{})

	resp, _ := doJSON(t, app, "POST", "/api/v1/raffles/not-a-number/execute", nil, testAPIKey)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestBlocklistRemove_UsesPathAddress(t *testing.T) {
	jobs := &fakeJobs{}
	app := newTestApp(jobs)

	address := "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	resp, _ := doJSON(t, app, "DELETE", "/api/v1/blocklist/"+address, nil, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if jobs.enqueued[0].Type != string(relay.JobBlocklistRemove) {
		t.Fatalf("job type = %s", jobs.enqueued[0].Type)
	}
}

func TestAdminPause_EnqueuesWithoutBody(t *testing.T) {
	jobs := &fakeJobs{}
	app := newTestApp(jobs)

	resp, _ := doJSON(t, app, "POST", "/api/v1/admin/pause", nil, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if jobs.enqueued[0].Type != string(relay.JobPause) {
		t.Fatalf("job type = %s", jobs.enqueued[0].Type)
	}
}

func TestEnqueueFailure_Returns500(t *testing.T) {
	app := newTestApp(&fakeJobs{err: errors.New("redis down")})

	resp, body := doJSON(t, app, "POST", "/api/v1/raffles/", validCreateBody(), testAPIKey)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if body["error"] != "RELAY_API_ENQUEUE_FAILED" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestQueueHealth_ReportsStatus(t *testing.T) {
	app := newTestApp(&fakeJobs{})

	resp, body := doJSON(t, app, "GET", "/api/v1/queue/health", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "healthy" {
		t.Fatalf("health = %v", body["status"])
	}
	if _, ok := body["queues"]; !ok {
		t.Fatal("snapshot missing per-queue stats")
	}
}

func TestJobStatus_ReturnsStoredJob(t *testing.T) {
	jobs := &fakeJobs{stored: map[string]*jobx.JobInfo{
		"job-9": {ID: "job-9", Type: string(relay.JobCreateRaffle), Status: jobx.JobStatusCompleted},
	}}
	app := newTestApp(jobs)

	resp, body := doJSON(t, app, "GET", "/api/v1/jobs/job-9", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	job, ok := body["job"].(map[string]interface{})
	if !ok {
		t.Fatalf("job field = %v", body["job"])
	}
	if job["status"] != "completed" {
		t.Fatalf("job status = %v", job["status"])
	}
}

func TestRaffleStatus_ReadsContract(t *testing.T) {
	app := newTestApp(&fakeJobs{})

	resp, body := doJSON(t, app, "GET", "/api/v1/raffles/5/status", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "open" {
		t.Fatalf("raffle status = %v", body["status"])
	}
}

func TestBlocklistCheck_ReadsContract(t *testing.T) {
	app := newTestApp(&fakeJobs{})

	resp, body := doJSON(t, app, "GET", "/api/v1/blocklist/"+blockedTestAddr, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["blocklisted"] != true {
		t.Fatalf("blocklisted = %v, want true", body["blocklisted"])
	}

	resp, body = doJSON(t, app, "GET", "/api/v1/blocklist/0x8ba1f109551bD432803012645Ac136ddd64DBA72", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["blocklisted"] != false {
		t.Fatalf("blocklisted = %v, want false", body["blocklisted"])
	}
}

func TestBlocklistCheck_RejectsMalformedAddress(t *testing.T) {
	app := newTestApp(&fakeJobs{})

	resp, body := doJSON(t, app, "GET", "/api/v1/blocklist/not-an-address", nil, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["error"] != "RELAY_API_BAD_BODY" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestContractStatus_AggregatesReads(t *testing.T) {
	app := newTestApp(&fakeJobs{})

	resp, body := doJSON(t, app, "GET", "/api/v1/status", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["paused"] != false {
		t.Fatalf("paused = %v", body["paused"])
	}
	if body["accumulatedFees"] != "42000000" {
		t.Fatalf("accumulatedFees = %v", body["accumulatedFees"])
	}
	if body["signerBalance"] != "1000000000" {
		t.Fatalf("signerBalance = %v", body["signerBalance"])
	}
}

func TestIPAllowlist(t *testing.T) {
	app := fiber.New()
	app.Use(relayapi.IPAllowlist([]string{"10.0.0.1"}))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	req := httptest.NewRequest("GET", "/ping", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for unlisted address", resp.StatusCode)
	}

	open := fiber.New()
	open.Use(relayapi.IPAllowlist(nil))
	open.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	resp, err = open.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 with empty allowlist", resp.StatusCode)
	}
}
