package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/skobkin/wedgego/internal/config"
	"github.com/skobkin/wedgego/internal/connectors"
	"github.com/skobkin/wedgego/internal/datawedge"
	"github.com/skobkin/wedgego/internal/intentlink"
	"github.com/skobkin/wedgego/internal/persistence"
	"github.com/skobkin/wedgego/internal/scanner"
)

const testScanAction = "com.example.SCAN"

type fakeScanLister struct {
	entries   []persistence.ScanEntry
	err       error
	lastLimit int
}

func (f *fakeScanLister) ListRecent(_ context.Context, limit int) ([]persistence.ScanEntry, error) {
	f.lastLimit = limit
	return f.entries, f.err
}

type fakeConfigStore struct {
	cfg      config.AppConfig
	applyErr error
	applied  int
}

func (f *fakeConfigStore) CurrentConfig() config.AppConfig {
	return f.cfg
}

func (f *fakeConfigStore) SaveAndApplyConfig(cfg config.AppConfig) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied++
	f.cfg = cfg

	return nil
}

func send(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build %s %s: %v", method, url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T) *scanner.Session {
	t.Helper()

	s := scanner.New(testLogger(), nil, intentlink.NewLoopback(), scanner.Config{
		Profile: datawedge.Profile{Name: "TestProfile", PackageName: "com.example", ScanAction: testScanAction},
	})
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	return s
}

func newTestServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()

	if deps.Logger == nil {
		deps.Logger = testLogger()
	}
	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)

	return srv
}

func scanIntent(barcode string) datawedge.Intent {
	in := datawedge.NewIntent(testScanAction)
	in.Extras[datawedge.ExtraDataString] = barcode
	return in
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func TestHealthReportsBuild(t *testing.T) {
	srv := newTestServer(t, Deps{Session: newTestSession(t), Name: "wedgego", Version: "1.0.0"})

	resp := get(t, srv.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
	body := decodeBody[healthResponse](t, resp)
	if body.Status != "ok" || body.Name != "wedgego" || body.Version != "1.0.0" {
		t.Fatalf("unexpected health body: %+v", body)
	}
}

func TestRequestIDIsPreserved(t *testing.T) {
	srv := newTestServer(t, Deps{Session: newTestSession(t)})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("expected caller request id, got %q", got)
	}
}

func TestTestScanEndpoint(t *testing.T) {
	srv := newTestServer(t, Deps{Session: newTestSession(t)})

	resp := post(t, srv.URL+"/scan/test?success=true")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := decodeBody[resultResponse](t, resp); body.Result != scanner.TestScanSuccess {
		t.Fatalf("unexpected result %q", body.Result)
	}

	resp = post(t, srv.URL+"/scan/test?success=false")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if body := decodeBody[errorResponse](t, resp); body.Error != "TestScan Failure" {
		t.Fatalf("unexpected error %q", body.Error)
	}

	resp = post(t, srv.URL+"/scan/test?success=maybe")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestScanOnceReturnsNextBarcode(t *testing.T) {
	session := newTestSession(t)
	srv := newTestServer(t, Deps{Session: session})

	result := make(chan *http.Response, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/scan/once", "application/json", nil)
		if err != nil {
			result <- nil
			return
		}
		result <- resp
	}()

	waitFor(t, func() bool { return session.Status().SinglePending })
	session.HandleIntent(scanIntent("4006381333931"))

	resp := <-result
	if resp == nil {
		t.Fatalf("request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := decodeBody[scanResponse](t, resp); body.Barcode != "4006381333931" {
		t.Fatalf("unexpected barcode %q", body.Barcode)
	}
}

func TestScanOnceSupersededReturnsConflict(t *testing.T) {
	session := newTestSession(t)
	srv := newTestServer(t, Deps{Session: session})

	result := make(chan int, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/scan/once", "application/json", nil)
		if err != nil {
			result <- 0
			return
		}
		resp.Body.Close()
		result <- resp.StatusCode
	}()

	waitFor(t, func() bool { return session.Status().SinglePending })
	next := session.ScanOnce()
	defer next.Cancel()

	if got := <-result; got != http.StatusConflict {
		t.Fatalf("expected 409, got %d", got)
	}
}

func TestScanOnceTimeoutFreesSlot(t *testing.T) {
	session := newTestSession(t)
	srv := newTestServer(t, Deps{Session: session})

	resp := post(t, srv.URL+"/scan/once?timeout=20ms")
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.StatusCode)
	}
	if session.Status().SinglePending {
		t.Fatalf("expected single slot to be released after timeout")
	}
}

func TestScanOnceRejectsInvalidTimeout(t *testing.T) {
	session := newTestSession(t)
	srv := newTestServer(t, Deps{Session: session})

	resp := post(t, srv.URL+"/scan/once?timeout=soon")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if session.Status().SinglePending {
		t.Fatalf("invalid request must not register a scan")
	}
}

func TestScanOnceCancelledWhenClientGoes(t *testing.T) {
	session := newTestSession(t)
	srv := newTestServer(t, Deps{Session: session})

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/scan/once", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}()

	waitFor(t, func() bool { return session.Status().SinglePending })
	cancel()
	<-done
	waitFor(t, func() bool { return !session.Status().SinglePending })
}

func TestStartAndStopScanning(t *testing.T) {
	session := newTestSession(t)
	srv := newTestServer(t, Deps{Session: session})

	result := make(chan int, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/scan/start", "application/json", nil)
		if err != nil {
			result <- 0
			return
		}
		resp.Body.Close()
		result <- resp.StatusCode
	}()

	waitFor(t, func() bool { return session.Status().MultiPending })
	if !session.Status().Continuous {
		t.Fatalf("expected continuous scanning to be on")
	}

	resp := post(t, srv.URL+"/scan/stop")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got := <-result; got != http.StatusConflict {
		t.Fatalf("expected stopped start request to return 409, got %d", got)
	}
	if session.Status().Continuous {
		t.Fatalf("expected continuous scanning to be off")
	}
}

func TestEventsStreamsContinuousScans(t *testing.T) {
	session := newTestSession(t)
	srv := newTestServer(t, Deps{Session: session})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	start := session.StartScanning()
	defer start.Cancel()
	session.HandleIntent(scanIntent("A1"))

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for event == "" || data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	if event != "BarcodeScanned" {
		t.Fatalf("unexpected event %q", event)
	}
	if data != `{"barcode":"A1"}` {
		t.Fatalf("unexpected data %q", data)
	}
}

func TestStatusIncludesLink(t *testing.T) {
	session := newTestSession(t)
	link := connectors.ConnectionStatus{State: connectors.ConnectionStateConnected, TransportName: "ip", Target: "10.0.0.2:4403"}
	srv := newTestServer(t, Deps{
		Session:    session,
		ConnStatus: func() (connectors.ConnectionStatus, bool) { return link, true },
	})

	start := session.StartScanning()
	defer start.Cancel()

	resp := get(t, srv.URL+"/status")
	body := decodeBody[statusResponse](t, resp)
	if !body.Continuous || !body.MultiPending || body.Active {
		t.Fatalf("unexpected session flags: %+v", body)
	}
	if body.Link == nil || body.Link.State != connectors.ConnectionStateConnected || body.Link.Target != "10.0.0.2:4403" {
		t.Fatalf("unexpected link: %+v", body.Link)
	}
	if body.Scanner != nil {
		t.Fatalf("expected no scanner status yet, got %+v", body.Scanner)
	}
}

func TestListScans(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	lister := &fakeScanLister{entries: []persistence.ScanEntry{
		{ID: 2, ScanRecord: connectors.ScanRecord{Barcode: "B", Mode: connectors.ScanModeSingle, At: at}},
	}}
	srv := newTestServer(t, Deps{Session: newTestSession(t), Scans: lister})

	resp := get(t, srv.URL+"/scans?limit=5")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	entries := decodeBody[[]persistence.ScanEntry](t, resp)
	if len(entries) != 1 || entries[0].Barcode != "B" || entries[0].ID != 2 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if lister.lastLimit != 5 {
		t.Fatalf("expected limit 5, got %d", lister.lastLimit)
	}

	get(t, srv.URL+"/scans?limit=100000")
	if lister.lastLimit != maxListLimit {
		t.Fatalf("expected limit capped to %d, got %d", maxListLimit, lister.lastLimit)
	}

	if resp := get(t, srv.URL+"/scans?limit=-1"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	lister.err = errors.New("db gone")
	if resp := get(t, srv.URL+"/scans"); resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if lister.lastLimit != persistence.DefaultListLimit {
		t.Fatalf("expected default limit, got %d", lister.lastLimit)
	}
}

func TestListScansWithoutJournal(t *testing.T) {
	srv := newTestServer(t, Deps{Session: newTestSession(t)})

	if resp := get(t, srv.URL+"/scans"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUnknownMethodIsRejected(t *testing.T) {
	srv := newTestServer(t, Deps{Session: newTestSession(t)})

	if resp := get(t, srv.URL+"/scan/once"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestClearScans(t *testing.T) {
	var cleared int
	srv := newTestServer(t, Deps{
		Session: newTestSession(t),
		ClearScans: func(context.Context) error {
			cleared++
			return nil
		},
	})

	if resp := send(t, http.MethodDelete, srv.URL+"/scans", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if cleared != 1 {
		t.Fatalf("expected one clear, got %d", cleared)
	}
}

func TestClearScansFailures(t *testing.T) {
	disabled := newTestServer(t, Deps{Session: newTestSession(t)})
	if resp := send(t, http.MethodDelete, disabled.URL+"/scans", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without journal, got %d", resp.StatusCode)
	}

	broken := newTestServer(t, Deps{
		Session:    newTestSession(t),
		ClearScans: func(context.Context) error { return errors.New("disk full") },
	})
	resp := send(t, http.MethodDelete, broken.URL+"/scans", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if body := decodeBody[errorResponse](t, resp); strings.Contains(body.Error, "disk full") {
		t.Fatalf("internal error leaked to client: %q", body.Error)
	}
}

func TestGetConfig(t *testing.T) {
	store := &fakeConfigStore{cfg: config.Default()}
	srv := newTestServer(t, Deps{Session: newTestSession(t), Config: store})

	resp := get(t, srv.URL+"/config")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := decodeBody[config.AppConfig](t, resp)
	if got.Profile.ScanAction != store.cfg.Profile.ScanAction || got.Connection.Connector != store.cfg.Connection.Connector {
		t.Fatalf("unexpected config %+v", got)
	}

	noStore := newTestServer(t, Deps{Session: newTestSession(t)})
	if resp := get(t, noStore.URL+"/config"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without config store, got %d", resp.StatusCode)
	}
}

func TestPutConfigAppliesWithDefaults(t *testing.T) {
	store := &fakeConfigStore{cfg: config.Default()}
	srv := newTestServer(t, Deps{Session: newTestSession(t), Config: store})

	resp := send(t, http.MethodPut, srv.URL+"/config", `{"connection":{"connector":"serial","serial_port":"/dev/ttyACM0"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := decodeBody[config.AppConfig](t, resp)
	if store.applied != 1 {
		t.Fatalf("expected config to be applied once, got %d", store.applied)
	}
	if got.Connection.SerialPort != "/dev/ttyACM0" || got.Connection.SerialBaud != config.DefaultSerialBaud {
		t.Fatalf("expected serial config with default baud, got %+v", got.Connection)
	}
	if got.Profile.ScanAction != config.DefaultScanAction {
		t.Fatalf("expected default scan action, got %q", got.Profile.ScanAction)
	}
}

func TestPutConfigRejectsBadInput(t *testing.T) {
	store := &fakeConfigStore{cfg: config.Default()}
	srv := newTestServer(t, Deps{Session: newTestSession(t), Config: store})

	for name, body := range map[string]string{
		"malformed":     `{"connection":`,
		"unknown field": `{"radio":{}}`,
		"invalid":       `{"connection":{"connector":"serial"}}`,
	} {
		if resp := send(t, http.MethodPut, srv.URL+"/config", body); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
	if store.applied != 0 {
		t.Fatalf("expected rejected configs not to be applied")
	}

	store.applyErr = errors.New("relay locked")
	if resp := send(t, http.MethodPut, srv.URL+"/config", `{"connection":{"host":"10.0.0.2"}}`); resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 on apply failure, got %d", resp.StatusCode)
	}
}
