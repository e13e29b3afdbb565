package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/burpheart/runchat/pkg/types"
)

func TestCheckReachableAnyStatus(t *testing.T) {
	var got http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		if r.Method != http.MethodGet || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer upstream.Close()

	identity := types.Identity{TenantID: "default", ProjectID: "default", GraphID: "weather-graph"}
	report := Check(context.Background(), upstream.Client(), upstream.URL, identity)

	if !report.Reachable {
		t.Fatalf("expected reachable, got %+v", report)
	}
	if report.HTTPStatus == nil || *report.HTTPStatus != http.StatusMethodNotAllowed {
		t.Errorf("unexpected status %v", report.HTTPStatus)
	}
	if report.Message != "GET /api/chat responded with 405" {
		t.Errorf("unexpected message %q", report.Message)
	}
	if report.Resource != upstream.URL+"/api/chat" || report.Target != upstream.URL {
		t.Errorf("unexpected target %+v", report)
	}
	if got.Get("x-inkeep-graph-id") != "weather-graph" || got.Get("x-inkeep-tenant-id") != "default" {
		t.Errorf("missing identity headers: %v", got)
	}
}

func TestCheckUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	base := upstream.URL
	upstream.Close()

	report := Check(context.Background(), http.DefaultClient, base, types.Identity{})
	if report.Reachable || report.HTTPStatus != nil {
		t.Fatalf("expected unreachable, got %+v", report)
	}
	if report.Message == "" {
		t.Error("expected failure message")
	}
}

type fakeChecker struct {
	report Report
	err    error
}

func (f fakeChecker) Health(context.Context) (Report, error) { return f.report, f.err }

func TestProbeTransitions(t *testing.T) {
	var p Probe
	if p.Status().State != Idle {
		t.Fatalf("expected idle, got %s", p.Status().State)
	}

	status := 200
	ok := p.Run(context.Background(), fakeChecker{report: Report{Reachable: true, HTTPStatus: &status, Message: "fine", Resource: "http://x/api/chat"}})
	if ok.State != OK || ok.Info != "fine" || ok.URL != "http://x/api/chat" {
		t.Errorf("unexpected ok status %+v", ok)
	}

	fail := p.Run(context.Background(), fakeChecker{report: Report{Message: "connection refused"}})
	if fail.State != Fail || fail.Info != "connection refused" || fail.HTTPStatus != nil {
		t.Errorf("unexpected fail status %+v", fail)
	}

	transport := p.Run(context.Background(), fakeChecker{err: errors.New("dial tcp: refused")})
	if transport.State != Fail || transport.Info != "dial tcp: refused" || transport.URL != "" {
		t.Errorf("unexpected transport failure %+v", transport)
	}

	p.Begin()
	if p.Status().State != Testing || p.Status().Info != "" {
		t.Errorf("begin must reset to testing, got %+v", p.Status())
	}
}
