// Package probe checks whether the run service is reachable.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/burpheart/runchat/pkg/types"
)

// Report is the health endpoint body. HTTPStatus is null when no response
// came back at all.
type Report struct {
	Target     string `json:"target"`
	Resource   string `json:"resource"`
	Reachable  bool   `json:"reachable"`
	HTTPStatus *int   `json:"httpStatus"`
	Message    string `json:"message"`
}

// Resource returns the chat endpoint under base.
func Resource(base string) string {
	return strings.TrimRight(base, "/") + "/api/chat"
}

// Check issues one GET to the run service's chat endpoint. Any response at
// all, whatever its status, counts as reachable; transport failures are
// reported in the body rather than returned.
func Check(ctx context.Context, client *http.Client, base string, identity types.Identity) Report {
	report := Report{Target: base, Resource: Resource(base)}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, report.Resource, nil)
	if err != nil {
		report.Message = failureMessage(err)
		return report
	}
	SetIdentityHeaders(req.Header, identity)

	resp, err := client.Do(req)
	if err != nil {
		report.Message = failureMessage(err)
		return report
	}
	resp.Body.Close()

	status := resp.StatusCode
	report.Reachable = true
	report.HTTPStatus = &status
	report.Message = fmt.Sprintf("GET /api/chat responded with %d", status)
	return report
}

// SetIdentityHeaders sets the routing headers the run service expects.
func SetIdentityHeaders(h http.Header, identity types.Identity) {
	h.Set("x-inkeep-tenant-id", identity.TenantID)
	h.Set("x-inkeep-project-id", identity.ProjectID)
	h.Set("x-inkeep-graph-id", identity.GraphID)
}

func failureMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "fetch_failed"
	}
	return err.Error()
}
