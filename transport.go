package credx

import (
	"fmt"
	"net/url"
	"strconv"
)

// Request is one remote call. Credentials travel separately from the
// action payload so transports can sign without inspecting it.
type Request struct {
	// Service is ServiceSTS or ServiceSecretsManager.
	Service string
	Action  string
	// Endpoint may be empty; the transport then derives it from Service and Region.
	Endpoint    string
	Region      string
	Credentials Credentials
	// Payload is a form-encoded body for STS and a JSON 1.1 body for Secrets Manager.
	Payload []byte
}

// Response is the raw outcome of a remote call.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Request) String() string {
	return fmt.Sprintf("%s:%s region=%s endpoint=%q credentials=%s", r.Service, r.Action, r.Region, r.Endpoint, r.Credentials)
}

// assumeRolePayload renders the STS query-protocol body for AssumeRole.
func assumeRolePayload(mode AssumableCredential) []byte {
	form := url.Values{}
	form.Set("Action", ActionAssumeRole)
	form.Set("Version", STSAPIVersion)
	form.Set("RoleArn", mode.RoleARN)
	form.Set("RoleSessionName", mode.RoleSessionName())
	form.Set("DurationSeconds", strconv.Itoa(int(AssumeRoleDuration.Seconds())))
	return []byte(form.Encode())
}
