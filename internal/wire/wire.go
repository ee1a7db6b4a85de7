// Package wire holds the JSON shapes exchanged with the role-assumption and
// secrets endpoints. The broker core parses these bodies; transports that do
// not speak raw HTTP render their results back into the same shapes.
package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AssumeRoleEnvelope is the JSON rendering of an STS AssumeRole response
// (query protocol with Accept: application/json).
type AssumeRoleEnvelope struct {
	AssumeRoleResponse *AssumeRoleResponse `json:"AssumeRoleResponse"`
}

type AssumeRoleResponse struct {
	AssumeRoleResult *AssumeRoleResult `json:"AssumeRoleResult"`
}

type AssumeRoleResult struct {
	Credentials     *STSCredentials  `json:"Credentials"`
	AssumedRoleUser *AssumedRoleUser `json:"AssumedRoleUser,omitempty"`
}

type AssumedRoleUser struct {
	Arn           string `json:"Arn"`
	AssumedRoleID string `json:"AssumedRoleId"`
}

// STSCredentials is the temporary credential triple. Expiration is either
// epoch seconds (number) or an RFC 3339 string depending on the endpoint.
type STSCredentials struct {
	AccessKeyID     string          `json:"AccessKeyId"`
	SecretAccessKey string          `json:"SecretAccessKey"`
	SessionToken    string          `json:"SessionToken"`
	Expiration      json.RawMessage `json:"Expiration,omitempty"`
}

// ExpiresAt decodes Expiration. The zero time is returned when it is absent.
func (c *STSCredentials) ExpiresAt() (time.Time, error) {
	raw := strings.TrimSpace(string(c.Expiration))
	if raw == "" || raw == "null" {
		return time.Time{}, nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(c.Expiration, &s); err != nil {
			return time.Time{}, fmt.Errorf("decode expiration: %w", err)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse expiration: %w", err)
		}
		return t, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiration: %w", err)
	}
	return time.Unix(int64(secs), 0).UTC(), nil
}

// EpochExpiration encodes t the way the JSON query endpoint does.
func EpochExpiration(t time.Time) json.RawMessage {
	if t.IsZero() {
		return nil
	}
	return json.RawMessage(strconv.FormatInt(t.Unix(), 10))
}

// GetSecretValueInput is the Secrets Manager GetSecretValue request body.
type GetSecretValueInput struct {
	SecretID string `json:"SecretId"`
}

// GetSecretValueOutput is the subset of the GetSecretValue response the broker reads.
type GetSecretValueOutput struct {
	ARN          string  `json:"ARN,omitempty"`
	Name         string  `json:"Name,omitempty"`
	VersionID    string  `json:"VersionId,omitempty"`
	SecretString *string `json:"SecretString"`
}

// PutSecretValueInput is the Secrets Manager PutSecretValue request body.
type PutSecretValueInput struct {
	SecretID           string `json:"SecretId"`
	SecretString       string `json:"SecretString"`
	ClientRequestToken string `json:"ClientRequestToken,omitempty"`
}

// PutSecretValueOutput is the subset of the PutSecretValue response the broker reads.
type PutSecretValueOutput struct {
	ARN       string `json:"ARN,omitempty"`
	Name      string `json:"Name,omitempty"`
	VersionID string `json:"VersionId"`
}

// ErrorBody covers both AWS JSON 1.1 errors ({"__type", "message"}) and
// query protocol errors rendered as JSON ({"Error": {"Code", "Message"}}).
type ErrorBody struct {
	Type         string      `json:"__type,omitempty"`
	Message      string      `json:"message,omitempty"`
	MessageUpper string      `json:"Message,omitempty"`
	Error        *QueryError `json:"Error,omitempty"`
}

type QueryError struct {
	Type    string `json:"Type,omitempty"`
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// ParseError extracts an error code and message from a remote error body.
// Bodies that are not JSON yield empty strings.
func ParseError(body []byte) (code, message string) {
	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return "", ""
	}
	if eb.Error != nil {
		return eb.Error.Code, eb.Error.Message
	}
	code = eb.Type
	// JSON 1.1 error types can carry a namespace prefix: "com.amazonaws...#ResourceNotFoundException".
	if i := strings.LastIndex(code, "#"); i >= 0 {
		code = code[i+1:]
	}
	message = eb.Message
	if message == "" {
		message = eb.MessageUpper
	}
	return code, message
}
