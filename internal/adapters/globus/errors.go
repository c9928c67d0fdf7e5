package globus

import (
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"

	"github.com/psu-rc/rcops/internal/domain"
)

const (
	codeConsentRequired  = "ConsentRequired"
	codeEndpointNotFound = "EndpointNotFound"
	codeTaskNotFound     = "TaskNotFound"
)

// APIError is the error document the Transfer API returns for 4xx and 5xx
// responses.
type APIError struct {
	StatusCode     int      `json:"-"`
	Code           string   `json:"code"`
	Message        string   `json:"message"`
	RequestID      string   `json:"request_id"`
	RequiredScopes []string `json:"required_scopes"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("transfer api error: %d %s: %s (request_id=%s)", e.StatusCode, e.Code, e.Message, e.RequestID)
}

// handleAPIError maps a failed call to a domain error where one exists.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%s: %w", operation, requestErr)
	}
	if !resp.IsErrorState() {
		return nil
	}

	apiErr, ok := resp.ErrorResult().(*APIError)
	if !ok || apiErr == nil || apiErr.Code == "" {
		return fmt.Errorf("%s: unexpected status %d: %s", operation, resp.StatusCode, resp.String())
	}
	apiErr.StatusCode = resp.StatusCode

	switch {
	case apiErr.Code == codeConsentRequired:
		return &domain.ConsentRequiredError{
			RequiredScopes: apiErr.RequiredScopes,
			Message:        apiErr.Message,
		}
	case apiErr.Code == codeEndpointNotFound:
		return fmt.Errorf("%s: %w: %w", operation, domain.ErrEndpointNotFound, apiErr)
	case apiErr.Code == codeTaskNotFound:
		return fmt.Errorf("%s: %w: %w", operation, domain.ErrTaskNotFound, apiErr)
	}

	return fmt.Errorf("%s: %w", operation, apiErr)
}

func retryable(resp *req.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp != nil && resp.StatusCode >= http.StatusInternalServerError
}
