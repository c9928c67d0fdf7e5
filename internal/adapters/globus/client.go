package globus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/imroc/req/v3"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

const (
	DefaultBaseURL = "https://transfer.api.globusonline.org/v0.10"

	pathEndpoint     = "/endpoint/{id}"
	pathSubmissionID = "/submission_id"
	pathTransfer     = "/transfer"
	pathTask         = "/task/{id}"
	pathList         = "/operation/endpoint/{id}/ls"
)

var _ ports.TransferClient = (*Client)(nil)

// Client talks to the Globus Transfer API with a bearer token taken from
// tokens before every request.
type Client struct {
	client *req.Client
	tokens ports.TokenSource
}

type Option func(*req.Client)

func WithRetryInterval(d time.Duration) Option {
	return func(c *req.Client) {
		c.SetCommonRetryFixedInterval(d)
	}
}

func WithUserAgent(agent string) Option {
	return func(c *req.Client) {
		c.SetUserAgent(agent)
	}
}

func NewClient(baseURL string, tokens ports.TokenSource, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{tokens: tokens}
	c.client = req.C().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1 * time.Second).
		SetCommonRetryCondition(retryable).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal).
		OnBeforeRequest(c.authorize)

	for _, opt := range opts {
		opt(c.client)
	}
	return c
}

func (c *Client) authorize(_ *req.Client, r *req.Request) error {
	if c.tokens == nil {
		return errors.New("transfer client has no token source")
	}
	token, err := c.tokens.AccessToken(r.Context())
	if err != nil {
		return err
	}
	r.SetBearerAuthToken(token)
	return nil
}

func (c *Client) GetEndpoint(ctx context.Context, endpointID string) (domain.Endpoint, error) {
	var doc endpointDocument
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", endpointID).
		SetSuccessResult(&doc).
		Get(pathEndpoint)
	if err := handleAPIError(resp, err, "get endpoint"); err != nil {
		return domain.Endpoint{}, err
	}

	return domain.Endpoint{ID: doc.ID, DisplayName: doc.DisplayName, Owner: doc.OwnerString}, nil
}

// Submit fetches a submission id and posts the transfer document. The
// submission id makes retried POSTs idempotent on the service side.
func (c *Client) Submit(ctx context.Context, r domain.TransferRequest) (string, error) {
	var sub submissionIDDocument
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&sub).
		Get(pathSubmissionID)
	if err := handleAPIError(resp, err, "get submission id"); err != nil {
		return "", err
	}
	if sub.Value == "" {
		return "", errors.New("get submission id: empty value")
	}

	var result transferResultDocument
	resp, err = c.client.R().
		SetContext(ctx).
		SetBody(toTransferDocument(sub.Value, r)).
		SetSuccessResult(&result).
		Post(pathTransfer)
	if err := handleAPIError(resp, err, "submit transfer"); err != nil {
		return "", err
	}
	if result.TaskID == "" {
		return "", fmt.Errorf("submit transfer: response has no task_id (code=%s)", result.Code)
	}

	return result.TaskID, nil
}

func (c *Client) GetTask(ctx context.Context, taskID string) (domain.TransferTask, error) {
	var doc taskDocument
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", taskID).
		SetSuccessResult(&doc).
		Get(pathTask)
	if err := handleAPIError(resp, err, "get task"); err != nil {
		return domain.TransferTask{}, err
	}

	return doc.toDomain(), nil
}

func (c *Client) List(ctx context.Context, endpointID string, path string) ([]domain.DirEntry, error) {
	var doc fileListDocument
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", endpointID).
		SetQueryParam("path", path).
		SetQueryParam("orderby", "type,name").
		SetSuccessResult(&doc).
		Get(pathList)
	if err := handleAPIError(resp, err, "list directory"); err != nil {
		return nil, err
	}

	entries := make([]domain.DirEntry, 0, len(doc.Data))
	for _, entry := range doc.Data {
		entries = append(entries, entry.toDomain())
	}
	return entries, nil
}
