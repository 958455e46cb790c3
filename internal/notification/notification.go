package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/GlebRadaev/payflow/internal/config"
	"github.com/GlebRadaev/payflow/pkg/clients"
)

type Request struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (r *Response) Success() bool {
	return r.Status == "success"
}

type Client struct {
	url    string
	client clients.HTTPClientI
}

func New(cfg *config.Config, client clients.HTTPClientI) *Client {
	return &Client{
		url:    cfg.NotificationAddress + "/notify",
		client: client,
	}
}

// Notify tells the notification service about a payment status change.
func (c *Client) Notify(ctx context.Context, userID int, status string) (*Response, error) {
	body, err := json.Marshal(Request{
		UserID: strconv.Itoa(userID),
		Status: status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification request: %w", err)
	}

	statusCode, respBody, err := c.client.Post(ctx, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("notification service call failed: %w", err)
	}
	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("notification service returned status %d", statusCode)
	}

	var response Response
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse notification response: %w", err)
	}
	return &response, nil
}
