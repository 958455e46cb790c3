package loyalty

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/payflow/internal/config"
	"github.com/GlebRadaev/payflow/pkg/clients"
)

// Request mirrors the loyalty service wire contract: both fields travel as
// strings.
type Request struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
}

type Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Bonus   decimal.Decimal `json:"bonus"`
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
		url:    cfg.LoyaltyAddress + "/loyalty",
		client: client,
	}
}

// Award asks the loyalty service to compute the bonus for a payment.
func (c *Client) Award(ctx context.Context, userID int, amount decimal.Decimal) (*Response, error) {
	body, err := json.Marshal(Request{
		UserID: strconv.Itoa(userID),
		Amount: amount.StringFixed(2),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode loyalty request: %w", err)
	}

	statusCode, respBody, err := c.client.Post(ctx, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("loyalty service call failed: %w", err)
	}
	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("loyalty service returned status %d", statusCode)
	}

	var response Response
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse loyalty response: %w", err)
	}
	return &response, nil
}
