package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is an HTTP client for the token ledger service.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type transferRequest struct {
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

type transferResponse struct {
	TxHash string `json:"tx_hash"`
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

// Transfer sends amount tokens to the address and returns the transaction hash.
func (c *Client) Transfer(ctx context.Context, to string, amount float64) (string, error) {
	payload, err := json.Marshal(transferRequest{To: to, Amount: amount})
	if err != nil {
		return "", fmt.Errorf("marshal transfer: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfer", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out transferResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("transfer: %w", err)
	}
	if out.TxHash == "" {
		return "", fmt.Errorf("transfer: empty transaction hash")
	}
	return out.TxHash, nil
}

func (c *Client) BalanceOf(ctx context.Context, address string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/balance/"+url.PathEscape(address), nil)
	if err != nil {
		return 0, fmt.Errorf("build balance request: %w", err)
	}
	var out balanceResponse
	if err := c.do(req, &out); err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return out.Balance, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
