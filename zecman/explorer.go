package zecman

/*
Zcash side of the bridge. There is no zcashd RPC wrapper in the Go
ecosystem worth depending on, so the monitor consumes an Insight style
block explorer REST API instead. Only transparent (t-addr) outputs are
visible there, which is exactly what the bridge watches: shielded
deposits cannot carry the recipient memo.
*/

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type ExplorerClient struct {
	BaseURL string // e.g. https://explorer.example/api
	client  *http.Client
}

func NewExplorerClient(baseURL string) *ExplorerClient {
	return &ExplorerClient{
		BaseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type statusResponse struct {
	Info struct {
		Blocks int64 `json:"blocks"`
	} `json:"info"`
}

type addrResponse struct {
	Address      string   `json:"addrStr"`
	TxCount      int64    `json:"txApperances"`
	Transactions []string `json:"transactions"`
}

type ScriptPubKey struct {
	Hex       string   `json:"hex"`
	Asm       string   `json:"asm"`
	Addresses []string `json:"addresses"`
}

type TxOutput struct {
	N            int          `json:"n"`
	Value        string       `json:"value"` // ZEC decimal string, e.g. "0.08900000"
	ScriptPubKey ScriptPubKey `json:"scriptPubKey"`
}

type TxDetail struct {
	TxID          string     `json:"txid"`
	BlockHash     string     `json:"blockhash"`
	BlockHeight   int64      `json:"blockheight"`
	Confirmations int64      `json:"confirmations"`
	Vout          []TxOutput `json:"vout"`
}

func (c *ExplorerClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach explorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("explorer returned status %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse explorer response: %w", err)
	}
	return nil
}

// ChainHeight is the tip height the explorer knows about.
func (c *ExplorerClient) ChainHeight(ctx context.Context) (int64, error) {
	var sr statusResponse
	if err := c.get(ctx, "/status?q=getInfo", &sr); err != nil {
		return 0, err
	}
	return sr.Info.Blocks, nil
}

// GetAddressTxIDs lists the txids touching a transparent address,
// newest first.
func (c *ExplorerClient) GetAddressTxIDs(ctx context.Context, address string) ([]string, error) {
	var ar addrResponse
	if err := c.get(ctx, "/addr/"+address, &ar); err != nil {
		return nil, err
	}
	return ar.Transactions, nil
}

// GetTx fetches the full transaction detail.
func (c *ExplorerClient) GetTx(ctx context.Context, txid string) (*TxDetail, error) {
	var td TxDetail
	if err := c.get(ctx, "/tx/"+txid, &td); err != nil {
		return nil, err
	}
	return &td, nil
}

// GetTxConfirmations is a convenience shortcut over GetTx.
func (c *ExplorerClient) GetTxConfirmations(ctx context.Context, txid string) (int64, error) {
	td, err := c.GetTx(ctx, txid)
	if err != nil {
		return 0, err
	}
	return td.Confirmations, nil
}

// IsHealthy probes the explorer with a short deadline.
func (c *ExplorerClient) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := c.ChainHeight(ctx)
	return err == nil
}
