package solbc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain/solbc/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// newRPCServer отвечает на JSON-RPC вызовы заранее заданными result по имени метода.
func newRPCServer(t *testing.T, results map[string]string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, ok := results[req.Method]
		if !ok {
			http.Error(w, "unexpected method "+req.Method, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, urls ...string) *Client {
	t.Helper()
	pool, err := rpc.NewClient(urls, zaptest.NewLogger(t))
	require.NoError(t, err)
	return NewClient(pool, solanarpc.CommitmentConfirmed, zaptest.NewLogger(t))
}

func TestClientGetSignatureStatus(t *testing.T) {
	srv := newRPCServer(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":90},"value":[{"slot":88,"confirmations":null,"err":{"InstructionError":[4,{"Custom":311}]},"confirmationStatus":"finalized","status":{"Err":{}}}]}`,
	}, nil)
	client := newTestClient(t, srv.URL)

	status, err := client.GetSignatureStatus(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, uint64(88), status.Slot)
	require.NotNil(t, status.Err)
	assert.Equal(t, blockchain.TxErrorInstruction, status.Err.Kind)
	require.NotNil(t, status.Err.Code)
	assert.Equal(t, uint32(311), *status.Err.Code)
}

func TestClientGetSignatureStatusUnknown(t *testing.T) {
	srv := newRPCServer(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":90},"value":[null]}`,
	}, nil)
	client := newTestClient(t, srv.URL)

	status, err := client.GetSignatureStatus(context.Background(), solana.Signature{2})
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestClientSubmitRawFailsOver(t *testing.T) {
	sig := solana.Signature{7, 7, 7}
	var badHits, goodHits atomic.Int32
	bad := newRPCServer(t, map[string]string{}, &badHits)
	good := newRPCServer(t, map[string]string{
		"sendTransaction": fmt.Sprintf("%q", sig.String()),
	}, &goodHits)
	client := newTestClient(t, bad.URL, good.URL)

	got, err := client.SubmitRaw(context.Background(), []byte{1, 2, 3}, blockchain.TransactionOptions{SkipPreflight: true})
	require.NoError(t, err)
	assert.Equal(t, sig, got)
	assert.Equal(t, int32(1), badHits.Load())
	assert.Equal(t, int32(1), goodHits.Load())
}

func TestClientSubmitRawWrapsNodeError(t *testing.T) {
	bad := newRPCServer(t, map[string]string{}, nil)
	client := newTestClient(t, bad.URL)

	_, err := client.SubmitRaw(context.Background(), []byte{1}, blockchain.TransactionOptions{})
	require.Error(t, err)
	var rpcErr *rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "sendTransaction", rpcErr.Method)
	assert.Equal(t, bad.URL, rpcErr.NodeURL)
}

func TestClientAccountDataAndRent(t *testing.T) {
	srv := newRPCServer(t, map[string]string{
		"getAccountInfo":                    `{"context":{"slot":1},"value":{"data":["AQID","base64"],"executable":false,"lamports":10,"owner":"11111111111111111111111111111111","rentEpoch":0}}`,
		"getMinimumBalanceForRentExemption": `1461600`,
		"getBalance":                        `{"context":{"slot":1},"value":2500000000}`,
	}, nil)
	client := newTestClient(t, srv.URL)

	data, err := client.GetAccountData(context.Background(), solana.SystemProgramID)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	rent, err := client.MinimumBalanceForRentExemption(context.Background(), 82)
	require.NoError(t, err)
	assert.Equal(t, uint64(1461600), rent)

	balance, err := client.GetBalance(context.Background(), solana.SystemProgramID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500000000), balance)
}

func TestClientAccountNotFound(t *testing.T) {
	srv := newRPCServer(t, map[string]string{
		"getAccountInfo": `{"context":{"slot":1},"value":null}`,
	}, nil)
	client := newTestClient(t, srv.URL)

	_, err := client.GetAccountData(context.Background(), solana.SystemProgramID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
