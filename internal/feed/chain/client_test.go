package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
)

func pk(b byte) types.Pubkey {
	var p types.Pubkey
	p[0] = b
	return p
}

// stubRPC 回放固定 result 的 JSON-RPC 服务，记录最后一次请求体
type stubRPC struct {
	srv      *httptest.Server
	result   string
	lastBody []byte
}

func newStubRPC(t *testing.T, result string) *stubRPC {
	t.Helper()
	s := &stubRPC{result: result}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.lastBody = body

		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.Unmarshal(body, &req)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, s.result)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *stubRPC) request(t *testing.T) (method string, params []json.RawMessage) {
	t.Helper()
	var req struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(s.lastBody, &req); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	return req.Method, req.Params
}

func tokenBalance(index int, mint, owner types.Pubkey, amount string, ui float64) string {
	return fmt.Sprintf(
		`{"accountIndex":%d,"mint":"%s","owner":"%s","uiTokenAmount":{"amount":"%s","decimals":6,"uiAmount":%v,"uiAmountString":"%v"}}`,
		index, mint.String(), owner.String(), amount, ui, ui,
	)
}

func TestTransactionDetail(t *testing.T) {
	mint, pool, buyer := pk(9), pk(1), pk(2)

	result := fmt.Sprintf(`{
		"slot": 1,
		"blockTime": 1700000000,
		"transaction": ["AQID", "base64"],
		"meta": {
			"err": null,
			"fee": 5000,
			"preTokenBalances": [%s, %s],
			"postTokenBalances": [%s, %s]
		}
	}`,
		tokenBalance(1, mint, pool, "1000000", 1.0),
		tokenBalance(2, mint, buyer, "0", 0.0),
		tokenBalance(1, mint, pool, "400000", 0.4),
		tokenBalance(2, mint, buyer, "600000", 0.6),
	)
	stub := newStubRPC(t, result)

	cli := NewClient(stub.srv.URL, mint, 5000)
	sig := strings.Repeat("1", 64)

	detail, err := cli.TransactionDetail(context.Background(), sig)
	if err != nil {
		t.Fatalf("TransactionDetail: %v", err)
	}

	method, params := stub.request(t)
	if method != "getTransaction" {
		t.Errorf("method = %s, want getTransaction", method)
	}
	if len(params) != 2 {
		t.Fatalf("got %d params, want 2", len(params))
	}
	var opts map[string]any
	if err := json.Unmarshal(params[1], &opts); err != nil {
		t.Fatalf("unmarshal opts: %v", err)
	}
	// jsonParsed 会被客户端直接拒绝，请求必须用 base64 系列编码
	if got := opts["encoding"]; got != "base64" {
		t.Errorf("encoding = %v, want base64", got)
	}

	if detail.BlockTime != 1700000000 {
		t.Errorf("BlockTime = %d, want 1700000000", detail.BlockTime)
	}
	if len(detail.Deltas) != 2 {
		t.Fatalf("got %d deltas, want 2", len(detail.Deltas))
	}
	poolDelta, buyerDelta := detail.Deltas[0], detail.Deltas[1]
	if poolDelta.Owner != pool || poolDelta.PreBalance != 1.0 || poolDelta.PostBalance != 0.4 {
		t.Errorf("pool delta = %+v", poolDelta)
	}
	if buyerDelta.Owner != buyer || buyerDelta.PreBalance != 0 || buyerDelta.PostBalance != 0.6 {
		t.Errorf("buyer delta = %+v", buyerDelta)
	}
}

func TestTransactionDetail_OtherMintIgnored(t *testing.T) {
	mint, other, holder := pk(9), pk(8), pk(3)

	result := fmt.Sprintf(`{
		"slot": 1,
		"blockTime": 1700000000,
		"transaction": ["AQID", "base64"],
		"meta": {
			"err": null,
			"preTokenBalances": [%s],
			"postTokenBalances": [%s]
		}
	}`,
		tokenBalance(1, other, holder, "1000000", 1.0),
		tokenBalance(1, other, holder, "2000000", 2.0),
	)
	stub := newStubRPC(t, result)

	cli := NewClient(stub.srv.URL, mint, 5000)
	detail, err := cli.TransactionDetail(context.Background(), strings.Repeat("1", 64))
	if err != nil {
		t.Fatalf("TransactionDetail: %v", err)
	}
	if len(detail.Deltas) != 0 {
		t.Errorf("got %d deltas for foreign mint, want 0", len(detail.Deltas))
	}
}

func TestTransactionDetail_InvalidSignature(t *testing.T) {
	stub := newStubRPC(t, `null`)
	cli := NewClient(stub.srv.URL, pk(9), 5000)

	if _, err := cli.TransactionDetail(context.Background(), "not-base58!"); err == nil {
		t.Fatal("want error for malformed signature")
	}
	if stub.lastBody != nil {
		t.Error("malformed signature reached the RPC endpoint")
	}
}
