package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// RPCProvider forwards wallet requests to an external EIP-1193 signer
// reachable over JSON-RPC (a signing node or a desktop wallet's RPC port).
type RPCProvider struct {
	client *rpc.Client
	url    string
	logger *zap.Logger
}

var _ Provider = (*RPCProvider)(nil)

func DialRPCProvider(ctx context.Context, url string, logger *zap.Logger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial signer: %w", err)
	}
	return &RPCProvider{client: client, url: url, logger: logger}, nil
}

func (p *RPCProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	var result json.RawMessage
	if err := p.client.CallContext(ctx, &result, method, params...); err != nil {
		p.logger.Debug("signer request failed", zap.String("method", method), zap.Error(err))
		return nil, toProviderError(err)
	}
	if result == nil {
		result = json.RawMessage("null")
	}
	return result, nil
}

func (p *RPCProvider) Close() {
	p.client.Close()
}

// toProviderError lifts JSON-RPC error codes into ProviderError so callers can
// branch on 4001/4902 without knowing the transport.
func toProviderError(err error) error {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	pe := &ProviderError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		pe.Data = dataErr.ErrorData()
	}
	return pe
}
