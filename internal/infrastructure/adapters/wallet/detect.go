package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const checkTimeout = 5 * time.Second

// Provider kinds
const (
	KindRPC = "rpc"
	KindKey = "key"
)

// Detection is the result of a provider capability check.
type Detection struct {
	Available bool
	Provider  Provider
	Kind      string
	Reason    string
}

func Available(p Provider, kind string) Detection {
	return Detection{Available: true, Provider: p, Kind: kind}
}

func Unavailable(reason string) Detection {
	return Detection{Reason: reason}
}

// Detector reports whether a signing provider can be used right now.
type Detector interface {
	Detect(ctx context.Context) Detection
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context) Detection

func (f DetectorFunc) Detect(ctx context.Context) Detection { return f(ctx) }

// Static always reports the same detection.
func Static(d Detection) Detector {
	return DetectorFunc(func(context.Context) Detection { return d })
}

// RPCDetector lazily dials an external signer and checks it with
// eth_chainId before reporting it available. A failed check replaces the
// provider on the next Detect call; sessions still holding the old one keep it
// until Shutdown.
type RPCDetector struct {
	url    string
	logger *zap.Logger

	mu       sync.Mutex
	provider *RPCProvider
	retired  []*RPCProvider
}

func NewRPCDetector(url string, logger *zap.Logger) *RPCDetector {
	return &RPCDetector{url: url, logger: logger}
}

func (d *RPCDetector) Detect(ctx context.Context) Detection {
	if d.url == "" {
		return Unavailable("no signer endpoint configured")
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	p, err := d.current(ctx)
	if err != nil {
		return Unavailable(fmt.Sprintf("signer unreachable: %v", err))
	}

	if _, err := ChainID(ctx, p); err != nil {
		d.logger.Warn("Signer check failed", zap.String("url", d.url), zap.Error(err))
		d.retire(p)
		return Unavailable(fmt.Sprintf("signer not responding: %v", err))
	}
	return Available(p, KindRPC)
}

// current returns the shared provider, dialing one if there is none. The
// mutex is never held across network calls.
func (d *RPCDetector) current(ctx context.Context) (*RPCProvider, error) {
	d.mu.Lock()
	p := d.provider
	d.mu.Unlock()
	if p != nil {
		return p, nil
	}

	dialed, err := DialRPCProvider(ctx, d.url, d.logger)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.provider != nil {
		// lost the race to a concurrent Detect; nobody has seen ours yet
		dialed.Close()
		return d.provider, nil
	}
	d.provider = dialed
	return dialed, nil
}

func (d *RPCDetector) retire(p *RPCProvider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.provider != p {
		return
	}
	d.provider = nil
	d.retired = append(d.retired, p)
}

func (d *RPCDetector) Shutdown(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.retired {
		p.Close()
	}
	d.retired = nil
	if d.provider != nil {
		d.provider.Close()
		d.provider = nil
	}
	return nil
}
