// internal/blockchain/solbc/ws.go
package solbc

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
	"go.uber.org/zap"
)

// WSSubscriber держит одно websocket соединение на все подписки процесса.
// Соединение открывается лениво и переоткрывается после ошибки подписки.
type WSSubscriber struct {
	url    string
	logger *zap.Logger

	mu     sync.Mutex
	client *ws.Client
}

var _ blockchain.SignatureSubscriber = (*WSSubscriber)(nil)

// NewWSSubscriber создаёт подписчика для websocket endpoint.
func NewWSSubscriber(url string, logger *zap.Logger) *WSSubscriber {
	return &WSSubscriber{
		url:    url,
		logger: logger.Named("ws-subscriber"),
	}
}

func (s *WSSubscriber) connection(ctx context.Context) (*ws.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	client, err := ws.Connect(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.url, err)
	}
	s.logger.Debug("WebSocket connected", zap.String("url", s.url))
	s.client = client
	return client, nil
}

// reset закрывает соединение, если оно всё ещё текущее.
func (s *WSSubscriber) reset(broken *ws.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == broken && broken != nil {
		broken.Close()
		s.client = nil
	}
}

// SubscribeSignature открывает signatureSubscribe на заданном commitment.
func (s *WSSubscriber) SubscribeSignature(ctx context.Context, sig solana.Signature, commitment solanarpc.CommitmentType) (blockchain.SignatureSubscription, error) {
	client, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := client.SignatureSubscribe(sig, commitment)
	if err != nil {
		s.logger.Warn("signatureSubscribe failed, dropping connection",
			zap.String("signature", sig.String()),
			zap.Error(err))
		s.reset(client)
		return nil, err
	}
	return &signatureSubscription{sub: sub}, nil
}

// Close закрывает общее соединение.
func (s *WSSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	return nil
}

type signatureSubscription struct {
	sub  *ws.SignatureSubscription
	once sync.Once
}

func (s *signatureSubscription) Recv(ctx context.Context) (*blockchain.SignatureNotification, error) {
	res, err := s.sub.Recv(ctx)
	if err != nil {
		return nil, err
	}
	return &blockchain.SignatureNotification{
		Slot: res.Context.Slot,
		Err:  ParseTxError(res.Value.Err),
	}, nil
}

func (s *signatureSubscription) Unsubscribe() {
	s.once.Do(s.sub.Unsubscribe)
}
