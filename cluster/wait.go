package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

// WaitForRPC blocks until the node's RPC endpoint answers a status query and
// reports a block height of at least minHeight.
func WaitForRPC(ctx context.Context, rpcAddr string, minHeight int64, logger *zap.Logger) error {
	client, err := rpchttp.New(rpcAddr, "/websocket")
	if err != nil {
		return fmt.Errorf("building rpc client for %s: %w", rpcAddr, err)
	}
	return retry.Do(func() error {
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}
		if status.SyncInfo.LatestBlockHeight < minHeight {
			return fmt.Errorf("height %d below %d", status.SyncInfo.LatestBlockHeight, minHeight)
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(120),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("waiting for rpc", zap.String("addr", rpcAddr), zap.Uint("attempt", n), zap.Error(err))
		}),
	)
}

// WaitForGRPC blocks until a gRPC connection to the node's query endpoint
// reaches the ready state.
func WaitForGRPC(ctx context.Context, grpcAddr string, logger *zap.Logger) error {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("building grpc client for %s: %w", grpcAddr, err)
	}
	defer conn.Close()

	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			logger.Debug("grpc endpoint ready", zap.String("addr", grpcAddr))
			return nil
		}
		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("waiting for grpc %s: %w", grpcAddr, ctx.Err())
		}
	}
}

// WaitForNode waits for both of a node's query surfaces.
func (h *Handle) WaitForNode(ctx context.Context, i int, minHeight int64) error {
	if err := WaitForRPC(ctx, h.NodeRPC(i), minHeight, h.logger); err != nil {
		return err
	}
	return WaitForGRPC(ctx, h.GRPCAddr(i), h.logger)
}
