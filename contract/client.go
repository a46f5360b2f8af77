package contract

import (
	"context"
	"fmt"

	"twabWinners/config"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

// Client is a read-only node connection on a supported network
type Client struct {
	*ethclient.Client
	Network config.Network
}

// Dial connects to rpcURL and checks that the node serves chainID
func Dial(ctx context.Context, chainID int64, rpcURL string) (*Client, error) {
	network, ok := config.SupportedNetworks[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}

	ctx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", network.Name, err)
	}

	remoteID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}
	if !remoteID.IsInt64() || remoteID.Int64() != chainID {
		client.Close()
		return nil, fmt.Errorf("%w: expected %d, got %s", ErrChainMismatch, chainID, remoteID)
	}

	log.Debug().Str("network", network.Name).Int64("chainId", chainID).Msg("✅ RPC client connected")
	return &Client{Client: client, Network: network}, nil
}
