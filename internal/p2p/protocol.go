package p2p

import "github.com/libp2p/go-libp2p/core/protocol"

// GossipSub topic names.
const (
	TopicTransactions = "/coreledger/tx/1.0.0"
	TopicBlocks       = "/coreledger/block/1.0.0"
)

// Stream protocol IDs.
const (
	// HandshakeProtocol checks peer compatibility (genesis hash,
	// protocol version) right after a connection is established.
	HandshakeProtocol = protocol.ID("/coreledger/handshake/1.0.0")

	// ChainProtocol serves full-chain requests: a peer whose block
	// append was rejected asks the sender for its whole chain and
	// applies the longest-chain rule to the response.
	ChainProtocol = protocol.ID("/coreledger/chain/1.0.0")
)

// Protocol version gating.
const (
	// ProtocolVersion is advertised during the handshake.
	ProtocolVersion uint32 = 1

	// MinProtocolVersion is the lowest version accepted from peers.
	MinProtocolVersion uint32 = 1
)
