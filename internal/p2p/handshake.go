package p2p

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	klog "github.com/coreledger/coreledger/internal/log"
	"github.com/coreledger/coreledger/pkg/types"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
)

const (
	// handshakeTimeout bounds a complete handshake exchange.
	handshakeTimeout = 10 * time.Second

	// maxHandshakeBytes limits a handshake message.
	maxHandshakeBytes = 4096
)

// HandshakeMessage is exchanged right after connecting. Peers on a
// different network (different genesis) or with an incompatible
// protocol version are disconnected and banned at the transport level
// before any chain data flows.
type HandshakeMessage struct {
	ProtocolVersion uint32     `json:"protocol_version"`
	GenesisHash     types.Hash `json:"genesis_hash"`
	ChainLength     int        `json:"chain_length"`
}

// registerHandshakeHandler installs the responder side.
func (n *Node) registerHandshakeHandler() {
	logger := klog.P2P
	n.host.SetStreamHandler(HandshakeProtocol, func(stream network.Stream) {
		defer stream.Close()
		remote := stream.Conn().RemotePeer()

		_ = stream.SetReadDeadline(time.Now().Add(handshakeTimeout))

		var peerMsg HandshakeMessage
		if err := json.NewDecoder(io.LimitReader(stream, maxHandshakeBytes)).Decode(&peerMsg); err != nil {
			logger.Debug().Err(err).Str("peer", shortID(remote)).Msg("Handshake read failed")
			return
		}

		ours := n.buildHandshakeMessage()
		if err := json.NewEncoder(stream).Encode(&ours); err != nil {
			logger.Debug().Err(err).Str("peer", shortID(remote)).Msg("Handshake write failed")
			return
		}

		n.judgeHandshake(remote, peerMsg)
	})
}

// doHandshake runs the initiator side against a newly connected peer.
func (n *Node) doHandshake(peerID peer.ID) {
	logger := klog.P2P

	stream, err := n.host.NewStream(n.ctx, peerID, HandshakeProtocol)
	if err != nil {
		// Tolerated: the peer may predate the handshake protocol.
		logger.Debug().Str("peer", shortID(peerID)).Msg("Peer does not speak handshake protocol")
		return
	}
	defer stream.Close()

	_ = stream.SetDeadline(time.Now().Add(handshakeTimeout))

	ours := n.buildHandshakeMessage()
	if err := json.NewEncoder(stream).Encode(&ours); err != nil {
		logger.Debug().Err(err).Str("peer", shortID(peerID)).Msg("Handshake send failed")
		return
	}
	stream.CloseWrite()

	var peerMsg HandshakeMessage
	if err := json.NewDecoder(io.LimitReader(stream, maxHandshakeBytes)).Decode(&peerMsg); err != nil {
		logger.Debug().Err(err).Str("peer", shortID(peerID)).Msg("Handshake response read failed")
		return
	}

	n.judgeHandshake(peerID, peerMsg)
}

// judgeHandshake validates a peer's message and bans + disconnects on
// incompatibility.
func (n *Node) judgeHandshake(peerID peer.ID, msg HandshakeMessage) {
	reason := validateHandshake(msg, n.genesisHash)
	if reason == "" {
		return
	}
	klog.P2P.Warn().
		Str("peer", shortID(peerID)).
		Str("reason", reason).
		Msg("Handshake rejected, banning peer")
	if n.BanManager != nil {
		n.BanManager.RecordOffense(peerID, PenaltyHandshakeFail, reason)
	}
	n.DisconnectPeer(peerID)
}

// validateHandshake returns "" for a compatible peer, or a reason string.
func validateHandshake(msg HandshakeMessage, genesisHash types.Hash) string {
	if msg.GenesisHash != genesisHash {
		return fmt.Sprintf("genesis mismatch: peer=%.16s local=%.16s", msg.GenesisHash, genesisHash)
	}
	if msg.ProtocolVersion < MinProtocolVersion {
		return fmt.Sprintf("protocol version too low: peer=%d min=%d", msg.ProtocolVersion, MinProtocolVersion)
	}
	return ""
}

func (n *Node) buildHandshakeMessage() HandshakeMessage {
	msg := HandshakeMessage{
		ProtocolVersion: ProtocolVersion,
		GenesisHash:     n.genesisHash,
	}
	if n.chainLenFn != nil {
		msg.ChainLength = n.chainLenFn()
	}
	return msg
}

// shortID truncates a peer ID for log lines.
func shortID(id peer.ID) string {
	s := id.String()
	if len(s) > 16 {
		return s[:16]
	}
	return s
}
