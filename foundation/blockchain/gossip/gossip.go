// Package gossip defines the messages nodes exchange over the pub/sub
// topics and the envelope that carries them on the wire.
package gossip

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ardanlabs/floodchain/foundation/blockchain/database"
	"github.com/go-playground/validator/v10"
)

// ErrMalformedMessage is returned when bytes received from the network
// don't decode into a known message.
var ErrMalformedMessage = errors.New("malformed message")

// Kind identifies the message carried by an envelope.
type Kind string

// Set of message kinds.
const (
	KindChainResponse     Kind = "chain_response"
	KindLocalChainRequest Kind = "local_chain_request"
	KindBlock             Kind = "block"
)

// Topics names the pub/sub channels used by the protocol. Chain requests
// and responses travel on Chains, new blocks on Blocks.
type Topics struct {
	Chains string
	Blocks string
}

// DefaultTopics returns the topic names every node subscribes to.
func DefaultTopics() Topics {
	return Topics{
		Chains: "chains",
		Blocks: "blocks",
	}
}

// For returns the topic a message kind is published on.
func (t Topics) For(kind Kind) string {
	if kind == KindBlock {
		return t.Blocks
	}
	return t.Chains
}

// =============================================================================

// ChainResponse carries a full chain to the peer named as receiver.
type ChainResponse struct {
	Blocks   []database.Block `json:"blocks" validate:"required,min=1,dive"`
	Receiver string           `json:"receiver" validate:"required"`
}

// LocalChainRequest asks the peer named by FromPeerID to publish its chain.
type LocalChainRequest struct {
	FromPeerID string `json:"from_peer_id" validate:"required"`
}

// Message is a decoded envelope. Only the field matching Kind is set.
type Message struct {
	Kind          Kind
	ChainResponse *ChainResponse
	ChainRequest  *LocalChainRequest
	Block         *database.Block
}

// envelope is the wire representation of every message.
type envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// validate holds the settings and caches for validating messages.
var validate = validator.New(validator.WithRequiredStructEnabled())

// =============================================================================

// EncodeChainResponse serializes a chain response into an envelope.
func EncodeChainResponse(resp ChainResponse) ([]byte, error) {
	return encode(KindChainResponse, resp)
}

// EncodeLocalChainRequest serializes a chain request into an envelope.
func EncodeLocalChainRequest(req LocalChainRequest) ([]byte, error) {
	return encode(KindLocalChainRequest, req)
}

// EncodeBlock serializes a block into an envelope.
func EncodeBlock(block database.Block) ([]byte, error) {
	return encode(KindBlock, block)
}

// Decode parses an envelope and its payload. Any failure is reported as
// an ErrMalformedMessage.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := strictUnmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: envelope: %w", ErrMalformedMessage, err)
	}

	msg := Message{
		Kind: env.Kind,
	}

	var payload any
	switch env.Kind {
	case KindChainResponse:
		msg.ChainResponse = &ChainResponse{}
		payload = msg.ChainResponse

	case KindLocalChainRequest:
		msg.ChainRequest = &LocalChainRequest{}
		payload = msg.ChainRequest

	case KindBlock:
		msg.Block = &database.Block{}
		payload = msg.Block

	default:
		return Message{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedMessage, env.Kind)
	}

	if err := strictUnmarshal(env.Payload, payload); err != nil {
		return Message{}, fmt.Errorf("%w: %s: %w", ErrMalformedMessage, env.Kind, err)
	}

	if err := validate.Struct(payload); err != nil {
		return Message{}, fmt.Errorf("%w: %s: %w", ErrMalformedMessage, env.Kind, err)
	}

	return msg, nil
}

// =============================================================================

func encode(kind Kind, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", kind, err)
	}

	return json.Marshal(envelope{
		Kind:    kind,
		Payload: payload,
	})
}

// strictUnmarshal rejects unknown fields so one schema is never mistaken
// for another. The data must hold exactly one json document.
func strictUnmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("empty document")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after document")
	}

	return nil
}
