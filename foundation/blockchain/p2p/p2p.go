// Package p2p provides the network layer for the node: a libp2p host, a
// flood broadcast pub/sub router and local network discovery over mDNS.
package p2p

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"
)

// ErrDiscovery is returned when the discovery layer can't be started.
var ErrDiscovery = errors.New("discovery layer failure")

// Buffer sizes for the channels feeding the node's event loop.
const (
	messageBuffer   = 100
	discoveryBuffer = 32
)

// connectTimeout bounds the dial to a freshly discovered peer.
const connectTimeout = 10 * time.Second

// =============================================================================

// Config represents the configuration required to start the network.
type Config struct {
	Key              crypto.PrivKey
	ListenAddrs      []string
	ServiceTag       string
	Topics           []string
	DisableDiscovery bool
	EvHandler        func(v string, args ...any)
}

// Message is a pub/sub message received from a peer.
type Message struct {
	Topic string
	From  string // Peer that originated the message.
	Data  []byte
}

// Discovery is a discovery record for a peer found on the local network.
type Discovery struct {
	ID    string
	Addrs []string
}

// Network manages the libp2p host and the topics the node gossips on.
type Network struct {
	host       host.Host
	ps         *pubsub.PubSub
	topics     map[string]*pubsub.Topic
	subs       []*pubsub.Subscription
	mdns       mdns.Service
	messages   chan Message
	discovered chan Discovery
	evHandler  func(v string, args ...any)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// GenerateIdentity creates the ed25519 key the node identifies itself with
// for the life of the process.
func GenerateIdentity() (crypto.PrivKey, error) {
	key, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}

	return key, nil
}

// New constructs the host, joins and subscribes to the topics and starts
// local network discovery.
func New(cfg Config) (*Network, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	key := cfg.Key
	if key == nil {
		var err error
		if key, err = GenerateIdentity(); err != nil {
			return nil, err
		}
	}

	h, err := libp2p.New(
		libp2p.Identity(key),
		libp2p.ListenAddrStrings(cfg.ListenAddrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("creating libp2p host: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	n := Network{
		host:       h,
		topics:     make(map[string]*pubsub.Topic),
		messages:   make(chan Message, messageBuffer),
		discovered: make(chan Discovery, discoveryBuffer),
		evHandler:  ev,
		ctx:        ctx,
		cancel:     cancel,
	}

	// Flood broadcast: every message goes to every peer subscribed to
	// the topic.
	n.ps, err = pubsub.NewFloodSub(ctx, h)
	if err != nil {
		n.close()
		return nil, fmt.Errorf("creating floodsub router: %w", err)
	}

	for _, name := range cfg.Topics {
		topic, err := n.ps.Join(name)
		if err != nil {
			n.close()
			return nil, fmt.Errorf("joining topic %s: %w", name, err)
		}
		n.topics[name] = topic

		sub, err := topic.Subscribe()
		if err != nil {
			n.close()
			return nil, fmt.Errorf("subscribing to topic %s: %w", name, err)
		}
		n.subs = append(n.subs, sub)
	}

	for _, sub := range n.subs {
		n.wg.Add(1)
		go func(sub *pubsub.Subscription) {
			defer n.wg.Done()
			n.readMessages(sub)
		}(sub)
	}

	if !cfg.DisableDiscovery {
		n.mdns = mdns.NewMdnsService(h, cfg.ServiceTag, notifee{n: &n})
		if err := n.mdns.Start(); err != nil {
			n.mdns = nil
			n.close()
			return nil, fmt.Errorf("%w: starting mdns: %w", ErrDiscovery, err)
		}
	}

	ev("p2p: New: host[%s]: addrs%v: topics%v", h.ID(), h.Addrs(), cfg.Topics)

	return &n, nil
}

// Shutdown stops discovery, leaves the topics and closes the host.
func (n *Network) Shutdown() error {
	n.evHandler("p2p: Shutdown: started")
	defer n.evHandler("p2p: Shutdown: completed")

	return n.close()
}

// ID returns the identity of this node as a string.
func (n *Network) ID() string {
	return n.host.ID().String()
}

// AddrInfo returns the identity and addresses other hosts can dial.
func (n *Network) AddrInfo() peer.AddrInfo {
	return peer.AddrInfo{
		ID:    n.host.ID(),
		Addrs: n.host.Addrs(),
	}
}

// Addrs returns the listen addresses of the host.
func (n *Network) Addrs() []string {
	return addrStrings(n.host.Addrs())
}

// Connect dials the specified peer.
func (n *Network) Connect(ctx context.Context, info peer.AddrInfo) error {
	return n.host.Connect(ctx, info)
}

// Connected reports if the host holds a live connection to the peer.
func (n *Network) Connected(id string) bool {
	pid, err := peer.Decode(id)
	if err != nil {
		return false
	}

	return n.host.Network().Connectedness(pid) == network.Connected
}

// Publish broadcasts the data to every peer subscribed to the topic.
func (n *Network) Publish(ctx context.Context, topic string, data []byte) error {
	t, exists := n.topics[topic]
	if !exists {
		return fmt.Errorf("topic %q not joined", topic)
	}

	return t.Publish(ctx, data)
}

// TopicPeers returns the peers known to be subscribed to the topic.
func (n *Network) TopicPeers(topic string) []string {
	t, exists := n.topics[topic]
	if !exists {
		return nil
	}

	ids := t.ListPeers()
	peers := make([]string, len(ids))
	for i, id := range ids {
		peers[i] = id.String()
	}

	return peers
}

// Messages returns the channel of messages received from other peers.
func (n *Network) Messages() <-chan Message {
	return n.messages
}

// Discovered returns the channel of discovery records.
func (n *Network) Discovered() <-chan Discovery {
	return n.discovered
}

// =============================================================================

// readMessages pumps messages from a subscription into the messages
// channel. Messages this node published are dropped.
func (n *Network) readMessages(sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			return
		}

		if msg.GetFrom() == n.host.ID() {
			continue
		}

		m := Message{
			Topic: sub.Topic(),
			From:  msg.GetFrom().String(),
			Data:  msg.Data,
		}

		select {
		case n.messages <- m:
		case <-n.ctx.Done():
			return
		}
	}
}

// peerFound connects to a peer reported by mDNS and forwards the
// discovery record.
func (n *Network) peerFound(info peer.AddrInfo) {
	if info.ID == n.host.ID() {
		return
	}

	ctx, cancel := context.WithTimeout(n.ctx, connectTimeout)
	defer cancel()

	if err := n.host.Connect(ctx, info); err != nil {
		n.evHandler("p2p: peerFound: connect: peer[%s]: WARNING: %s", info.ID, err)
	}

	d := Discovery{
		ID:    info.ID.String(),
		Addrs: addrStrings(info.Addrs),
	}

	select {
	case n.discovered <- d:
	case <-n.ctx.Done():
	}
}

// close releases everything New managed to construct. Cancelling the
// context stops the pub/sub router along with the topics.
func (n *Network) close() error {
	var errs []error
	if n.mdns != nil {
		errs = append(errs, n.mdns.Close())
	}

	n.cancel()

	for _, sub := range n.subs {
		sub.Cancel()
	}
	n.wg.Wait()

	errs = append(errs, n.host.Close())

	return errors.Join(errs...)
}

// =============================================================================

// notifee receives the peers found by the mDNS service.
type notifee struct {
	n *Network
}

// HandlePeerFound implements the mdns.Notifee interface.
func (nf notifee) HandlePeerFound(info peer.AddrInfo) {
	nf.n.peerFound(info)
}

func addrStrings(addrs []multiaddr.Multiaddr) []string {
	s := make([]string, len(addrs))
	for i, addr := range addrs {
		s[i] = addr.String()
	}

	return s
}
