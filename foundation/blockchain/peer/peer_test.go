package peer_test

import (
	"testing"
	"time"

	"github.com/ardanlabs/floodchain/foundation/blockchain/peer"
)

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []peer.Peer
	}

	now := time.Now()

	tt := []table{
		{
			name:  "basic",
			peers: []peer.Peer{peer.New("peer3", nil, now), peer.New("peer1", nil, now), peer.New("peer2", nil, now)},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewPeerSet()

			for _, p := range tst.peers {
				if !ps.Add(p) {
					t.Fatalf("Test %s:\tShould be able to add new peer %s.", tst.name, p.ID)
				}
			}

			if ps.Add(tst.peers[0]) {
				t.Fatalf("Test %s:\tShould report a known peer as not new.", tst.name)
			}

			peers := ps.Copy("")
			if len(peers) != len(tst.peers) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers))
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			if peers[0].ID != "peer1" || peers[2].ID != "peer3" {
				t.Fatalf("Test %s:\tShould get back the peers sorted by id.", tst.name)
			}

			peers = ps.Copy("peer2")
			if len(peers) != len(tst.peers)-1 {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers)-1)
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			ps.Remove("peer2")
			if ps.Len() != len(tst.peers)-1 {
				t.Fatalf("Test %s:\tShould be able to remove a peer.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Expire(t *testing.T) {
	const ttl = time.Minute
	now := time.Now()

	ps := peer.NewPeerSet()
	ps.Add(peer.New("fresh", nil, now.Add(-30*time.Second)))
	ps.Add(peer.New("stale", nil, now.Add(-2*time.Minute)))
	ps.Add(peer.New("connected", nil, now.Add(-2*time.Minute)))

	alive := func(id string) bool {
		return id == "connected"
	}

	expired := ps.Expire(now, ttl, alive)
	if len(expired) != 1 || expired[0].ID != "stale" {
		t.Logf("got: %v", expired)
		t.Fatalf("Should only expire the stale peer.")
	}

	peers := ps.Copy("")
	if len(peers) != 2 {
		t.Fatalf("Should keep the fresh and connected peers, got %d.", len(peers))
	}

	for _, p := range peers {
		if p.ID == "connected" && !p.LastSeen.Equal(now) {
			t.Fatalf("Should refresh the record of a peer confirmed alive.")
		}
	}

	if expired := ps.Expire(now.Add(2*ttl), ttl, nil); len(expired) != 2 {
		t.Fatalf("Should expire every peer without confirmation, got %d.", len(expired))
	}
}
