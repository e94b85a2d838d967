package main

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/causalmesh/go-causalmesh/config"
)

func bootnode(tb testing.TB, addr string) string {
	tb.Helper()
	key, _, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(tb, err)
	id, err := peer.IDFromPrivateKey(key)
	require.NoError(tb, err)
	return addr + "/p2p/" + id.String()
}

func TestFlagsOverrideConfig(t *testing.T) {
	a := bootnode(t, "/dns4/a/tcp/1")
	b := bootnode(t, "/dns4/b/tcp/2")
	conf := config.DefaultConfig()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	path, adds := addFlags(flags, &conf)
	require.NoError(t, flags.Parse([]string{
		"-c", "node.json",
		"--set", "groceries",
		"--bootnodes", a + "," + b,
		"--gossip-interval", "2s",
		"--add", "milk",
		"--add", "eggs,flour",
	}))
	require.Equal(t, "node.json", *path)
	require.Equal(t, "groceries", conf.Set)
	require.Equal(t, []string{a, b}, conf.P2P.Bootnodes)
	require.Equal(t, 2*time.Second, conf.Agent.GossipInterval)
	require.Equal(t, []string{"milk", "eggs,flour"}, *adds)
	require.NoError(t, conf.Validate())
}

func TestCommandRejectsInvalidConfig(t *testing.T) {
	c := command()
	c.SetArgs([]string{"--set", ""})
	c.SilenceErrors = true
	require.ErrorContains(t, c.Execute(), "set is empty")
}
