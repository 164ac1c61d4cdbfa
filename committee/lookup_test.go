package committee

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/canopy-network/shardnode/lib"
	"github.com/stretchr/testify/require"
)

func TestStaticLookup(t *testing.T) {
	nodes := newTestNodes(t, "a")
	c0 := newCommittee(t, 0, 1, nodes, shardRange(0, 1))
	c1 := newCommittee(t, 1, 1, nodes, shardRange(0, 1))
	lookup := NewStaticLookup(newWindow(t, c0, nil, nil))
	got, err := lookup.GetActiveCommittees(context.Background())
	require.NoError(t, err)
	require.Equal(t, lib.Epoch(0), got.Epoch())
	lookup.SetError(lib.ErrInvalidArgument())
	_, err = lookup.GetActiveCommittees(context.Background())
	require.ErrorIs(t, err, lib.ErrInvalidArgument())
	// setting committees clears the error
	lookup.Set(newWindow(t, c1, c0, nil))
	got, err = lookup.GetActiveCommittees(context.Background())
	require.NoError(t, err)
	require.Equal(t, lib.Epoch(1), got.Epoch())
}

func TestFileLookupJSON(t *testing.T) {
	nodes := newTestNodes(t, "a", "b")
	c0 := newCommittee(t, 4, 4, nodes, shardRange(0, 2), shardRange(2, 4))
	c1 := newCommittee(t, 5, 4, nodes, shardRange(0, 1), shardRange(1, 4))
	expected := newWindow(t, c1, c0, nil)
	lookup := NewFileLookup(t.TempDir())
	// no committee file
	_, err := lookup.GetActiveCommittees(context.Background())
	require.Error(t, err)
	require.NoError(t, lookup.Write(expected))
	got, err := lookup.GetActiveCommittees(context.Background())
	require.NoError(t, err)
	require.True(t, expected.Equals(got))
}

func TestFileLookupTOML(t *testing.T) {
	nodes := newTestNodes(t, "a", "b")
	member := func(n *testNode, shards string) string {
		return fmt.Sprintf("  [[%%s.members]]\n  publicKey = %q\n  netAddress = \"http://%s:50002\"\n  name = %q\n  shards = %s\n",
			lib.BytesToString(n.publicKey()), n.name, n.name, shards)
	}
	committee := func(section string, epoch int, members ...string) (s string) {
		s = fmt.Sprintf("[%s]\nepoch = %d\nnShards = 4\n", section, epoch)
		for _, m := range members {
			s += fmt.Sprintf(m, section)
		}
		return
	}
	tests := []struct {
		name        string
		file        string
		expectedErr bool
		epoch       lib.Epoch
		hasPrevious bool
	}{
		{
			name:  "current only",
			file:  committee("current", 2, member(nodes[0], "[0, 1]"), member(nodes[1], "[2, 3]")),
			epoch: 2,
		},
		{
			name: "previous and current",
			file: committee("previous", 1, member(nodes[0], "[0, 1, 2, 3]")) +
				committee("current", 2, member(nodes[0], "[0, 1]"), member(nodes[1], "[2, 3]")),
			epoch:       2,
			hasPrevious: true,
		},
		{
			name:        "shard out of range",
			file:        committee("current", 2, member(nodes[0], "[0, 1]"), member(nodes[1], "[2, 4]")),
			expectedErr: true,
		},
		{
			name:        "unassigned shard",
			file:        committee("current", 2, member(nodes[0], "[0, 1]"), member(nodes[1], "[2]")),
			expectedErr: true,
		},
		{
			name:        "previous does not precede current",
			file:        committee("previous", 0, member(nodes[0], "[0, 1, 2, 3]")) + committee("current", 2, member(nodes[0], "[0, 1, 2, 3]")),
			expectedErr: true,
		},
		{
			name:        "malformed",
			file:        "[current\nepoch = ",
			expectedErr: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dataDir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dataDir, lib.CommitteesTOMLFilePath), []byte(test.file), 0644))
			got, err := NewFileLookup(dataDir).GetActiveCommittees(context.Background())
			if test.expectedErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.epoch, got.Epoch())
			require.Equal(t, uint16(4), got.NShards())
			require.Equal(t, test.hasPrevious, got.PreviousCommittee() != nil)
			require.True(t, got.Contains(nodes[0].publicKey()))
		})
	}
}
