package lib

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHexBytesJSON(t *testing.T) {
	// pre-define the value to encode
	expected := HexBytes{0xde, 0xad, 0xbe, 0xef}
	bz, err := json.Marshal(expected)
	require.NoError(t, err)
	require.Equal(t, `"deadbeef"`, string(bz))
	// decode it back
	got := HexBytes{}
	require.NoError(t, json.Unmarshal(bz, &got))
	require.Equal(t, expected, got)
	// invalid hex is rejected
	require.Error(t, json.Unmarshal([]byte(`"zz"`), &got))
}

func TestStringToBytes(t *testing.T) {
	bz, err := StringToBytes("0a0b")
	require.NoError(t, err)
	require.Equal(t, []byte{0x0a, 0x0b}, bz)
	require.Equal(t, "0a0b", BytesToString(bz))
	_, err = StringToBytes("not hex")
	require.Error(t, err)
	require.Equal(t, CodeStringToBytes, err.Code())
}

func TestBytesToTruncatedString(t *testing.T) {
	long := make([]byte, 32)
	require.Len(t, BytesToTruncatedString(long), 20)
	require.Equal(t, "0102", BytesToTruncatedString([]byte{1, 2}))
}

func TestSaveJSONToFile(t *testing.T) {
	dir := t.TempDir()
	expected := map[string]uint64{"epoch": 4}
	require.NoError(t, SaveJSONToFile(expected, dir, "test.json"))
	got := map[string]uint64{}
	require.NoError(t, NewJSONFromFile(&got, dir, "test.json"))
	require.Equal(t, expected, got)
	// a missing file is a read error
	err := NewJSONFromFile(&got, dir, "missing.json")
	require.Error(t, err)
	require.Equal(t, CodeReadFile, err.Code())
}

func TestMSToDuration(t *testing.T) {
	require.Equal(t, 1500*time.Millisecond, MSToDuration(1500))
}

func TestErrorIs(t *testing.T) {
	err := error(ErrChangeInProgress())
	require.ErrorIs(t, err, ErrChangeInProgress())
	require.NotErrorIs(t, err, ErrUnknownNextCommittee())
	require.True(t, IsCode(err, MainModule, CodeChangeInProgress))
	require.False(t, IsCode(err, CommitteeModule, CodeChangeInProgress))
}
