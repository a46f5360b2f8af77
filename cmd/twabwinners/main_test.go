package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
	carol = "0x3333333333333333333333333333333333333333"
)

func TestLoadUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.txt")
	content := "# depositors\n" + bob + "\n\n  " + carol + "  \n" + alice + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	users, err := loadUsers([]string{alice}, path)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{
		common.HexToAddress(alice),
		common.HexToAddress(bob),
		common.HexToAddress(carol),
	}, users)
}

func TestLoadUsersErrors(t *testing.T) {
	_, err := loadUsers([]string{"0x12"}, "")
	assert.ErrorContains(t, err, "--users")

	path := filepath.Join(t.TempDir(), "users.txt")
	require.NoError(t, os.WriteFile(path, []byte(alice+"\nnot-an-address\n"), 0o600))
	_, err = loadUsers(nil, path)
	assert.ErrorContains(t, err, "users.txt:2")

	_, err = loadUsers(nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestLoadUsersEmpty(t *testing.T) {
	users, err := loadUsers(nil, "")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestParseBlock(t *testing.T) {
	block, err := parseBlock("")
	require.NoError(t, err)
	assert.Nil(t, block)

	block, err = parseBlock("123456")
	require.NoError(t, err)
	assert.Equal(t, int64(123456), block.Int64())

	_, err = parseBlock("-1")
	assert.Error(t, err)
	_, err = parseBlock("latest")
	assert.Error(t, err)
}

func TestCommandValidation(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("PRIZE_POOL_ADDRESS", "")

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"compute needs vault", []string{"compute", "--rpc", "http://node.invalid", "--pool", alice}, "vault"},
		{"missing rpc", []string{"tiers", "--pool", alice, "--vault", bob}, "--rpc"},
		{"bad pool", []string{"tiers", "--rpc", "http://node.invalid", "--pool", "0x1", "--vault", bob}, "--pool"},
		{"bad user", []string{"verify", "--rpc", "http://node.invalid", "--pool", alice, "--vault", bob, "--user", "bob"}, "--user"},
		{"bad block", []string{"tiers", "--rpc", "http://node.invalid", "--pool", alice, "--vault", bob, "--block", "soon"}, "block"},
		{"unknown chain", []string{"tiers", "--rpc", "http://node.invalid", "--chain-id", "999", "--pool", alice, "--vault", bob}, "unsupported chain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := newRootCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tc.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
