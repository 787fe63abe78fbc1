package passphrase

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func testDB() *DB {
	return &DB{keys: map[string]record{
		"key-a": {keyid: "key-a", fingerprint: "AAAABBBB", passphrase: "hunter2"},
		"key-b": {keyid: "key-b", fingerprint: "CCCCDDDD", passphrase: "hunter3"},
	}}
}

func TestKeyExists(t *testing.T) {
	db := testDB()
	require.True(t, db.KeyExists("key-a"))
	require.False(t, db.KeyExists("key-z"))
}

func TestGetPassphrase(t *testing.T) {
	db := testDB()
	require.Equal(t, "hunter2", db.GetPassphrase("key-a"))
	require.Equal(t, "", db.GetPassphrase("key-z"))
}

func TestFingerprint(t *testing.T) {
	db := testDB()
	require.Equal(t, "AAAABBBB", db.Fingerprint("key-a"))
	require.Equal(t, "", db.Fingerprint("key-z"))
}

func TestListKeys(t *testing.T) {
	db := testDB()
	keys := db.ListKeys()
	sort.Strings(keys)
	require.Equal(t, []string{"key-a", "key-b"}, keys)
}

func TestDevAcquirerReturnsConfiguredPassphrase(t *testing.T) {
	a := devAcquirer{passphrase: "fixed-pass"}
	p, err := a.acquire("any-key")
	require.NoError(t, err)
	require.Equal(t, "fixed-pass", p)
}
