package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"logbook/chain"
	"logbook/config"
	"logbook/core/events"
	"logbook/core/types"
)

func writeFixture(t *testing.T, dir string) (configPath, eventsPath string) {
	t.Helper()
	configPath = filepath.Join(dir, "logbook.toml")
	contents := fmt.Sprintf("[storage]\nbackend = \"bolt\"\npath = %q\n\n[log]\nlevel = \"error\"\n", filepath.Join(dir, "entities.bolt"))
	require.NoError(t, os.WriteFile(configPath, []byte(contents), 0o600))

	owner := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	hash := crypto.Keccak256Hash([]byte("day one"))
	meta := func(block uint64) events.Meta {
		return events.Meta{BlockNumber: block, BlockTimestamp: 1_700_000_000 + block, TxHash: common.BigToHash(new(big.Int).SetUint64(block))}
	}
	evts := []events.LogEvent{
		events.Transfer{Meta: meta(1), To: owner, TokenID: big.NewInt(1)},
		events.Content{Meta: meta(2), Author: owner, ContentHash: hash, Content: []byte("day one")},
		events.Publish{Meta: meta(3), TokenID: big.NewInt(1), ContentHash: hash},
		events.SetTitle{Meta: meta(4), TokenID: big.NewInt(1), Title: "Travels"},
	}
	var buf bytes.Buffer
	require.NoError(t, chain.WriteEvents(&buf, evts))
	eventsPath = filepath.Join(dir, "events.jsonl")
	require.NoError(t, os.WriteFile(eventsPath, buf.Bytes(), 0o600))
	return configPath, eventsPath
}

func TestReplayGetExport(t *testing.T) {
	dir := t.TempDir()
	configPath, eventsPath := writeFixture(t, dir)

	var out bytes.Buffer
	require.NoError(t, runReplay(context.Background(), []string{"-config", configPath, eventsPath}, &out))
	require.Contains(t, out.String(), "replayed through block 4")

	// A second replay resumes after the checkpoint and changes nothing.
	out.Reset()
	require.NoError(t, runReplay(context.Background(), []string{"-config", configPath, eventsPath}, &out))

	out.Reset()
	require.NoError(t, runGet([]string{"-config", configPath, types.KindLogbook, "1"}, &out))
	var logbook types.Logbook
	require.NoError(t, json.Unmarshal(out.Bytes(), &logbook))
	require.Equal(t, "Travels", logbook.Title)
	require.Len(t, logbook.Publications, 1)
	require.Equal(t, uint64(1), logbook.PublicationCount)

	exportPath := filepath.Join(dir, "exports", "logbooks.parquet")
	out.Reset()
	require.NoError(t, runExport([]string{"-config", configPath, types.KindLogbook, "parquet", exportPath}, &out))
	require.Contains(t, out.String(), "1 logbook rows")
	_, err := os.Stat(exportPath)
	require.NoError(t, err)
}

func TestGetMissingEntity(t *testing.T) {
	dir := t.TempDir()
	configPath, _ := writeFixture(t, dir)
	err := runGet([]string{"-config", configPath, types.KindLogbook, "404"}, &bytes.Buffer{})
	require.ErrorContains(t, err, "not found")
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logbook.toml")
	require.NoError(t, runInit([]string{path}, &bytes.Buffer{}))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.BackendLevelDB, cfg.Storage.Backend)

	require.Error(t, runInit([]string{path}, &bytes.Buffer{}))
	require.NoError(t, runInit([]string{"-force", path}, &bytes.Buffer{}))
}

func TestCommandArgumentValidation(t *testing.T) {
	require.Error(t, runReplay(context.Background(), nil, &bytes.Buffer{}))
	require.Error(t, runGet([]string{"logbook"}, &bytes.Buffer{}))
	require.Error(t, runExport([]string{"logbook", "xml", "out"}, &bytes.Buffer{}))
	require.Error(t, runFetch(context.Background(), []string{"10", "5", "out.jsonl"}, &bytes.Buffer{}))
}
