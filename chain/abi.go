// Package chain connects the projection to an EVM node: it decodes Logbook
// contract logs, pages through finalized blocks and answers the contract
// reads the projection needs.
package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// logbookABI covers the contract events the indexer consumes and the two
// view functions it calls.
const logbookABI = `[
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"tokenId","type":"uint256","indexed":true}]},
  {"type":"event","name":"Content","anonymous":false,"inputs":[
    {"name":"author","type":"address","indexed":true},
    {"name":"contentHash","type":"bytes32","indexed":true},
    {"name":"content","type":"string","indexed":false}]},
  {"type":"event","name":"Publish","anonymous":false,"inputs":[
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"contentHash","type":"bytes32","indexed":true}]},
  {"type":"event","name":"SetTitle","anonymous":false,"inputs":[
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"title","type":"string","indexed":false}]},
  {"type":"event","name":"SetDescription","anonymous":false,"inputs":[
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"description","type":"string","indexed":false}]},
  {"type":"event","name":"SetForkPrice","anonymous":false,"inputs":[
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"Fork","anonymous":false,"inputs":[
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"newTokenId","type":"uint256","indexed":true},
    {"name":"owner","type":"address","indexed":true},
    {"name":"end","type":"bytes32","indexed":false},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"Donate","anonymous":false,"inputs":[
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"donor","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"Pay","anonymous":false,"inputs":[
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"sender","type":"address","indexed":true},
    {"name":"recipient","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"purpose","type":"uint8","indexed":false}]},
  {"type":"event","name":"Withdraw","anonymous":false,"inputs":[
    {"name":"account","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"function","name":"getLogbook","stateMutability":"view",
    "inputs":[{"name":"tokenId","type":"uint256"}],
    "outputs":[{"name":"book","type":"tuple","components":[
      {"name":"endAt","type":"uint32"},
      {"name":"logCount","type":"uint32"},
      {"name":"transferCount","type":"uint32"},
      {"name":"forkPrice","type":"uint160"},
      {"name":"contentHashes","type":"bytes32[]"}]}]},
  {"type":"function","name":"tokenURI","stateMutability":"view",
    "inputs":[{"name":"tokenId","type":"uint256"}],
    "outputs":[{"name":"","type":"string"}]}
]`

var (
	parsedOnce sync.Once
	parsedABI  abi.ABI
	parsedErr  error
)

// LogbookABI returns the parsed contract ABI.
func LogbookABI() (abi.ABI, error) {
	parsedOnce.Do(func() {
		parsedABI, parsedErr = abi.JSON(strings.NewReader(logbookABI))
	})
	return parsedABI, parsedErr
}
