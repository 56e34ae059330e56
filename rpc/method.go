package rpc

import (
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/pkg/errors"
)

var (
	ErrUnsupportedMethod = errors.New("No such JSON-RPC method exists")

	rpcMethodNotFoundPattern = regexp.MustCompile(`method.*(?:not found|not exist|not available)`)
)

// node specific methods not registered in btcjson
var extraMethods = []string{
	"getblockstats",
	"getchaintips",
	"getchaintxstats",
	"getexcessiveblock",
	"getmempoolentry",
	"getmerkleproof",
	"getmerkleproof2",
	"getminingcandidate",
	"getnetworkinfo",
	"getrawmempool",
	"getsettings",
	"gettxoutproof",
	"gettxoutsetinfo",
	"preciousblock",
	"sendrawtransactions",
	"submitminingsolution",
	"verifychain",
	"verifyscript",
	"verifytxoutproof",
}

// methodRegistry resolves method names case insensitively.
type methodRegistry map[string]struct{}

func newMethodRegistry(extra ...string) methodRegistry {
	registry := make(methodRegistry)

	for _, v := range btcjson.RegisteredCmdMethods() {
		registry[strings.ToLower(v)] = struct{}{}
	}

	for _, v := range extraMethods {
		registry[v] = struct{}{}
	}

	for _, v := range extra {
		registry[strings.ToLower(v)] = struct{}{}
	}

	return registry
}

// normalize returns the wire method name if supported, e.g. getRawTransaction => getrawtransaction.
func (registry methodRegistry) normalize(method string) (string, error) {
	name := strings.ToLower(method)

	if _, ok := registry[name]; !ok {
		return "", errors.WithMessagef(ErrUnsupportedMethod, "method = %v", method)
	}

	return name, nil
}

// isMethodNotFoundError checks whether the error returned by node indicates an unsupported RPC method.
func isMethodNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var rpcErr interface{ ErrorCode() int }
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == int(btcjson.ErrRPCMethodNotFound.Code) {
		return true
	}

	return rpcMethodNotFoundPattern.MatchString(strings.ToLower(err.Error()))
}
