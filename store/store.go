package store

import (
	"github.com/peerquery/peerquery/store/file"
	"github.com/peerquery/peerquery/store/leveldb"
	"github.com/peerquery/peerquery/types"
)

var (
	_ ChainCache             = (*file.Store)(nil)
	_ HeaderIndex            = (*leveldb.Store)(nil)
	_ Writable[types.Header] = (*leveldb.Store)(nil)
)
