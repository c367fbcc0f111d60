package indexer

const BlocksTableName = "blocks"

// BlockColumns defines the upstream blocks table. Only the height is consumed.
var BlockColumns = []ColumnDef{
	{Name: "num", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "chain", Type: "UInt64"},
}

type Block struct {
	Number  uint64 `ch:"num" json:"number"`
	ChainID uint64 `ch:"chain" json:"chainId"`
}
