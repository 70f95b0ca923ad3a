package domain

// Network names a TON network.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// NetworkConfigURL maps a network to its public global config.
var NetworkConfigURL = map[Network]string{
	NetworkMainnet: "https://ton.org/global.config.json",
	NetworkTestnet: "https://ton.org/testnet-global.config.json",
}
