package constants

const (
	AppName = "marketplace-client"

	// DefaultChainID is Polygon Mumbai, the chain the read-only connector falls back to.
	DefaultChainID uint64 = 80001

	DefaultIPFSAPI     = "https://ipfs.infura.io:5001/api/v0"
	DefaultIPFSGateway = "https://ipfs.infura.io/ipfs"

	ManifestFileName = "metadata.json"

	FilePerm      = 0o600
	DirectoryPerm = 0o700
)
