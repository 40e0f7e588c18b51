package state

var (
	poolPrefix          = []byte("pool/record/")
	distributionPrefix  = []byte("pool/distribution/")
	holderClaimPrefix   = []byte("pool/claim/")
	referencePrefix     = []byte("pool/reference/")
	metadataPrefix      = []byte("pool/metadata/")
	programConfigKey    = []byte("program/config")
	creatorPermitPrefix = []byte("program/creator/")
	mintPrefix          = []byte("bank/mint/")
	tokenAccountPrefix  = []byte("bank/account/")
	noncePrefix         = []byte("node/nonce/")
	ledgerHeadKey       = []byte("node/head")
)
