package domain

// LockEvent is the deposit event recorded by the lock backend.
type LockEvent struct {
	ChainID                  string `json:"chainId"`
	CreatedAt                string `json:"createdAt"`
	IsNftMinted              bool   `json:"isNftMinted"`
	IsWithdrawn              bool   `json:"isWithdrawn"`
	LiquidityContractAddress string `json:"liquidityContractAddress"`
	LiquidityPairAddress     string `json:"liquidityPairAddress"`
	LiquidityPairReserve     string `json:"liquidityPairReserve"`
	LiquidityTokenReserve    string `json:"liquidityTokenReserve"`
	LiquidityTotalSupply     string `json:"liquidityTotalSupply"`
	LockAmount               string `json:"lockAmount"`
	LockContractAddress      string `json:"lockContractAddress"`
	LockDepositID            int64  `json:"lockDepositId"`
	LockNftContractAddress   string `json:"lockNftContractAddress"`
	MigratedLockDepositID    int64  `json:"migratedLockDepositId"`
	Network                  string `json:"network"`
	SenderAddress            string `json:"senderAddress"`
	TimeStamp                int64  `json:"timeStamp"`
	TokenAddress             string `json:"tokenAddress"`
	TokenID                  string `json:"tokenId"`
	TokenTotalSupply         string `json:"tokenTotalSupply"`
	TransactionAmount        string `json:"transactionAmount"`
	TransactionHash          string `json:"transactionHash"`
	TransactionIndex         int64  `json:"transactionIndex"`
	UnlockTime               int64  `json:"unlockTime"`
	UpdatedAt                string `json:"updatedAt"`
	WithdrawalAddress        string `json:"withdrawalAddress"`
}

// LockToken describes a locked token. The backend uses the same shape for the
// token and pair blocks of a lock.
type LockToken struct {
	ChainID                  string  `json:"chainId"`
	CreatedAt                string  `json:"createdAt"`
	IsLiquidityToken         bool    `json:"isLiquidityToken"`
	IsNFT                    bool    `json:"isNFT"`
	LiquidityLockedInPercent float64 `json:"liquidityLockedInPercent"`
	LiquidityLockedInUsd     float64 `json:"liquidityLockedInUsd"`
	Network                  string  `json:"network"`
	TokenAddress             string  `json:"tokenAddress"`
	TokenCirculatingSupply   string  `json:"tokenCirculatingSupply"`
	TokenDecimals            int     `json:"tokenDecimals"`
	TokenID                  string  `json:"tokenId"`
	TokenLocked              string  `json:"tokenLocked"`
	TokenName                string  `json:"tokenName"`
	TokenImage               string  `json:"tokenImage"`
	TokenSymbol              string  `json:"tokenSymbol"`
	TokenTotalSupply         string  `json:"tokenTotalSupply"`
	UpdatedAt                string  `json:"updatedAt"`
}

// LiquidityContract is the LP token (v2) or position manager (v3) that holds
// the locked liquidity.
type LiquidityContract struct {
	ChainID          string `json:"chainId"`
	CreatedAt        string `json:"createdAt"`
	IsLiquidityToken bool   `json:"isLiquidityToken"`
	Network          string `json:"network"`
	Token0           string `json:"token0"`
	Token1           string `json:"token1"`
	TokenAddress     string `json:"tokenAddress"`
	TokenDecimals    int    `json:"tokenDecimals"`
	TokenName        string `json:"tokenName"`
	TokenSymbol      string `json:"tokenSymbol"`
	TokenTotalSupply string `json:"tokenTotalSupply"`
	UpdatedAt        string `json:"updatedAt"`
}

// Lock is one liquidity lock as returned by the lock backend.
type Lock struct {
	Event             LockEvent          `json:"event"`
	Token             LockToken          `json:"token"`
	LiquidityContract *LiquidityContract `json:"liquidityContract,omitempty"`
	Pair              LockToken          `json:"pair"`
}

// LockKey identifies a lock deposit across refreshes.
type LockKey struct {
	LockContract string
	DepositID    int64
}

// Key returns the identifying key of the lock.
func (l Lock) Key() LockKey {
	return LockKey{LockContract: l.Event.LockContractAddress, DepositID: l.Event.LockDepositID}
}
