package txstore

var (
	// one row per bridging operation
	transactionsTable = `CREATE TABLE IF NOT EXISTS bridge_transactions (
		txId VARCHAR(128) PRIMARY KEY NOT NULL,
		txType VARCHAR(32) NOT NULL,
		status VARCHAR(10) NOT NULL,
		asset VARCHAR(16) NOT NULL,
		amount BIGINT NOT NULL,
		sourceAddress VARCHAR(128),
		recipient VARCHAR(128),
		payoutSignature VARCHAR(128),
		createdAt BIGINT NOT NULL,
		updatedAt BIGINT NOT NULL,
		CONSTRAINT chk_status CHECK (status IN ('pending', 'processing', 'confirmed', 'processed', 'failed')),
		CONSTRAINT chk_txType CHECK (txType IN ('btc_deposit', 'zec_deposit', 'redemption')),
		CONSTRAINT chk_txId CHECK (txId != ''),
		CONSTRAINT chk_amount CHECK (amount > 0)
	);
	CREATE INDEX IF NOT EXISTS idx_bridge_transactions_status ON bridge_transactions (status, txType);`

	// append-only audit trail of status moves
	historyTable = `CREATE TABLE IF NOT EXISTS status_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		txId VARCHAR(128) NOT NULL,
		txType VARCHAR(32) NOT NULL,
		status VARCHAR(10) NOT NULL,
		previousStatus VARCHAR(10),
		notes TEXT,
		createdAt BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_status_history_txId ON status_history (txId);`
)
