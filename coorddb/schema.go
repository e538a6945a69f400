package coorddb

var (
	// one row per transaction id under coordination.
	coordinationTable = `CREATE TABLE IF NOT EXISTS coordination_records (
		transactionId VARCHAR(128) PRIMARY KEY NOT NULL,
		transactionType VARCHAR(32) NOT NULL,
		processingService VARCHAR(128) NOT NULL,
		status VARCHAR(10) NOT NULL,
		startedAt BIGINT NOT NULL,
		completedAt BIGINT,
		CONSTRAINT chk_status CHECK (status IN ('processing', 'completed', 'failed')),
		CONSTRAINT chk_transactionId CHECK (transactionId != ''),
		CONSTRAINT chk_processingService CHECK (processingService != '')
	);`

	// the sweeper filters on (status, completedAt) and (status, startedAt).
	coordinationIndexes = `
	CREATE INDEX IF NOT EXISTS idx_coordination_completed ON coordination_records (status, completedAt);
	CREATE INDEX IF NOT EXISTS idx_coordination_started ON coordination_records (status, startedAt);`
)
