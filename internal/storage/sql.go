package storage

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time  DATETIME NOT NULL,
    device_type TEXT NOT NULL,
    device_id   TEXT NOT NULL,
    config      TEXT
);

CREATE TABLE IF NOT EXISTS measurements (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL REFERENCES sessions (id),
    timestamp  DATETIME NOT NULL,
    cinr       REAL NOT NULL,
    pdsch_mcs  INTEGER NOT NULL,
    pdsch_bler REAL NOT NULL,
    pdsch_ber  REAL NOT NULL,
    mcch_mcs   INTEGER NOT NULL,
    mcch_bler  REAL NOT NULL,
    mcch_ber   REAL NOT NULL,
    mch        TEXT
);`

// Indexes are created when the store closes so steady-state inserts stay
// cheap during a session.
const initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_measurements_session_time
    ON measurements (session_id, timestamp);`

const (
	insertSessionSQL = `
INSERT INTO sessions (start_time,
                      device_type,
                      device_id,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    config
FROM sessions
ORDER BY start_time, id`

	insertMeasurementSQL = `
INSERT INTO measurements (session_id,
                          timestamp,
                          cinr,
                          pdsch_mcs,
                          pdsch_bler,
                          pdsch_ber,
                          mcch_mcs,
                          mcch_bler,
                          mcch_ber,
                          mch)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectMeasurementsSQL = `
SELECT
    id,
    session_id,
    timestamp,
    cinr,
    pdsch_mcs,
    pdsch_bler,
    pdsch_ber,
    mcch_mcs,
    mcch_bler,
    mcch_ber,
    mch
FROM measurements
WHERE
    session_id = ?`
)
